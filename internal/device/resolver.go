// internal/device/resolver.go
package device

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/blake2b"
)

// fallbackFileName stores the minted random identifier so later runs reuse it.
const fallbackFileName = "beaterboo_device_id"

// Signals produces the stable client signals the fingerprint is derived from.
// It may fail on environments where the signals cannot be collected.
type Signals func() (map[string]string, error)

// Resolver derives a stable pseudo-identifier for this installation.
//
// It tries a fingerprint heuristic first (a hash over stable host signals).
// If the signals cannot be collected it falls back to a random identifier
// persisted under storeDir, minting and saving one on first use. The result
// is a weak, spoofable identifier used only for ownership attribution.
type Resolver struct {
	storeDir string
	signals  Signals
	log      *logrus.Logger

	mu     sync.Mutex
	cached string
}

// NewResolver builds a resolver persisting its fallback identifier in
// storeDir. A nil signals func uses HostSignals.
func NewResolver(storeDir string, signals Signals, log *logrus.Logger) *Resolver {
	if signals == nil {
		signals = HostSignals
	}
	if log == nil {
		log = logrus.New()
	}
	return &Resolver{storeDir: storeDir, signals: signals, log: log}
}

// DefaultStoreDir returns the per-user directory for the fallback id.
func DefaultStoreDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "beaterboo")
}

// HostSignals collects stable per-installation signals. Hostname and home
// directory survive restarts; OS/arch pad the input space.
func HostSignals() (map[string]string, error) {
	host, err := os.Hostname()
	if err != nil {
		return nil, fmt.Errorf("hostname unavailable: %w", err)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("home dir unavailable: %w", err)
	}
	return map[string]string{
		"host": host,
		"home": home,
		"os":   runtime.GOOS,
		"arch": runtime.GOARCH,
	}, nil
}

// Resolve returns the device identifier. Repeated calls on the same
// installation return the same value unless the stored fallback is cleared.
func (r *Resolver) Resolve() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cached != "" {
		return r.cached
	}

	if sig, err := r.signals(); err == nil {
		r.cached = fingerprint(sig)
		return r.cached
	} else {
		r.log.WithError(err).Warn("fingerprint signals unavailable, using stored fallback id")
	}

	r.cached = r.loadOrMintFallback()
	return r.cached
}

// fingerprint hashes the signals in deterministic key order.
func fingerprint(signals map[string]string) string {
	keys := make([]string, 0, len(signals))
	for k := range signals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(signals[k])
		b.WriteByte('\n')
	}
	sum := blake2b.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:16])
}

func (r *Resolver) loadOrMintFallback() string {
	path := filepath.Join(r.storeDir, fallbackFileName)
	if data, err := os.ReadFile(path); err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			return id
		}
	}

	id := "device_" + uuid.NewString()
	if err := os.MkdirAll(r.storeDir, 0o700); err == nil {
		if err := os.WriteFile(path, []byte(id+"\n"), 0o600); err != nil {
			r.log.WithError(err).Warn("failed to persist fallback device id")
		}
	} else {
		r.log.WithError(err).Warn("failed to create device id dir")
	}
	return id
}

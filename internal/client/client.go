// internal/client/client.go
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/beaterboo/beaterboo/internal/device"
	"github.com/beaterboo/beaterboo/internal/models"
	"github.com/beaterboo/beaterboo/internal/store"
)

// Client is the game-side data access layer for the word-set service. Every
// request carries this installation's device id in the X-Device-ID header;
// the server uses it purely for ownership attribution.
type Client struct {
	baseURL  string
	http     *http.Client
	resolver *device.Resolver
	log      *logrus.Logger
}

// New builds a client for the service at baseURL. A nil resolver uses the
// default store dir and host signals.
func New(baseURL string, resolver *device.Resolver, log *logrus.Logger) *Client {
	if resolver == nil {
		resolver = device.NewResolver(device.DefaultStoreDir(), nil, log)
	}
	if log == nil {
		log = logrus.New()
	}
	return &Client{
		baseURL:  baseURL,
		http:     &http.Client{Timeout: 10 * time.Second},
		resolver: resolver,
		log:      log,
	}
}

// DeviceID exposes the resolved identity, e.g. for display in settings.
func (c *Client) DeviceID() string {
	return c.resolver.Resolve()
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Device-ID", c.resolver.Resolve())
	return req, nil
}

func (c *Client) do(req *http.Request, out interface{}) (int, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < http.StatusBadRequest {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}

// ListWordSets fetches every known set. The server degrades through its
// storage tiers, so a reachable server always answers.
func (c *Client) ListWordSets(ctx context.Context) ([]models.WordSet, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/wordsets", nil)
	if err != nil {
		return nil, err
	}
	var sets []models.WordSet
	status, err := c.do(req, &sets)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("list word sets: unexpected status %d", status)
	}
	return sets, nil
}

// SaveWordSet creates or updates a set. A 202 means the server accepted the
// set but could not durably store it yet; the returned copy is still usable.
func (c *Client) SaveWordSet(ctx context.Context, set models.WordSet) (models.WordSet, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/wordsets", set)
	if err != nil {
		return models.WordSet{}, err
	}
	var saved models.WordSet
	status, err := c.do(req, &saved)
	if err != nil {
		return models.WordSet{}, err
	}
	switch status {
	case http.StatusOK:
		return saved, nil
	case http.StatusAccepted:
		c.log.WithField("set", saved.ID).Warn("word set accepted but not durably saved")
		return saved, nil
	default:
		return models.WordSet{}, fmt.Errorf("save word set: unexpected status %d", status)
	}
}

// CanDelete asks whether this device owns the set.
func (c *Client) CanDelete(ctx context.Context, setID string) (bool, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/wordsets/"+setID+"/permissions", nil)
	if err != nil {
		return false, err
	}
	var res struct {
		CanDelete bool `json:"canDelete"`
	}
	status, err := c.do(req, &res)
	if err != nil {
		return false, err
	}
	switch status {
	case http.StatusOK:
		return res.CanDelete, nil
	case http.StatusNotFound:
		return false, store.ErrNotFound
	default:
		return false, fmt.Errorf("check delete permission: unexpected status %d", status)
	}
}

// DeleteWordSet removes a set this device owns.
func (c *Client) DeleteWordSet(ctx context.Context, setID string) error {
	req, err := c.newRequest(ctx, http.MethodDelete, "/wordsets/"+setID, nil)
	if err != nil {
		return err
	}
	var res struct {
		Success bool `json:"success"`
	}
	status, err := c.do(req, &res)
	if err != nil {
		return err
	}
	switch status {
	case http.StatusOK:
		if !res.Success {
			return fmt.Errorf("delete word set: server reported failure")
		}
		return nil
	case http.StatusForbidden:
		return store.ErrNotPermitted
	case http.StatusNotFound:
		return store.ErrNotFound
	default:
		return fmt.Errorf("delete word set: unexpected status %d", status)
	}
}

// GenerateCards requests card candidates for a topic. The server substitutes
// its fallback list on provider failure, so this returns cards whenever the
// server is reachable.
func (c *Client) GenerateCards(ctx context.Context, topic, category string, count int, excludeWords []string) ([]models.TabooCard, error) {
	req, err := c.newRequest(ctx, http.MethodPost, "/wordsets/generate", map[string]interface{}{
		"topic":        topic,
		"category":     category,
		"count":        count,
		"excludeWords": excludeWords,
	})
	if err != nil {
		return nil, err
	}
	var res struct {
		Cards []models.TabooCard `json:"cards"`
	}
	status, err := c.do(req, &res)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("generate cards: unexpected status %d", status)
	}
	return res.Cards, nil
}

// internal/store/postgres.go
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/beaterboo/beaterboo/internal/models"
)

// PostgresConfig bounds the connection pool. The pool ceiling and acquire
// timeout are correctness parameters: an acquisition that cannot be satisfied
// within AcquireTimeout fails the operation instead of hanging.
type PostgresConfig struct {
	URL            string
	MaxConns       int32
	AcquireTimeout time.Duration
	IdleTimeout    time.Duration
}

func (c PostgresConfig) withDefaults() PostgresConfig {
	if c.MaxConns <= 0 {
		c.MaxConns = 20
	}
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = 2 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Second
	}
	return c
}

// PostgresTier is the remote relational tier. All multi-statement operations
// run inside a single transaction via pgx.BeginTxFunc, which releases the
// pooled connection on every exit path.
type PostgresTier struct {
	pool           *pgxpool.Pool
	acquireTimeout time.Duration
}

// NewPostgresTier connects a bounded pgx pool and verifies connectivity.
func NewPostgresTier(ctx context.Context, cfg PostgresConfig) (*PostgresTier, error) {
	cfg = cfg.withDefaults()

	pc, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("unable to parse pgx config: %w", err)
	}
	pc.MaxConns = cfg.MaxConns
	pc.MaxConnIdleTime = cfg.IdleTimeout

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("unable to create pgx pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	return &PostgresTier{pool: pool, acquireTimeout: cfg.AcquireTimeout}, nil
}

// Close releases the pool. Call once at shutdown.
func (t *PostgresTier) Close() {
	t.pool.Close()
}

func (t *PostgresTier) Name() string { return "postgres" }

// opCtx bounds each logical operation, covering pool acquisition. Without a
// deadline an exhausted pool would block callers indefinitely.
func (t *PostgresTier) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, t.acquireTimeout)
}

// InitSchema creates the three tables if missing. Deletes cascade from
// devices to word_sets to taboo_cards.
func (t *PostgresTier) InitSchema(ctx context.Context) error {
	q := `
	CREATE TABLE IF NOT EXISTS devices (
		id SERIAL PRIMARY KEY,
		device_id VARCHAR(255) NOT NULL UNIQUE,
		last_seen TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS word_sets (
		id SERIAL PRIMARY KEY,
		uuid VARCHAR(36) NOT NULL UNIQUE,
		name VARCHAR(255) NOT NULL,
		description TEXT,
		is_custom BOOLEAN DEFAULT TRUE,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP,
		device_id VARCHAR(255) NOT NULL,
		FOREIGN KEY (device_id) REFERENCES devices(device_id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS taboo_cards (
		id SERIAL PRIMARY KEY,
		set_uuid VARCHAR(36) NOT NULL,
		main_word VARCHAR(255) NOT NULL,
		taboo_words TEXT[] NOT NULL,
		FOREIGN KEY (set_uuid) REFERENCES word_sets(uuid) ON DELETE CASCADE
	);
	`
	if _, err := t.pool.Exec(ctx, q); err != nil {
		return fmt.Errorf("failed to init schema: %w", err)
	}
	return nil
}

// LoadAll returns every stored set, newest first, with its full card
// collection.
func (t *PostgresTier) LoadAll(ctx context.Context) ([]models.WordSet, error) {
	ctx, cancel := t.opCtx(ctx)
	defer cancel()

	rows, err := t.pool.Query(ctx, `
		SELECT uuid, name, description, is_custom, created_at, device_id
		FROM word_sets
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query word sets: %w", err)
	}
	defer rows.Close()

	var sets []models.WordSet
	index := map[string]int{}
	for rows.Next() {
		var ws models.WordSet
		if err := rows.Scan(&ws.ID, &ws.Name, &ws.Description, &ws.IsCustom, &ws.CreatedAt, &ws.CreatorDeviceID); err != nil {
			return nil, fmt.Errorf("failed to scan word set: %w", err)
		}
		ws.Cards = []models.TabooCard{}
		index[ws.ID] = len(sets)
		sets = append(sets, ws)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("word set rows: %w", err)
	}
	rows.Close()

	cardRows, err := t.pool.Query(ctx, `
		SELECT id, set_uuid, main_word, taboo_words
		FROM taboo_cards
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cards: %w", err)
	}
	defer cardRows.Close()

	for cardRows.Next() {
		var (
			cardID  int64
			setUUID string
			card    models.TabooCard
		)
		if err := cardRows.Scan(&cardID, &setUUID, &card.MainWord, &card.TabooWords); err != nil {
			return nil, fmt.Errorf("failed to scan card: %w", err)
		}
		card.ID = fmt.Sprintf("%d", cardID)
		if i, ok := index[setUUID]; ok {
			sets[i].Cards = append(sets[i].Cards, card)
		}
	}
	if err := cardRows.Err(); err != nil {
		return nil, fmt.Errorf("card rows: %w", err)
	}

	return sets, nil
}

// Save upserts the set in one transaction: device row first (FK dependency),
// then the set row, then a full replace of its cards. On conflict only name
// and description change; creator and created_at are immutable.
func (t *PostgresTier) Save(ctx context.Context, set models.WordSet, deviceID string) (models.WordSet, error) {
	ctx, cancel := t.opCtx(ctx)
	defer cancel()

	err := pgx.BeginTxFunc(ctx, t.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		if _, e := tx.Exec(ctx, `
			INSERT INTO devices (device_id, last_seen)
			VALUES ($1, CURRENT_TIMESTAMP)
			ON CONFLICT (device_id)
			DO UPDATE SET last_seen = CURRENT_TIMESTAMP
		`, deviceID); e != nil {
			return e
		}

		if _, e := tx.Exec(ctx, `
			INSERT INTO word_sets (uuid, name, description, is_custom, created_at, device_id)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (uuid)
			DO UPDATE SET
				name = EXCLUDED.name,
				description = EXCLUDED.description
		`, set.ID, set.Name, set.Description, set.IsCustom, set.CreatedAt, deviceID); e != nil {
			return e
		}

		if _, e := tx.Exec(ctx, `DELETE FROM taboo_cards WHERE set_uuid = $1`, set.ID); e != nil {
			return e
		}
		for _, card := range set.Cards {
			if _, e := tx.Exec(ctx, `
				INSERT INTO taboo_cards (set_uuid, main_word, taboo_words)
				VALUES ($1, $2, $3)
			`, set.ID, card.MainWord, card.TabooWords); e != nil {
				return e
			}
		}
		return nil
	})
	if err != nil {
		return models.WordSet{}, fmt.Errorf("tx save word set: %w", err)
	}
	return set, nil
}

// CanDelete reports whether the device owns the set. Built-in sets are never
// deletable.
func (t *PostgresTier) CanDelete(ctx context.Context, setID, deviceID string) (bool, error) {
	ctx, cancel := t.opCtx(ctx)
	defer cancel()

	var (
		isCustom bool
		owner    string
	)
	err := t.pool.QueryRow(ctx, `
		SELECT is_custom, device_id FROM word_sets WHERE uuid = $1
	`, setID).Scan(&isCustom, &owner)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, ErrNotFound
	}
	if err != nil {
		return false, fmt.Errorf("failed to check delete permission: %w", err)
	}
	return isCustom && deviceID != "" && owner == deviceID, nil
}

// Delete removes the set and its cards atomically. Ownership is re-checked
// inside the transaction with a row lock so two devices racing on the same
// set cannot slip past the check.
func (t *PostgresTier) Delete(ctx context.Context, setID, deviceID string) error {
	ctx, cancel := t.opCtx(ctx)
	defer cancel()

	err := pgx.BeginTxFunc(ctx, t.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var (
			isCustom bool
			owner    string
		)
		e := tx.QueryRow(ctx, `
			SELECT is_custom, device_id FROM word_sets WHERE uuid = $1 FOR UPDATE
		`, setID).Scan(&isCustom, &owner)
		if errors.Is(e, pgx.ErrNoRows) {
			return ErrNotFound
		}
		if e != nil {
			return e
		}
		if !isCustom || deviceID == "" || owner != deviceID {
			return ErrNotPermitted
		}

		if _, e := tx.Exec(ctx, `DELETE FROM taboo_cards WHERE set_uuid = $1`, setID); e != nil {
			return e
		}
		_, e = tx.Exec(ctx, `DELETE FROM word_sets WHERE uuid = $1`, setID)
		return e
	})
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrNotPermitted) {
		return err
	}
	if err != nil {
		return fmt.Errorf("tx delete word set: %w", err)
	}
	return nil
}

// Copyright 2025 Hyli
//
// Wallet event history: one row per handled wallet blob, indexed by
// account. This is observability data for clients and dashboards, not
// consensus state.

package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/hyli/wallet-node/pkg/model"
	"github.com/hyli/wallet-node/pkg/wallet"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Event is one recorded wallet transition.
type Event struct {
	ID             uuid.UUID `json:"id"`
	Account        string    `json:"account"`
	Action         string    `json:"action"`
	Success        bool      `json:"success"`
	ProgramOutputs string    `json:"program_outputs"`
	TxHash         string    `json:"tx_hash"`
	BlockHeight    uint64    `json:"block_height"`
	TimestampMs    uint64    `json:"timestamp_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

// Store persists wallet events.
type Store struct {
	db     *sql.DB
	logger *log.Logger
}

// NewStore opens the history database and applies migrations.
func NewStore(databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("history database URL cannot be empty")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxLifetime(time.Hour)

	s := &Store{
		db:     db,
		logger: log.New(log.Writer(), "[History] ", log.LstdFlags),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to history database: %w", err)
	}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases the database pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	entries, err := fs.Glob(migrationsFS, "migrations/*.sql")
	if err != nil {
		return fmt.Errorf("failed to list migrations: %w", err)
	}
	sort.Strings(entries)
	for _, name := range entries {
		script, err := migrationsFS.ReadFile(name)
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(script)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", name, err)
		}
	}
	return nil
}

// RecordOutput writes the event for a handled blob.
func (s *Store) RecordOutput(ctx context.Context, action *wallet.WalletAction, calldata *model.Calldata, output *model.HyleOutput) error {
	account, _ := action.Account()
	var blockHeight, timestampMs uint64
	if calldata.TxCtx != nil {
		blockHeight = calldata.TxCtx.BlockHeight
		timestampMs = calldata.TxCtx.Timestamp
	}

	event := Event{
		ID:             uuid.New(),
		Account:        account,
		Action:         action.Kind(),
		Success:        output.Success,
		ProgramOutputs: string(output.ProgramOutputs),
		TxHash:         hex.EncodeToString(output.TxHash[:]),
		BlockHeight:    blockHeight,
		TimestampMs:    timestampMs,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wallet_events (id, account, action, success, program_outputs, tx_hash, block_height, timestamp_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		event.ID, event.Account, event.Action, event.Success, event.ProgramOutputs,
		event.TxHash, int64(event.BlockHeight), int64(event.TimestampMs))
	if err != nil {
		return fmt.Errorf("failed to record wallet event: %w", err)
	}
	return nil
}

// ListByAccount returns the most recent events for an account.
func (s *Store) ListByAccount(ctx context.Context, account string, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account, action, success, program_outputs, tx_hash, block_height, timestamp_ms, created_at
		FROM wallet_events
		WHERE account = $1
		ORDER BY created_at DESC
		LIMIT $2`,
		account, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query wallet events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var blockHeight, timestampMs int64
		if err := rows.Scan(&e.ID, &e.Account, &e.Action, &e.Success, &e.ProgramOutputs,
			&e.TxHash, &blockHeight, &timestampMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wallet event: %w", err)
		}
		e.BlockHeight = uint64(blockHeight)
		e.TimestampMs = uint64(timestampMs)
		events = append(events, e)
	}
	return events, rows.Err()
}

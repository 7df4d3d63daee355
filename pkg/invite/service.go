// Copyright 2025 Hyli
//
// Invite Service
// PostgreSQL-backed invite-code store with atomic consume. The row-level
// locking (FOR UPDATE SKIP LOCKED) either binds a code to a wallet or
// fails, without retry loops under contention.

package invite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/hyli/wallet-node/pkg/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var ErrCodeExhausted = errors.New("invite code not found or already used")

// defaultCodes are seeded when running with the development key so a
// fresh local stack can register wallets immediately.
var defaultCodes = []string{"TOTO", "TOTO", "TOTO", "HYLI", "GORANGE", "vip", "vip"}

// Service owns the invite store and the signer.
type Service struct {
	db           *sql.DB
	signer       *Signer
	contractName model.ContractName
	logger       *log.Logger
}

// NewService opens the invite database, runs migrations and seeds
// development codes when the signer holds the dev key.
func NewService(databaseURL string, signer *Signer, contractName model.ContractName) (*Service, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("invite database URL cannot be empty")
	}
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open invite database: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetConnMaxLifetime(time.Hour)

	s := &Service{
		db:           db,
		signer:       signer,
		contractName: contractName,
		logger:       log.New(log.Writer(), "[Invite] ", log.LstdFlags),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to invite database: %w", err)
	}
	if err := s.migrate(ctx); err != nil {
		return nil, err
	}

	if signer.IsDevKey() {
		s.logger.Printf("WARNING: using the default invite signing key, seeding development codes; not secure for production")
		if err := s.seedDefaultCodes(ctx); err != nil {
			return nil, err
		}
	}

	s.logger.Printf("Invite service initialized with public key %x", signer.PublicKey())
	return s, nil
}

// Close releases the database pool.
func (s *Service) Close() error {
	return s.db.Close()
}

// Signer exposes the signer, for surfaces that only need signatures.
func (s *Service) Signer() *Signer {
	return s.signer
}

func (s *Service) migrate(ctx context.Context) error {
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

func (s *Service) seedDefaultCodes(ctx context.Context) error {
	for _, code := range defaultCodes {
		if _, err := s.db.ExecContext(ctx, "INSERT INTO invite_codes (code) VALUES ($1)", code); err != nil {
			return fmt.Errorf("failed to seed invite code: %w", err)
		}
	}
	return nil
}

// AddCode registers a new invite code.
func (s *Service) AddCode(ctx context.Context, code string) error {
	_, err := s.db.ExecContext(ctx, "INSERT INTO invite_codes (code) VALUES ($1)", code)
	return err
}

// Consume atomically marks a code as used by walletName and returns the
// signed secp256k1 blob for the registration transaction. A code that
// is unknown, already used, or locked by a concurrent consumer yields
// ErrCodeExhausted.
func (s *Service) Consume(ctx context.Context, code, walletName string) (*model.Blob, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE invite_codes
		SET used_at = NOW(), wallet = $2
		WHERE id = (
			SELECT id FROM invite_codes
			WHERE code = $1 AND used_at IS NULL AND wallet IS NULL
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING id`,
		code, walletName)

	var id int64
	if err := row.Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCodeExhausted
		}
		return nil, fmt.Errorf("failed to consume invite code: %w", err)
	}

	s.logger.Printf("Invite code consumed: %s", code)
	return s.signer.SignConsume(code, walletName, s.contractName)
}

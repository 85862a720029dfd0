package demo

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"

	"github.com/cardlens/cardlens/internal/schema"
)

const (
	defaultBatchSize = 1000

	insertUserSQL = `INSERT INTO users (user_id, name, email, registration_date, is_active, is_dormant, is_cancelled, last_activity_date) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	insertPurchaseSQL = `INSERT INTO purchases (purchase_id, user_id, amount, purchase_date, category_id) VALUES ($1, $2, $3, $4, $5)`
)

// Seeder loads a generated dataset into the warehouse in batched
// transactions. Categories are not touched; the migrations own them.
type Seeder struct {
	db        *sql.DB
	log       *slog.Logger
	batchSize int
}

func NewSeeder(db *sql.DB, logger *slog.Logger, batchSize int) (*Seeder, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Seeder{db: db, log: logger, batchSize: batchSize}, nil
}

// Seed inserts every user and purchase in the dataset. With truncate
// set it first empties the purchases and users tables, children first
// so foreign keys hold.
func (s *Seeder) Seed(ctx context.Context, dataset Dataset, truncate bool) error {
	if truncate {
		for _, table := range []string{"purchases", "users"} {
			if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
				return fmt.Errorf("truncate %s: %w", table, err)
			}
		}
		s.log.Info("truncated warehouse tables")
	}

	if err := s.insertUsers(ctx, dataset.Users); err != nil {
		return err
	}
	if err := s.insertPurchases(ctx, dataset.Purchases); err != nil {
		return err
	}

	s.log.Info("seeded warehouse",
		slog.Int("users", len(dataset.Users)),
		slog.Int("purchases", len(dataset.Purchases)))
	return nil
}

func (s *Seeder) insertUsers(ctx context.Context, users []User) error {
	for start := 0; start < len(users); start += s.batchSize {
		batch := users[start:min(start+s.batchSize, len(users))]
		err := s.inTx(ctx, insertUserSQL, func(stmt *sql.Stmt) error {
			for _, u := range batch {
				_, err := stmt.ExecContext(ctx, u.ID, u.Name, u.Email,
					u.RegistrationDate.Format(schema.DateLayout),
					flag(u.IsActive), flag(u.IsDormant), flag(u.IsCancelled),
					u.LastActivity.Format(schema.DateLayout))
				if err != nil {
					return fmt.Errorf("insert user %d: %w", u.ID, err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Seeder) insertPurchases(ctx context.Context, purchases []Purchase) error {
	for start := 0; start < len(purchases); start += s.batchSize {
		batch := purchases[start:min(start+s.batchSize, len(purchases))]
		err := s.inTx(ctx, insertPurchaseSQL, func(stmt *sql.Stmt) error {
			for _, p := range batch {
				_, err := stmt.ExecContext(ctx, p.ID, p.UserID, p.Amount,
					p.Date.Format(schema.DateLayout), p.CategoryID)
				if err != nil {
					return fmt.Errorf("insert purchase %d: %w", p.ID, err)
				}
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// inTx runs one batch through a prepared statement inside a
// transaction, rolling back on any failure.
func (s *Seeder) inTx(ctx context.Context, query string, fn func(*sql.Stmt) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin batch: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare batch insert: %w", err)
	}

	if err := fn(stmt); err != nil {
		stmt.Close()
		tx.Rollback()
		return err
	}

	if err := stmt.Close(); err != nil {
		tx.Rollback()
		return fmt.Errorf("close batch statement: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

func flag(b bool) int {
	if b {
		return 1
	}
	return 0
}

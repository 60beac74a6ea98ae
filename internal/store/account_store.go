// Package store persists accounts. It does not enforce business rules beyond
// translating driver errors into the sentinels below.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/isdelr/turu-api/internal/database"
	"github.com/isdelr/turu-api/internal/models"
	"github.com/jmoiron/sqlx"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate key")
)

const accountColumns = `id, username, password_hash, sex, birth_date, active`

// AccountStore reads and writes the accounts table.
type AccountStore struct {
	db *sqlx.DB
}

// NewAccountStore creates a new AccountStore.
func NewAccountStore(db *sqlx.DB) *AccountStore {
	return &AccountStore{db: db}
}

// FindByID retrieves a single account by its ID.
func (s *AccountStore) FindByID(ctx context.Context, id int64) (models.Account, error) {
	return s.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
}

// FindByUsername retrieves a single account by its username, including the password hash.
func (s *AccountStore) FindByUsername(ctx context.Context, username string) (models.Account, error) {
	return s.findOne(ctx, `SELECT `+accountColumns+` FROM accounts WHERE username = ?`, username)
}

func (s *AccountStore) findOne(ctx context.Context, query string, arg any) (models.Account, error) {
	var acc models.Account
	if err := s.db.GetContext(ctx, &acc, s.db.Rebind(query), arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Account{}, ErrNotFound
		}
		return models.Account{}, fmt.Errorf("db error: %w", err)
	}
	return acc, nil
}

// Save inserts the account when it has no ID yet, otherwise updates every
// column of the existing row. The returned account carries the assigned ID.
func (s *AccountStore) Save(ctx context.Context, acc models.Account) (models.Account, error) {
	if acc.ID == 0 {
		return s.insert(ctx, acc)
	}
	return s.update(ctx, acc)
}

func (s *AccountStore) insert(ctx context.Context, acc models.Account) (models.Account, error) {
	query := s.db.Rebind(`
		INSERT INTO accounts (username, password_hash, sex, birth_date, active)
		VALUES (?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := s.db.QueryRowxContext(ctx, query,
		acc.Username, acc.PasswordHash, nullString(acc.Sex), acc.BirthDate, acc.Active,
	).Scan(&acc.ID)
	if err != nil {
		return models.Account{}, wrapWriteErr(err)
	}
	return acc, nil
}

func (s *AccountStore) update(ctx context.Context, acc models.Account) (models.Account, error) {
	query := s.db.Rebind(`
		UPDATE accounts
		SET username = ?, password_hash = ?, sex = ?, birth_date = ?, active = ?
		WHERE id = ?
	`)
	result, err := s.db.ExecContext(ctx, query,
		acc.Username, acc.PasswordHash, nullString(acc.Sex), acc.BirthDate, acc.Active, acc.ID,
	)
	if err != nil {
		return models.Account{}, wrapWriteErr(err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return models.Account{}, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return models.Account{}, ErrNotFound
	}
	return acc, nil
}

// ListAll returns every account ordered by ID.
func (s *AccountStore) ListAll(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	if err := s.db.SelectContext(ctx, &accounts, `SELECT `+accountColumns+` FROM accounts ORDER BY id`); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return accounts, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: *s, Valid: true}
}

func wrapWriteErr(err error) error {
	if database.IsUniqueViolation(err) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return fmt.Errorf("db error: %w", err)
}

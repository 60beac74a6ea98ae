package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/isdelr/turu-api/internal/models"
	"github.com/isdelr/turu-api/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

// AccountServiceProvider defines the interface for account services.
type AccountServiceProvider interface {
	Register(ctx context.Context, username, password string, sex *string, birthDate models.Date) (models.Account, error)
	Authenticate(ctx context.Context, username, password string) (models.Account, error)
	UpdateUsername(ctx context.Context, id int64, newUsername string) (models.Account, error)
	UpdatePassword(ctx context.Context, id int64, oldPassword, newPassword string) error
	GetAccount(ctx context.Context, id int64) (models.Account, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)
}

// AccountStore is the persistence the service depends on.
type AccountStore interface {
	FindByID(ctx context.Context, id int64) (models.Account, error)
	FindByUsername(ctx context.Context, username string) (models.Account, error)
	Save(ctx context.Context, acc models.Account) (models.Account, error)
	ListAll(ctx context.Context) ([]models.Account, error)
}

// AccountService provides business logic for account management.
type AccountService struct {
	store     AccountStore
	cost      int
	dummyHash []byte
}

// NewAccountService creates a new AccountService hashing with the given bcrypt cost.
func NewAccountService(s AccountStore, cost int) (*AccountService, error) {
	// Compared against when the username is unknown so both failure paths do the same work.
	dummy, err := bcrypt.GenerateFromPassword([]byte("turu-timing-equaliser"), cost)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare password hasher: %w", err)
	}
	return &AccountService{store: s, cost: cost, dummyHash: dummy}, nil
}

// Register creates a new active account, hashing its password.
func (s *AccountService) Register(ctx context.Context, username, password string, sex *string, birthDate models.Date) (models.Account, error) {
	if username == "" || password == "" {
		return models.Account{}, fmt.Errorf("%w: username and password are required", ErrValidation)
	}

	if _, err := s.store.FindByUsername(ctx, username); err == nil {
		return models.Account{}, ErrDuplicateUsername
	} else if !errors.Is(err, store.ErrNotFound) {
		return models.Account{}, err
	}

	hash, err := s.hash(password)
	if err != nil {
		return models.Account{}, err
	}

	acc, err := s.store.Save(ctx, models.Account{
		Username:     username,
		PasswordHash: hash,
		Sex:          sex,
		BirthDate:    birthDate,
		Active:       true,
	})
	if err != nil {
		// A concurrent registration can win between the lookup and the insert.
		if errors.Is(err, store.ErrDuplicate) {
			return models.Account{}, ErrDuplicateUsername
		}
		return models.Account{}, err
	}
	return acc, nil
}

// Authenticate verifies a user's credentials. Unknown usernames, wrong
// passwords and inactive accounts all yield ErrInvalidCredentials.
func (s *AccountService) Authenticate(ctx context.Context, username, password string) (models.Account, error) {
	acc, err := s.store.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return models.Account{}, ErrInvalidCredentials
		}
		return models.Account{}, err
	}

	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)) != nil {
		return models.Account{}, ErrInvalidCredentials
	}
	if !acc.Active {
		return models.Account{}, ErrInvalidCredentials
	}
	return acc, nil
}

// UpdateUsername renames an account. Renaming to its own current username succeeds.
func (s *AccountService) UpdateUsername(ctx context.Context, id int64, newUsername string) (models.Account, error) {
	if newUsername == "" {
		return models.Account{}, fmt.Errorf("%w: username is required", ErrValidation)
	}

	acc, err := s.GetAccount(ctx, id)
	if err != nil {
		return models.Account{}, err
	}

	owner, err := s.store.FindByUsername(ctx, newUsername)
	switch {
	case err == nil && owner.ID != id:
		return models.Account{}, ErrDuplicateUsername
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return models.Account{}, err
	}

	acc.Username = newUsername
	return s.save(ctx, acc)
}

// UpdatePassword verifies the current password, then hashes and sets a new one.
func (s *AccountService) UpdatePassword(ctx context.Context, id int64, oldPassword, newPassword string) error {
	if oldPassword == "" || newPassword == "" {
		return fmt.Errorf("%w: old and new passwords are required", ErrValidation)
	}

	acc, err := s.GetAccount(ctx, id)
	if err != nil {
		return err
	}

	if bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(oldPassword)) != nil {
		return ErrInvalidCredentials
	}

	hash, err := s.hash(newPassword)
	if err != nil {
		return err
	}
	acc.PasswordHash = hash
	_, err = s.save(ctx, acc)
	return err
}

// GetAccount retrieves a single account by its ID.
func (s *AccountService) GetAccount(ctx context.Context, id int64) (models.Account, error) {
	acc, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return models.Account{}, ErrNotFound
		}
		return models.Account{}, err
	}
	return acc, nil
}

// ListAccounts returns every stored account.
func (s *AccountService) ListAccounts(ctx context.Context) ([]models.Account, error) {
	return s.store.ListAll(ctx)
}

func (s *AccountService) save(ctx context.Context, acc models.Account) (models.Account, error) {
	saved, err := s.store.Save(ctx, acc)
	switch {
	case errors.Is(err, store.ErrDuplicate):
		return models.Account{}, ErrDuplicateUsername
	case errors.Is(err, store.ErrNotFound):
		return models.Account{}, ErrNotFound
	case err != nil:
		return models.Account{}, err
	}
	return saved, nil
}

func (s *AccountService) hash(password string) (string, error) {
	if len(password) > maxPasswordBytes {
		return "", fmt.Errorf("%w: password must be at most %d bytes", ErrValidation, maxPasswordBytes)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

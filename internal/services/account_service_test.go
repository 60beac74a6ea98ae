package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/isdelr/turu-api/internal/database"
	"github.com/isdelr/turu-api/internal/models"
	"github.com/isdelr/turu-api/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newTestService(t *testing.T) (*AccountService, *store.AccountStore) {
	t.Helper()
	ctx := context.Background()
	db, err := database.New(ctx, database.SQLite, fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(ctx, db))

	st := store.NewAccountStore(db)
	svc, err := NewAccountService(st, bcrypt.MinCost)
	require.NoError(t, err)
	return svc, st
}

func mustRegister(t *testing.T, svc *AccountService, username, password string) models.Account {
	t.Helper()
	acc, err := svc.Register(context.Background(), username, password, nil, models.Date{})
	require.NoError(t, err)
	return acc
}

func TestRegister_HashesPasswordAndDefaultsActive(t *testing.T) {
	svc, st := newTestService(t)
	sex := "M"

	acc, err := svc.Register(context.Background(), "alice", "pw1", &sex, models.NewDate(2000, time.January, 2))
	require.NoError(t, err)
	assert.NotZero(t, acc.ID)
	assert.True(t, acc.Active)

	stored, err := st.FindByID(context.Background(), acc.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "pw1", stored.PasswordHash)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("pw1")))
	assert.Equal(t, "M", *stored.Sex)
	assert.Equal(t, "2000-01-02", stored.BirthDate.String())
}

func TestRegister_DuplicateUsername(t *testing.T) {
	svc, _ := newTestService(t)
	mustRegister(t, svc, "alice", "pw1")

	_, err := svc.Register(context.Background(), "alice", "pw2", nil, models.Date{})
	assert.ErrorIs(t, err, ErrDuplicateUsername)
}

func TestRegister_Validation(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Register(context.Background(), "", "pw", nil, models.Date{})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Register(context.Background(), "alice", "", nil, models.Date{})
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Register(context.Background(), "alice", strings.Repeat("x", 73), nil, models.Date{})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestRegister_ConcurrentSameUsername(t *testing.T) {
	svc, st := newTestService(t)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		dupes     int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := svc.Register(context.Background(), "racer", fmt.Sprintf("pw-%d", i), nil, models.Date{})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case errors.Is(err, ErrDuplicateUsername):
				dupes++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, workers-1, dupes)

	all, err := st.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAuthenticate(t *testing.T) {
	svc, st := newTestService(t)
	registered := mustRegister(t, svc, "alice", "pw1")

	acc, err := svc.Authenticate(context.Background(), "alice", "pw1")
	require.NoError(t, err)
	assert.Equal(t, registered.ID, acc.ID)

	_, wrongPassword := svc.Authenticate(context.Background(), "alice", "wrong")
	_, unknownUser := svc.Authenticate(context.Background(), "mallory", "pw1")
	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownUser, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownUser.Error(), "failures must be indistinguishable")

	registered.Active = false
	_, err = st.Save(context.Background(), registered)
	require.NoError(t, err)
	_, err = svc.Authenticate(context.Background(), "alice", "pw1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUpdateUsername(t *testing.T) {
	svc, _ := newTestService(t)
	alice := mustRegister(t, svc, "alice", "pw1")
	mustRegister(t, svc, "bob", "pw2")

	_, err := svc.UpdateUsername(context.Background(), alice.ID, "bob")
	assert.ErrorIs(t, err, ErrDuplicateUsername)

	acc, err := svc.UpdateUsername(context.Background(), alice.ID, "alice")
	require.NoError(t, err, "renaming to the account's own username is allowed")
	assert.Equal(t, "alice", acc.Username)

	acc, err = svc.UpdateUsername(context.Background(), alice.ID, "alicia")
	require.NoError(t, err)
	assert.Equal(t, "alicia", acc.Username)

	_, err = svc.Authenticate(context.Background(), "alicia", "pw1")
	assert.NoError(t, err, "rename must not touch the password hash")

	_, err = svc.UpdateUsername(context.Background(), 999, "nobody")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.UpdateUsername(context.Background(), alice.ID, "")
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdatePassword(t *testing.T) {
	svc, st := newTestService(t)
	alice := mustRegister(t, svc, "alice", "pw1")

	before, err := st.FindByID(context.Background(), alice.ID)
	require.NoError(t, err)

	err = svc.UpdatePassword(context.Background(), alice.ID, "wrong", "pw2")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	after, err := st.FindByID(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, before.PasswordHash, after.PasswordHash, "failed change must leave the hash untouched")

	require.NoError(t, svc.UpdatePassword(context.Background(), alice.ID, "pw1", "pw2"))

	_, err = svc.Authenticate(context.Background(), "alice", "pw1")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.Authenticate(context.Background(), "alice", "pw2")
	assert.NoError(t, err)

	err = svc.UpdatePassword(context.Background(), 999, "pw1", "pw2")
	assert.ErrorIs(t, err, ErrNotFound)

	err = svc.UpdatePassword(context.Background(), alice.ID, "pw2", "")
	assert.ErrorIs(t, err, ErrValidation)
}

type failingStore struct{ err error }

func (f failingStore) FindByID(context.Context, int64) (models.Account, error) {
	return models.Account{}, f.err
}
func (f failingStore) FindByUsername(context.Context, string) (models.Account, error) {
	return models.Account{}, f.err
}
func (f failingStore) Save(context.Context, models.Account) (models.Account, error) {
	return models.Account{}, f.err
}
func (f failingStore) ListAll(context.Context) ([]models.Account, error) { return nil, f.err }

func TestStorageErrorsPropagate(t *testing.T) {
	boom := errors.New("db down")
	svc, err := NewAccountService(failingStore{err: boom}, bcrypt.MinCost)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = svc.Register(ctx, "alice", "pw", nil, models.Date{})
	assert.ErrorIs(t, err, boom)
	_, err = svc.Authenticate(ctx, "alice", "pw")
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
	_, err = svc.UpdateUsername(ctx, 1, "bob")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, svc.UpdatePassword(ctx, 1, "a", "b"), boom)
	_, err = svc.ListAccounts(ctx)
	assert.ErrorIs(t, err, boom)
}

func TestGetAndListAccounts(t *testing.T) {
	svc, _ := newTestService(t)
	alice := mustRegister(t, svc, "alice", "pw1")
	mustRegister(t, svc, "bob", "pw2")

	got, err := svc.GetAccount(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = svc.GetAccount(context.Background(), 999)
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := svc.ListAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "bob", all[1].Username)
}

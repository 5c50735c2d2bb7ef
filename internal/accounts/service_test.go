package accounts_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/atlas-auth/atlas-auth/internal/accounts"
	"github.com/atlas-auth/atlas-auth/internal/audit"
	"github.com/atlas-auth/atlas-auth/internal/platform/httpx"
	"github.com/atlas-auth/atlas-auth/internal/shared"
	_ "github.com/atlas-auth/atlas-auth/testing"
)

type memoryRepo struct {
	mu    sync.Mutex
	users map[string]*accounts.User
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{users: make(map[string]*accounts.User)}
}

func (r *memoryRepo) FindByID(ctx context.Context, id string) (*accounts.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, accounts.ErrNotFound
	}
	clone := *user
	return &clone, nil
}

func (r *memoryRepo) FindByEmail(ctx context.Context, email string) (*accounts.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			clone := *user
			return &clone, nil
		}
	}
	return nil, accounts.ErrNotFound
}

func (r *memoryRepo) Create(ctx context.Context, user *accounts.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return accounts.ErrDuplicateEmail
		}
	}
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *memoryRepo) UpdateProfile(ctx context.Context, id, name, email string) (*accounts.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, accounts.ErrNotFound
	}
	for otherID, other := range r.users {
		if otherID != id && other.Email == email {
			return nil, accounts.ErrDuplicateEmail
		}
	}
	user.Name = name
	user.Email = email
	user.UpdatedAt = time.Now()
	clone := *user
	return &clone, nil
}

func (r *memoryRepo) UpdatePassword(ctx context.Context, id, passwordHash string, changedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return accounts.ErrNotFound
	}
	user.PasswordHash = passwordHash
	ts := changedAt
	user.PasswordChangedAt = &ts
	return nil
}

type stubIssuer struct {
	token string
}

func (s stubIssuer) Issue(userID string) (string, error) {
	return s.token + ":" + userID, nil
}

type captureRecorder struct {
	mu     sync.Mutex
	events []audit.Event
}

func (c *captureRecorder) Record(ctx context.Context, event audit.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, event)
	return nil
}

func (c *captureRecorder) kinds() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	kinds := make([]string, len(c.events))
	for i, e := range c.events {
		kinds[i] = e.Kind
	}
	return kinds
}

func newService(t *testing.T) (*accounts.Service, *memoryRepo, *captureRecorder) {
	t.Helper()
	repo := newMemoryRepo()
	recorder := &captureRecorder{}
	svc := accounts.NewService(repo, accounts.NewBcryptHasher(4), stubIssuer{token: "tok"}, recorder, nil)
	return svc, repo, recorder
}

func TestRegisterSuccess(t *testing.T) {
	svc, repo, recorder := newService(t)

	result, err := svc.Register(context.Background(), accounts.RegisterInput{
		Name:     "A",
		Email:    "a@x.com",
		Password: "secret1",
	})
	require.NoError(t, err)
	require.Equal(t, "tok:"+result.User.ID, result.Token)
	require.Equal(t, "A", result.User.Name)
	require.Equal(t, "a@x.com", result.User.Email)
	require.Equal(t, shared.RoleUser, result.User.Role)

	stored, err := repo.FindByID(context.Background(), result.User.ID)
	require.NoError(t, err)
	require.NotEqual(t, "secret1", stored.PasswordHash)
	require.Equal(t, []string{audit.KindRegister}, recorder.kinds())
}

func TestRegisterMissingFields(t *testing.T) {
	svc, _, _ := newService(t)

	for _, input := range []accounts.RegisterInput{
		{Email: "a@x.com", Password: "secret1"},
		{Name: "A", Password: "secret1"},
		{Name: "A", Email: "a@x.com"},
	} {
		_, err := svc.Register(context.Background(), input)
		require.ErrorIs(t, err, httpx.ErrValidation)
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.Register(context.Background(), accounts.RegisterInput{Name: "A", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	_, err = svc.Register(context.Background(), accounts.RegisterInput{Name: "B", Email: "a@x.com", Password: "secret2"})
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestLoginWrongPasswordAndUnknownEmailIndistinguishable(t *testing.T) {
	svc, _, recorder := newService(t)

	_, err := svc.Register(context.Background(), accounts.RegisterInput{Name: "A", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	_, errWrongPass := svc.Login(context.Background(), accounts.LoginInput{Email: "a@x.com", Password: "wrong"})
	_, errUnknown := svc.Login(context.Background(), accounts.LoginInput{Email: "nobody@x.com", Password: "whatever"})

	require.ErrorIs(t, errWrongPass, httpx.ErrUnauthorized)
	require.ErrorIs(t, errUnknown, httpx.ErrUnauthorized)
	require.Equal(t, errWrongPass.Error(), errUnknown.Error())
	require.Contains(t, recorder.kinds(), audit.KindLoginFail)
}

func TestLoginMissingFields(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.Login(context.Background(), accounts.LoginInput{Email: "a@x.com"})
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Login(context.Background(), accounts.LoginInput{Password: "secret1"})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestChangePasswordScenario(t *testing.T) {
	svc, _, recorder := newService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, accounts.RegisterInput{Name: "A", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	userID := registered.User.ID

	// Wrong current password is rejected.
	err = svc.ChangePassword(ctx, userID, accounts.ChangePasswordInput{CurrentPassword: "wrong", NewPassword: "secret2"})
	require.ErrorIs(t, err, httpx.ErrUnauthorized)

	err = svc.ChangePassword(ctx, userID, accounts.ChangePasswordInput{CurrentPassword: "secret1", NewPassword: "secret2"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, accounts.LoginInput{Email: "a@x.com", Password: "secret1"})
	require.ErrorIs(t, err, httpx.ErrUnauthorized)

	result, err := svc.Login(ctx, accounts.LoginInput{Email: "a@x.com", Password: "secret2"})
	require.NoError(t, err)
	require.Equal(t, userID, result.User.ID)
	require.Contains(t, recorder.kinds(), audit.KindPasswordChange)
}

func TestChangePasswordMissingFields(t *testing.T) {
	svc, _, _ := newService(t)

	err := svc.ChangePassword(context.Background(), "any", accounts.ChangePasswordInput{NewPassword: "x"})
	require.ErrorIs(t, err, httpx.ErrValidation)

	err = svc.ChangePassword(context.Background(), "any", accounts.ChangePasswordInput{CurrentPassword: "x"})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestCurrentUser(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, accounts.RegisterInput{Name: "A", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	profile, err := svc.CurrentUser(ctx, registered.User.ID)
	require.NoError(t, err)
	require.Equal(t, "a@x.com", profile.Email)

	_, err = svc.CurrentUser(ctx, "missing-id")
	require.ErrorIs(t, err, httpx.ErrNotFound)
}

func TestUpdateProfilePartial(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	registered, err := svc.Register(ctx, accounts.RegisterInput{Name: "A", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	name := "Alice"
	profile, err := svc.UpdateProfile(ctx, registered.User.ID, accounts.UpdateProfileInput{Name: &name})
	require.NoError(t, err)
	require.Equal(t, "Alice", profile.Name)
	require.Equal(t, "a@x.com", profile.Email)

	email := "alice@x.com"
	profile, err = svc.UpdateProfile(ctx, registered.User.ID, accounts.UpdateProfileInput{Email: &email})
	require.NoError(t, err)
	require.Equal(t, "Alice", profile.Name)
	require.Equal(t, "alice@x.com", profile.Email)
}

func TestUpdateProfileEmailConflict(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, accounts.RegisterInput{Name: "A", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	second, err := svc.Register(ctx, accounts.RegisterInput{Name: "B", Email: "b@x.com", Password: "secret1"})
	require.NoError(t, err)

	taken := "a@x.com"
	_, err = svc.UpdateProfile(ctx, second.User.ID, accounts.UpdateProfileInput{Email: &taken})
	require.ErrorIs(t, err, httpx.ErrDuplicate)
}

func TestVerifyEmailExists(t *testing.T) {
	svc, _, _ := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, accounts.RegisterInput{Name: "A", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	require.NoError(t, svc.VerifyEmailExists(ctx, "a@x.com"))
	require.ErrorIs(t, svc.VerifyEmailExists(ctx, "nobody@x.com"), httpx.ErrNotFound)
	require.ErrorIs(t, svc.VerifyEmailExists(ctx, ""), httpx.ErrValidation)
}

func TestRecoverPassword(t *testing.T) {
	svc, _, recorder := newService(t)
	ctx := context.Background()

	_, err := svc.Register(ctx, accounts.RegisterInput{Name: "A", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	err = svc.RecoverPassword(ctx, accounts.RecoverInput{Email: "a@x.com"})
	require.ErrorIs(t, err, httpx.ErrValidation)

	err = svc.RecoverPassword(ctx, accounts.RecoverInput{Email: "nobody@x.com", NewPassword: "reset-pass"})
	require.ErrorIs(t, err, httpx.ErrNotFound)

	err = svc.RecoverPassword(ctx, accounts.RecoverInput{
		Email:           "a@x.com",
		NewPassword:     "reset-pass",
		SecurityAnswers: []string{"ignored"},
	})
	require.NoError(t, err)

	_, err = svc.Login(ctx, accounts.LoginInput{Email: "a@x.com", Password: "secret1"})
	require.ErrorIs(t, err, httpx.ErrUnauthorized)

	result, err := svc.Login(ctx, accounts.LoginInput{Email: "a@x.com", Password: "reset-pass"})
	require.NoError(t, err)
	require.Equal(t, "a@x.com", result.User.Email)
	require.Contains(t, recorder.kinds(), audit.KindPasswordRecover)
}

func TestRecoverPasswordMovesChangedAt(t *testing.T) {
	svc, repo, _ := newService(t)
	ctx := context.Background()

	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	svc.WithClock(func() time.Time { return now })

	registered, err := svc.Register(ctx, accounts.RegisterInput{Name: "A", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	now = now.Add(time.Hour)
	err = svc.RecoverPassword(ctx, accounts.RecoverInput{Email: "a@x.com", NewPassword: "reset-pass"})
	require.NoError(t, err)

	stored, err := repo.FindByID(ctx, registered.User.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.PasswordChangedAt)
	require.True(t, stored.PasswordChangedAt.Equal(now))
}

package session

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/apitest"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/navigation"
	"github.com/fjod/go_cart/storefront/internal/notify"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store *Store
	mem   *storage.MemoryStore
	nav   *navigation.Recorder
	toast *notify.Queue
}

func newFixture(t *testing.T, baseURL string) fixture {
	t.Helper()
	f := fixture{
		mem:   storage.NewMemoryStore(),
		nav:   navigation.NewRecorder(),
		toast: notify.NewQueue(0, zerolog.Nop()),
	}
	f.store = NewStore(nil, f.mem, f.nav, f.toast, zerolog.Nop())
	client := api.NewClient(api.Config{BaseURL: baseURL, Timeout: 5 * time.Second}, zerolog.Nop())
	f.store.SetAuth(client.WithTokens(f.store, f.store.Expire))
	return f
}

func persistedToken(t *testing.T, mem *storage.MemoryStore) string {
	t.Helper()
	raw, err := mem.Get(context.Background(), storage.KeyToken)
	if err != nil {
		return ""
	}
	return string(raw)
}

func TestInitialize_NoToken(t *testing.T) {
	srv := apitest.New(t)
	f := newFixture(t, srv.URL)
	require.True(t, f.store.Loading())

	f.store.Initialize(context.Background())

	assert.False(t, f.store.Loading())
	assert.False(t, f.store.IsAuthenticated())
	assert.Zero(t, srv.CountCalls("GET /auth/me"))
}

func TestInitialize_ValidToken(t *testing.T) {
	srv := apitest.New(t)
	u := srv.AddUser("ada@example.com", "secret", domain.RoleCustomer)
	f := newFixture(t, srv.URL)
	tok := srv.IssueToken("ada@example.com")
	require.NoError(t, f.mem.Set(context.Background(), storage.KeyToken, []byte(tok)))

	f.store.Initialize(context.Background())

	id := f.store.Identity()
	require.NotNil(t, id)
	assert.Equal(t, tok, id.Token)
	assert.Equal(t, u.ID, id.User.ID)
	assert.False(t, f.store.Loading())
}

func TestInitialize_InvalidTokenClearsSession(t *testing.T) {
	srv := apitest.New(t)
	f := newFixture(t, srv.URL)
	require.NoError(t, f.mem.Set(context.Background(), storage.KeyToken, []byte("stale")))

	f.store.Initialize(context.Background())

	assert.False(t, f.store.IsAuthenticated())
	assert.Empty(t, persistedToken(t, f.mem))
	assert.False(t, f.store.Loading())
	// a stale token on startup is not worth a toast
	assert.Empty(t, f.toast.Drain())
}

func TestInitialize_NetworkFailureTreatedAsInvalidToken(t *testing.T) {
	srv := apitest.New(t)
	url := srv.URL
	srv.Close()
	f := newFixture(t, url)
	require.NoError(t, f.mem.Set(context.Background(), storage.KeyToken, []byte("tok")))

	f.store.Initialize(context.Background())

	assert.False(t, f.store.IsAuthenticated())
	assert.Empty(t, persistedToken(t, f.mem))
	assert.False(t, f.store.Loading())
}

func TestLogin_CustomerRedirect(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("ada@example.com", "secret", domain.RoleCustomer)
	f := newFixture(t, srv.URL)

	id, err := f.store.Login(context.Background(), LoginRequest{Email: " ada@example.com ", Password: "secret", RedirectTo: "/checkout"}, false)
	require.NoError(t, err)

	assert.Equal(t, id.Token, persistedToken(t, f.mem))
	assert.True(t, f.store.HasRole(domain.RoleCustomer))
	a := f.nav.Take()
	require.NotNil(t, a)
	assert.Equal(t, "/checkout", a.URL)

	toasts := f.toast.Drain()
	require.Len(t, toasts, 1)
	assert.Equal(t, notify.LevelSuccess, toasts[0].Level)

	var u domain.User
	require.NoError(t, storage.GetJSON(context.Background(), f.mem, storage.KeyUser, &u))
	assert.Equal(t, "ada@example.com", u.Email)
}

func TestLogin_AdminVariant(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("root@example.com", "secret", domain.RoleSuperAdmin)
	f := newFixture(t, srv.URL)

	_, err := f.store.Login(context.Background(), LoginRequest{Email: "root@example.com", Password: "secret", RedirectTo: "/shop"}, true)
	require.NoError(t, err)

	assert.Equal(t, 1, srv.CountCalls("POST /auth/admin/login"))
	assert.Equal(t, PathAdminHome, f.nav.Take().URL)
	assert.True(t, f.store.HasRole(domain.RoleAdmin, domain.RoleSuperAdmin))
	assert.False(t, f.store.HasRole(domain.RoleCustomer))
}

func TestLogin_Failure(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("ada@example.com", "secret", domain.RoleCustomer)
	f := newFixture(t, srv.URL)

	_, err := f.store.Login(context.Background(), LoginRequest{Email: "ada@example.com", Password: "nope"}, false)
	require.Error(t, err)

	assert.Equal(t, "Invalid credentials", api.Message(err, ""))
	assert.False(t, f.store.IsAuthenticated())
	assert.Empty(t, persistedToken(t, f.mem))
	assert.Nil(t, f.nav.Take())
}

func TestLogout_ClearsEvenWhenServerFails(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("ada@example.com", "secret", domain.RoleCustomer)
	f := newFixture(t, srv.URL)
	ctx := context.Background()
	_, err := f.store.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "secret"}, false)
	require.NoError(t, err)
	srv.Fail(http.MethodGet, "/auth/logout", http.StatusInternalServerError, "boom", 0)

	f.store.Logout(ctx)

	assert.False(t, f.store.IsAuthenticated())
	assert.Empty(t, persistedToken(t, f.mem))
	assert.Equal(t, PathLogin, f.nav.Take().URL)
	assert.Equal(t, 1, srv.CountCalls("GET /auth/logout"))
}

func TestHasRole_Unauthenticated(t *testing.T) {
	srv := apitest.New(t)
	f := newFixture(t, srv.URL)
	assert.False(t, f.store.HasRole(domain.RoleCustomer, domain.RoleAdmin, domain.RoleSuperAdmin))
}

func TestExpire_OnRejectedToken(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("ada@example.com", "secret", domain.RoleCustomer)
	f := newFixture(t, srv.URL)
	ctx := context.Background()
	_, err := f.store.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "secret"}, false)
	require.NoError(t, err)
	f.toast.Drain()
	f.nav.Take()

	srv.RevokeTokens()
	_, err = f.store.UpdateDetails(ctx, api.DetailsUpdate{Name: "Ada"})
	require.Error(t, err)

	assert.False(t, f.store.IsAuthenticated())
	assert.Equal(t, PathLogin, f.nav.Take().URL)
	levels := []notify.Level{}
	for _, n := range f.toast.Drain() {
		levels = append(levels, n.Level)
	}
	assert.Contains(t, levels, notify.LevelWarning)
}

func TestSubscribe_ReceivesTransitions(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("ada@example.com", "secret", domain.RoleCustomer)
	f := newFixture(t, srv.URL)
	ctx := context.Background()

	type change struct{ prev, cur *domain.Identity }
	var changes []change
	f.store.Subscribe(func(_ context.Context, prev, cur *domain.Identity) {
		changes = append(changes, change{prev, cur})
	})

	_, err := f.store.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "secret"}, false)
	require.NoError(t, err)
	f.store.Logout(ctx)
	f.store.Logout(ctx)

	require.Len(t, changes, 2)
	assert.Nil(t, changes[0].prev)
	assert.NotNil(t, changes[0].cur)
	assert.NotNil(t, changes[1].prev)
	assert.Nil(t, changes[1].cur)
}

func TestUpdatePassword_RotatesToken(t *testing.T) {
	srv := apitest.New(t)
	srv.AddUser("ada@example.com", "secret", domain.RoleCustomer)
	f := newFixture(t, srv.URL)
	ctx := context.Background()
	id, err := f.store.Login(ctx, LoginRequest{Email: "ada@example.com", Password: "secret"}, false)
	require.NoError(t, err)

	require.NoError(t, f.store.UpdatePassword(ctx, api.PasswordUpdate{CurrentPassword: "secret", NewPassword: "better"}))

	assert.NotEqual(t, id.Token, f.store.Identity().Token)
	assert.Equal(t, f.store.Identity().Token, persistedToken(t, f.mem))

	err = f.store.UpdatePassword(ctx, api.PasswordUpdate{CurrentPassword: "wrong", NewPassword: "x"})
	require.Error(t, err)
	assert.True(t, f.store.IsAuthenticated(), "a wrong current password must not log the user out")
}

func TestRegister(t *testing.T) {
	srv := apitest.New(t)
	f := newFixture(t, srv.URL)

	id, err := f.store.Register(context.Background(), api.RegisterRequest{Name: "Bo", Email: "bo@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, domain.RoleCustomer, id.User.Role)
	assert.True(t, f.store.IsAuthenticated())
	assert.Equal(t, PathHome, f.nav.Take().URL)
}

func TestRedirectFor(t *testing.T) {
	assert.Equal(t, PathAdminHome, RedirectFor(domain.RoleAdmin, "/cart"))
	assert.Equal(t, "/cart", RedirectFor(domain.RoleCustomer, "/cart"))
	assert.Equal(t, PathHome, RedirectFor(domain.RoleCustomer, "//evil.example.com"))
	assert.Equal(t, PathHome, RedirectFor(domain.RoleCustomer, "https://evil.example.com"))
	assert.Equal(t, PathHome, RedirectFor(domain.RoleCustomer, ""))
	assert.Equal(t, PathHome, RedirectFor(domain.RoleCustomer, `/\evil.example.com`))
	assert.Equal(t, PathHome, RedirectFor(domain.RoleCustomer, "/\r\nLocation: evil"))
	assert.Equal(t, "/", RedirectFor(domain.RoleCustomer, "/"))
	assert.Equal(t, `/search?q=a\b`, RedirectFor(domain.RoleCustomer, `/search?q=a\b`))
}

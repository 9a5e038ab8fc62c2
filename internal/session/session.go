// Package session is the single source of truth for who is logged in.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/navigation"
	"github.com/fjod/go_cart/storefront/internal/notify"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	PathLogin     = "/login"
	PathHome      = "/"
	PathAdminHome = "/admin"
)

// AuthAPI is the part of the REST client the session needs.
type AuthAPI interface {
	Login(ctx context.Context, creds api.Credentials) (*domain.Identity, error)
	AdminLogin(ctx context.Context, creds api.Credentials) (*domain.Identity, error)
	Register(ctx context.Context, req api.RegisterRequest) (*domain.Identity, error)
	Me(ctx context.Context) (*domain.User, error)
	Logout(ctx context.Context, token string) error
	UpdateDetails(ctx context.Context, upd api.DetailsUpdate) (*domain.User, error)
	UpdatePassword(ctx context.Context, upd api.PasswordUpdate) (string, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, reset api.PasswordReset) error
}

// Listener is called after the identity changes, outside the store lock.
type Listener func(ctx context.Context, prev, cur *domain.Identity)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	// RedirectTo is where a customer lands after login; staff always go to the console.
	RedirectTo string `json:"redirectTo,omitempty"`
}

type Store struct {
	mu        sync.RWMutex
	identity  *domain.Identity
	loading   bool
	listeners []Listener

	auth     AuthAPI
	store    storage.Store
	nav      navigation.Navigator
	notifier notify.Notifier
	init     singleflight.Group
	log      zerolog.Logger
}

func NewStore(auth AuthAPI, store storage.Store, nav navigation.Navigator, notifier notify.Notifier, log zerolog.Logger) *Store {
	return &Store{
		loading:  true,
		auth:     auth,
		store:    store,
		nav:      nav,
		notifier: notifier,
		log:      logger.Component(log, "session"),
	}
}

// SetAuth swaps the API used by the store. The API client needs the store as its token
// source, so the two are wired after construction.
func (s *Store) SetAuth(auth AuthAPI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.auth = auth
}

func (s *Store) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Initialize restores the session from the persisted token. It never fails: an
// invalid token, an expired one and an unreachable API all end logged out.
// Concurrent calls share one run.
func (s *Store) Initialize(ctx context.Context) {
	_, _, _ = s.init.Do("init", func() (interface{}, error) {
		s.initialize(ctx)
		return nil, nil
	})
}

func (s *Store) initialize(ctx context.Context) {
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()
	log := logger.FromContext(ctx, s.log)

	raw, err := s.store.Get(ctx, storage.KeyToken)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			log.Warn().Err(err).Msg("failed to read persisted token")
		}
		return
	}
	token := string(raw)

	user, err := s.authAPI().Me(ctx)
	if err != nil {
		log.Info().Err(err).Msg("persisted token rejected, clearing session")
		s.clearPersisted(ctx)
		s.setIdentity(ctx, nil)
		return
	}

	id := &domain.Identity{Token: token, User: *user}
	s.persistUser(ctx, id.User)
	s.setIdentity(ctx, id)
}

func (s *Store) Login(ctx context.Context, req LoginRequest, admin bool) (*domain.Identity, error) {
	creds := api.Credentials{Email: strings.TrimSpace(req.Email), Password: req.Password}
	call := s.authAPI().Login
	if admin {
		call = s.authAPI().AdminLogin
	}

	id, err := call(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	if admin && !id.User.Role.IsStaff() {
		return nil, ErrNotStaff
	}

	s.establish(ctx, id)
	s.nav.Navigate(RedirectFor(id.User.Role, req.RedirectTo))
	s.notifier.Notify(notify.LevelSuccess, fmt.Sprintf("Welcome back, %s!", displayName(id.User)))
	return id, nil
}

func (s *Store) Register(ctx context.Context, req api.RegisterRequest) (*domain.Identity, error) {
	id, err := s.authAPI().Register(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("registration failed: %w", err)
	}

	s.establish(ctx, id)
	s.nav.Navigate(PathHome)
	s.notifier.Notify(notify.LevelSuccess, "Your account has been created.")
	return id, nil
}

func (s *Store) establish(ctx context.Context, id *domain.Identity) {
	if err := s.store.Set(ctx, storage.KeyToken, []byte(id.Token)); err != nil {
		logger.FromContext(ctx, s.log).Error().Err(err).Msg("failed to persist token")
	}
	s.persistUser(ctx, id.User)
	s.setIdentity(ctx, id)
}

// Logout cannot fail: local state is cleared first and the server call is best effort.
func (s *Store) Logout(ctx context.Context) {
	prev := s.Identity()

	s.clearPersisted(ctx)
	s.setIdentity(ctx, nil)
	s.nav.Navigate(PathLogin)
	s.notifier.Notify(notify.LevelInfo, "You have been logged out.")

	if prev == nil {
		return
	}
	if err := s.authAPI().Logout(ctx, prev.Token); err != nil {
		logger.FromContext(ctx, s.log).Debug().Err(err).Msg("server logout failed, ignoring")
	}
}

// Expire handles a token the API rejected: an implicit logout, not a failure.
func (s *Store) Expire(ctx context.Context) {
	if s.Identity() == nil {
		s.clearPersisted(ctx)
		return
	}
	s.clearPersisted(ctx)
	s.setIdentity(ctx, nil)
	s.nav.Navigate(PathLogin)
	s.notifier.Notify(notify.LevelWarning, "Your session has expired. Please log in again.")
}

func (s *Store) UpdateDetails(ctx context.Context, upd api.DetailsUpdate) (*domain.User, error) {
	id := s.Identity()
	if id == nil {
		return nil, ErrNotAuthenticated
	}
	user, err := s.authAPI().UpdateDetails(ctx, upd)
	if err != nil {
		s.notifier.Notify(notify.LevelError, api.Message(err, "Could not update your details."))
		return nil, fmt.Errorf("update details failed: %w", err)
	}

	next := &domain.Identity{Token: id.Token, User: *user}
	s.persistUser(ctx, next.User)
	s.setIdentity(ctx, next)
	s.notifier.Notify(notify.LevelSuccess, "Your details have been updated.")
	return user, nil
}

func (s *Store) UpdatePassword(ctx context.Context, upd api.PasswordUpdate) error {
	id := s.Identity()
	if id == nil {
		return ErrNotAuthenticated
	}
	token, err := s.authAPI().UpdatePassword(ctx, upd)
	if err != nil {
		s.notifier.Notify(notify.LevelError, api.Message(err, "Could not update your password."))
		return fmt.Errorf("update password failed: %w", err)
	}

	if token != "" && token != id.Token {
		s.establish(ctx, &domain.Identity{Token: token, User: id.User})
	}
	s.notifier.Notify(notify.LevelSuccess, "Your password has been updated.")
	return nil
}

func (s *Store) ForgotPassword(ctx context.Context, email string) error {
	if err := s.authAPI().ForgotPassword(ctx, strings.TrimSpace(email)); err != nil {
		return fmt.Errorf("forgot password failed: %w", err)
	}
	s.notifier.Notify(notify.LevelSuccess, "If that email is registered, a reset link is on its way.")
	return nil
}

func (s *Store) ResetPassword(ctx context.Context, reset api.PasswordReset) error {
	if err := s.authAPI().ResetPassword(ctx, reset); err != nil {
		return fmt.Errorf("reset password failed: %w", err)
	}
	s.nav.Navigate(PathLogin)
	s.notifier.Notify(notify.LevelSuccess, "Your password has been reset. Please log in.")
	return nil
}

// HasRole reports whether the current user holds one of roles. Logged out is always false.
func (s *Store) HasRole(roles ...domain.Role) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return false
	}
	for _, r := range roles {
		if s.identity.User.Role == r {
			return true
		}
	}
	return false
}

func (s *Store) Identity() *domain.Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	cp := *s.identity
	return &cp
}

func (s *Store) IsAuthenticated() bool {
	return s.Identity() != nil
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// Token implements api.TokenSource. Before Initialize finishes it falls back to the
// persisted token so the profile request can authenticate.
func (s *Store) Token(ctx context.Context) string {
	s.mu.RLock()
	id := s.identity
	s.mu.RUnlock()
	if id != nil {
		return id.Token
	}
	raw, err := s.store.Get(ctx, storage.KeyToken)
	if err != nil {
		return ""
	}
	return string(raw)
}

func (s *Store) authAPI() AuthAPI {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.auth
}

func (s *Store) setIdentity(ctx context.Context, id *domain.Identity) {
	s.mu.Lock()
	prev := s.identity
	s.identity = id
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	if sameIdentity(prev, id) {
		return
	}
	for _, l := range listeners {
		l(ctx, prev, id)
	}
}

func (s *Store) persistUser(ctx context.Context, u domain.User) {
	if err := storage.SetJSON(ctx, s.store, storage.KeyUser, u); err != nil {
		logger.FromContext(ctx, s.log).Warn().Err(err).Msg("failed to persist user")
	}
}

func (s *Store) clearPersisted(ctx context.Context) {
	for _, key := range []string{storage.KeyToken, storage.KeyUser} {
		if err := s.store.Delete(ctx, key); err != nil {
			logger.FromContext(ctx, s.log).Warn().Err(err).Str("key", key).Msg("failed to clear persisted session")
		}
	}
}

func sameIdentity(a, b *domain.Identity) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Token == b.Token && a.User == b.User
}

// RedirectFor picks the landing page after login. Only same-site paths are honoured.
func RedirectFor(role domain.Role, requested string) string {
	if role.IsStaff() {
		return PathAdminHome
	}
	if localPath(requested) {
		return requested
	}
	return PathHome
}

// localPath rejects protocol-relative forms; browsers read a backslash as a slash.
func localPath(p string) bool {
	if !strings.HasPrefix(p, "/") || len(p) > 1 && (p[1] == '/' || p[1] == '\\') {
		return false
	}
	return !strings.ContainsAny(p, "\r\n")
}

func displayName(u domain.User) string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

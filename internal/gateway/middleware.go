package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"github.com/rs/zerolog"
)

const (
	VisitorCookie = "storefront_visitor"
	visitorIDKey  = "vid"
)

type visitorCtxKey struct{}

// RequestIDMiddleware echoes the request id so the page can quote it in bug reports.
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := middleware.GetReqID(r.Context())
		if requestID == "" {
			requestID = uuid.NewString()
			r = r.WithContext(context.WithValue(r.Context(), middleware.RequestIDKey, requestID))
		}
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r)
	})
}

// ObserveMiddleware logs every request and records it in the request histogram under
// its route pattern.
func ObserveMiddleware(m *metrics.Metrics, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			elapsed := time.Since(start)
			m.ObserveRequest(r.Method, route, status, elapsed)

			logger.FromContext(r.Context(), log).Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("route", route).
				Int("status", status).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", elapsed).
				Msg("request")
		})
	}
}

// VisitorMiddleware resolves the visitor from the signed cookie, issuing a new id when
// the cookie is missing or no longer verifies. Requests of one visitor run one at a time.
func VisitorMiddleware(reg *Registry, cookies sessions.Store, log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := cookies.Get(r, VisitorCookie)
			if err != nil {
				log.Debug().Err(err).Msg("visitor cookie rejected, issuing a new one")
			}
			id, _ := cookie.Values[visitorIDKey].(string)
			if id == "" {
				id = uuid.NewString()
				cookie.Values[visitorIDKey] = id
				if err := cookie.Save(r, w); err != nil {
					log.Error().Err(err).Msg("failed to save visitor cookie")
					respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
					return
				}
			}

			v, err := reg.Get(r.Context(), id)
			if err != nil {
				handleError(w, nil, err)
				return
			}

			v.mu.Lock()
			defer v.mu.Unlock()
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), visitorCtxKey{}, v)))
		})
	}
}

// RequireRole lets through only visitors logged in with one of roles.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			v := visitorFrom(r.Context())
			if v == nil || !v.Session.IsAuthenticated() {
				handleError(w, v, session.ErrNotAuthenticated)
				return
			}
			if !v.Session.HasRole(roles...) {
				handleError(w, v, session.ErrNotStaff)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireLogin rejects visitors without a session.
func RequireLogin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		v := visitorFrom(r.Context())
		if v == nil || !v.Session.IsAuthenticated() {
			handleError(w, v, session.ErrNotAuthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func visitorFrom(ctx context.Context) *Visitor {
	v, _ := ctx.Value(visitorCtxKey{}).(*Visitor)
	return v
}

// NewCookieStore signs visitor cookies with key. An empty key gets a random one, so
// visitors lose their cookie on restart.
func NewCookieStore(key []byte, secure bool, maxAge time.Duration) *sessions.CookieStore {
	if len(key) == 0 {
		key = []byte(uuid.NewString() + uuid.NewString())
	}
	store := sessions.NewCookieStore(key)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	return store
}

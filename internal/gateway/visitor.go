package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/navigation"
	"github.com/fjod/go_cart/storefront/internal/notify"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/storage"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const notificationLimit = 20

// Visitor is everything one browser would hold: its session, cart, checkout flow and
// the notifications and navigation not yet delivered.
type Visitor struct {
	ID            string
	Session       *session.Store
	Cart          *cart.Store
	Checkout      *checkout.Controller
	Client        *api.Client
	Notifications *notify.Queue
	Nav           *navigation.Recorder

	// mu serializes requests of one visitor so each response carries its own
	// notifications.
	mu       sync.Mutex
	lastSeen atomic.Int64
}

func (v *Visitor) touch() {
	v.lastSeen.Store(time.Now().UnixNano())
}

func (v *Visitor) idleSince() time.Time {
	return time.Unix(0, v.lastSeen.Load())
}

// Registry keeps visitors in memory. Their durable state lives in the store, so an
// evicted visitor is rebuilt from it on the next request.
type Registry struct {
	mu       sync.RWMutex
	visitors map[string]*Visitor
	create   singleflight.Group

	store    storage.Store
	api      *api.Client
	checkout checkout.Config
	metrics  *metrics.Metrics
	events   events.Publisher
	idle     time.Duration
	log      zerolog.Logger
}

type RegistryConfig struct {
	Checkout checkout.Config
	IdleTTL  time.Duration
}

func NewRegistry(store storage.Store, client *api.Client, m *metrics.Metrics, pub events.Publisher, cfg RegistryConfig, log zerolog.Logger) *Registry {
	if pub == nil {
		pub = events.Nop
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 30 * time.Minute
	}
	return &Registry{
		visitors: make(map[string]*Visitor),
		store:    store,
		api:      client,
		checkout: cfg.Checkout,
		metrics:  m,
		events:   pub,
		idle:     cfg.IdleTTL,
		log:      logger.Component(log, "visitors"),
	}
}

// Get returns the visitor for id, restoring it on first use. Concurrent first requests
// of one visitor share a single restore.
func (r *Registry) Get(ctx context.Context, id string) (*Visitor, error) {
	if id == "" {
		return nil, errors.New("visitor id is required")
	}
	r.mu.RLock()
	v, ok := r.visitors[id]
	r.mu.RUnlock()
	if ok {
		v.touch()
		return v, nil
	}

	res, err, _ := r.create.Do(id, func() (interface{}, error) {
		r.mu.RLock()
		v, ok := r.visitors[id]
		r.mu.RUnlock()
		if ok {
			return v, nil
		}

		v = r.build(ctx, id)
		r.mu.Lock()
		r.visitors[id] = v
		n := len(r.visitors)
		r.mu.Unlock()
		r.metrics.SetVisitors(n)
		return v, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to restore visitor: %w", err)
	}
	v = res.(*Visitor)
	v.touch()
	return v, nil
}

func (r *Registry) build(ctx context.Context, id string) *Visitor {
	log := r.log.With().Str("visitor", id).Logger()
	store := storage.Namespace(r.store, "visitor:"+id)
	queue := notify.NewQueue(notificationLimit, log)
	nav := navigation.NewRecorder()

	sess := session.NewStore(nil, store, nav, queue, log)
	client := r.api.WithTokens(sess, sess.Expire)
	sess.SetAuth(client)

	crt := cart.NewStore(client, store, queue, r.metrics, r.events, log)
	flow := checkout.NewController(client, crt, nav, queue, r.metrics, r.events, r.checkout, log)

	sess.Initialize(ctx)
	if err := crt.Sync(ctx, sess.IsAuthenticated()); err != nil {
		log.Warn().Err(err).Msg("initial cart sync failed")
	}
	sess.Subscribe(crt.HandleAuthChange)

	// restoring is not a user action; nothing from it is worth showing
	queue.Drain()
	nav.Take()

	return &Visitor{
		ID:            id,
		Session:       sess,
		Cart:          crt,
		Checkout:      flow,
		Client:        client,
		Notifications: queue,
		Nav:           nav,
	}
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.visitors)
}

// Evict drops visitors idle since before cutoff and returns how many went.
func (r *Registry) Evict(cutoff time.Time) int {
	r.mu.Lock()
	evicted := 0
	for id, v := range r.visitors {
		if v.idleSince().Before(cutoff) {
			delete(r.visitors, id)
			evicted++
		}
	}
	n := len(r.visitors)
	r.mu.Unlock()
	r.metrics.SetVisitors(n)
	return evicted
}

// Run evicts idle visitors until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.idle / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if n := r.Evict(time.Now().Add(-r.idle)); n > 0 {
				r.log.Debug().Int("evicted", n).Msg("evicted idle visitors")
			}
		case <-ctx.Done():
			return
		}
	}
}

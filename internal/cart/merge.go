package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/api"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/notify"
	"github.com/fjod/go_cart/storefront/pkg/logger"
)

type MergeFailure struct {
	LineID  string `json:"lineId"`
	Product string `json:"product"`
	Error   string `json:"error"`
}

type MergeResult struct {
	Merged int            `json:"merged"`
	Failed []MergeFailure `json:"failed,omitempty"`
}

// MergeGuestIntoServer replays every guest line as a server add, in order, then loads
// the server cart and drops the guest copy. The merge is partial: a failed line does
// not undo the lines before it, and the guest copy is dropped either way. Because the
// guest copy is gone afterwards, a second call finds nothing to merge.
func (s *Store) MergeGuestIntoServer(ctx context.Context) (MergeResult, error) {
	log := logger.FromContext(ctx, s.log)
	var res MergeResult

	guest, loadErr := s.guest.load(ctx)
	if loadErr != nil {
		log.Warn().Err(loadErr).Msg("unreadable guest cart, nothing to merge")
	}

	s.mu.Lock()
	s.backend = s.server
	s.version++
	s.pending++
	s.err = nil
	cartAPI := s.server.api
	owner := s.owner
	s.mu.Unlock()

	for _, line := range guest.Items {
		if _, err := cartAPI.AddToCart(ctx, line.Product.ID, line.VariantID, line.Quantity); err != nil {
			log.Warn().Err(err).Str("line", line.ID).Msg("failed to merge guest cart line")
			res.Failed = append(res.Failed, MergeFailure{LineID: line.ID, Product: line.Product.Name, Error: api.Message(err, "")})
			continue
		}
		res.Merged++
	}

	if err := s.guest.discard(ctx); err != nil {
		log.Error().Err(err).Msg("failed to discard guest cart after merge")
	}

	server, fetchErr := s.server.load(ctx)

	var err error
	switch {
	case fetchErr != nil:
		err = fetchErr
	case len(res.Failed) > 0:
		err = fmt.Errorf("%w: %d of %d lines failed", ErrPartialMerge, len(res.Failed), len(guest.Items))
	}

	s.mu.Lock()
	s.pending--
	if s.backend.mode() == ModeServer {
		if fetchErr != nil {
			server = domain.EmptyCart()
		}
		s.cart = server
		s.committed = server.Clone()
		s.err = err
	}
	s.mu.Unlock()

	s.metrics.CartOperation(opMerge, string(ModeServer), err)
	if len(guest.Items) > 0 {
		if pubErr := s.events.Publish(ctx, events.New(events.TypeCartMerged, owner, res)); pubErr != nil {
			log.Warn().Err(pubErr).Msg("failed to publish cart merge event")
		}
	}

	switch {
	case len(guest.Items) == 0:
	case len(res.Failed) > 0:
		names := make([]string, 0, len(res.Failed))
		for _, f := range res.Failed {
			names = append(names, f.Product)
		}
		s.notifier.Notify(notify.LevelWarning, "Some items could not be added to your cart: "+strings.Join(names, ", "))
	default:
		s.notifier.Notify(notify.LevelSuccess, "Your cart items have been saved to your account.")
	}
	if fetchErr != nil {
		s.notifier.Notify(notify.LevelError, api.Message(fetchErr, "Could not load your cart."))
	}
	return res, err
}

// Package outbox settles journaled sends whose conversation went away
// before the server acknowledged them.
package outbox

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gigboard/gigchat/internal/bus"
	"github.com/gigboard/gigchat/internal/store"
)

// Reason is recorded on entries the sweeper fails.
const Reason = "not acknowledged before the conversation closed"

// Journal is the part of the store the sweeper needs. *store.DB implements it.
type Journal interface {
	StaleOutbox(before time.Time, limit int) ([]store.OutboxEntry, error)
	MarkOutboxFailed(clientMsgID, errMsg string) error
}

// Sweeper periodically fails pending entries older than MaxAge. A mounted
// view fails its own unacknowledged sends after the ack timeout; entries
// still pending well past it belong to views that were unmounted or to a
// previous run.
type Sweeper struct {
	journal  Journal
	maxAge   time.Duration
	interval time.Duration
	bus      *bus.Bus
	logger   *zap.Logger
	now      func() time.Time
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewSweeper creates a sweeper. interval <= 0 uses maxAge.
func NewSweeper(j Journal, maxAge, interval time.Duration, b *bus.Bus, logger *zap.Logger) *Sweeper {
	if interval <= 0 {
		interval = maxAge
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Sweeper{
		journal:  j,
		maxAge:   maxAge,
		interval: interval,
		bus:      b,
		logger:   logger.Named("outbox"),
		now:      time.Now,
	}
}

// Start sweeps once and then every interval until Stop.
func (s *Sweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx)
}

// Stop stops the sweeper loop and waits for it to exit.
func (s *Sweeper) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

func (s *Sweeper) loop(ctx context.Context) {
	defer close(s.done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep()
	for {
		select {
		case <-ticker.C:
			s.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

// Sweep fails every stale pending entry and returns how many it failed.
// Each affected conversation gets one warning notice.
func (s *Sweeper) Sweep() int {
	stale, err := s.journal.StaleOutbox(s.now().Add(-s.maxAge), 0)
	if err != nil {
		s.logger.Error("failed to read outbox", zap.Error(err))
		return 0
	}

	failed := 0
	perPeer := make(map[string]int)
	var order []string
	for _, e := range stale {
		if err := s.journal.MarkOutboxFailed(e.ClientMsgID, Reason); err != nil {
			s.logger.Error("failed to mark failed", zap.Error(err), zap.String("client_msg_id", e.ClientMsgID))
			continue
		}
		failed++
		if perPeer[e.PeerID] == 0 {
			order = append(order, e.PeerID)
		}
		perPeer[e.PeerID]++
		s.logger.Info("abandoned send failed", zap.String("client_msg_id", e.ClientMsgID), zap.String("peer", e.PeerID))
	}

	for _, peer := range order {
		n := perPeer[peer]
		text := fmt.Sprintf("%d message to %s was not delivered", n, peer)
		if n > 1 {
			text = fmt.Sprintf("%d messages to %s were not delivered", n, peer)
		}
		s.bus.Emit(bus.KindNoticeWarn, bus.Notice{Text: text})
	}
	return failed
}

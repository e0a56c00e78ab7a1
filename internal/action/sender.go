package action

import (
	"context"
	"sync"
	"time"

	"ruok-relay-go/internal/model"
)

// DryRunResult is returned for every send while dry-run is enabled
var DryRunResult = model.SendResult{ID: 12345, CreatedAt: "Thu Aug 12 16:11:58 +0000 2021"}

// Poster publishes an outreach message
type Poster interface {
	PostMessage(ctx context.Context, text string) (model.SendResult, error)
}

// Sender publishes outreach messages at most once per delay
type Sender struct {
	poster Poster
	dryRun bool
	delay  time.Duration
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error

	mu   sync.Mutex
	last time.Time
}

// NewSender creates a sender. In dry-run mode the poster is never called.
func NewSender(poster Poster, dryRun bool, delay time.Duration) *Sender {
	return &Sender{
		poster: poster,
		dryRun: dryRun,
		delay:  delay,
		now:    time.Now,
		sleep:  sleepContext,
	}
}

// DryRun reports whether sends are simulated
func (s *Sender) DryRun() bool {
	return s.dryRun
}

// Send publishes text, first waiting out the remainder of the delay since the previous send
func (s *Sender) Send(ctx context.Context, text string) (model.SendResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.last.IsZero() {
		if wait := s.delay - s.now().Sub(s.last); wait > 0 {
			if err := s.sleep(ctx, wait); err != nil {
				return model.SendResult{}, err
			}
		}
	}
	s.last = s.now()

	if s.dryRun {
		return DryRunResult, nil
	}
	return s.poster.PostMessage(ctx, text)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

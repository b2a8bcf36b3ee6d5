package application

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/parlorchat/loginflow/internal/domain/model"
	"github.com/parlorchat/loginflow/internal/domain/port/driven"
)

// StatusService periodically fetches the remote server's status document and
// holds the last known result for readers. The login UI consults it before
// starting a flow; the health endpoint reports it.
type StatusService struct {
	client    driven.ServerClient
	interval  time.Duration
	refreshCh chan chan error

	mu      sync.RWMutex
	last    *model.ServerStatus
	lastErr error
}

// NewStatusService creates a StatusService polling client on the given
// interval.
func NewStatusService(client driven.ServerClient, interval time.Duration) *StatusService {
	return &StatusService{
		client:    client,
		interval:  interval,
		refreshCh: make(chan chan error),
	}
}

// Start begins the polling loop. It runs an immediate fetch, then fetches on
// the configured interval, and also serves manual refresh requests. Start
// blocks until the context is canceled.
func (s *StatusService) Start(ctx context.Context) {
	if err := s.fetch(ctx); err != nil {
		slog.Error("initial status fetch failed", "error", err)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("status service stopped")
			return
		case <-ticker.C:
			if err := s.fetch(ctx); err != nil {
				slog.Error("status fetch failed", "error", err)
			}
		case done := <-s.refreshCh:
			done <- s.fetch(ctx)
		}
	}
}

// Refresh triggers an immediate fetch, bypassing the interval. It blocks
// until the fetch completes or the context is canceled.
func (s *StatusService) Refresh(ctx context.Context) error {
	done := make(chan error, 1)

	select {
	case s.refreshCh <- done:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Last returns the most recent status and the error of the most recent fetch.
// The status is nil until the first successful fetch.
func (s *StatusService) Last() (*model.ServerStatus, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.lastErr
}

func (s *StatusService) fetch(ctx context.Context) error {
	status, err := s.client.Status(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = err
	if err != nil {
		return err
	}
	status.FetchedAt = time.Now().UTC()
	s.last = &status
	return nil
}

package application

import (
	"context"
	"crypto/x509"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/parlorchat/loginflow/internal/domain/model"
	"github.com/parlorchat/loginflow/internal/domain/port/driven"
)

// ErrDecisionPending indicates a second validation failure was reported for a
// load whose prompt is still unresolved. The gate surfaces one failure at a
// time per load; hitting this is a programming error in the calling session.
var ErrDecisionPending = errors.New("trust decision already pending for this load")

// DecisionGate bridges synchronous TLS validation callbacks to asynchronous
// user decisions. When a load's certificate fails validation and is not
// already trusted, Check suspends the calling goroutine on a one-shot channel
// until the listener resolves the prompt, the load's context is cancelled, or
// the gate is closed. Cancellation and close both reject: the load never
// proceeds without an explicit accept.
type DecisionGate struct {
	trust    *TrustManager
	listener driven.DecisionListener
	logger   *slog.Logger

	mu      sync.Mutex
	byLoad  map[string]*pendingPrompt
	byID    map[string]*pendingPrompt
	closed  chan struct{}
	closeMu sync.Once
}

// pendingPrompt is one suspended load awaiting a decision. resolved is
// buffered so Resolve never blocks; once guards against duplicate resolution.
type pendingPrompt struct {
	decision model.PendingDecision
	resolved chan model.TrustDecision
	once     sync.Once
}

// NewDecisionGate creates a gate publishing prompts to listener.
func NewDecisionGate(trust *TrustManager, listener driven.DecisionListener, logger *slog.Logger) *DecisionGate {
	if logger == nil {
		logger = slog.Default()
	}
	return &DecisionGate{
		trust:    trust,
		listener: listener,
		logger:   logger,
		byLoad:   make(map[string]*pendingPrompt),
		byID:     make(map[string]*pendingPrompt),
		closed:   make(chan struct{}),
	}
}

// Check decides whether the load identified by loadID may proceed after a
// TLS validation failure for host presenting leaf. A nil leaf (the platform
// could not surface the certificate) rejects immediately. A certificate that
// is already trusted accepts without user interaction. Otherwise Check blocks
// until the prompt is resolved or ctx ends; an accepted certificate is
// remembered before the load resumes.
func (g *DecisionGate) Check(ctx context.Context, loadID, host string, leaf *x509.Certificate) (model.TrustDecision, error) {
	if leaf == nil {
		g.logger.Warn("certificate unavailable, rejecting load", "load_id", loadID, "host", host)
		return model.TrustRejected, nil
	}

	if g.trust.IsTrusted(host, []*x509.Certificate{leaf}) {
		return model.TrustAccepted, nil
	}

	prompt, err := g.register(loadID, host, leaf)
	if err != nil {
		return model.TrustRejected, err
	}
	defer g.unregister(prompt)

	g.listener.DecisionRequested(prompt.decision)
	g.logger.Info("trust decision requested",
		"decision_id", prompt.decision.ID,
		"load_id", loadID,
		"host", host,
		"fingerprint", model.Fingerprint(leaf),
	)

	select {
	case decision := <-prompt.resolved:
		if decision != model.TrustAccepted {
			return model.TrustRejected, nil
		}
		if err := g.trust.Remember(ctx, host, leaf); err != nil {
			// The approval still holds for this process; persistence is
			// retried next time the user accepts the certificate.
			g.logger.Error("remember certificate failed", "host", host, "error", err)
		}
		return model.TrustAccepted, nil
	case <-ctx.Done():
		return model.TrustRejected, nil
	case <-g.closed:
		return model.TrustRejected, nil
	}
}

// Resolve applies the decision for a prompt by ID. It reports whether the
// prompt was found; resolving an unknown or already-resolved prompt is a
// no-op.
func (g *DecisionGate) Resolve(decisionID string, decision model.TrustDecision) bool {
	g.mu.Lock()
	prompt, ok := g.byID[decisionID]
	g.mu.Unlock()
	if !ok {
		return false
	}

	prompt.once.Do(func() {
		prompt.resolved <- decision
	})
	return true
}

// Pending returns a snapshot of unresolved prompts ordered by request time.
func (g *DecisionGate) Pending() []model.PendingDecision {
	g.mu.Lock()
	defer g.mu.Unlock()

	pending := make([]model.PendingDecision, 0, len(g.byID))
	for _, prompt := range g.byID {
		pending = append(pending, prompt.decision)
	}
	sort.Slice(pending, func(i, j int) bool {
		return pending[i].RequestedAt.Before(pending[j].RequestedAt)
	})
	return pending
}

// Close rejects every outstanding prompt and makes all future suspensions
// reject immediately. Called on session teardown.
func (g *DecisionGate) Close() {
	g.closeMu.Do(func() {
		close(g.closed)
	})
}

func (g *DecisionGate) register(loadID, host string, leaf *x509.Certificate) (*pendingPrompt, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.byLoad[loadID]; exists {
		return nil, ErrDecisionPending
	}

	prompt := &pendingPrompt{
		decision: model.PendingDecision{
			ID:          uuid.NewString(),
			LoadID:      loadID,
			Host:        host,
			Certificate: leaf,
			RequestedAt: time.Now().UTC(),
		},
		resolved: make(chan model.TrustDecision, 1),
	}
	g.byLoad[loadID] = prompt
	g.byID[prompt.decision.ID] = prompt
	return prompt, nil
}

func (g *DecisionGate) unregister(prompt *pendingPrompt) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.byLoad, prompt.decision.LoadID)
	delete(g.byID, prompt.decision.ID)
}

package application

import (
	"context"
	"crypto/x509"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parlorchat/loginflow/internal/domain/model"
	"github.com/parlorchat/loginflow/internal/domain/port/driven"
)

// newGateForTest returns a gate whose trust manager has no anchors, plus a
// channel receiving published prompts.
func newGateForTest(t *testing.T) (*DecisionGate, *TrustManager, chan model.PendingDecision) {
	t.Helper()

	trust := NewTrustManager(nil, x509.NewCertPool())
	prompts := make(chan model.PendingDecision, 4)
	listener := driven.DecisionListenerFunc(func(p model.PendingDecision) {
		prompts <- p
	})
	return NewDecisionGate(trust, listener, nil), trust, prompts
}

func TestDecisionGate_NilCertificateRejectsImmediately(t *testing.T) {
	gate, _, prompts := newGateForTest(t)

	decision, err := gate.Check(context.Background(), "load-1", "cloud.example", nil)

	require.NoError(t, err)
	assert.Equal(t, model.TrustRejected, decision)
	assert.Empty(t, prompts, "no prompt for an unextractable certificate")
}

func TestDecisionGate_TrustedShortCircuits(t *testing.T) {
	cert := newSelfSignedCert(t, "cloud.example")
	roots := x509.NewCertPool()
	roots.AddCert(cert)

	trust := NewTrustManager(nil, roots)
	prompts := make(chan model.PendingDecision, 1)
	gate := NewDecisionGate(trust, driven.DecisionListenerFunc(func(p model.PendingDecision) {
		prompts <- p
	}), nil)

	decision, err := gate.Check(context.Background(), "load-1", "cloud.example", cert)

	require.NoError(t, err)
	assert.Equal(t, model.TrustAccepted, decision)
	assert.Empty(t, prompts, "platform-valid chains never prompt")
}

func TestDecisionGate_AcceptResumesAndRemembers(t *testing.T) {
	cert := newSelfSignedCert(t, "cloud.example")
	gate, trust, prompts := newGateForTest(t)

	results := make(chan model.TrustDecision, 1)
	go func() {
		decision, err := gate.Check(context.Background(), "load-1", "cloud.example", cert)
		assert.NoError(t, err)
		results <- decision
	}()

	prompt := <-prompts
	assert.Equal(t, "load-1", prompt.LoadID)
	assert.Equal(t, "cloud.example", prompt.Host)

	require.True(t, gate.Resolve(prompt.ID, model.TrustAccepted))

	assert.Equal(t, model.TrustAccepted, <-results)
	assert.True(t, trust.IsTrusted("cloud.example", []*x509.Certificate{cert}),
		"accepted certificate is remembered")
	assert.Empty(t, gate.Pending())
}

func TestDecisionGate_SecondCheckAfterAcceptDoesNotPrompt(t *testing.T) {
	cert := newSelfSignedCert(t, "cloud.example")
	gate, _, prompts := newGateForTest(t)

	go func() {
		prompt := <-prompts
		gate.Resolve(prompt.ID, model.TrustAccepted)
	}()

	decision, err := gate.Check(context.Background(), "load-1", "cloud.example", cert)
	require.NoError(t, err)
	require.Equal(t, model.TrustAccepted, decision)

	// Same certificate on a later load resumes without user interaction.
	decision, err = gate.Check(context.Background(), "load-2", "cloud.example", cert)
	require.NoError(t, err)
	assert.Equal(t, model.TrustAccepted, decision)
	assert.Empty(t, prompts)
}

func TestDecisionGate_RejectAborts(t *testing.T) {
	cert := newSelfSignedCert(t, "cloud.example")
	gate, trust, prompts := newGateForTest(t)

	results := make(chan model.TrustDecision, 1)
	go func() {
		decision, _ := gate.Check(context.Background(), "load-1", "cloud.example", cert)
		results <- decision
	}()

	prompt := <-prompts
	require.True(t, gate.Resolve(prompt.ID, model.TrustRejected))

	assert.Equal(t, model.TrustRejected, <-results)
	assert.False(t, trust.IsTrusted("cloud.example", []*x509.Certificate{cert}),
		"rejected certificate is not remembered")
}

func TestDecisionGate_DuplicateResolutionIsNoOp(t *testing.T) {
	cert := newSelfSignedCert(t, "cloud.example")
	gate, trust, prompts := newGateForTest(t)

	results := make(chan model.TrustDecision, 1)
	go func() {
		decision, _ := gate.Check(context.Background(), "load-1", "cloud.example", cert)
		results <- decision
	}()

	prompt := <-prompts
	require.True(t, gate.Resolve(prompt.ID, model.TrustRejected))
	// A second, conflicting resolution must not override the first.
	gate.Resolve(prompt.ID, model.TrustAccepted)

	assert.Equal(t, model.TrustRejected, <-results)
	assert.False(t, trust.IsTrusted("cloud.example", []*x509.Certificate{cert}))
}

func TestDecisionGate_ResolveUnknownID(t *testing.T) {
	gate, _, _ := newGateForTest(t)
	assert.False(t, gate.Resolve("nope", model.TrustAccepted))
}

func TestDecisionGate_SecondFailureSameLoadIsContractViolation(t *testing.T) {
	cert := newSelfSignedCert(t, "cloud.example")
	gate, _, prompts := newGateForTest(t)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = gate.Check(context.Background(), "load-1", "cloud.example", cert)
	}()

	prompt := <-prompts

	decision, err := gate.Check(context.Background(), "load-1", "cloud.example", cert)
	assert.ErrorIs(t, err, ErrDecisionPending)
	assert.Equal(t, model.TrustRejected, decision)

	gate.Resolve(prompt.ID, model.TrustRejected)
	<-done
}

func TestDecisionGate_ContextCancelRejects(t *testing.T) {
	cert := newSelfSignedCert(t, "cloud.example")
	gate, _, prompts := newGateForTest(t)

	ctx, cancel := context.WithCancel(context.Background())

	results := make(chan model.TrustDecision, 1)
	go func() {
		decision, err := gate.Check(ctx, "load-1", "cloud.example", cert)
		assert.NoError(t, err)
		results <- decision
	}()

	<-prompts
	cancel()

	assert.Equal(t, model.TrustRejected, <-results)
	assert.Empty(t, gate.Pending(), "cancelled prompt is released")
}

func TestDecisionGate_CloseRejectsAllPending(t *testing.T) {
	gate, _, prompts := newGateForTest(t)

	results := make(chan model.TrustDecision, 2)
	for _, loadID := range []string{"load-1", "load-2"} {
		cert := newSelfSignedCert(t, "cloud.example")
		go func() {
			decision, _ := gate.Check(context.Background(), loadID, "cloud.example", cert)
			results <- decision
		}()
	}

	<-prompts
	<-prompts
	gate.Close()

	assert.Equal(t, model.TrustRejected, <-results)
	assert.Equal(t, model.TrustRejected, <-results)
}

func TestDecisionGate_PendingSnapshotOrdered(t *testing.T) {
	gate, _, prompts := newGateForTest(t)

	certA := newSelfSignedCert(t, "a.example")
	certB := newSelfSignedCert(t, "b.example")

	go func() { _, _ = gate.Check(context.Background(), "load-a", "a.example", certA) }()
	first := <-prompts
	go func() { _, _ = gate.Check(context.Background(), "load-b", "b.example", certB) }()
	second := <-prompts

	pending := gate.Pending()
	require.Len(t, pending, 2)
	assert.Equal(t, first.ID, pending[0].ID)
	assert.Equal(t, second.ID, pending[1].ID)

	gate.Resolve(first.ID, model.TrustRejected)
	gate.Resolve(second.ID, model.TrustRejected)

	// Give both suspended loads a moment to drain before goleak runs.
	require.Eventually(t, func() bool { return len(gate.Pending()) == 0 },
		time.Second, 10*time.Millisecond)
}

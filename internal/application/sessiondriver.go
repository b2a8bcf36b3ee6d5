package application

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"log/slog"
	"net/url"
	"sync"

	"github.com/parlorchat/loginflow/internal/domain/model"
	"github.com/parlorchat/loginflow/internal/domain/port/driven"
)

// NavigationAction is the driver's answer to a navigation attempt.
type NavigationAction string

const (
	// NavigationIntercept stops the browser from loading the URL; the driver
	// consumed it as a login redirect.
	NavigationIntercept NavigationAction = "intercept"
	// NavigationPassThrough lets the browser load the URL normally.
	NavigationPassThrough NavigationAction = "pass_through"
)

// TLSFailure describes a failed TLS validation for an in-flight load. Leaf is
// the end-entity certificate extracted by the session adapter; it is nil when
// the platform could not surface one, which rejects the load outright.
type TLSFailure struct {
	LoadID string
	Host   string
	Leaf   *x509.Certificate
}

// SessionDriver orchestrates the login flow against the embedded browser
// session's lifecycle events. It is the only component aware of the browser
// surface; everything it consumes arrives as a typed event.
type SessionDriver struct {
	prefix           string
	isPasswordUpdate bool

	recon  *Reconciler
	gate   *DecisionGate
	certs  driven.ClientCertificateSource
	ui     driven.FlowUI
	logger *slog.Logger

	mu         sync.Mutex
	cancelPrev context.CancelFunc
	wg         sync.WaitGroup
	pageLoaded bool
}

// NewSessionDriver creates a driver for one login session. scheme is the app
// redirect scheme ("parlor"); isPasswordUpdate selects the re-authentication
// variant of the flow. certs may be nil when no client identities exist.
func NewSessionDriver(
	scheme string,
	isPasswordUpdate bool,
	recon *Reconciler,
	gate *DecisionGate,
	certs driven.ClientCertificateSource,
	ui driven.FlowUI,
	logger *slog.Logger,
) *SessionDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &SessionDriver{
		prefix:           LoginURLPrefix(scheme),
		isPasswordUpdate: isPasswordUpdate,
		recon:            recon,
		gate:             gate,
		certs:            certs,
		ui:               ui,
		logger:           logger,
	}
}

// HandleNavigation decides whether a navigation attempt is the login redirect.
// A URL that does not parse under the login grammar passes through untouched;
// a parsed one is intercepted and reconciled asynchronously. Starting a new
// reconciliation cancels any prior one still in flight.
func (d *SessionDriver) HandleNavigation(ctx context.Context, rawURL string) NavigationAction {
	record := ParseLoginData(d.prefix, rawURL)
	if record == nil {
		return NavigationPassThrough
	}

	d.mu.Lock()
	if d.cancelPrev != nil {
		d.cancelPrev()
	}
	loginCtx, cancel := context.WithCancel(ctx)
	d.cancelPrev = cancel
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		d.completeLogin(loginCtx, *record)
	}()

	return NavigationIntercept
}

// HandleLoadFinished marks the first completed page load, the point where the
// hosting UI reveals the browser surface.
func (d *SessionDriver) HandleLoadFinished(rawURL string) {
	d.mu.Lock()
	first := !d.pageLoaded
	d.pageLoaded = true
	d.mu.Unlock()

	if first {
		d.logger.Info("login page loaded", "url", rawURL)
	}
}

// HandleTLSFailure routes a validation failure through the decision gate and
// returns the resulting decision. A contract violation from the gate (second
// failure for an unresolved load) rejects the load.
func (d *SessionDriver) HandleTLSFailure(ctx context.Context, failure TLSFailure) model.TrustDecision {
	decision, err := d.gate.Check(ctx, failure.LoadID, failure.Host, failure.Leaf)
	if err != nil {
		d.logger.Error("trust gate check failed", "load_id", failure.LoadID, "error", err)
		return model.TrustRejected
	}
	return decision
}

// HandleClientCertificateRequest resolves the platform client identity for
// the host of the currently loaded URL. Every failure path (no source, bad
// URL, retrieval error) cancels the request by returning an error.
func (d *SessionDriver) HandleClientCertificateRequest(ctx context.Context, currentURL string) (*tls.Certificate, error) {
	if d.certs == nil {
		return nil, driven.ErrNoClientCertificate
	}

	var host string
	if u, err := url.Parse(currentURL); err == nil {
		host = u.Hostname()
	}

	cert, err := d.certs.ClientCertificate(ctx, host)
	if err != nil {
		d.logger.Warn("client certificate unavailable", "host", host, "error", err)
		return nil, err
	}
	return cert, nil
}

// Close tears the session down: the pending trust prompt (if any) is rejected
// and the in-flight reconciliation is cancelled. Close blocks until the
// reconciliation goroutine has released its resources.
func (d *SessionDriver) Close() {
	d.mu.Lock()
	if d.cancelPrev != nil {
		d.cancelPrev()
	}
	d.mu.Unlock()

	d.gate.Close()
	d.wg.Wait()
}

// completeLogin resolves the outcome for a parsed record, applies it, and
// reports the result to the flow UI.
func (d *SessionDriver) completeLogin(ctx context.Context, record model.LoginData) {
	outcome, err := d.recon.Resolve(ctx, record, d.isPasswordUpdate)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			d.logger.Error("reconciliation failed", "username", record.Username, "error", err)
			d.ui.FlowFailed("", err)
		}
		return
	}

	if outcome.IsRejection() {
		d.logger.Info("login rejected", "username", record.Username, "kind", outcome.Kind)
		d.ui.FlowFailed(outcome.Kind, nil)
		return
	}

	account, err := d.recon.Apply(ctx, outcome)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			d.logger.Error("apply outcome failed", "kind", outcome.Kind, "error", err)
			d.ui.FlowFailed(outcome.Kind, err)
		}
		return
	}

	switch outcome.Kind {
	case model.OutcomeCreateAccount:
		d.logger.Info("account created", "username", account.Username, "server_url", account.ServerURL)
		d.ui.AccountCreated(*account, outcome.DuplicateNoted)
	case model.OutcomeUpdatePassword:
		d.logger.Info("password updated", "account_id", outcome.AccountID)
		d.ui.PasswordUpdated(outcome.AccountID)
	}
}

package application

import (
	"context"
	"crypto/x509"
	"fmt"
	"sync"
	"time"

	"github.com/parlorchat/loginflow/internal/domain/model"
	"github.com/parlorchat/loginflow/internal/domain/port/driven"
)

// TrustManager layers a runtime overlay of user-approved certificates on top
// of the platform trust anchors. It is constructed once per process and
// injected wherever certificate decisions are made; IsTrusted and Remember
// are safe to call concurrently from network-callback goroutines.
//
// Acceptance is scoped to the (host, certificate) pair that was approved, so
// a certificate the user accepted for one host is not silently trusted when
// a different host presents it.
type TrustManager struct {
	mu      sync.RWMutex
	overlay map[string]model.TrustedCertificate // host + fingerprint -> entry

	roots *x509.CertPool // nil means the system pool
	store driven.TrustedCertStore
}

// NewTrustManager creates a TrustManager. roots may be nil to use the system
// trust anchors; store may be nil to keep approvals in memory only.
func NewTrustManager(store driven.TrustedCertStore, roots *x509.CertPool) *TrustManager {
	return &TrustManager{
		overlay: make(map[string]model.TrustedCertificate),
		roots:   roots,
		store:   store,
	}
}

// Hydrate loads previously approved certificates from the store into the
// overlay. Called once at startup, before the manager is shared.
func (m *TrustManager) Hydrate(ctx context.Context) error {
	if m.store == nil {
		return nil
	}

	entries, err := m.store.List(ctx)
	if err != nil {
		return fmt.Errorf("hydrate trust overlay: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range entries {
		m.overlay[overlayKey(entry.Host, entry.Fingerprint)] = entry
	}
	return nil
}

// IsTrusted reports whether the ordered chain is acceptable for host. It
// first runs platform validation against the trust anchors; if that fails it
// checks whether the leaf certificate was previously approved for this host.
func (m *TrustManager) IsTrusted(host string, chain []*x509.Certificate) bool {
	if len(chain) == 0 {
		return false
	}

	if m.verifyAgainstAnchors(host, chain) {
		return true
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.overlay[overlayKey(host, model.Fingerprint(chain[0]))]
	return ok
}

// Remember idempotently adds an approved certificate for host to the overlay
// and persists it. The overlay is updated even when persistence fails, so the
// approval holds for the rest of the process; the error is still returned for
// logging.
func (m *TrustManager) Remember(ctx context.Context, host string, cert *x509.Certificate) error {
	entry := model.TrustedCertificate{
		Host:        host,
		Fingerprint: model.Fingerprint(cert),
		Raw:         cert.Raw,
		ApprovedAt:  time.Now().UTC(),
	}

	m.mu.Lock()
	key := overlayKey(entry.Host, entry.Fingerprint)
	_, exists := m.overlay[key]
	if !exists {
		m.overlay[key] = entry
	}
	m.mu.Unlock()

	if exists || m.store == nil {
		return nil
	}
	if err := m.store.Add(ctx, entry); err != nil {
		return fmt.Errorf("persist trusted certificate for %s: %w", host, err)
	}
	return nil
}

// Approved returns a snapshot of the overlay, ordered arbitrarily.
func (m *TrustManager) Approved() []model.TrustedCertificate {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entries := make([]model.TrustedCertificate, 0, len(m.overlay))
	for _, entry := range m.overlay {
		entries = append(entries, entry)
	}
	return entries
}

func (m *TrustManager) verifyAgainstAnchors(host string, chain []*x509.Certificate) bool {
	intermediates := x509.NewCertPool()
	for _, cert := range chain[1:] {
		intermediates.AddCert(cert)
	}

	_, err := chain[0].Verify(x509.VerifyOptions{
		DNSName:       host,
		Roots:         m.roots,
		Intermediates: intermediates,
	})
	return err == nil
}

func overlayKey(host, fingerprint string) string {
	return host + "/" + fingerprint
}

package model

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"time"
)

// TrustedCertificate is a user-approved server certificate, scoped to the
// host that presented it. Equality is by host plus the SHA-256 fingerprint
// of the DER encoding.
type TrustedCertificate struct {
	ID          int64
	Host        string
	Fingerprint string
	Raw         []byte // DER-encoded certificate.
	ApprovedAt  time.Time
}

// Fingerprint returns the lowercase hex SHA-256 digest of a certificate's
// DER encoding.
func Fingerprint(cert *x509.Certificate) string {
	sum := sha256.Sum256(cert.Raw)
	return hex.EncodeToString(sum[:])
}

// TrustDecision is the resolution of a pending certificate prompt.
type TrustDecision string

const (
	TrustAccepted TrustDecision = "accepted"
	TrustRejected TrustDecision = "rejected"
)

// PendingDecision is an unresolved certificate prompt for a suspended page
// load. Exactly one may exist per load; it is destroyed when resolved or when
// the owning session ends (implicit reject).
type PendingDecision struct {
	ID          string
	LoadID      string
	Host        string
	Certificate *x509.Certificate
	RequestedAt time.Time
}

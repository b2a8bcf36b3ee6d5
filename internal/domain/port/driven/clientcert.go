package driven

import (
	"context"
	"crypto/tls"
	"errors"
)

// ErrNoClientCertificate indicates the platform credential store has no
// usable client identity for the requested host, or the user dismissed the
// chooser. Callers cancel the certificate request; they never retry.
var ErrNoClientCertificate = errors.New("no client certificate available")

// ClientCertificateSource defines the driven port for the platform's
// private-key chooser. A single request resolves to a complete identity
// (private key plus chain) or fails; any retrieval failure (access denied,
// interruption, absent keys) surfaces as an error and the TLS request is
// cancelled, never silently proceeded.
type ClientCertificateSource interface {
	ClientCertificate(ctx context.Context, host string) (*tls.Certificate, error)
}

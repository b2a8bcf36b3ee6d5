// Package webclient implements the network half of the embedded login
// surface: fetching the server's login page, intercepting the credential
// redirect, and routing TLS validation failures through the trust decision
// gate. The rendering half of the browser stays outside this module.
package webclient

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/gregjones/httpcache"

	"github.com/parlorchat/loginflow/internal/application"
	"github.com/parlorchat/loginflow/internal/domain/model"
	"github.com/parlorchat/loginflow/internal/domain/port/driven"
)

// loginFlowPath is the server's browser login entry point.
const loginFlowPath = "/index.php/login/flow"

// statusPath is the server's unauthenticated status document.
const statusPath = "/status.php"

// maxPageBytes caps how much of the login page body is read.
const maxPageBytes = 4 << 20

// ErrLoadRejected indicates the TLS handshake for a page load was aborted
// because the certificate was rejected, either automatically or by the user.
var ErrLoadRejected = errors.New("page load rejected: certificate not trusted")

// Compile-time interface satisfaction check.
var _ driven.ServerClient = (*Client)(nil)

// FlowPage is the fetched login page, after following same-origin redirects.
type FlowPage struct {
	LoadID     string
	FinalURL   string
	StatusCode int
	Body       []byte

	// Intercepted is set when a redirect matched the login grammar and was
	// consumed by the session driver instead of being followed.
	Intercepted bool
}

// Client fetches pages from one remote server on behalf of a login session.
// Every page load gets its own transport whose certificate verification is
// deferred to the session driver's trust gate, so an untrusted certificate
// suspends the connection until the user decides.
type Client struct {
	baseURL   string
	userAgent string
	trust     *application.TrustManager
	driver    *application.SessionDriver

	// statusClient carries an ETag-caching transport; the status document
	// rarely changes between polls.
	statusClient *http.Client
}

// NewClient creates a Client for the server at baseURL.
func NewClient(baseURL, userAgent string, trust *application.TrustManager, driver *application.SessionDriver) *Client {
	return &Client{
		baseURL:   baseURL,
		userAgent: userAgent,
		trust:     trust,
		driver:    driver,
		statusClient: &http.Client{
			Transport: httpcache.NewMemoryCacheTransport(),
			Timeout:   10 * time.Second,
		},
	}
}

// FetchLoginPage loads the server's login-flow page. Redirects to the app's
// login scheme are handed to the session driver as navigation attempts and
// not followed; everything else is followed normally. A TLS validation
// failure suspends the load inside the trust gate and resumes or aborts it
// with the user's decision.
func (c *Client) FetchLoginPage(ctx context.Context) (*FlowPage, error) {
	loadID := uuid.NewString()
	page := &FlowPage{LoadID: loadID}

	client := &http.Client{
		Transport: c.loadTransport(ctx, loadID),
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return errors.New("stopped after 10 redirects")
			}
			if c.driver.HandleNavigation(ctx, req.URL.String()) == application.NavigationIntercept {
				page.Intercepted = true
				return http.ErrUseLastResponse
			}
			return nil
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+loginFlowPath, nil)
	if err != nil {
		return nil, fmt.Errorf("build login page request: %w", err)
	}
	req.Header.Set("OCS-APIRequest", "true")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch login page: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("read login page: %w", err)
	}

	page.FinalURL = resp.Request.URL.String()
	page.StatusCode = resp.StatusCode
	page.Body = body

	c.driver.HandleLoadFinished(page.FinalURL)
	return page, nil
}

// Status fetches the server's status document through the caching transport.
func (c *Client) Status(ctx context.Context) (model.ServerStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+statusPath, nil)
	if err != nil {
		return model.ServerStatus{}, fmt.Errorf("build status request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.statusClient.Do(req)
	if err != nil {
		return model.ServerStatus{}, fmt.Errorf("fetch status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return model.ServerStatus{}, fmt.Errorf("fetch status: unexpected status %d", resp.StatusCode)
	}

	var status model.ServerStatus
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&status); err != nil {
		return model.ServerStatus{}, fmt.Errorf("decode status: %w", err)
	}
	return status, nil
}

// loadTransport builds the transport for one page load. Certificate chains
// are verified against the trust manager; on failure the load suspends in
// the trust gate until the decision arrives. Client certificate requests
// resolve through the driver; a missing identity sends none rather than
// failing the handshake, matching a cancelled chooser.
func (c *Client) loadTransport(ctx context.Context, loadID string) *http.Transport {
	serverHost := hostOf(c.baseURL)

	return &http.Transport{
		ForceAttemptHTTP2: true,
		TLSClientConfig: &tls.Config{
			// Verification happens below so that failures can suspend on the
			// trust gate instead of killing the handshake outright.
			InsecureSkipVerify: true,
			VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
				chain, err := parseChain(rawCerts)
				if err != nil {
					// Fail closed: no certificate to show the user.
					return fmt.Errorf("%w: %v", ErrLoadRejected, err)
				}

				if c.trust.IsTrusted(serverHost, chain) {
					return nil
				}

				decision := c.driver.HandleTLSFailure(ctx, application.TLSFailure{
					LoadID: loadID,
					Host:   serverHost,
					Leaf:   chain[0],
				})
				if decision != model.TrustAccepted {
					return ErrLoadRejected
				}
				return nil
			},
			GetClientCertificate: func(_ *tls.CertificateRequestInfo) (*tls.Certificate, error) {
				cert, err := c.driver.HandleClientCertificateRequest(ctx, c.baseURL)
				if err != nil {
					// Cancelled chooser: offer no identity.
					return &tls.Certificate{}, nil
				}
				return cert, nil
			},
		},
	}
}

// parseChain decodes the raw presented chain, leaf first.
func parseChain(rawCerts [][]byte) ([]*x509.Certificate, error) {
	if len(rawCerts) == 0 {
		return nil, errors.New("empty certificate chain")
	}

	chain := make([]*x509.Certificate, 0, len(rawCerts))
	for _, raw := range rawCerts {
		cert, err := x509.ParseCertificate(raw)
		if err != nil {
			return nil, fmt.Errorf("parse certificate: %w", err)
		}
		chain = append(chain, cert)
	}
	return chain, nil
}

func hostOf(rawURL string) string {
	if u, err := url.Parse(rawURL); err == nil {
		return u.Hostname()
	}
	return ""
}

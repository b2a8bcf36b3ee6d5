package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/parlorchat/loginflow/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// AccountResponse is the JSON representation of a stored account. The token
// is deliberately absent.
type AccountResponse struct {
	ID                   int64  `json:"id"`
	Username             string `json:"username"`
	ServerURL            string `json:"server_url"`
	Current              bool   `json:"current"`
	ScheduledForDeletion bool   `json:"scheduled_for_deletion"`
	CreatedAt            string `json:"created_at"`
	UpdatedAt            string `json:"updated_at"`
}

// PendingDecisionResponse is the JSON representation of an unresolved
// certificate prompt.
type PendingDecisionResponse struct {
	ID          string `json:"id"`
	LoadID      string `json:"load_id"`
	Host        string `json:"host"`
	Fingerprint string `json:"fingerprint"`
	Subject     string `json:"subject"`
	Issuer      string `json:"issuer"`
	NotBefore   string `json:"not_before"`
	NotAfter    string `json:"not_after"`
	RequestedAt string `json:"requested_at"`
}

// TrustedCertificateResponse is the JSON representation of an approved
// certificate overlay entry.
type TrustedCertificateResponse struct {
	Host        string `json:"host"`
	Fingerprint string `json:"fingerprint"`
	ApprovedAt  string `json:"approved_at"`
}

// ServerStatusResponse mirrors the remote server's status document.
type ServerStatusResponse struct {
	Installed     bool   `json:"installed"`
	Maintenance   bool   `json:"maintenance"`
	Version       string `json:"version"`
	VersionString string `json:"version_string"`
	ProductName   string `json:"product_name"`
	Reachable     bool   `json:"reachable"`
	FetchedAt     string `json:"fetched_at"`
}

// HealthResponse is the health endpoint body.
type HealthResponse struct {
	Status           string                `json:"status"`
	Accounts         int                   `json:"accounts"`
	PendingDecisions int                   `json:"pending_decisions"`
	Server           *ServerStatusResponse `json:"server,omitempty"`
	ServerError      string                `json:"server_error,omitempty"`
}

func toAccountResponse(account model.Account) AccountResponse {
	return AccountResponse{
		ID:                   account.ID,
		Username:             account.Username,
		ServerURL:            account.ServerURL,
		Current:              account.Current,
		ScheduledForDeletion: account.ScheduledForDeletion,
		CreatedAt:            account.CreatedAt.Format(time.RFC3339),
		UpdatedAt:            account.UpdatedAt.Format(time.RFC3339),
	}
}

func toPendingDecisionResponse(p model.PendingDecision) PendingDecisionResponse {
	resp := PendingDecisionResponse{
		ID:          p.ID,
		LoadID:      p.LoadID,
		Host:        p.Host,
		RequestedAt: p.RequestedAt.Format(time.RFC3339),
	}
	if p.Certificate != nil {
		resp.Fingerprint = model.Fingerprint(p.Certificate)
		resp.Subject = p.Certificate.Subject.String()
		resp.Issuer = p.Certificate.Issuer.String()
		resp.NotBefore = p.Certificate.NotBefore.Format(time.RFC3339)
		resp.NotAfter = p.Certificate.NotAfter.Format(time.RFC3339)
	}
	return resp
}

func toTrustedCertificateResponse(cert model.TrustedCertificate) TrustedCertificateResponse {
	return TrustedCertificateResponse{
		Host:        cert.Host,
		Fingerprint: cert.Fingerprint,
		ApprovedAt:  cert.ApprovedAt.Format(time.RFC3339),
	}
}

func toServerStatusResponse(status model.ServerStatus) *ServerStatusResponse {
	return &ServerStatusResponse{
		Installed:     status.Installed,
		Maintenance:   status.Maintenance,
		Version:       status.Version,
		VersionString: status.VersionString,
		ProductName:   status.ProductName,
		Reachable:     status.Reachable(),
		FetchedAt:     status.FetchedAt.Format(time.RFC3339),
	}
}

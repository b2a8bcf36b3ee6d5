// Package httphandler is the HTTP driving adapter: the out-of-process stand-in
// for the login flow's decision UI. It lists pending certificate prompts,
// applies accept/reject decisions, and exposes accounts and health for
// observation.
package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/parlorchat/loginflow/internal/application"
	"github.com/parlorchat/loginflow/internal/domain/model"
	"github.com/parlorchat/loginflow/internal/domain/port/driven"
)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	accounts  driven.AccountStore
	gate      *application.DecisionGate
	trust     *application.TrustManager
	statusSvc *application.StatusService

	// startFlow launches a login-page fetch. It runs detached from the
	// request context because a fetch may suspend on a trust prompt far
	// longer than the triggering HTTP request lives.
	startFlow func(ctx context.Context) error
	flowCtx   context.Context

	logger *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. flowCtx bounds
// background login fetches; it is the process's run context, not a request's.
func NewHandler(
	accounts driven.AccountStore,
	gate *application.DecisionGate,
	trust *application.TrustManager,
	statusSvc *application.StatusService,
	startFlow func(ctx context.Context) error,
	flowCtx context.Context,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		accounts:  accounts,
		gate:      gate,
		trust:     trust,
		statusSvc: statusSvc,
		startFlow: startFlow,
		flowCtx:   flowCtx,
		logger:    logger,
	}
}

// NewServeMux creates an http.Handler with all routes registered and wrapped
// with logging and recovery middleware.
func NewServeMux(h *Handler, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/accounts", h.ListAccounts)
	mux.HandleFunc("GET /api/v1/trust/pending", h.ListPendingDecisions)
	mux.HandleFunc("POST /api/v1/trust/pending/{id}", h.ResolveDecision)
	mux.HandleFunc("GET /api/v1/trust/certificates", h.ListTrustedCertificates)
	mux.HandleFunc("POST /api/v1/flow", h.StartFlow)
	mux.HandleFunc("GET /api/v1/health", h.Health)

	// Recovery innermost so panics are caught before logging.
	wrapped := recoveryMiddleware(logger, mux)
	wrapped = loggingMiddleware(logger, wrapped)

	return wrapped
}

// ListAccounts returns all stored accounts. Tokens never leave the store
// boundary in API responses.
func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.List(r.Context())
	if err != nil {
		h.logger.Error("failed to list accounts", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]AccountResponse, 0, len(accounts))
	for _, account := range accounts {
		resp = append(resp, toAccountResponse(account))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ListPendingDecisions returns unresolved certificate prompts, oldest first.
func (h *Handler) ListPendingDecisions(w http.ResponseWriter, _ *http.Request) {
	pending := h.gate.Pending()

	resp := make([]PendingDecisionResponse, 0, len(pending))
	for _, p := range pending {
		resp = append(resp, toPendingDecisionResponse(p))
	}

	writeJSON(w, http.StatusOK, resp)
}

// ResolveDecision applies an accept or reject to a pending prompt.
func (h *Handler) ResolveDecision(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var body struct {
		Decision string `json:"decision"`
	}
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<10)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var decision model.TrustDecision
	switch body.Decision {
	case "accept":
		decision = model.TrustAccepted
	case "reject":
		decision = model.TrustRejected
	default:
		writeError(w, http.StatusBadRequest, `decision must be "accept" or "reject"`)
		return
	}

	if !h.gate.Resolve(id, decision) {
		writeError(w, http.StatusNotFound, "no pending decision with that id")
		return
	}

	h.logger.Info("trust decision resolved", "decision_id", id, "decision", decision)
	writeJSON(w, http.StatusAccepted, map[string]string{"decision": string(decision)})
}

// ListTrustedCertificates returns the approved-certificate overlay.
func (h *Handler) ListTrustedCertificates(w http.ResponseWriter, _ *http.Request) {
	approved := h.trust.Approved()

	resp := make([]TrustedCertificateResponse, 0, len(approved))
	for _, cert := range approved {
		resp = append(resp, toTrustedCertificateResponse(cert))
	}

	writeJSON(w, http.StatusOK, resp)
}

// StartFlow launches a background login-page fetch. The fetch may outlive the
// request while a certificate prompt is pending, so it runs on the process
// context and the endpoint returns immediately.
func (h *Handler) StartFlow(w http.ResponseWriter, _ *http.Request) {
	go func() {
		if err := h.startFlow(h.flowCtx); err != nil && !errors.Is(err, context.Canceled) {
			h.logger.Error("login flow fetch failed", "error", err)
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

// Health reports store reachability and the last known server status.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.List(r.Context())
	if err != nil {
		h.logger.Error("health check failed", "error", err)
		writeError(w, http.StatusServiceUnavailable, "account store unavailable")
		return
	}

	resp := HealthResponse{
		Status:           "ok",
		Accounts:         len(accounts),
		PendingDecisions: len(h.gate.Pending()),
	}

	if status, statusErr := h.statusSvc.Last(); status != nil {
		resp.Server = toServerStatusResponse(*status)
	} else if statusErr != nil {
		resp.ServerError = statusErr.Error()
	}

	writeJSON(w, http.StatusOK, resp)
}

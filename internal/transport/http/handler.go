package httptransport

//go:generate mockgen -source=handler.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"warden/internal/platform/middleware"
	punishmentmodels "warden/internal/punishment/models"
	"warden/internal/punishment/service"
	"warden/internal/verification"
	dErrors "warden/pkg/domain-errors"
	"warden/pkg/platform/httputil"
)

// Verifier runs the verification pipeline.
type Verifier interface {
	Verify(ctx context.Context, conn verification.Connection) verification.Result
	Processors() []verification.ProcessorInfo
}

// AddressChecker reports whether an address is in the screened set.
type AddressChecker interface {
	Check(addr netip.Addr) (string, bool)
}

// PunishmentService issues and pardons punishments.
type PunishmentService interface {
	Issue(ctx context.Context, req service.IssueRequest) (*punishmentmodels.Punishment, error)
	Pardon(ctx context.Context, id uuid.UUID, reason string) (*punishmentmodels.Punishment, error)
}

const healthCheckTimeout = 2 * time.Second

// Handler is the thin HTTP layer over the pipeline and its collaborators.
type Handler struct {
	logger      *slog.Logger
	verifier    Verifier
	addresses   AddressChecker
	punishments PunishmentService
	checks      []healthCheck
}

type healthCheck struct {
	name  string
	check func(context.Context) error
}

func NewHandler(verifier Verifier, addresses AddressChecker, punishments PunishmentService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		logger:      logger,
		verifier:    verifier,
		addresses:   addresses,
		punishments: punishments,
	}
}

func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeJSON[VerifyRequest](r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid verification request",
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	conn, err := req.toConnection()
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	result := h.verifier.Verify(ctx, conn)
	httputil.WriteJSON(w, http.StatusOK, toVerifyResponse(result))
}

func (r *VerifyRequest) toConnection() (verification.Connection, error) {
	if strings.TrimSpace(r.UUID) == "" {
		return verification.Connection{}, dErrors.New(dErrors.CodeValidation, "uuid is required")
	}
	addr, err := netip.ParseAddr(strings.TrimSpace(r.Address))
	if err != nil {
		return verification.Connection{}, dErrors.New(dErrors.CodeValidation, "address is not valid")
	}
	return verification.Connection{
		Name:    r.Name,
		UUID:    r.UUID,
		USID:    r.USID,
		Address: addr.Unmap(),
	}, nil
}

func (h *Handler) handleAddress(w http.ResponseWriter, r *http.Request) {
	raw := chi.URLParam(r, "address")
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "address is not valid"))
		return
	}
	source, listed := h.addresses.Check(addr)
	httputil.WriteJSON(w, http.StatusOK, AddressResponse{
		Address: addr.Unmap().String(),
		Listed:  listed,
		Source:  source,
	})
}

func (h *Handler) handleProcessors(w http.ResponseWriter, _ *http.Request) {
	infos := h.verifier.Processors()
	resp := make([]ProcessorResponse, 0, len(infos))
	for _, info := range infos {
		resp = append(resp, ProcessorResponse{
			ID:       info.ID,
			Priority: info.Priority.String(),
			FailOpen: info.FailOpen,
		})
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleIssuePunishment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req, err := httputil.DecodeJSON[IssuePunishmentRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.punishments.Issue(ctx, service.IssueRequest{
		Address:  req.Address,
		UUID:     req.UUID,
		Reason:   req.Reason,
		Type:     req.Type,
		Duration: req.Duration,
	})
	if err != nil {
		h.writeServiceError(ctx, w, "failed to issue punishment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, toPunishmentResponse(p))
}

func (h *Handler) handlePardon(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "punishment id is not valid"))
		return
	}
	req, err := httputil.DecodeJSON[PardonRequest](r)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	p, err := h.punishments.Pardon(ctx, id, req.Reason)
	if err != nil {
		h.writeServiceError(ctx, w, "failed to pardon punishment", err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toPunishmentResponse(p))
}

func (h *Handler) writeServiceError(ctx context.Context, w http.ResponseWriter, msg string, err error) {
	if dErrors.CodeOf(err) == dErrors.CodeInternal {
		h.logger.ErrorContext(ctx, msg,
			"request_id", middleware.GetRequestID(ctx),
			"error", err,
		)
	}
	httputil.WriteError(w, err)
}

// AddHealthCheck registers a dependency probed by /healthz. Call before serving.
func (h *Handler) AddHealthCheck(name string, check func(context.Context) error) {
	h.checks = append(h.checks, healthCheck{name: name, check: check})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := HealthResponse{Status: "ok"}
	status := http.StatusOK
	for _, c := range h.checks {
		if err := c.check(ctx); err != nil {
			h.logger.WarnContext(ctx, "health check failed", "dependency", c.name, "error", err)
			if resp.Failing == nil {
				resp.Failing = map[string]string{}
			}
			resp.Failing[c.name] = "unreachable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
		}
	}
	httputil.WriteJSON(w, status, resp)
}

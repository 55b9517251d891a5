package suppress

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/kazna-mp/kazna-mp/internal/catalog"
	"github.com/kazna-mp/kazna-mp/internal/flags"
	"github.com/kazna-mp/kazna-mp/internal/platform/httpx"
)

// Handler wires HTTP endpoints for the suppression ledger.
type Handler struct {
	logger    *slog.Logger
	ledger    *Ledger
	validator *validator.Validate
}

// NewHandler constructs suppress handler.
func NewHandler(logger *slog.Logger, ledger *Ledger) *Handler {
	return &Handler{logger: logger, ledger: ledger, validator: validator.New()}
}

// MountRoutes registers suppression routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/suppress/{axis}/{key}", h.handleDisable)
	r.Post("/restore/{axis}/{key}", h.handleEnable)
}

type toggleParams struct {
	Axis string `validate:"required,oneof=marketplace supplier"`
	Key  string `validate:"required,min=1,max=64"`
}

func (h *Handler) handleDisable(w http.ResponseWriter, r *http.Request) {
	h.handleToggle(w, r, h.ledger.Disable)
}

func (h *Handler) handleEnable(w http.ResponseWriter, r *http.Request) {
	h.handleToggle(w, r, h.ledger.Enable)
}

func (h *Handler) handleToggle(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, axis flags.Axis, key string) (ToggleResult, error)) {
	params := toggleParams{Axis: chi.URLParam(r, "axis"), Key: chi.URLParam(r, "key")}
	if err := h.validator.Struct(params); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	axis, err := flags.ParseAxis(params.Axis)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	result, err := op(r.Context(), axis, params.Key)
	if err != nil {
		if errors.Is(err, catalog.ErrUnknownMarketplace) || errors.Is(err, catalog.ErrUnknownSupplier) {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		if errors.Is(err, ErrSnapshotExists) {
			httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
			return
		}
		h.logger.Error("toggle failed",
			slog.String("axis", params.Axis),
			slog.String("key", params.Key),
			slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

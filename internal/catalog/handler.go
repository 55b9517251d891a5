package catalog

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"github.com/kazna-mp/kazna-mp/internal/platform/httpx"
)

// ReconcilerPort triggers passes from the HTTP surface.
type ReconcilerPort interface {
	ReconcileMarketplace(ctx context.Context, m Marketplace) (Summary, error)
	ReconcileAll(ctx context.Context) ([]Summary, error)
}

// ListerPort reads listings for the read-only endpoints.
type ListerPort interface {
	ListListings(ctx context.Context, m Marketplace) ([]Listing, error)
}

// StatusPort reads the latest pass summary per marketplace.
type StatusPort interface {
	Last(ctx context.Context, m Marketplace) (Summary, error)
}

// Handler wires HTTP endpoints for the catalog module.
type Handler struct {
	logger     *slog.Logger
	reconciler ReconcilerPort
	lister     ListerPort
	status     StatusPort
}

// NewHandler constructs catalog handler.
func NewHandler(logger *slog.Logger, reconciler ReconcilerPort, lister ListerPort, status StatusPort) *Handler {
	return &Handler{logger: logger, reconciler: reconciler, lister: lister, status: status}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/reconcile", h.handleReconcileAll)
	r.Post("/reconcile/{marketplace}", h.handleReconcile)
	r.Get("/status", h.handleStatus)
	r.Get("/{marketplace}/listings", h.handleListings)
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	m, err := ParseMarketplace(chi.URLParam(r, "marketplace"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	summary, err := h.reconciler.ReconcileMarketplace(r.Context(), m)
	if err != nil {
		h.logger.Error("reconcile failed", slog.String("marketplace", string(m)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, summary)
}

func (h *Handler) handleReconcileAll(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.reconciler.ReconcileAll(r.Context())
	if err != nil {
		h.logger.Error("reconcile all failed", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Marketplace < summaries[j].Marketplace })
	httpx.JSON(w, http.StatusOK, summaries)
}

func (h *Handler) handleStatus(w http.ResponseWriter, r *http.Request) {
	statuses := map[string]any{}
	for _, m := range Marketplaces() {
		summary, err := h.status.Last(r.Context(), m)
		if errors.Is(err, ErrSummaryNotFound) {
			statuses[string(m)] = nil
			continue
		}
		if err != nil {
			h.logger.Error("read reconcile status", slog.String("marketplace", string(m)), slog.Any("error", err))
			httpx.RespondError(w, err)
			return
		}
		statuses[string(m)] = summary
	}
	httpx.JSON(w, http.StatusOK, statuses)
}

func (h *Handler) handleListings(w http.ResponseWriter, r *http.Request) {
	m, err := ParseMarketplace(chi.URLParam(r, "marketplace"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	listings, err := h.lister.ListListings(r.Context(), m)
	if err != nil {
		h.logger.Error("list listings", slog.String("marketplace", string(m)), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	SortByModel(listings)
	httpx.JSON(w, http.StatusOK, listings)
}

// SortByModel orders listings by model name using Russian collation so
// Cyrillic names sort the way operators expect.
func SortByModel(listings []Listing) {
	cl := collate.New(language.Russian, collate.IgnoreCase)
	sort.SliceStable(listings, func(i, j int) bool {
		return cl.CompareString(listings[i].Model, listings[j].Model) < 0
	})
}

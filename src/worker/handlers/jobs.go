package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"reminder/src/utils"
)

// TriggerMonthlyBackfill runs the scheduled backfill pass on demand,
// typically after a deploy or an incident left templates lagging.
func (h *Handler) TriggerMonthlyBackfill(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	if err := h.Backfill.RunMonthly(ctx); err != nil {
		h.HandleErrors(w, err)
		return
	}

	h.respond(w, r, nil, 200)
}

// TriggerBackfillForMonth makes sure every template is generated through the
// month in the URL.
func (h *Handler) TriggerBackfillForMonth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	year, err := strconv.Atoi(chi.URLParam(r, "year"))
	if err != nil {
		h.HandleErrors(w, utils.NewHTTPError(http.StatusBadRequest, "year must be a number"))
		return
	}
	month, err := strconv.Atoi(chi.URLParam(r, "month"))
	if err != nil || month < 1 || month > 12 {
		h.HandleErrors(w, utils.NewHTTPError(http.StatusBadRequest, "month must be a number between 1 and 12"))
		return
	}

	if err := h.Backfill.EnsureGenerated(ctx, year, time.Month(month)); err != nil {
		h.HandleErrors(w, err)
		return
	}

	h.respond(w, r, nil, 200)
}

// TriggerCleanup trims execution history to the retention window on demand.
func (h *Handler) TriggerCleanup(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 60*time.Second)
	defer cancel()

	if err := h.Cleanup.Run(ctx); err != nil {
		h.HandleErrors(w, err)
		return
	}

	h.respond(w, r, nil, 200)
}

package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Adam01140114/WaterData/internal/export"
	"github.com/Adam01140114/WaterData/internal/metrics"
	"github.com/Adam01140114/WaterData/internal/notify"
	"github.com/Adam01140114/WaterData/internal/repository"
	"github.com/Adam01140114/WaterData/internal/store"
	"github.com/Adam01140114/WaterData/internal/view"
)

// StorageMode reports which backend is currently primary.
type StorageMode interface {
	Mode() string
}

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	Repo      *repository.Repository
	Notices   *notify.Hub
	Storage   StorageMode
	Sites     []string
	Logger    *slog.Logger
	StartTime time.Time
	Version   string
	Now       func() time.Time
}

// apiError is a JSON error response.
type apiError struct {
	Error  string `json:"error"`
	Code   int    `json:"code"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, apiError{Error: msg, Code: status})
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handlers) logger() *slog.Logger {
	if h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *Handlers) notice(kind, msg string) {
	if h.Notices != nil {
		h.Notices.Publish(kind, msg)
	}
}

func formatUptime(d time.Duration) string {
	days := int(d.Hours()) / 24
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm", days, hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

// draftJSON is the wire form of a reading being entered or edited.
type draftJSON struct {
	Site       string   `json:"site"`
	WaterLevel *float64 `json:"waterLevel"`
	Timestamp  string   `json:"timestamp"`
	Notes      *string  `json:"notes,omitempty"`
}

func (h *Handlers) toDraftJSON(d store.Draft) draftJSON {
	return draftJSON{
		Site:       d.Site,
		WaterLevel: d.WaterLevel,
		Timestamp:  export.FormatTimestamp(d.Timestamp, h.Repo.Location()),
		Notes:      d.Notes,
	}
}

// ListReadings handles GET /api/v1/readings
func (h *Handlers) ListReadings(w http.ResponseWriter, r *http.Request) {
	rows := view.Rows(h.Repo.Readings(), h.Repo.Location())
	writeJSON(w, http.StatusOK, map[string]any{
		"readings": rows,
		"count":    len(rows),
	})
}

// SubmitReading handles POST /api/v1/readings
//
// Without an overwrite parameter a same-month collision is answered with 409
// and the prompt; the client repeats the request with overwrite=true or
// overwrite=false to settle it.
func (h *Handlers) SubmitReading(w http.ResponseWriter, r *http.Request) {
	var in draftJSON
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&in); err != nil {
		writeJSON(w, http.StatusBadRequest, apiError{Error: "invalid request body", Code: http.StatusBadRequest, Detail: err.Error()})
		return
	}

	d := store.Draft{Site: in.Site, WaterLevel: in.WaterLevel, Notes: in.Notes}
	if strings.TrimSpace(in.Timestamp) != "" {
		ts, err := store.ParseTimestamp(strings.TrimSpace(in.Timestamp), h.Repo.Location())
		if err != nil {
			writeJSON(w, http.StatusBadRequest, apiError{Error: notify.MsgRequired, Code: http.StatusBadRequest, Detail: err.Error()})
			h.notice(notify.KindError, notify.MsgRequired)
			return
		}
		d.Timestamp = ts
	}

	overwrite := r.URL.Query().Get("overwrite")
	var confirm repository.Confirmer
	switch overwrite {
	case "":
		// Probe only: the collision is reported below rather than cancelled.
		confirm = repository.NeverOverwrite
	case "true", "1", "yes":
		confirm = repository.AlwaysOverwrite
	case "false", "0", "no":
		confirm = repository.NeverOverwrite
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid overwrite value %q", overwrite))
		return
	}

	res, err := h.Repo.Submit(r.Context(), d, confirm)
	var ve *repository.ValidationError
	var se *repository.StorageError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, apiError{Error: notify.MsgRequired, Code: http.StatusBadRequest, Detail: ve.Error()})
		h.notice(notify.KindError, notify.MsgRequired)
		return
	case errors.As(err, &se):
		h.logger().Error("saving reading", "error", err)
		writeError(w, http.StatusServiceUnavailable, notify.MsgSaveFailed)
		h.notice(notify.KindError, notify.MsgSaveFailed)
		return
	case err != nil:
		h.logger().Error("saving reading", "error", err)
		writeError(w, http.StatusInternalServerError, notify.MsgSaveFailed)
		return
	}

	switch res.Outcome {
	case repository.Added:
		h.notice(notify.KindSuccess, notify.MsgLogged)
		writeJSON(w, http.StatusCreated, map[string]any{"outcome": res.Outcome.String(), "reading": res.Reading, "message": notify.MsgLogged})
	case repository.Replaced:
		h.notice(notify.KindSuccess, notify.MsgUpdated)
		writeJSON(w, http.StatusOK, map[string]any{"outcome": res.Outcome.String(), "reading": res.Reading, "previous": res.Previous, "message": notify.MsgUpdated})
	case repository.Cancelled:
		if overwrite == "" {
			writeJSON(w, http.StatusConflict, map[string]any{
				"error":    repository.OverwritePrompt(*res.Previous, d, h.Repo.Location()),
				"code":     http.StatusConflict,
				"existing": res.Previous,
			})
			return
		}
		h.notice(notify.KindError, notify.MsgCancelled)
		writeJSON(w, http.StatusOK, map[string]any{"outcome": res.Outcome.String(), "existing": res.Previous, "message": notify.MsgCancelled})
	default:
		writeError(w, http.StatusInternalServerError, "unexpected outcome "+res.Outcome.String())
	}
}

// DeleteReading handles DELETE /api/v1/readings/{id}
func (h *Handlers) DeleteReading(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		writeError(w, http.StatusPreconditionRequired, notify.MsgConfirmDelete)
		return
	}

	outcome, err := h.Repo.Remove(r.Context(), r.PathValue("id"))
	if err != nil {
		h.logger().Error("deleting reading", "id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusServiceUnavailable, notify.MsgDeleteFailed)
		h.notice(notify.KindError, notify.MsgDeleteFailed)
		return
	}
	if outcome == repository.NotFound {
		writeError(w, http.StatusNotFound, "reading not found")
		return
	}

	h.notice(notify.KindSuccess, notify.MsgDeleted)
	writeJSON(w, http.StatusOK, map[string]any{"outcome": outcome.String(), "message": notify.MsgDeleted})
}

// EditReading handles POST /api/v1/readings/{id}/edit
//
// The reading is removed and its fields are returned for re-entry.
func (h *Handlers) EditReading(w http.ResponseWriter, r *http.Request) {
	d, err := h.Repo.BeginEdit(r.Context(), r.PathValue("id"))
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "reading not found")
		return
	}
	if err != nil {
		h.logger().Error("editing reading", "id", r.PathValue("id"), "error", err)
		writeError(w, http.StatusServiceUnavailable, notify.MsgSaveFailed)
		h.notice(notify.KindError, notify.MsgSaveFailed)
		return
	}

	h.notice(notify.KindSuccess, notify.MsgEditing)
	writeJSON(w, http.StatusOK, map[string]any{"draft": h.toDraftJSON(d), "message": notify.MsgEditing})
}

// ClearReadings handles DELETE /api/v1/readings
func (h *Handlers) ClearReadings(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("confirm") != "true" {
		writeError(w, http.StatusPreconditionRequired, notify.MsgConfirmClear)
		return
	}

	if err := h.Repo.ClearAll(r.Context()); err != nil {
		h.logger().Error("clearing readings", "error", err)
		writeError(w, http.StatusServiceUnavailable, notify.MsgClearFailed)
		h.notice(notify.KindError, notify.MsgClearFailed)
		return
	}

	h.notice(notify.KindSuccess, notify.MsgCleared)
	writeJSON(w, http.StatusOK, map[string]any{"message": notify.MsgCleared})
}

// GetChart handles GET /api/v1/chart
func (h *Handlers) GetChart(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	days, err := view.ParseRange(q.Get("range"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	site := q.Get("site")
	if site == "" {
		site = view.AllSites
	}

	chart := view.BuildChart(h.Repo.Readings(), view.ChartQuery{Site: site, RangeDays: days}, h.now(), h.Repo.Location())
	writeJSON(w, http.StatusOK, struct {
		view.Chart
		Empty bool   `json:"empty"`
		Site  string `json:"site"`
		Range string `json:"range"`
	}{
		Chart: chart,
		Empty: chart.Empty(),
		Site:  site,
		Range: rangeLabel(days),
	})
}

func rangeLabel(days int) string {
	if days == view.AllTime {
		return "all"
	}
	return fmt.Sprint(days)
}

// ListSites handles GET /api/v1/sites
func (h *Handlers) ListSites(w http.ResponseWriter, r *http.Request) {
	sites := h.Sites
	if sites == nil {
		sites = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sites": sites})
}

// ExportCSV handles GET /api/v1/export.csv
func (h *Handlers) ExportCSV(w http.ResponseWriter, r *http.Request) {
	h.serveExport(w, "csv", "text/csv; charset=utf-8", func(buf *bytes.Buffer, readings []store.Reading) error {
		return export.WriteCSV(buf, readings, h.Repo.Location())
	})
}

// ExportXLSX handles GET /api/v1/export.xlsx
func (h *Handlers) ExportXLSX(w http.ResponseWriter, r *http.Request) {
	h.serveExport(w, "xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", func(buf *bytes.Buffer, readings []store.Reading) error {
		return export.WriteXLSX(buf, readings, h.Repo.Location())
	})
}

func (h *Handlers) serveExport(w http.ResponseWriter, ext, contentType string, render func(*bytes.Buffer, []store.Reading) error) {
	readings := h.Repo.Readings()
	if len(readings) == 0 {
		writeError(w, http.StatusNotFound, notify.MsgNoExportData)
		h.notice(notify.KindError, notify.MsgNoExportData)
		return
	}

	var buf bytes.Buffer
	if err := render(&buf, readings); err != nil {
		h.logger().Error("rendering export", "format", ext, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to render export")
		return
	}

	metrics.Exports.WithLabelValues(ext, "api").Inc()
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename(h.now(), ext)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger().Warn("writing export", "error", err)
	}
}

// Health handles GET /api/v1/health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	type storageHealth struct {
		Mode     string `json:"mode"`
		Readings int    `json:"readings"`
	}
	type healthResponse struct {
		Status      string        `json:"status"`
		Version     string        `json:"version"`
		Uptime      string        `json:"uptime"`
		Storage     storageHealth `json:"storage"`
		Subscribers int           `json:"subscribers"`
	}

	resp := healthResponse{
		Status:  "healthy",
		Version: h.Version,
		Uptime:  formatUptime(time.Since(h.StartTime)),
		Storage: storageHealth{Mode: "local", Readings: h.Repo.Len()},
	}
	if h.Storage != nil {
		resp.Storage.Mode = h.Storage.Mode()
	}
	if h.Notices != nil {
		resp.Subscribers = h.Notices.Subscribers()
	}

	writeJSON(w, http.StatusOK, resp)
}

// Package httpapi exposes the planning engine, the collection source proxy and
// plan exports over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"mvpplanner/internal/adapters/exports"
	"mvpplanner/internal/blob"
	"mvpplanner/internal/core"
	"mvpplanner/internal/source"
	"mvpplanner/pkg/domain"
)

const (
	sheetsPrefix     = "/api/sheets/"
	apiPrefix        = "/api/v1"
	sheetCacheHeader = "s-maxage=60, stale-while-revalidate"
	actorHeader      = "X-Planner-Actor"
	reportBase       = "mvp-strategic-plan"
)

// RefreshFunc reloads the engine from the source and reports what the load did.
type RefreshFunc func(ctx context.Context) (core.LoadResult, error)

// Handler serves the planner API.
type Handler struct {
	Engine    *core.Engine
	Source    source.Provider
	Refresh   RefreshFunc
	Exports   exports.Scheduler
	Artifacts blob.Store
	Logger    *zap.Logger
	Now       func() time.Time
}

func (h Handler) logger() *zap.Logger {
	if h.Logger == nil {
		return zap.NewNop()
	}
	return h.Logger
}

func (h Handler) now() time.Time {
	if h.Now == nil {
		return time.Now()
	}
	return h.Now()
}

// ServeHTTP routes requests by path.
func (h Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if actor := strings.TrimSpace(r.Header.Get(actorHeader)); actor != "" {
		r = r.WithContext(core.WithActor(r.Context(), actor))
	}
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case strings.HasPrefix(path, sheetsPrefix):
		h.handleSheet(w, r, strings.TrimPrefix(path, sheetsPrefix))
	case strings.HasPrefix(path, apiPrefix+"/"):
		h.handleAPI(w, r, strings.TrimPrefix(path, apiPrefix))
	default:
		http.NotFound(w, r)
	}
}

func (h Handler) handleAPI(w http.ResponseWriter, r *http.Request, path string) {
	if h.Engine == nil {
		writeError(w, http.StatusServiceUnavailable, "planner not loaded")
		return
	}
	switch {
	case path == "/clinicians/unassigned":
		if !allow(w, r, http.MethodGet) {
			return
		}
		q := r.URL.Query()
		writeJSON(w, http.StatusOK, map[string]any{
			"clinicians": h.Engine.FilterUnassigned(q.Get("specialty"), q.Get("q")),
		})
	case path == "/specialties":
		if !allow(w, r, http.MethodGet) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"specialties": h.Engine.Specialties()})
	case path == "/groupings":
		if !allow(w, r, http.MethodGet) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"groupings": h.Engine.GroupingSummaries()})
	case strings.HasPrefix(path, "/groupings/"):
		h.handleGrouping(w, r, strings.TrimPrefix(path, "/groupings/"))
	case path == "/stats":
		if !allow(w, r, http.MethodGet) {
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"stats":     h.Engine.Stats(),
			"dirty":     h.Engine.Dirty(),
			"loaded_at": h.Engine.LoadedAt(),
		})
	case path == "/report":
		if !allow(w, r, http.MethodGet) {
			return
		}
		h.handleReport(w)
	case path == "/refresh":
		if !allow(w, r, http.MethodPost) {
			return
		}
		h.handleRefresh(w, r)
	case path == "/exports":
		if !allow(w, r, http.MethodPost) {
			return
		}
		h.handleCreateExport(w, r)
	case strings.HasPrefix(path, "/exports/"):
		if !allow(w, r, http.MethodGet) {
			return
		}
		h.handleGetExport(w, strings.TrimPrefix(path, "/exports/"))
	case strings.HasPrefix(path, "/artifacts/"):
		if !allow(w, r, http.MethodGet) {
			return
		}
		h.handleArtifact(w, r, strings.TrimPrefix(path, "/artifacts/"))
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h Handler) handleSheet(w http.ResponseWriter, r *http.Request, raw string) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	name, err := domain.ParseCollectionName(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sheet name")
		return
	}
	if h.Source == nil {
		writeError(w, http.StatusServiceUnavailable, "source not configured")
		return
	}
	records, err := h.Source.Fetch(r.Context(), name)
	if errors.Is(err, source.ErrNotFound) {
		records, err = []domain.Record{}, nil
	}
	if err != nil {
		h.logger().Error("sheet fetch failed", zap.String("collection", string(name)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "Failed to fetch sheet data")
		return
	}
	if records == nil {
		records = []domain.Record{}
	}
	w.Header().Set("Cache-Control", sheetCacheHeader)
	writeJSON(w, http.StatusOK, records)
}

func (h Handler) handleGrouping(w http.ResponseWriter, r *http.Request, rest string) {
	parts := strings.Split(rest, "/")
	id := parts[0]
	switch {
	case len(parts) == 1:
		if !allow(w, r, http.MethodGet) {
			return
		}
		detail, err := h.Engine.Detail(id)
		if err != nil {
			h.writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"grouping": detail})
	case len(parts) == 2 && parts[1] == "assignments":
		if !allow(w, r, http.MethodPost) {
			return
		}
		var req struct {
			ClinicianIDs []string `json:"clinician_ids"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		res, err := h.Engine.Assign(r.Context(), id, req.ClinicianIDs)
		if err != nil {
			h.writeEngineError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"added":              len(res.Added),
			"already_member":     res.AlreadyMember,
			"assigned_elsewhere": res.AssignedElsewhere,
		})
	case len(parts) == 4 && parts[1] == "measures" && parts[3] == "toggle":
		if !allow(w, r, http.MethodPost) {
			return
		}
		outcome, err := h.Engine.ToggleMeasure(r.Context(), id, parts[2])
		if err != nil {
			h.writeEngineError(w, err)
			return
		}
		selected := h.Engine.SelectedOf(id)
		if selected == nil {
			selected = []string{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"outcome": outcome, "selected": selected})
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (h Handler) handleReport(w http.ResponseWriter) {
	report := h.Engine.BuildReport()
	filename := reportBase + "-" + strconv.FormatInt(h.now().UnixMilli(), 10) + ".txt"
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, report)
}

func (h Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("collection"); raw != "" {
		h.handleRefreshCollection(w, r, raw)
		return
	}
	if h.Refresh == nil {
		writeError(w, http.StatusServiceUnavailable, "refresh not configured")
		return
	}
	res, err := h.Refresh(r.Context())
	if err != nil {
		h.logger().Error("refresh failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handleRefreshCollection reloads one collection from the source.
func (h Handler) handleRefreshCollection(w http.ResponseWriter, r *http.Request, raw string) {
	name, err := domain.ParseCollectionName(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.Source == nil || h.Engine == nil {
		writeError(w, http.StatusServiceUnavailable, "refresh not configured")
		return
	}
	records, err := h.Source.Fetch(r.Context(), name)
	if errors.Is(err, source.ErrNotFound) {
		records, err = []domain.Record{}, nil
	}
	if err != nil {
		h.logger().Error("collection refresh failed", zap.String("collection", string(name)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	res, err := h.Engine.LoadCollection(r.Context(), name, records)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h Handler) handleCreateExport(w http.ResponseWriter, r *http.Request) {
	if h.Exports == nil {
		writeError(w, http.StatusServiceUnavailable, "exports not configured")
		return
	}
	var req struct {
		Formats     []string `json:"formats"`
		RequestedBy string   `json:"requested_by"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	formats := make([]exports.Format, 0, len(req.Formats))
	for _, raw := range req.Formats {
		f, err := exports.ParseFormat(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		formats = append(formats, f)
	}
	record, err := h.Exports.EnqueueExport(r.Context(), exports.ExportInput{
		Formats:     formats,
		RequestedBy: req.RequestedBy,
	})
	switch {
	case errors.Is(err, exports.ErrQueueFull):
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"export": record})
}

func (h Handler) handleGetExport(w http.ResponseWriter, id string) {
	if h.Exports == nil {
		writeError(w, http.StatusServiceUnavailable, "exports not configured")
		return
	}
	record, ok := h.Exports.GetExport(id)
	if !ok {
		writeError(w, http.StatusNotFound, "export not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"export": record})
}

func (h Handler) handleArtifact(w http.ResponseWriter, r *http.Request, key string) {
	if h.Artifacts == nil {
		writeError(w, http.StatusServiceUnavailable, "artifacts not configured")
		return
	}
	info, body, err := h.Artifacts.Get(r.Context(), key)
	if errors.Is(err, blob.ErrNotFound) {
		writeError(w, http.StatusNotFound, "artifact not found")
		return
	}
	if errors.Is(err, blob.ErrInvalidKey) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.logger().Error("artifact read failed", zap.String("key", key), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "artifact unavailable")
		return
	}
	defer func() { _ = body.Close() }()
	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	w.Header().Set("Content-Disposition", `attachment; filename="`+key[strings.LastIndex(key, "/")+1:]+`"`)
	if info.ETag != "" {
		w.Header().Set("ETag", `"`+info.ETag+`"`)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		h.logger().Warn("artifact stream interrupted", zap.String("key", key), zap.Error(err))
	}
}

func (h Handler) writeEngineError(w http.ResponseWriter, err error) {
	if core.IsInvalidTarget(err) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	h.logger().Error("planner operation failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, err.Error())
}

func allow(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		w.Header().Set("Allow", method)
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	return true
}

// decodeBody tolerates an empty body.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

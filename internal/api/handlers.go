package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sells-group/h2-custody/internal/bottling"
	"github.com/sells-group/h2-custody/internal/composition"
	"github.com/sells-group/h2-custody/internal/model"
	"github.com/sells-group/h2-custody/internal/provenance"
)

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// CompositionResponse is the body of GET /process-steps/{id}/composition.
type CompositionResponse struct {
	ProcessStepID string                    `json:"process_step_id"`
	Components    []model.HydrogenComponent `json:"components"`
	Total         decimal.Decimal           `json:"total"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.svc.Ping != nil {
		if err := s.svc.Ping(r.Context()); err != nil {
			zap.L().Warn("api: health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) graph(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	q := r.URL.Query()

	dir := model.DirectionUp
	if v := q.Get("direction"); v != "" {
		dir = model.Direction(strings.ToUpper(v))
		if !dir.Valid() {
			writeError(w, eris.Wrapf(model.ErrMissingInput, "unknown direction %q", v))
			return
		}
	}

	var opts []provenance.Option
	if v := q.Get("maxDepth"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, eris.Wrapf(model.ErrMissingInput, "maxDepth must be a positive integer, got %q", v))
			return
		}
		opts = append(opts, provenance.WithMaxDepth(n))
	}
	if v := q.Get("maxNodes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, eris.Wrapf(model.ErrMissingInput, "maxNodes must be a positive integer, got %q", v))
			return
		}
		opts = append(opts, provenance.WithMaxNodes(n))
	}

	g, err := s.svc.Provenance.Graph(r.Context(), id, dir, opts...)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (s *Server) provenance(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Provenance.Provenance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) composition(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	components, err := s.svc.Composition.AssembleByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CompositionResponse{
		ProcessStepID: id,
		Components:    components,
		Total:         composition.Total(components),
	})
}

func (s *Server) redCompliance(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.Compliance.Determine(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) bottle(w http.ResponseWriter, r *http.Request) {
	var req bottling.Request
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, eris.Wrapf(model.ErrMissingInput, "invalid request body: %v", err))
		return
	}

	plan, err := s.svc.Bottling.Bottle(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

// statusFor maps the lineage error taxonomy to HTTP statuses.
func statusFor(err error) int {
	switch kind := model.ClientErrorKind(err); {
	case kind == nil:
		return http.StatusInternalServerError
	case errors.Is(kind, model.ErrInsufficientStock):
		return http.StatusConflict
	case errors.Is(err, model.ErrStepNotFound):
		return http.StatusNotFound
	default:
		return http.StatusBadRequest
	}
}

// errorCode renders a taxonomy sentinel as a snake_case code.
func errorCode(err error) string {
	kind := model.ClientErrorKind(err)
	if kind == nil {
		return "internal"
	}
	return strings.ReplaceAll(kind.Error(), " ", "_")
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	body := errorBody{Error: errorCode(err), Message: err.Error()}
	if status == http.StatusInternalServerError {
		zap.L().Error("api: request failed", zap.Error(err))
		body.Message = "internal error"
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}

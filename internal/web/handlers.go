package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/risuops/risuctl/internal/diag"
)

// jobSummary is the list-endpoint view of a registry record.
type jobSummary struct {
	JobID      string `json:"job_id"`
	Status     string `json:"status"`
	RC         int    `json:"rc"`
	ToolPath   string `json:"tool_path"`
	OutputPath string `json:"output_path,omitempty"`
	StartedAt  string `json:"started_at"`
	FinishedAt string `json:"finished_at,omitempty"`
}

// POST /v1/diagnostics
// Body: a RequestOptions document; the response is the same shape the
// exec boundary produces.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var opts diag.RequestOptions
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&opts); err != nil {
		writeResponse(w, http.StatusBadRequest, &diag.Response{
			Failed: true,
			RC:     -1,
			Msg:    "malformed request body: " + err.Error(),
			Error:  &diag.ErrorInfo{Kind: diag.KindInvalidOptions, Msg: err.Error()},
		})
		return
	}

	resp := s.adapter.Execute(r.Context(), &opts)
	writeResponse(w, statusFor(resp), resp)
}

// GET /v1/jobs/{id}
func (s *Server) handlePoll(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "id")
	resp := s.adapter.Poll(jobID)

	status := statusFor(resp)
	if resp.Failed {
		// An id the registry has never seen is a 404, not a bad request.
		if rec, err := s.jobs.Get(jobID); err == nil && rec == nil {
			status = http.StatusNotFound
		}
	}
	writeResponse(w, status, resp)
}

// GET /v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	recs, err := s.jobs.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	out := make([]jobSummary, 0, len(recs))
	for _, rec := range recs {
		js := jobSummary{
			JobID:      rec.ID,
			Status:     rec.Status,
			RC:         rec.RC,
			ToolPath:   rec.ToolPath,
			OutputPath: rec.OutputPath,
			StartedAt:  rec.StartedAt.Format(time.RFC3339),
		}
		if !rec.FinishedAt.IsZero() {
			js.FinishedAt = rec.FinishedAt.Format(time.RFC3339)
		}
		out = append(out, js)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"jobs":  out,
		"count": len(out),
	})
}

func writeResponse(w http.ResponseWriter, status int, resp *diag.Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// statusFor maps the structured outcome onto an HTTP status. Failures
// stay JSON-bodied so HTTP callers get the same report shape as the
// exec boundary.
func statusFor(resp *diag.Response) int {
	if !resp.Failed {
		return http.StatusOK
	}
	if resp.Error == nil {
		return http.StatusInternalServerError
	}
	return failureStatus(resp.Error.Kind)
}

func failureStatus(kind diag.Kind) int {
	switch kind {
	case diag.KindInvalidOptions:
		return http.StatusBadRequest
	case diag.KindTimeout:
		return http.StatusGatewayTimeout
	case diag.KindToolNotFound:
		return http.StatusFailedDependency
	case diag.KindPermission:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

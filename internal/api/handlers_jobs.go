package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/dgallion1/pageflow/internal/pipeline"
	"github.com/go-chi/chi/v5"
)

type resultFormat string

const (
	formatJSON resultFormat = "json"
	formatHTML resultFormat = "html"
	formatPDF  resultFormat = "pdf"
)

func parseFormat(v string) (resultFormat, bool) {
	switch f := resultFormat(strings.ToLower(strings.TrimSpace(v))); f {
	case "":
		return formatJSON, true
	case formatJSON, formatHTML, formatPDF:
		return f, true
	}
	return "", false
}

func (s *Server) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job.Snapshot())
}

func (s *Server) handleJobResult(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobID")
	job := s.orchestrator.GetJob(jobID)
	if job == nil {
		jsonError(w, "job not found", http.StatusNotFound)
		return
	}
	format, ok := parseFormat(r.URL.Query().Get("format"))
	if !ok {
		jsonError(w, "format must be json, html or pdf", http.StatusBadRequest)
		return
	}
	if snap := job.Snapshot(); !snap.Status.Terminal() {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]any{
			"error":  "job not finished",
			"status": snap.Status,
		})
		return
	}
	s.writeResult(w, job, format)
}

// writeResult answers with a finished job in the requested format.
func (s *Server) writeResult(w http.ResponseWriter, job *pipeline.Job, format resultFormat) {
	snap := job.Snapshot()
	switch snap.Status {
	case pipeline.StatusFailed:
		msg := "pagination failed"
		if len(snap.Progress.Errors) > 0 {
			msg = snap.Progress.Errors[0]
		}
		jsonError(w, msg, http.StatusUnprocessableEntity)
		return
	case pipeline.StatusSkipped:
		s.writeSkipped(w, job, format)
		return
	}

	res := job.Result()
	if res == nil {
		jsonError(w, "result unavailable", http.StatusInternalServerError)
		return
	}

	switch format {
	case formatHTML:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(res.HTML)
	case formatPDF:
		if res.PDF == nil {
			jsonError(w, "pdf rendering unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", pdfName(snap.Filename)))
		w.Write(res.PDF)
	default:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"job_id":   snap.ID,
			"status":   snap.Status,
			"title":    snap.Title,
			"progress": snap.Progress,
			"layout":   res.Layout,
		})
	}
}

// writeSkipped handles input without pagination anchors: nothing was
// paginated, so HTML is handed back unchanged.
func (s *Server) writeSkipped(w http.ResponseWriter, job *pipeline.Job, format resultFormat) {
	snap := job.Snapshot()
	switch format {
	case formatHTML:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(job.Request().Data)
	case formatPDF:
		jsonError(w, "document has no pagination anchors", http.StatusUnprocessableEntity)
	default:
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"job_id": snap.ID,
			"status": snap.Status,
			"layout": nil,
		})
	}
}

func pdfName(filename string) string {
	if i := strings.LastIndex(filename, "."); i > 0 {
		filename = filename[:i]
	}
	return filename + ".pdf"
}

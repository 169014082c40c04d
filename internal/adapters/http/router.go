package httpadapter

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/mkharlamov/corporate-agent/internal/core/ports"
	"github.com/mkharlamov/corporate-agent/internal/observability/metrics"
)

const maxUploadBytes = 64 << 20

type Router struct {
	service string
	ingest  ports.SubmissionIngestor
	reader  ports.ReportReader
	storage ports.ObjectStorage
	metrics *metrics.HTTPServerMetrics
}

func NewRouter(
	service string,
	ingest ports.SubmissionIngestor,
	reader ports.ReportReader,
	storage ports.ObjectStorage,
	httpMetrics *metrics.HTTPServerMetrics,
) *Router {
	return &Router{
		service: service,
		ingest:  ingest,
		reader:  reader,
		storage: storage,
		metrics: httpMetrics,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/submissions", rt.createSubmission)
	mux.HandleFunc("/v1/submissions/", rt.submissionRoutes)
	mux.HandleFunc("/v1/documents/", rt.downloadAnnotated)
	mux.Handle("/metrics", rt.metrics.Handler())

	var handler http.Handler = mux
	handler = rt.metrics.Middleware(rt.service, handler)
	handler = accessLogMiddleware(handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) createSubmission(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart form is required"})
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'files' is required"})
		return
	}

	files := make([]ports.UploadedFile, 0, len(headers))
	for _, header := range headers {
		f, err := header.Open()
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable multipart part " + header.Filename})
			return
		}
		defer f.Close()
		files = append(files, ports.UploadedFile{
			Filename: header.Filename,
			MimeType: header.Header.Get("Content-Type"),
			Body:     f,
		})
	}

	sub, err := rt.ingest.Submit(r.Context(), files)
	if err != nil {
		writeError(w, err)
		return
	}

	rt.metrics.RecordUpload(rt.service, len(files))
	writeJSON(w, http.StatusAccepted, sub)
}

// submissionRoutes dispatches /v1/submissions/{id} and its report
// subresources by hand; report.json carries the fixed external schema
// while report returns the full stored report.
func (rt *Router) submissionRoutes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/submissions/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) == 0 || parts[0] == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "submission id is required"})
		return
	}
	id := parts[0]

	switch {
	case len(parts) == 1:
		rt.getSubmission(w, r, id)
	case len(parts) == 2 && parts[1] == "report":
		rt.getReport(w, r, id, "full")
	case len(parts) == 2 && parts[1] == "report.json":
		rt.getReport(w, r, id, "summary")
	case len(parts) == 2 && parts[1] == "report.xlsx":
		rt.getReportXLSX(w, r, id)
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	}
}

func (rt *Router) getSubmission(w http.ResponseWriter, r *http.Request, id string) {
	sub, err := rt.reader.GetSubmission(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (rt *Router) getReport(w http.ResponseWriter, r *http.Request, id, format string) {
	report, err := rt.reader.GetReport(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	rt.metrics.RecordReportRead(rt.service, format)
	if format == "summary" {
		writeJSON(w, http.StatusOK, report.Summary())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (rt *Router) getReportXLSX(w http.ResponseWriter, r *http.Request, id string) {
	report, err := rt.reader.GetReport(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	data, err := renderReportXLSX(report)
	if err != nil {
		writeError(w, err)
		return
	}

	rt.metrics.RecordReportRead(rt.service, "xlsx")
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="compliance_report_`+id+`.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

func (rt *Router) downloadAnnotated(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "annotated" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
		return
	}

	doc, err := rt.reader.GetDocument(r.Context(), parts[0])
	if err != nil {
		writeError(w, err)
		return
	}
	if doc.AnnotatedPath == "" {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "annotated copy not available"})
		return
	}

	reader, err := rt.storage.Open(r.Context(), doc.AnnotatedPath)
	if err != nil {
		writeError(w, err)
		return
	}
	defer reader.Close()

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.wordprocessingml.document")
	w.Header().Set("Content-Disposition", `attachment; filename="`+annotatedDownloadName(doc.Filename)+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, reader)
}

func annotatedDownloadName(filename string) string {
	ext := ""
	base := filename
	if idx := strings.LastIndex(filename, "."); idx > 0 {
		base = filename[:idx]
		ext = filename[idx:]
	}
	return base + "_reviewed" + ext
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, mapErrorToHTTPStatus(err), map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

package httpadapter

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/oapi-codegen/runtime"

	"github.com/durquijop/Cerebro-Visas-sub001/internal/config"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/domain"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/core/ports"
	"github.com/durquijop/Cerebro-Visas-sub001/internal/observability/metrics"
)

const (
	maxBatchFiles     = 20
	multipartMemory   = 32 << 20
	maxJSONBodyBytes  = 1 << 20
	backpressureDelay = 250 * time.Millisecond
)

type Router struct {
	cfg     config.Config
	ingest  ports.DocumentIngestor
	docs    ports.DocumentService
	search  ports.SearchService
	metrics *metrics.HTTPServerMetrics
}

func NewRouter(
	cfg config.Config,
	ingest ports.DocumentIngestor,
	docs ports.DocumentService,
	search ports.SearchService,
) *Router {
	return &Router{
		cfg:    cfg,
		ingest: ingest,
		docs:   docs,
		search: search,
	}
}

// WithMetrics mounts /metrics and records request totals and durations.
func (rt *Router) WithMetrics(m *metrics.HTTPServerMetrics) *Router {
	rt.metrics = m
	return rt
}

func (rt *Router) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(accessLogMiddleware)
	r.Use(middleware.Recoverer)
	if origins := splitOrigins(rt.cfg.APIAllowedOrigins); len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", requestIDHeader},
			ExposedHeaders: []string{requestIDHeader},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", rt.healthz)
	if rt.metrics != nil {
		r.Handle("/metrics", rt.metrics.Handler())
	}

	r.Route("/v1", func(v1 chi.Router) {
		v1.Use(func(next http.Handler) http.Handler {
			return rateLimitMiddleware(next, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
		})
		v1.Use(func(next http.Handler) http.Handler {
			return backpressureMiddleware(next, rt.cfg.APIMaxInFlight, backpressureDelay)
		})
		v1.Use(func(next http.Handler) http.Handler {
			return bearerAuthMiddleware(next, rt.cfg.APIKey)
		})
		v1.Use(openAPIValidationMiddleware)

		v1.Post("/documents", rt.uploadDocuments)
		v1.Get("/documents/{kind}/{id}", rt.getDocument)
		v1.Delete("/documents/{kind}/{id}", rt.deleteDocument)
		v1.Post("/documents/{kind}/{id}/embeddings", rt.regenerateEmbeddings)
		v1.Post("/search", rt.searchDocuments)
		v1.Post("/rag/answer", rt.answerQuestion)
	})

	if rt.metrics != nil {
		return rt.metrics.Middleware("api", r)
	}
	return r
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadDocuments(w http.ResponseWriter, r *http.Request) {
	maxBytes := rt.cfg.MaxUploadBytes
	if maxBytes <= 0 {
		maxBytes = 50 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes*maxBatchFiles)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "upload exceeds size limit"})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	headers := r.MultipartForm.File["file"]
	if len(headers) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	if len(headers) > maxBatchFiles {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("at most %d files per upload", maxBatchFiles)})
		return
	}

	embed := false
	if raw := strings.TrimSpace(r.FormValue("embed")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "field 'embed' must be a boolean"})
			return
		}
		embed = parsed
	}

	files := make([]domain.UploadFile, 0, len(headers))
	for _, header := range headers {
		data, err := readPart(header)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("read %s: %v", header.Filename, err)})
			return
		}
		files = append(files, domain.UploadFile{
			Filename: header.Filename,
			MimeType: header.Header.Get("Content-Type"),
			Data:     data,
		})
	}

	result := rt.ingest.IngestBatch(r.Context(), domain.BatchRequest{
		Scope:              uploadScope(r),
		DocumentType:       strings.TrimSpace(r.FormValue("document_type")),
		Files:              files,
		GenerateEmbeddings: embed,
	})
	writeJSON(w, batchStatus(result), result)
}

func uploadScope(r *http.Request) domain.IngestScope {
	scope := domain.IngestScope{
		Kind:    domain.KindStandalone,
		OwnerID: strings.TrimSpace(r.FormValue("owner_id")),
	}
	if caseID := strings.TrimSpace(r.FormValue("case_id")); caseID != "" {
		scope.Kind = domain.KindCaseScoped
		scope.CaseID = caseID
	}
	return scope
}

func batchStatus(result domain.BatchResult) int {
	switch {
	case result.Failed == 0:
		return http.StatusOK
	case result.Processed > 0:
		return http.StatusMultiStatus
	default:
		return http.StatusUnprocessableEntity
	}
}

func readPart(header *multipart.FileHeader) ([]byte, error) {
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return io.ReadAll(file)
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	ref, err := documentRef(r)
	if err != nil {
		writeError(w, err)
		return
	}
	doc, err := rt.docs.Get(r.Context(), ref)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request) {
	ref, err := documentRef(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := rt.docs.Delete(r.Context(), ref); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) regenerateEmbeddings(w http.ResponseWriter, r *http.Request) {
	ref, err := documentRef(r)
	if err != nil {
		writeError(w, err)
		return
	}
	report, err := rt.docs.RegenerateEmbeddings(r.Context(), ref)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type searchRequest struct {
	Query     string  `json:"query"`
	Threshold float64 `json:"threshold"`
	Limit     int     `json:"limit"`
}

func decodeSearchRequest(w http.ResponseWriter, r *http.Request) (searchRequest, bool) {
	var req searchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return req, false
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return req, false
	}
	return req, true
}

func (rt *Router) searchDocuments(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSearchRequest(w, r)
	if !ok {
		return
	}
	matches, err := rt.search.Search(r.Context(), req.Query, req.Threshold, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if matches == nil {
		matches = []domain.SearchMatch{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"matches": matches,
		"count":   len(matches),
	})
}

func (rt *Router) answerQuestion(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeSearchRequest(w, r)
	if !ok {
		return
	}
	answer, err := rt.search.Answer(r.Context(), req.Query, req.Threshold, req.Limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, answer)
}

// documentRef resolves the {kind}/{id} path pair into a DocumentRef.
func documentRef(r *http.Request) (domain.DocumentRef, error) {
	opts := runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true}

	var rawKind, id string
	if err := runtime.BindStyledParameterWithOptions("simple", "kind", chi.URLParam(r, "kind"), &rawKind, opts); err != nil {
		return domain.DocumentRef{}, domain.WrapError(domain.ErrInvalidInput, "bind kind", err)
	}
	if err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id, opts); err != nil {
		return domain.DocumentRef{}, domain.WrapError(domain.ErrInvalidInput, "bind id", err)
	}
	kind, err := domain.ParseDocumentKind(rawKind)
	if err != nil {
		return domain.DocumentRef{}, err
	}
	ref := domain.DocumentRef{Kind: kind, ID: id}
	return ref, ref.Validate()
}

func splitOrigins(raw string) []string {
	var out []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

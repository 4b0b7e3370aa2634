package httpadapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/health-report-analyzer/internal/adapters/observer"
	"github.com/kirillkom/health-report-analyzer/internal/config"
	"github.com/kirillkom/health-report-analyzer/internal/core/domain"
	"github.com/kirillkom/health-report-analyzer/internal/core/ports"
	"github.com/kirillkom/health-report-analyzer/internal/observability/metrics"
)

const (
	serviceName         = "api"
	backpressureMaxWait = 250 * time.Millisecond
	multipartMemory     = 1 << 20
)

type Router struct {
	cfg       config.Config
	sessions  ports.SessionManager
	presenter ports.ResultPresenter

	metrics *metrics.HTTPServerMetrics
	mascot  *observer.Mascot
	toaster *observer.Toaster
	health  func() map[string]any
	openAPI []byte
}

type Option func(*Router)

func WithMetrics(m *metrics.HTTPServerMetrics) Option {
	return func(rt *Router) { rt.metrics = m }
}

// WithCompanion attaches the mascot and toast history to session responses.
func WithCompanion(mascot *observer.Mascot, toaster *observer.Toaster) Option {
	return func(rt *Router) {
		rt.mascot = mascot
		rt.toaster = toaster
	}
}

// WithHealthDetails adds fn's output to /healthz.
func WithHealthDetails(fn func() map[string]any) Option {
	return func(rt *Router) { rt.health = fn }
}

func NewRouter(cfg config.Config, sessions ports.SessionManager, presenter ports.ResultPresenter, opts ...Option) *Router {
	rt := &Router{
		cfg:       cfg,
		sessions:  sessions,
		presenter: presenter,
	}
	for _, opt := range opts {
		opt(rt)
	}

	doc, err := LoadOpenAPI(context.Background())
	if err != nil {
		slog.Error("openapi_load_failed", "error", err)
	} else if data, err := marshalOpenAPI(doc); err != nil {
		slog.Error("openapi_encode_failed", "error", err)
	} else {
		rt.openAPI = data
	}
	return rt
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.json", rt.openAPISpec)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("GET /v1/fields", rt.listFields)
	mux.HandleFunc("POST /v1/sessions", rt.createSession)
	mux.HandleFunc("GET /v1/sessions/{id}", rt.getSession)
	mux.HandleFunc("DELETE /v1/sessions/{id}", rt.closeSession)
	mux.HandleFunc("POST /v1/sessions/{id}/document", rt.uploadDocument)
	mux.HandleFunc("PUT /v1/sessions/{id}/metrics/{field}", rt.updateMetric)
	mux.HandleFunc("POST /v1/sessions/{id}/analysis", rt.runAnalysis)
	mux.HandleFunc("POST /v1/sessions/{id}/reset", rt.resetSession)
	mux.HandleFunc("GET /v1/sessions/{id}/result", rt.getResult)
	mux.HandleFunc("GET /v1/sessions/{id}/export", rt.exportResult)

	public := map[string]bool{"/healthz": true, "/metrics": true, "/openapi.json": true}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, backpressureMaxWait, rt.rejected)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.rejected)
	handler = bearerAuthMiddleware(handler, rt.cfg.APIKey, public)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) rejected(reason string) {
	if rt.metrics != nil {
		rt.metrics.RecordRejected(serviceName, reason)
	}
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]any{"status": "ok"}
	if rt.health != nil {
		for k, v := range rt.health() {
			resp[k] = v
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) openAPISpec(w http.ResponseWriter, _ *http.Request) {
	if rt.openAPI == nil {
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "openapi document unavailable"})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rt.openAPI)
}

func (rt *Router) listFields(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"fields": domain.MetricSpecs()})
}

type sessionResponse struct {
	domain.WorkflowView
	ResultView    *domain.ResultView    `json:"result_view,omitempty"`
	Mascot        *observer.MascotState `json:"mascot,omitempty"`
	Notifications []observer.Toast      `json:"notifications,omitempty"`
}

func (rt *Router) sessionResponse(session ports.WorkflowSession) sessionResponse {
	view := session.View()
	resp := sessionResponse{WorkflowView: view}
	if view.Result != nil && rt.presenter != nil {
		presented := rt.presenter.Present(*view.Result)
		resp.ResultView = &presented
	}
	if rt.mascot != nil {
		state := rt.mascot.State(view.SessionID)
		resp.Mascot = &state
	}
	if rt.toaster != nil {
		resp.Notifications = rt.toaster.Recent(view.SessionID)
	}
	return resp
}

func (rt *Router) createSession(w http.ResponseWriter, r *http.Request) {
	session, err := rt.sessions.Create(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Location", "/v1/sessions/"+session.ID())
	writeJSON(w, http.StatusCreated, rt.sessionResponse(session))
}

func (rt *Router) getSession(w http.ResponseWriter, r *http.Request) {
	session, ok := rt.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, rt.sessionResponse(session))
}

func (rt *Router) closeSession(w http.ResponseWriter, r *http.Request) {
	if err := rt.sessions.Close(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	session, ok := rt.lookup(w, r)
	if !ok {
		return
	}

	doc, err := rt.readDocument(w, r)
	if err != nil {
		writeError(w, err)
		return
	}
	if err := session.Upload(r.Context(), doc); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, rt.sessionResponse(session))
}

// readDocument accepts either a multipart "file" field or a JSON descriptor
// {name, size, type} for clients that only send metadata.
func (rt *Router) readDocument(w http.ResponseWriter, r *http.Request) (domain.UploadedDocument, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req struct {
			Name string `json:"name"`
			Size int64  `json:"size"`
			Type string `json:"type"`
		}
		if err := json.NewDecoder(io.LimitReader(r.Body, multipartMemory)).Decode(&req); err != nil {
			return domain.UploadedDocument{}, domain.WrapError(domain.ErrInvalidInput, "read document", errors.New("invalid json"))
		}
		if strings.TrimSpace(req.Name) == "" || req.Size < 0 {
			return domain.UploadedDocument{}, domain.WrapError(domain.ErrInvalidInput, "read document", errors.New("name and non-negative size are required"))
		}
		return domain.UploadedDocument{Name: req.Name, Size: req.Size, MediaType: domain.MediaType(req.Type)}, nil
	}

	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes+multipartMemory)
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return domain.UploadedDocument{}, domain.WrapError(domain.ErrDocumentTooLarge, "read document", err)
		}
		return domain.UploadedDocument{}, domain.WrapError(domain.ErrInvalidInput, "read document", errors.New("multipart field 'file' is required"))
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		return domain.UploadedDocument{}, domain.WrapError(domain.ErrInvalidInput, "read document", err)
	}
	mediaType = string(domain.NormalizeMediaType(header.Header.Get("Content-Type")))
	if !domain.MediaType(mediaType).Allowed() {
		mediaType = string(domain.MediaTypeFromFilename(header.Filename))
	}
	return domain.UploadedDocument{
		Name:      header.Filename,
		Size:      header.Size,
		MediaType: domain.MediaType(mediaType),
		Content:   content,
	}, nil
}

func (rt *Router) updateMetric(w http.ResponseWriter, r *http.Request) {
	session, ok := rt.lookup(w, r)
	if !ok {
		return
	}

	var req struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Value) == 0 {
		writeError(w, domain.WrapError(domain.ErrInvalidInput, "update metric", errors.New(`body must be {"value": ...}`)))
		return
	}

	field := domain.MetricField(r.PathValue("field"))
	value, err := session.UpdateMetric(field, rawValue(req.Value))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"field":   field,
		"value":   value,
		"display": value.String(),
		"session": rt.sessionResponse(session),
	})
}

// rawValue accepts both JSON strings and bare numbers.
func rawValue(msg json.RawMessage) string {
	var s string
	if err := json.Unmarshal(msg, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(msg))
}

func (rt *Router) runAnalysis(w http.ResponseWriter, r *http.Request) {
	session, ok := rt.lookup(w, r)
	if !ok {
		return
	}
	if err := session.RunAnalysis(r.Context()); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, rt.sessionResponse(session))
}

func (rt *Router) resetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := rt.lookup(w, r)
	if !ok {
		return
	}
	session.Reset()
	writeJSON(w, http.StatusOK, rt.sessionResponse(session))
}

func (rt *Router) getResult(w http.ResponseWriter, r *http.Request) {
	session, ok := rt.lookup(w, r)
	if !ok {
		return
	}
	view := session.View()
	if view.Result == nil {
		writeError(w, domain.WrapError(domain.ErrResultNotReady, "get result", fmt.Errorf("stage=%s", view.Stage)))
		return
	}
	writeJSON(w, http.StatusOK, rt.presenter.Present(*view.Result))
}

func (rt *Router) exportResult(w http.ResponseWriter, r *http.Request) {
	session, ok := rt.lookup(w, r)
	if !ok {
		return
	}

	format := domain.ExportFormat(r.URL.Query().Get("format"))
	artifact, err := rt.presenter.ExportAs(r.Context(), session, format)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": artifact.Filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(artifact.Data)
}

func (rt *Router) lookup(w http.ResponseWriter, r *http.Request) (ports.WorkflowSession, bool) {
	session, err := rt.sessions.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return session, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// Package httpapi exposes entity services over a JSON REST surface.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/jipp1987/PruebaRestService/internal/clause"
	"github.com/jipp1987/PruebaRestService/internal/dao"
	"github.com/jipp1987/PruebaRestService/internal/dberrors"
	"github.com/jipp1987/PruebaRestService/internal/logging"
	"github.com/jipp1987/PruebaRestService/internal/model"
	"github.com/jipp1987/PruebaRestService/internal/naming"
	"github.com/jipp1987/PruebaRestService/internal/service"
)

// DefaultMaxBodyBytes caps request bodies when no limit is configured.
const DefaultMaxBodyBytes int64 = 1 << 20

// EntityService is the type-erased view of a service.Service used by the
// handler.
type EntityService interface {
	EntityType() *model.EntityType
	ApplyEntity(ctx context.Context, action service.Action, e model.Entity) error
	SelectEntities(ctx context.Context, q clause.Query) ([]model.Entity, error)
	FindEntity(ctx context.Context, id any) (model.Entity, error)
}

// RequestBody is the payload of the action endpoint. RequestObject holds the
// entity fields for create, update and delete, and a clause.Query for select.
type RequestBody struct {
	Action        service.Action  `json:"action"`
	RequestObject json.RawMessage `json:"request_object"`
}

// Response is the envelope of every API response.
type Response struct {
	Message        string `json:"message"`
	Success        bool   `json:"success"`
	StatusCode     int    `json:"status_code"`
	ResponseObject any    `json:"response_object,omitempty"`
}

// Option configures a Handler.
type Option func(*Handler)

// WithMaxBodyBytes limits the size of request bodies. Non-positive values
// keep the default.
func WithMaxBodyBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxBodyBytes = n
		}
	}
}

// Handler routes /api requests to the registered entity services.
type Handler struct {
	namer        *naming.Namer
	maxBodyBytes int64

	mu        sync.RWMutex
	resources map[string]EntityService
}

// NewHandler creates a handler naming resources with namer.
func NewHandler(namer *naming.Namer, opts ...Option) *Handler {
	if namer == nil {
		namer = naming.Default()
	}
	h := &Handler{
		namer:        namer,
		maxBodyBytes: DefaultMaxBodyBytes,
		resources:    make(map[string]EntityService),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register exposes svc and returns its resource name.
func (h *Handler) Register(svc EntityService) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	name := h.namer.RegisterResource(svc.EntityType().Name)
	h.resources[name] = svc
	return name
}

// Resources returns the registered resource names in sorted order.
func (h *Handler) Resources() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.resources))
	for name := range h.resources {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Routes returns the API router.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/{resource}", h.handleAction)
	mux.HandleFunc("POST /api/{resource}/select", h.handleSelect)
	mux.HandleFunc("GET /api/{resource}/{id}", h.handleFind)
	return mux
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (EntityService, bool) {
	name := r.PathValue("resource")
	h.mu.RLock()
	svc, ok := h.resources[name]
	h.mu.RUnlock()
	if !ok {
		writeResponse(r.Context(), w, http.StatusNotFound, fmt.Sprintf("unknown resource %q", name), nil)
	}
	return svc, ok
}

func (h *Handler) handleAction(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var body RequestBody
	if err := h.decode(w, r, &body); err != nil {
		writeResponse(r.Context(), w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	if body.Action == service.Select {
		var q clause.Query
		if len(body.RequestObject) > 0 {
			if err := json.Unmarshal(body.RequestObject, &q); err != nil {
				writeResponse(r.Context(), w, http.StatusBadRequest, fmt.Sprintf("invalid query: %v", err), nil)
				return
			}
		}
		h.runSelect(w, r, svc, q)
		return
	}

	switch body.Action {
	case service.Create, service.Update, service.Delete:
	default:
		writeResponse(r.Context(), w, http.StatusBadRequest, fmt.Sprintf("unsupported action %s", body.Action), nil)
		return
	}

	entity, err := decodeEntity(svc.EntityType(), body.RequestObject)
	if err != nil {
		writeResponse(r.Context(), w, http.StatusBadRequest, err.Error(), nil)
		return
	}

	if err := svc.ApplyEntity(r.Context(), body.Action, entity); err != nil {
		writeError(r.Context(), w, err)
		return
	}

	status := http.StatusOK
	if body.Action == service.Create {
		status = http.StatusCreated
	}
	writeResponse(r.Context(), w, status, fmt.Sprintf("%s %s done", svc.EntityType().Name, body.Action), entity)
}

func (h *Handler) handleSelect(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.lookup(w, r)
	if !ok {
		return
	}

	var q clause.Query
	if err := h.decode(w, r, &q); err != nil {
		writeResponse(r.Context(), w, http.StatusBadRequest, err.Error(), nil)
		return
	}
	h.runSelect(w, r, svc, q)
}

func (h *Handler) runSelect(w http.ResponseWriter, r *http.Request, svc EntityService, q clause.Query) {
	found, err := svc.SelectEntities(r.Context(), q)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeResponse(r.Context(), w, http.StatusOK, fmt.Sprintf("%d %s found", len(found), svc.EntityType().Name), found)
}

func (h *Handler) handleFind(w http.ResponseWriter, r *http.Request) {
	svc, ok := h.lookup(w, r)
	if !ok {
		return
	}

	found, err := svc.FindEntity(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeResponse(r.Context(), w, http.StatusOK, svc.EntityType().Name+" found", found)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, target any) error {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func decodeEntity(et *model.EntityType, raw json.RawMessage) (model.Entity, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("request_object is required")
	}
	var values map[string]any
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("invalid request_object: %w", err)
	}
	if values == nil {
		return nil, fmt.Errorf("request_object is required")
	}
	return et.FromFieldMap(values)
}

// statusFor maps an engine error to an HTTP status and a client message.
// Unrecognised faults are reported generically.
func statusFor(err error) (int, string) {
	if errors.Is(err, dao.ErrNotFound) {
		return http.StatusNotFound, err.Error()
	}
	e, ok := dberrors.As(err)
	if !ok {
		return http.StatusInternalServerError, "internal server error"
	}
	switch {
	case e.Kind == dberrors.KindTranslation:
		return http.StatusBadRequest, e.Message
	case e.Category == "connection_failure":
		return http.StatusServiceUnavailable, e.Known
	case e.IsKnown():
		return http.StatusBadRequest, e.Known
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// WriteError writes err in the response envelope with the status the fault
// maps to. It is the error writer of the transaction middleware.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(r.Context(), w, err)
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status, message := statusFor(err)
	logger := logging.FromContext(ctx)
	attrs := []any{slog.Int("status", status), slog.String("error", err.Error())}
	if e, ok := dberrors.As(err); ok {
		attrs = append(attrs, slog.String("kind", e.Kind.String()), slog.String("site", e.Site))
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", attrs...)
	} else {
		logger.Debug("request rejected", attrs...)
	}
	writeResponse(ctx, w, status, message, nil)
}

func writeResponse(ctx context.Context, w http.ResponseWriter, status int, message string, object any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := Response{
		Message:        message,
		Success:        status < http.StatusBadRequest,
		StatusCode:     status,
		ResponseObject: object,
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.FromContext(ctx).Warn("failed to write response", slog.String("error", err.Error()))
	}
}

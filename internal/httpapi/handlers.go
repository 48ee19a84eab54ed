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

	"roadwatch.mg/internal/audit"
	"roadwatch.mg/internal/auth"
	"roadwatch.mg/internal/blob"
	"roadwatch.mg/internal/config"
	"roadwatch.mg/internal/obs"
	"roadwatch.mg/internal/roads"
)

const serviceName = "roadwatch-api"

// ReadyFunc reports whether the service can take traffic.
type ReadyFunc func(ctx context.Context) error

// Options wires the dependencies of the HTTP layer.
type Options struct {
	Store    roads.Store
	Tokens   *auth.Tokens
	Blobs    *blob.Disk
	Recorder *audit.Recorder
	Config   config.Config
	Version  string
	// Ready defaults to Store.Ping.
	Ready ReadyFunc
}

// API is the HTTP layer.
type API struct {
	mux      *http.ServeMux
	store    roads.Store
	tokens   *auth.Tokens
	blobs    *blob.Disk
	recorder *audit.Recorder
	ready    ReadyFunc
	version  string
	devMode  bool

	origins    []string
	maxBody    int64
	rateBurst  int
	ratePerSec int
}

func New(opts Options) *API {
	a := &API{
		mux:        http.NewServeMux(),
		store:      opts.Store,
		tokens:     opts.Tokens,
		blobs:      opts.Blobs,
		recorder:   opts.Recorder,
		ready:      opts.Ready,
		version:    opts.Version,
		devMode:    opts.Config.Development(),
		origins:    opts.Config.AllowedOrigins,
		maxBody:    opts.Config.MaxUploadBytes + 1<<20,
		rateBurst:  opts.Config.RateBurst,
		ratePerSec: opts.Config.RatePerSecond,
	}
	if a.ready == nil && a.store != nil {
		a.ready = a.store.Ping
	}
	if a.rateBurst <= 0 {
		a.rateBurst = 60
	}
	if a.ratePerSec <= 0 {
		a.ratePerSec = 30
	}

	// health/ready/info
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/api/info", a.Info)
	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/api/auth/register", a.handleRegister)
	a.mux.HandleFunc("/api/auth/login", a.handleLogin)
	a.mux.HandleFunc("/api/auth/verify", a.handleVerify)

	a.mux.HandleFunc("/api/map/", a.handleMap)
	a.mux.HandleFunc("/api/lots", a.handleLots)
	a.mux.HandleFunc("/api/lots/", a.handleLotResource)
	a.mux.HandleFunc("/api/types", a.handleTypes)
	a.mux.HandleFunc("/api/types/", a.handleTypeResource)
	a.mux.HandleFunc("/api/documents", a.handleDocuments)
	a.mux.HandleFunc("/api/documents/", a.handleDocumentResource)
	a.mux.HandleFunc("/api/meetings/", a.handleMeetings)
	a.mux.HandleFunc("/api/communications/", a.handleCommunications)
	a.mux.HandleFunc("/api/users", a.handleUsers)
	a.mux.Handle("/api/admin/", RequireRole(auth.RoleAdmin)(http.HandlerFunc(a.handleAdmin)))

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "resource not found")
	})

	return a
}

// Handler returns the full middleware chain around the router.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = a.withAuth(h)
	h = obs.Instrument(h)
	h = MaxBodyBytes(h, a.maxBody)
	h = RateLimit(h, a.rateBurst, a.ratePerSec)
	h = CORS(h, a.origins)
	h = SecurityHeaders(h)
	h = LoggingJSON(h)
	return RequestID(h)
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if a.ready != nil {
		if err := a.ready(r.Context()); err != nil {
			obs.SetReady(false)
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{
				"status": "not_ready",
				"error":  err.Error(),
			})
			return
		}
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

func (a *API) record(r *http.Request, action string, fields map[string]any) {
	a.recorder.Record(r.Context(), action, fields)
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	writeJSON(w, code, errorPayload(r, msg))
}

func errorPayload(r *http.Request, msg string) map[string]any {
	payload := map[string]any{
		"error": msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	return payload
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleStoreError maps domain sentinels to status codes. Unknown errors are
// logged and hidden unless the service runs in development mode.
func (a *API) handleStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, roads.ErrValidation):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, roads.ErrNotFound):
		writeError(w, r, http.StatusNotFound, err.Error())
	case errors.Is(err, roads.ErrConflict):
		writeError(w, r, http.StatusConflict, err.Error())
	case errors.Is(err, roads.ErrForbidden):
		writeError(w, r, http.StatusForbidden, err.Error())
	case errors.Is(err, roads.ErrUnauthorized):
		writeError(w, r, http.StatusUnauthorized, err.Error())
	case errors.Is(err, blob.ErrTooLarge), errors.As(err, &tooLarge):
		writeError(w, r, http.StatusRequestEntityTooLarge, "file too large")
	case errors.Is(err, blob.ErrEmpty):
		writeError(w, r, http.StatusBadRequest, "file is empty")
	case errors.Is(err, context.Canceled):
		writeError(w, r, 499, "request canceled")
	default:
		obs.Error("request_failed", map[string]any{
			"request_id": RequestIDFromContext(r.Context()),
			"method":     r.Method,
			"path":       r.URL.Path,
			"error":      err.Error(),
		})
		payload := errorPayload(r, "internal error")
		if a.devMode {
			payload["detail"] = err.Error()
		}
		writeJSON(w, http.StatusInternalServerError, payload)
	}
}

// segments splits the path below prefix into its parts.
func segments(path, prefix string) []string {
	rest := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if rest == "" {
		return nil
	}
	return strings.Split(rest, "/")
}

func parseID(raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// pathID parses an identifier segment, answering 404 when it is malformed.
func pathID(w http.ResponseWriter, r *http.Request, raw, entity string) (int64, bool) {
	id, ok := parseID(raw)
	if !ok {
		writeError(w, r, http.StatusNotFound, entity+" not found")
	}
	return id, ok
}

// queryID reads an optional positive id from the query string; absent is 0.
func queryID(r *http.Request, key string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return 0, nil
	}
	id, ok := parseID(raw)
	if !ok {
		return 0, roads.Invalid("%s must be a positive integer", key)
	}
	return id, nil
}

func caller(r *http.Request) auth.Identity {
	id, _ := auth.IdentityFromContext(r.Context())
	return id
}

package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"assetd/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	Assets() []types.AssetDescriptor
	Bundles() []types.AssetBundle
	Bundle(id string) (types.AssetBundle, bool)
	Status() types.StatusResponse
	StartBundle(b types.AssetBundle) string
	LoadBundle(ctx context.Context, b types.AssetBundle) error
	Session(id string) (types.SessionStatus, error)
	CancelSession(id string) error
	Sample(s types.PerformanceSample)
	OnContextLost()
	OnContextRestored()
	SetOnline(online bool)
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints
	r.Use(middleware.Compress(5))
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}
	r.Use(MetricsMiddleware)

	r.Get("/assets", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"assets": svc.Assets()})
	})

	r.Get("/bundles", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{"bundles": svc.Bundles()})
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Status())
	})

	r.Post("/bundles/{id}/load", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		b, ok := svc.Bundle(id)
		if !ok {
			writeJSONError(w, http.StatusNotFound, "bundle not found: "+id)
			return
		}
		lvl := requestLogLevel(r)
		if r.URL.Query().Get("wait") != "1" {
			sessionID := svc.StartBundle(b)
			if lvl >= LevelInfo && zlog != nil {
				z := zlog.Info().Str("bundle", id).Str("session", sessionID)
				if rid := middleware.GetReqID(r.Context()); rid != "" {
					z = z.Str("request_id", rid)
				}
				z.Msg("bundle load started")
			}
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusAccepted)
			_ = json.NewEncoder(w).Encode(types.LoadResponse{SessionID: sessionID, BundleID: id})
			return
		}

		// Synchronous load: join the server base context with the request
		// context so shutdown cancels in-flight loads too.
		joinedCtx, cancel := joinContexts(serverBaseCtx, r.Context())
		defer cancel()
		if sec := loadTimeout; sec > 0 {
			var tcancel context.CancelFunc
			joinedCtx, tcancel = context.WithTimeout(joinedCtx, time.Duration(sec)*time.Second)
			defer tcancel()
		}
		start := time.Now()
		err := svc.LoadBundle(joinedCtx, b)
		if lvl >= LevelInfo && zlog != nil {
			z := zlog.Info().Str("bundle", id).Dur("dur", time.Since(start))
			if rid := middleware.GetReqID(r.Context()); rid != "" {
				z = z.Str("request_id", rid)
			}
			z.Err(err).Msg("bundle load end")
		}
		if err != nil {
			// Client disconnect or shutdown: nothing useful to write.
			if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
				return
			}
			writeJSONError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, types.LoadResponse{BundleID: id})
	})

	r.Get("/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		st, err := svc.Session(chi.URLParam(r, "id"))
		if err != nil {
			writeJSONError(w, statusForError(err), err.Error())
			return
		}
		writeJSON(w, st)
	})

	r.Delete("/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		if err := svc.CancelSession(chi.URLParam(r, "id")); err != nil {
			writeJSONError(w, statusForError(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/perf/sample", func(w http.ResponseWriter, r *http.Request) {
		var s types.PerformanceSample
		if !decodeJSON(w, r, &s) {
			return
		}
		if s.FPS < 0 || s.MemoryPressure < 0 || s.MemoryPressure > 1 {
			writeJSONError(w, http.StatusBadRequest, "sample out of range")
			return
		}
		svc.Sample(s)
		w.WriteHeader(http.StatusAccepted)
	})

	r.Post("/perf/context-lost", func(w http.ResponseWriter, r *http.Request) {
		svc.OnContextLost()
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/perf/context-restored", func(w http.ResponseWriter, r *http.Request) {
		svc.OnContextRestored()
		w.WriteHeader(http.StatusNoContent)
	})

	r.Post("/net/online", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Online bool `json:"online"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		svc.SetOnline(body.Online)
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("loading"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}

// decodeJSON enforces the JSON content type and body size limit, writing the
// error response itself when decoding fails.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

package main

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/storesense/internal/detect"
	"github.com/sells-group/storesense/internal/directory"
	"github.com/sells-group/storesense/internal/model"
	"github.com/sells-group/storesense/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve detection over HTTP",
	Long: `Starts the detection HTTP server. The device posts its position fix and
radio snapshot to /v1/detect and gets a DetectionResult back; confirmation
accepts are posted to /v1/confirm/{storeID}.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		dir, err := openDirectory(ctx)
		if err != nil {
			return err
		}
		defer dir.Close()

		memory, err := openMemory(ctx)
		if err != nil {
			return err
		}
		defer memory.Close()

		orch := detect.New(detect.Config{
			SearchRadiusMeters: cfg.Detection.SearchRadiusMeters,
			ConfirmedFloor:     cfg.Detection.ConfirmedFloor,
		}, dir, nil, nil, memory)

		srv := &server{dir: dir, memory: memory, orch: orch}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		httpSrv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: srv.routes(),
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			httpSrv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// server holds the shared detection state behind the HTTP surface.
type server struct {
	dir    directory.Directory
	memory store.Memory
	orch   *detect.Orchestrator

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "DELETE"},
		AllowedHeaders: []string{"Content-Type"},
	}))
	if cfg.Server.RateLimitPerSec > 0 {
		r.Use(s.rateLimit)
	}

	r.Get("/health", s.handleHealth)
	r.Route("/v1", func(r chi.Router) {
		r.Post("/detect", s.handleDetect)
		r.Get("/stores/nearby", s.handleNearby)
		r.Post("/confirm/{storeID}", s.handleConfirmAccept)
		r.Delete("/confirm/{storeID}", s.handleConfirmRemove)
	})
	return r
}

// rateLimit applies a per-client token bucket keyed by remote IP.
func (s *server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !s.limiter(host).Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) limiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limiters == nil {
		s.limiters = make(map[string]*rate.Limiter)
	}
	lim, ok := s.limiters[key]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst)
		s.limiters[key] = lim
	}
	return lim
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// detectRequest is the device-posted signal pair. Either field may be
// absent; both absent yields an empty result, not an error.
type detectRequest struct {
	Fix      *model.PositionFix  `json:"fix,omitempty"`
	Snapshot model.RadioSnapshot `json:"snapshot,omitempty"`
}

func (s *server) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req detectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Fix != nil && req.Fix.ObservedAt.IsZero() {
		req.Fix.ObservedAt = time.Now().UTC()
	}

	result, err := s.orch.Evaluate(r.Context(), req.Fix, req.Snapshot)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "detection aborted")
		return
	}

	if result.Store != nil {
		zap.L().Info("detection served",
			zap.String("store_id", result.Store.ID),
			zap.String("method", string(result.Method)),
			zap.Int("confidence", result.Confidence),
		)
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("lat"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("lng"), 64)
	if errLat != nil || errLng != nil {
		writeError(w, http.StatusBadRequest, "lat and lng are required")
		return
	}
	radius := cfg.Detection.SearchRadiusMeters
	if rs := q.Get("radius"); rs != "" {
		parsed, err := strconv.ParseFloat(rs, 64)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "invalid radius")
			return
		}
		radius = parsed
	}

	stores, err := s.dir.QueryNearby(r.Context(), &model.GeoPoint{Lat: lat, Lng: lng}, radius)
	if err != nil {
		zap.L().Error("nearby query failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "directory query failed")
		return
	}
	writeJSON(w, http.StatusOK, stores)
}

func (s *server) handleConfirmAccept(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	if err := s.memory.Add(r.Context(), storeID); err != nil {
		zap.L().Error("confirm accept failed", zap.String("store_id", storeID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "persist confirmation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "confirmed", "store_id": storeID})
}

func (s *server) handleConfirmRemove(w http.ResponseWriter, r *http.Request) {
	storeID := chi.URLParam(r, "storeID")
	if err := s.memory.Remove(r.Context(), storeID); err != nil {
		zap.L().Error("confirm remove failed", zap.String("store_id", storeID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "remove confirmation failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "removed", "store_id": storeID})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

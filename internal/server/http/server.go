package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"
	"go.uber.org/zap"

	"github.com/mintid/mintid/pkg/flake"
)

// Options tunes the HTTP facade.
type Options struct {
	// BatchMax caps n for /v1/id/batch. Default 1000.
	BatchMax int
	// MintRetries bounds how many exhausted ticks a single request will
	// sleep through before giving up with 503. Default 100.
	MintRetries int
	// Registry receives the server's metrics. A private registry is
	// created when nil.
	Registry *prometheus.Registry
}

// Server serves IDs over JSON/HTTP. The generator core never retries
// sequence exhaustion; the bounded retry loop lives here, at the edge.
type Server struct {
	gen         flake.Generator
	srv         *http.Server
	lis         net.Listener
	logger      *zap.Logger
	batchMax    int
	mintRetries int
	lastTick    atomic.Uint64

	issued    prometheus.Counter
	exhausted prometheus.Counter
	duration  *prometheus.HistogramVec
}

// New builds a server around a ready generator.
func New(gen flake.Generator, logger *zap.Logger, opts Options) *Server {
	if opts.BatchMax <= 0 {
		opts.BatchMax = 1000
	}
	if opts.MintRetries <= 0 {
		opts.MintRetries = 100
	}
	reg := opts.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	s := &Server{
		gen:         gen,
		logger:      logger,
		batchMax:    opts.BatchMax,
		mintRetries: opts.MintRetries,
		issued: factory.NewCounter(prometheus.CounterOpts{
			Name: "mintid_ids_issued_total",
			Help: "Total number of IDs issued.",
		}),
		exhausted: factory.NewCounter(prometheus.CounterOpts{
			Name: "mintid_sequence_exhausted_total",
			Help: "Number of times minting hit an exhausted tick and backed off.",
		}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mintid_request_duration_seconds",
			Help:    "HTTP handler latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"handler"}),
	}

	r := mux.NewRouter()
	r.HandleFunc("/v1/id", s.handleMint).Methods(http.MethodGet)
	r.HandleFunc("/v1/id/batch", s.handleBatch).Methods(http.MethodGet)
	r.HandleFunc("/v1/inspect/{id:[0-9]+}", s.handleInspect).Methods(http.MethodGet)
	r.HandleFunc("/v1/minid", s.handleMinID).Methods(http.MethodGet)
	r.HandleFunc("/v1/healthz", s.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	s.srv = &http.Server{Handler: s.withRequestID(r)}
	return s
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.lis = l
	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(l) }()
	select {
	case <-ctx.Done():
		cctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.srv.Shutdown(cctx)
		return nil
	case err := <-errCh:
		return err
	}
}

// Close stops the listener.
func (s *Server) Close() {
	if s.lis != nil {
		_ = s.lis.Close()
	}
}

// LastTick returns the highest elapsed tick among issued IDs, for the
// checkpoint flusher.
func (s *Server) LastTick() uint64 {
	return s.lastTick.Load()
}

// mint is the caller-side control loop the generator core deliberately
// does not provide: sleep a tick on exhaustion, up to mintRetries.
func (s *Server) mint() (uint64, error) {
	for attempt := 0; attempt < s.mintRetries; attempt++ {
		id, err := s.gen.NextID()
		if err == nil {
			s.issued.Inc()
			s.observeTick(flake.Decompose(id).Time)
			return id, nil
		}
		if errors.Is(err, flake.ErrSequenceExhausted) {
			s.exhausted.Inc()
			time.Sleep(flake.TickDuration)
			continue
		}
		return 0, err
	}
	return 0, flake.ErrSequenceExhausted
}

func (s *Server) observeTick(tick uint64) {
	for {
		cur := s.lastTick.Load()
		if tick <= cur || s.lastTick.CompareAndSwap(cur, tick) {
			return
		}
	}
}

func (s *Server) handleMint(w http.ResponseWriter, r *http.Request) {
	defer s.observe("mint", time.Now())
	id, err := s.mint()
	if err != nil {
		s.writeMintError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": strconv.FormatUint(id, 10)})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	defer s.observe("batch", time.Now())
	n, err := strconv.Atoi(r.URL.Query().Get("n"))
	if err != nil || n < 1 {
		writeError(w, http.StatusBadRequest, "n must be a positive integer")
		return
	}
	if n > s.batchMax {
		writeError(w, http.StatusBadRequest, "n exceeds batch maximum "+strconv.Itoa(s.batchMax))
		return
	}
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id, err := s.mint()
		if err != nil {
			s.writeMintError(w, err)
			return
		}
		ids = append(ids, strconv.FormatUint(id, 10))
	}
	writeJSON(w, http.StatusOK, map[string][]string{"ids": ids})
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	defer s.observe("inspect", time.Now())
	id, err := strconv.ParseUint(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be an unsigned 64-bit integer")
		return
	}
	d := flake.Decompose(id)
	writeJSON(w, http.StatusOK, map[string]any{
		"id":         strconv.FormatUint(d.ID, 10),
		"time":       d.Time,
		"sequence":   d.Sequence,
		"machine_id": d.MachineID,
		"timestamp":  d.Timestamp(s.gen.Epoch()).Format(time.RFC3339Nano),
	})
}

func (s *Server) handleMinID(w http.ResponseWriter, r *http.Request) {
	defer s.observe("minid", time.Now())
	at, err := time.Parse(time.RFC3339, r.URL.Query().Get("t"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "t must be RFC3339")
		return
	}
	min := s.gen.MinIDForTime(at)
	writeJSON(w, http.StatusOK, map[string]string{"min_id": strconv.FormatUint(min, 10)})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"machine_id": s.gen.MachineID(),
		"epoch":      s.gen.Epoch().Format(time.RFC3339),
	})
}

func (s *Server) writeMintError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, flake.ErrSequenceExhausted):
		// Sustained over-capacity; the client should back off and retry.
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, flake.ErrTimeLimitExceeded):
		s.logger.Error("generator epoch exhausted, reconfiguration required", zap.Error(err))
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func (s *Server) observe(handler string, start time.Time) {
	s.duration.WithLabelValues(handler).Observe(time.Since(start).Seconds())
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-ID")
		if rid == "" {
			rid = xid.New().String()
		}
		w.Header().Set("X-Request-ID", rid)
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.String("request_id", rid),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

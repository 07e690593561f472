package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"btc-trend-watch/internal/config"
	"btc-trend-watch/internal/service"
)

// TrendProvider is the slice of the service the HTTP surface needs.
type TrendProvider interface {
	Price(ctx context.Context, currency string) (service.PriceReport, error)
	Trend(ctx context.Context, req service.TrendRequest) (service.TrendReport, error)
}

// Server exposes price and trend queries as a JSON HTTP API.
type Server struct {
	cfg    config.ServerConfig
	svc    TrendProvider
	logger zerolog.Logger
	srv    *http.Server
}

// New constructs the HTTP server.
func New(cfg config.ServerConfig, svc TrendProvider, logger zerolog.Logger) *Server {
	return &Server{
		cfg:    cfg,
		svc:    svc,
		logger: logger.With().Str("component", "http_server").Logger(),
	}
}

// Router builds the chi routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/price/{currency}", s.handlePrice)
		r.Get("/trend/{currency}", s.handleTrend)
	})

	return r
}

// Start serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.srv = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Router(),
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}

	go func() {
		<-ctx.Done()
		timeout := s.cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		_ = s.srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("addr", s.cfg.Addr).Msg("http server starting")
	if err := s.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) handlePrice(w http.ResponseWriter, r *http.Request) {
	currency := chi.URLParam(r, "currency")

	report, err := s.svc.Price(r.Context(), currency)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	req := service.TrendRequest{Currency: chi.URLParam(r, "currency")}

	query := r.URL.Query()
	var parseErr error
	req.ShortWindow, parseErr = intParam(query.Get("short"), parseErr)
	req.LongWindow, parseErr = intParam(query.Get("long"), parseErr)
	req.LookbackMinutes, parseErr = intParam(query.Get("lookback"), parseErr)
	if parseErr != nil {
		writeJSON(w, http.StatusBadRequest, service.ErrorReport{
			Error:   "invalid_window",
			Details: "short, long, and lookback must be integers",
		})
		return
	}

	if raw := query.Get("threshold_bps"); raw != "" {
		threshold, err := decimal.NewFromString(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, service.ErrorReport{
				Error:   "invalid_window",
				Details: "threshold_bps must be numeric",
			})
			return
		}
		req.ThresholdBps = threshold
	}

	if raw := query.Get("backfill"); raw != "" {
		allow, err := strconv.ParseBool(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, service.ErrorReport{
				Error:   "invalid_window",
				Details: "backfill must be a boolean",
			})
			return
		}
		req.AllowBackfill = &allow
	}

	report, err := s.svc.Trend(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func intParam(raw string, prior error) (int, error) {
	if prior != nil || raw == "" {
		return 0, prior
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	return value, nil
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := service.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Msg("request failed")
	}
	writeJSON(w, status, service.Describe(err))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

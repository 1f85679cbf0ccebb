package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"futuresquotes/internal/config"
	"futuresquotes/internal/quote"
)

const errFetching = "Error fetching data"

// pricesGetter is satisfied by *cache.Cache.
type pricesGetter interface {
	Get(ctx context.Context) quote.Prices
	LastRefresh() time.Time
}

type server struct {
	prices         pricesGetter
	symbols        []config.Symbol
	pushInterval   time.Duration
	requestTimeout time.Duration
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

type serverOption func(*server)

func withPushInterval(d time.Duration) serverOption {
	return func(s *server) {
		if d > 0 {
			s.pushInterval = d
		}
	}
}

func withRequestTimeout(d time.Duration) serverOption {
	return func(s *server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

func newServer(prices pricesGetter, symbols []config.Symbol, log zerolog.Logger, opts ...serverOption) *server {
	s := &server{
		prices:         prices,
		symbols:        symbols,
		pushInterval:   30 * time.Second,
		requestTimeout: 10 * time.Second,
		log:            log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(s.log))
	r.Use(withJSONHeaders)
	r.Use(recoverPanic(s.log))

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	r.Get("/healthz", s.handleHealth)
	r.Get("/ws", s.handleWS)
	r.Group(func(r chi.Router) {
		r.Use(middleware.Compress(5))
		r.Get("/prices", s.handlePrices)
		r.Get("/api/prices", s.handlePrices)
	})
	return r
}

// body renders the current prices keyed by alias, in the shape clients
// already consume. Symbols without a snapshot are rendered as null.
func (s *server) body(ctx context.Context) (b []byte, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("read prices: %v", rec)
		}
	}()
	prices := s.prices.Get(ctx)
	out := make(map[string]*quote.Snapshot, len(s.symbols))
	for _, sym := range s.symbols {
		out[sym.Alias] = prices[sym.ID]
	}
	return json.Marshal(out)
}

func (s *server) handlePrices(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	b, err := s.body(ctx)
	if err != nil {
		s.log.Error().Err(err).Msg("render prices")
		writeError(w, http.StatusInternalServerError, errFetching)
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if t := s.prices.LastRefresh(); !t.IsZero() {
		w.Header().Set("X-Last-Refresh", t.UTC().Format(time.RFC3339))
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: msg})
}

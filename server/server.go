package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/Ashenafi-pixel/jackpot-royale/config"
	"github.com/Ashenafi-pixel/jackpot-royale/persist"
	"github.com/Ashenafi-pixel/jackpot-royale/session"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// apiTimeout bounds plain request handlers. Streaming spins are exempt.
const apiTimeout = 30 * time.Second

type Server struct {
	cfg      *config.Config
	engine   *session.Engine
	writer   *persist.Writer
	log      *zap.Logger
	upgrader websocket.Upgrader
	now      func() time.Time
}

func New(cfg *config.Config, engine *session.Engine, writer *persist.Writer, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		cfg:    cfg,
		engine: engine,
		writer: writer,
		log:    log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		now: time.Now,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)

	// The spin stream lives outside the timeout group.
	r.Get("/api/sessions/{id}/spin/ws", s.spinStream)

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(apiTimeout))
		r.Route("/api", func(r chi.Router) {
			r.Post("/sessions", s.login)
			r.Get("/sessions/{id}", s.getSession)
			r.Delete("/sessions/{id}", s.endSession)
			r.Post("/sessions/{id}/stake", s.changeStake)
			r.Post("/sessions/{id}/spin", s.spin)
			r.Get("/jackpot", s.getJackpot)
			r.Get("/leaderboard", s.getLeaderboard)
			r.Get("/paytable", s.getPaytable)
		})

		// Endpoints of the original JSON server, kept for existing clients.
		r.Get("/load-jackpot", s.loadJackpot)
		r.Get("/save-jackpot", s.saveJackpot)
		r.Post("/save-jackpot", s.saveJackpot)
		r.Get("/load-users", s.loadUsers)
		r.Get("/save-user", s.saveUser)
		r.Post("/save-user", s.saveUser)
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", srv.Addr), zap.String("store", s.cfg.StoreDriver))
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	s.log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// requestLogger logs method, path, status and duration for each request (no body or secrets).
func (s *Server) requestLogger(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		h.ServeHTTP(ww, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "jackpot-royale"})
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

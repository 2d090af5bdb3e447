package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/npezzotti/go-pokerplan/internal/config"
	"github.com/npezzotti/go-pokerplan/internal/database"
	"github.com/npezzotti/go-pokerplan/internal/server"
	"github.com/teris-io/shortid"
)

type PokerApp struct {
	log            *log.Logger
	db             database.PokerRepository
	mux            *http.Server
	ps             *server.PokerServer
	allowedOrigins []string

	// overridable in tests
	generateRoomCode  func() (string, error)
	generateSessionId func() (string, error)
}

func NewPokerApp(mux *http.ServeMux, logger *log.Logger, ps *server.PokerServer, db database.PokerRepository, cfg *config.Config) *PokerApp {
	s := &PokerApp{
		log:               logger,
		db:                db,
		ps:                ps,
		allowedOrigins:    cfg.AllowedOrigins,
		generateSessionId: shortid.Generate,
	}
	s.generateRoomCode = s.newRoomCode

	mux.HandleFunc("POST /api/rooms", s.createRoom)
	mux.HandleFunc("POST /api/rooms/{roomId}/join", s.joinRoom)
	mux.HandleFunc("GET /api/rooms/{roomId}", s.getRoom)
	mux.HandleFunc("GET /ws", s.serveWs)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *PokerApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *PokerApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}

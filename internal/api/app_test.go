package api

import (
	"net/http"
	"testing"

	"github.com/npezzotti/go-pokerplan/internal/config"
	"github.com/npezzotti/go-pokerplan/internal/database"
	"github.com/npezzotti/go-pokerplan/internal/server"
	"github.com/npezzotti/go-pokerplan/internal/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNewPokerApp(t *testing.T) {
	mux := http.NewServeMux()
	logger := testutil.TestLogger(t)
	ps := &server.PokerServer{}
	db := &database.MockPokerRepository{}
	cfg := &config.Config{
		ServerAddr:     "localhost:8000",
		DatabaseDSN:    "dsn",
		AllowedOrigins: []string{"http://localhost:3000"},
		AllowLateVotes: true,
	}

	app := NewPokerApp(mux, logger, ps, db, cfg)

	assert.NotNil(t, app, "expected app to be initialized")
	assert.NotNil(t, app.mux, "expected mux to be initialized")
	assert.NotNil(t, app.log, "expected logger to be set")
	assert.NotNil(t, app.generateRoomCode, "expected room code generator to be set")
	assert.NotNil(t, app.generateSessionId, "expected session id generator to be set")
	assert.Equal(t, app.log, logger, "expected logger to be set")
	assert.Equal(t, app.db, db, "expected db to be set")
	assert.Equal(t, app.ps, ps, "expected poker server to be set")
	assert.Equal(t, app.allowedOrigins, cfg.AllowedOrigins, "expected allowed origins to be set")
	assert.Equal(t, app.mux.Addr, cfg.ServerAddr, "expected server address to match config")
}

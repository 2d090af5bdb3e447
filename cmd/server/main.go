package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/npezzotti/go-pokerplan/internal/api"
	"github.com/npezzotti/go-pokerplan/internal/config"
	"github.com/npezzotti/go-pokerplan/internal/database"
	"github.com/npezzotti/go-pokerplan/internal/server"
	"github.com/npezzotti/go-pokerplan/internal/stats"
)

type stringSliceFlag []string

func (s *stringSliceFlag) String() string {
	return strings.Join(*s, ",")
}

func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, strings.Split(value, ",")...)
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

var (
	addr           string
	dsn            string
	allowLateVotes bool
	allowedOrigins stringSliceFlag
)

func main() {
	// .env is optional, flags and real env vars win
	godotenv.Load()

	flag.StringVar(&addr, "addr", envOr("POKERPLAN_ADDR", "localhost:8000"), "server address")
	flag.StringVar(&dsn, "dsn", envOr("POKERPLAN_DSN",
		"host=localhost user=postgres password=postgres dbname=postgres sslmode=disable"), "database connection string")
	flag.BoolVar(&allowLateVotes, "allow-late-votes", true, "accept estimate submissions after a vote is revealed")
	flag.Var(&allowedOrigins, "allowed-origins", "comma-separated list of allowed origins for CORS")
	flag.Parse()

	logger := log.New(os.Stderr, "[pokerplan] ", log.LstdFlags)

	cfg, err := config.NewConfig(addr, dsn, allowedOrigins, allowLateVotes)
	if err != nil {
		logger.Fatal("config:", err)
	}

	dbConn, err := database.NewPgPokerRepository(cfg.DatabaseDSN)
	if err != nil {
		logger.Fatal("db open:", err)
	}
	defer func() {
		if err := dbConn.Close(); err != nil {
			logger.Fatal("db close:", err)
		}
	}()

	if err := dbConn.Migrate(); err != nil {
		logger.Fatal("migrate:", err)
	}

	mux := http.NewServeMux()

	statsUpdater := stats.NewStatsUpdater(mux)

	pokerServer, err := server.NewPokerServer(logger, dbConn, statsUpdater, cfg)
	if err != nil {
		logger.Fatal("new poker server:", err)
	}

	srv := api.NewPokerApp(mux, logger, pokerServer, dbConn, cfg)

	statsUpdater.Run()
	defer statsUpdater.Stop()

	go pokerServer.Run()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigs:
		logger.Printf("received signal: %s\n", sig)
	case err := <-errCh:
		logger.Println("server:", err)
	}

	shutDownCtx, cancel := context.WithTimeout(
		context.Background(),
		10*time.Second,
	)
	defer cancel()

	if err := srv.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("HTTP server shutdown:", err)
	}

	logger.Println("shutting down poker server...")
	if err := pokerServer.Shutdown(shutDownCtx); err != nil {
		logger.Fatalln("poker server shutdown:", err)
	}

	logger.Println("shutdown complete")
}

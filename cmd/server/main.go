// cmd/server/main.go
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/viksharma04/ludo-stacked-backend/internal/auth"
	"github.com/viksharma04/ludo-stacked-backend/internal/cache"
	"github.com/viksharma04/ludo-stacked-backend/internal/config"
	"github.com/viksharma04/ludo-stacked-backend/internal/server/connection"
	"github.com/viksharma04/ludo-stacked-backend/internal/server/room"
	"github.com/viksharma04/ludo-stacked-backend/internal/server/ws"
	"github.com/viksharma04/ludo-stacked-backend/internal/shared/constants"
	"github.com/viksharma04/ludo-stacked-backend/pkg/database"
)

func main() {
	configPath := flag.String("config", "configs/server.yaml", "path to config file")
	migrate := flag.Bool("migrate", false, "run database migrations then continue")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	log, err := buildLogger(cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	if cfg.Server.ServerID == "" {
		host, _ := os.Hostname()
		cfg.Server.ServerID = host
	}

	// Connexion à la base de données
	db, err := database.NewDB(cfg.DSN())
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()
	if *migrate {
		if err := db.Migrate(); err != nil {
			log.Fatal("migrations failed", zap.Error(err))
		}
	}
	log.Info("connected to database")

	// Cache Redis : best-effort, le serveur démarre même sans lui
	var cacheClient *cache.Client
	if cfg.Redis.URL != "" {
		cacheClient, err = cache.New(cfg.Redis.URL, cfg.Redis.Token)
		if err != nil {
			log.Warn("redis unavailable, continuing without cache", zap.Error(err))
			cacheClient = nil
		} else {
			defer cacheClient.Close()
			log.Info("connected to redis")
		}
	}

	validator := auth.NewValidator(cfg.Supabase.URL, cfg.Supabase.AnonKey)
	presence := cache.NewPresence(cacheClient, log)
	manager := connection.NewManager(log)
	rooms := room.NewService(db, cacheClient, manager, log)
	endpoint := ws.NewEndpoint(cfg, validator, presence, manager, rooms, log)

	mux := http.NewServeMux()
	mux.HandleFunc(constants.WSPath, endpoint.Handler())
	mux.HandleFunc("/healthz", healthz(db, cacheClient))

	httpServer := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  90 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("server ready",
			zap.String("addr", httpServer.Addr),
			zap.String("ws_path", constants.WSPath),
			zap.String("server_id", cfg.Server.ServerID))
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info("shutting down")

		// Les sockets partent en going_away, les sessions s'arrêtent,
		// puis le serveur HTTP se vide
		manager.CloseAll()
		rooms.Shutdown()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
	log.Info("server stopped")
}

// buildLogger construit le logger selon le mode debug
func buildLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// healthz expose l'état des dépendances
func healthz(db *database.DB, c *cache.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			http.Error(w, "database unreachable", http.StatusServiceUnavailable)
			return
		}
		if c != nil {
			if err := c.Ping(r.Context()); err != nil {
				http.Error(w, "cache unreachable", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}

// Package server implements the logagent HTTP API.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/monobilisim/logagent/common"
	"github.com/monobilisim/logagent/common/api/cache"
	"github.com/monobilisim/logagent/common/api/ingest"
	"github.com/monobilisim/logagent/common/api/logbuffer"
	"github.com/monobilisim/logagent/common/api/logstore"
	"github.com/monobilisim/logagent/common/api/models"
	"github.com/monobilisim/logagent/common/telemetry"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

// LoadConfig reads the server section of the shared config file.
func LoadConfig() models.ServerConfig {
	viper.SetDefault("server.port", "9989")
	viper.SetDefault("server.url", "http://localhost:9989")

	return models.ServerConfig{
		Port: viper.GetString("server.port"),
		URL:  viper.GetString("server.url"),
	}
}

type ServerDeps struct {
	LoadConfig  func() (models.ServerConfig, models.StoreConfig)
	OpenDB      func(cfg models.StoreConfig) (*gorm.DB, error)
	SetupDB     func(store *logstore.Store, cfg models.StoreConfig)
	BuildRouter func(api *API) *gin.Engine
	RunRouter   func(ctx context.Context, r *gin.Engine, cfg models.ServerConfig) error
}

func serverMainWithDeps(ctx context.Context, deps ServerDeps) error {
	serverCfg, storeCfg := deps.LoadConfig()

	db, err := deps.OpenDB(storeCfg)
	if err != nil {
		return fmt.Errorf("failed to open log store: %w", err)
	}
	store := logstore.New(db, storeCfg.DefaultLimit)
	deps.SetupDB(store, storeCfg)

	if err := cache.InitCache(cache.LoadConfig()); err != nil {
		log.Warn().Str("component", "api").Err(err).Msg("Continuing without search cache")
	}
	defer cache.CloseCache()
	cached := cache.NewCachedStore(store, cache.GlobalCache)

	logBuf := logbuffer.NewBuffer(store, logbuffer.LoadConfig(), func(int) {
		cached.Invalidate(context.Background())
	})
	logBuf.Start()
	defer logBuf.Close()

	if amqpCfg := ingest.LoadConfig(); amqpCfg.Enabled {
		consumer := ingest.NewConsumer(amqpCfg, logBuf)
		go consumer.Run(ctx)
	}

	api := &API{
		Search: cached,
		Count:  cached,
		Queue:  logBuf,
		Sink:   telemetry.NewCounter("api"),
	}

	r := deps.BuildRouter(api)
	return deps.RunRouter(ctx, r, serverCfg)
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(api *API) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())
	setupRoutes(r, api)
	return r
}

// requestLogger logs each request through zerolog instead of gin's writer.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("component", "api").
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("Request handled")
	}
}

func runRouter(ctx context.Context, r *gin.Engine, cfg models.ServerConfig) error {
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("component", "api").Str("addr", srv.Addr).Msg("Logagent API listening")
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
	log.Info().Str("component", "api").Msg("Shutting down API server")
	return srv.Shutdown(shutdownCtx)
}

// ServerMain is the entry point of the server command.
func ServerMain(cmd *cobra.Command, args []string) {
	if err := common.Init(true); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to load config:", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	defaultDeps := ServerDeps{
		LoadConfig: func() (models.ServerConfig, models.StoreConfig) {
			serverCfg := LoadConfig()
			if port, _ := cmd.Flags().GetString("port"); port != "" {
				serverCfg.Port = port
			}
			fmt.Println("Logagent API Server - v" + common.Version + " - " + time.Now().Format("2006-01-02 15:04:05"))
			return serverCfg, logstore.LoadConfig()
		},
		OpenDB: logstore.Open,
		SetupDB: func(store *logstore.Store, cfg models.StoreConfig) {
			if cfg.SeedCount <= 0 {
				return
			}
			if _, err := store.SeedIfEmpty(ctx, cfg.SeedCount); err != nil {
				log.Error().Str("component", "api").Str("operation", "seed").Err(err).Msg("Failed to seed log store")
			}
		},
		BuildRouter: func(api *API) *gin.Engine {
			gin.SetMode(gin.ReleaseMode)
			return NewRouter(api)
		},
		RunRouter: runRouter,
	}

	if err := serverMainWithDeps(ctx, defaultDeps); err != nil {
		log.Error().Str("component", "api").Err(err).Msg("Server exited with error")
		os.Exit(1)
	}
}

// ServerMainWithDeps exposes the dependency-injected main for testing.
func ServerMainWithDeps(ctx context.Context, deps ServerDeps) error {
	return serverMainWithDeps(ctx, deps)
}

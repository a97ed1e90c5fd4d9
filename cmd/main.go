package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"bambu_bridge/internal/bambu"
	"bambu_bridge/internal/ftps"
	"bambu_bridge/internal/handlers"
	"bambu_bridge/internal/logger"
	"bambu_bridge/internal/notify"
	"bambu_bridge/internal/repository"
	"bambu_bridge/internal/repository/db"
	"bambu_bridge/internal/server"
	"bambu_bridge/internal/service"
	"bambu_bridge/internal/state"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	configDir := pflag.String("config", "configs", "directory holding config.yml")
	logLevel := pflag.String("log-level", "", "override log level (debug|info|warn|error)")
	pflag.Parse()

	// load config.yml before the logger so log.level from the file applies
	if err := loadConfig(*configDir); err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	level := viper.GetString("log.level")
	if *logLevel != "" {
		level = *logLevel
	}
	if level == "" {
		level = logger.InfoLevel
	}
	log := logger.Get(level)

	// open DB
	conn, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			log.Fatalw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	repos := repository.NewRepository(conn)

	store := state.NewStore()
	tracker := state.NewTracker()
	hub := notify.NewHub(log.Named("notify"))
	syncer := service.NewSyncer(store, tracker, repos.Jobs, hub, log.Named("sync"))

	link := bambu.NewLink(bambu.LinkConfig{
		Host:       viper.GetString("bambu.host"),
		Port:       viper.GetInt("bambu.mqtt_port"),
		Serial:     viper.GetString("bambu.serial"),
		AccessCode: viper.GetString("bambu.access_code"),
		RetryDelay: viper.GetDuration("link.retry_delay"),
	}, syncer.Apply, log.Named("bambu"))

	remote := ftps.NewClient(ftps.Config{
		Host:     viper.GetString("bambu.host"),
		Port:     viper.GetInt("ftps.port"),
		User:     viper.GetString("ftps.user"),
		Password: viper.GetString("bambu.access_code"),
		BasePath: viper.GetString("ftps.base_path"),
	}, log.Named("ftps"))

	services := service.NewService(service.Deps{
		Link:   link,
		Store:  store,
		Remote: remote,
		Repos:  repos,
		Echo:   syncer.Apply,
		Cfg: service.Config{
			Serial:       viper.GetString("bambu.serial"),
			FileCacheTTL: viper.GetDuration("cache.file_ttl"),
			SigningKey:   viper.GetString("auth.signing_key"),
			TokenTTL:     viper.GetDuration("auth.token_ttl"),
		},
		Log: log,
	})
	apiHandler := handlers.NewHandler(services, store, hub, log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// device session and notification heartbeat
	go link.Run(ctx)
	go hub.Run(ctx)

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("http.port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
}

func loadConfig(dir string) error {
	viper.AddConfigPath(dir) // configs/config.yml
	viper.SetConfigName("config")
	viper.SetEnvPrefix("bambu")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()
	return viper.ReadInConfig()
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "bridge.db")
		dbPath = "bridge.db"
	}
	return db.InitDB(dbPath)
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "7125"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop the device link, the hub heartbeat, and in-flight requests
	cancel()

	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}

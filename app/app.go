// Package app wires the realtime core together: the relay hub and the REST
// surface share one SQLite database and one token secret.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"example.com/campus-chat/internal/api"
	"example.com/campus-chat/pkg/server"
	"example.com/campus-chat/store"
	"example.com/campus-chat/ws"
)

type App struct {
	config   *Config
	logger   *slog.Logger
	db       *SQLiteDB
	hub      *ws.ConnHub
	registry *ws.RoomRegistry
	relay    *ws.Relay
	server   *server.Server
}

func New(ctx context.Context, config *Config) (*App, error) {
	if config == nil {
		var err error
		config, err = LoadConfig()
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config:\n%s", FormatValidationErrors(err))
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.SourceKey {
				source, _ := a.Value.Any().(*slog.Source)
				if source != nil {
					source.File = filepath.Base(source.File)
				}
			}
			return a
		},
	}))

	db, err := NewSQLiteDB(config.SQLite.File, config.SQLite.Migrations, &SQLiteDBOption{
		Mode:        "rwc",
		JournalMode: "WAL",
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	tokenOptions := ws.TokenOptions{
		Secret: []byte(config.Auth.Secret),
		Exp:    config.Auth.TokenExp,
	}

	hub := ws.New(
		ws.NewWSConnFactory(),
		ws.NewTokenAuthenticator(tokenOptions),
		ws.WithLogger(logger),
		ws.WithBaseContext(ctx),
	)
	router := ws.NewRouter(hub)

	registry := ws.NewRoomRegistry()
	messageStore := store.NewSQLiteMessageStore(db.DB)
	relay := ws.NewRelay(registry, messageStore, ws.WithRelayLogger(logger))
	relay.Bind(router)
	hub.OnDisconnect(relay.HandleDisconnect)

	_api := api.NewApi(ctx, db.DB, api.ApiConfig{
		TokenOptions:   tokenOptions,
		AllowedOrigins: config.AllowedOrigins,
		STUNServers:    config.STUN,
	})

	root := chi.NewRouter()
	root.Mount("/api", _api.Mux())
	root.Handle("/ws", hub)

	app := &App{
		config:   config,
		logger:   logger,
		db:       db,
		hub:      hub,
		registry: registry,
		relay:    relay,
	}
	app.server = &server.Server{
		Server: &http.Server{
			Addr:    fmt.Sprintf("%s:%d", config.Hostname, config.Port),
			Handler: root,
		},
		Logger: logger,
		CleanUpFuncs: []func(ctx context.Context){
			func(context.Context) { app.hub.Close() },
			func(context.Context) { app.db.Close() },
		},
	}
	return app, nil
}

// Start runs the hub and serves HTTP until ctx is cancelled.
func (app *App) Start(ctx context.Context) {
	app.hub.Start()
	app.logger.Info(fmt.Sprintf("listening on %s:%d", app.config.Hostname, app.config.Port))
	app.server.Start(ctx)
}

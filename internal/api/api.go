package api

import (
	"context"
	"database/sql"
	"net/http"

	"github.com/go-chi/cors"

	"example.com/campus-chat/store"
	"example.com/campus-chat/ws"
)

type ApiConfig struct {
	TokenOptions   ws.TokenOptions
	AllowedOrigins []string
	// STUNServers are the ICE server URLs handed to clients.
	STUNServers []string
}

type Api struct {
	db      *sql.DB
	mux     *ApiMux
	context context.Context
	config  ApiConfig
}

func NewApi(ctx context.Context, db *sql.DB, config ApiConfig) *Api {
	api := &Api{
		db:      db,
		mux:     NewApiRouter(),
		context: ctx,
		config:  config,
	}
	api.mountHandlers()
	return api
}

func (a *Api) Mux() http.Handler {
	return a.mux
}

func (a *Api) mountHandlers() {
	messageStore := store.NewSQLiteMessageStore(a.db)

	chatHandler := NewChatHandler(messageStore)

	origins := a.config.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	a.mux.Router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowCredentials: true,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
	}))

	a.mux.Route("/rooms", func(r *ApiMux) {
		r.Use(JWTMiddleware(a.config.TokenOptions))
		r.Get("/{roomID}/messages", chatHandler.GetRoomMessagesHandler)
	})

	rtcHandler := NewRTCHandler(a.config.STUNServers)
	a.mux.Route("/rtc", func(r *ApiMux) {
		r.Use(JWTMiddleware(a.config.TokenOptions))
		r.Get("/config", rtcHandler.GetConfigHandler)
	})
}

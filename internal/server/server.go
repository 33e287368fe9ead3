package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/berfenger/multitek2mqtt/internal/config"
	"github.com/berfenger/multitek2mqtt/internal/core/entity"

	"github.com/asynkron/protoactor-go/actor"
	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
)

type Server struct {
	port        uint
	httpLog     bool
	rootContext *actor.RootContext
	masterActor *actor.PID
	platforms   map[string]*entity.Platform
	order       []string
	logger      *zap.Logger
}

func NewServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID, platforms []*entity.Platform, logger *zap.Logger) *http.Server {
	NewServer := newServer(cfg, rootContext, masterActor, platforms, logger)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}

func newServer(cfg config.Config, rootContext *actor.RootContext, masterActor *actor.PID, platforms []*entity.Platform, logger *zap.Logger) *Server {
	s := &Server{
		port:        cfg.Port,
		httpLog:     cfg.HttpLog,
		rootContext: rootContext,
		masterActor: masterActor,
		platforms:   make(map[string]*entity.Platform, len(platforms)),
		logger:      logger.With(zap.String("component", "http")),
	}
	for _, p := range platforms {
		s.platforms[p.TabletId()] = p
		s.order = append(s.order, p.TabletId())
	}
	return s
}

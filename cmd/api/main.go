package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	adactor "github.com/berfenger/multitek2mqtt/internal/adapter/actor"
	"github.com/berfenger/multitek2mqtt/internal/config"
	"github.com/berfenger/multitek2mqtt/internal/core/actor"
	"github.com/berfenger/multitek2mqtt/internal/core/domain"
	"github.com/berfenger/multitek2mqtt/internal/server"
	"github.com/berfenger/multitek2mqtt/internal/util/actorutil"
	"github.com/berfenger/multitek2mqtt/pkg/multitek"

	pactor "github.com/asynkron/protoactor-go/actor"
	"github.com/asynkron/protoactor-go/eventstream"
	"github.com/carlmjohnson/versioninfo"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const startupTimeout = time.Minute

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "multitek2mqtt",
		Short:        "Multitek tablet to MQTT bridge",
		Version:      versioninfo.Short(),
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), discoverCmd(), testAuthCmd())
	return root
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Poll the configured tablets and bridge them to MQTT",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := initConfig()
			if err != nil {
				return fmt.Errorf("config errors: %w", err)
			}
			safePrintConfig(*cfg)
			return serve(cfg)
		},
	}
}

func gracefulShutdown(apiServer *http.Server, logger *zap.Logger, done chan bool) {
	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()

	logger.Info("shutting down gracefully, press Ctrl+C again to force")

	// the server has 5 seconds to finish the requests it is handling
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := apiServer.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server exiting")

	done <- true
}

func serve(cfg *config.Config) error {
	logger := newLogger(cfg)
	defer logger.Sync()

	as := actorutil.NewActorSystemWithZapLogger(logger)
	defer as.Shutdown()
	ctx := as.Root

	props := actor.MasterProps(*cfg, clientProvider(logger), mqttActorProvider(cfg, logger), logger)
	pid, err := ctx.SpawnNamed(props, domain.ACTOR_ID_MASTER)
	if err != nil {
		return err
	}
	defer ctx.StopFuture(pid).Wait()

	if err := waitReady(ctx, pid); err != nil {
		logger.Error("tablets not ready", zap.Error(err))
		return err
	}

	res, err := ctx.RequestFuture(pid, actor.PlatformsRequest{}, 5*time.Second).Result()
	if err != nil {
		return err
	}
	platforms := res.(actor.PlatformsResponse).Platforms

	server := server.NewServer(*cfg, ctx, pid, platforms, logger)
	done := make(chan bool, 1)

	go gracefulShutdown(server, logger, done)

	logger.Info("listening", zap.String("addr", server.Addr))
	err = server.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server error: %w", err)
	}

	<-done
	logger.Info("graceful shutdown complete")
	return nil
}

// waitReady blocks until every tablet finished its first refresh.
func waitReady(ctx *pactor.RootContext, pid *pactor.PID) error {
	res, err := ctx.RequestFuture(pid, domain.ReadyRequest{}, startupTimeout).Result()
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrNotReady, err)
	}
	resp, ok := res.(domain.ReadyResponse)
	if !ok {
		return fmt.Errorf("%w: unexpected response %T", domain.ErrNotReady, res)
	}
	return resp.GetResponseError()
}

func newLogger(cfg *config.Config) *zap.Logger {
	zapCfg := zap.NewProductionConfig()
	zapCfg.Level = zap.NewAtomicLevelAt(cfg.LogLevel)
	return zap.Must(zapCfg.Build())
}

func newClient(tablet config.TabletConfig, logger *zap.Logger) *multitek.HTTPClient {
	return multitek.NewHTTPClient(multitek.Options{
		Host:    tablet.Host,
		Port:    tablet.Port,
		APIKey:  tablet.APIKey,
		UseAuth: tablet.UseAuth,
		Logger:  logger.With(zap.String("tablet", tablet.TabletId())),
	})
}

func clientProvider(logger *zap.Logger) actor.ClientProvider {
	return func(tablet config.TabletConfig) multitek.Client {
		return newClient(tablet, logger)
	}
}

func mqttActorProvider(cfg *config.Config, logger *zap.Logger) actor.MQTTActorProvider {
	return func(es *eventstream.EventStream) *adactor.MQTTActor {
		return adactor.NewMQTTActor(cfg, es, logger)
	}
}

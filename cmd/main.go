package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wp-labs/wp-motor/internal/config"
	"github.com/wp-labs/wp-motor/internal/metrics"
	"github.com/wp-labs/wp-motor/internal/orchestrator"
)

const shutdownTimeout = 10 * time.Second

func main() {
	var configFile string
	flag.StringVar(&configFile, "config", "", "Path to configuration file")
	flag.Parse()

	if configFile == "" {
		if envConfigFile := os.Getenv("WPMOTOR_CONFIG_FILE"); envConfigFile != "" {
			configFile = envConfigFile
		} else {
			configFile = "/app/configs/config.yaml"
		}
	}

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.WithField("config", configFile).Info("wp-motor starting")

	cfg, err := config.Load(configFile)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	o, err := orchestrator.Build(cfg, log)
	if err != nil {
		log.WithError(err).Fatal("failed to build orchestrator")
	}

	var metricsServer *metrics.MetricsServer
	if cfg.Metrics.Addr != "" {
		metricsServer = metrics.NewMetricsServer(cfg.Metrics.Addr, log)
		if err := metricsServer.Start(); err != nil {
			log.WithError(err).Fatal("failed to start metrics server")
		}
		defer metricsServer.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.WithField("signal", sig.String()).Info("shutdown signal received")
		cancel()
	}()

	runErr := o.Run(ctx)
	if shutdownErr := o.Shutdown(shutdownTimeout); shutdownErr != nil {
		log.WithError(shutdownErr).Error("orchestrator shutdown did not complete cleanly")
	}
	if runErr != nil && runErr != context.Canceled {
		log.WithError(runErr).Fatal("wp-motor exited with error")
	}
	log.Info("wp-motor stopped")
}

package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	jfy "github.com/zing-dev/jfy-inverter-sdk"
	"github.com/zing-dev/jfy-inverter-sdk/internal/config"
	"github.com/zing-dev/jfy-inverter-sdk/internal/logging"
)

func main() {
	configPath := pflag.StringP("config", "c", "", "config file (yaml, toml or json)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}
	logger, err := logging.InitLogger(cfg.Logging)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	handler := jfy.NewHandler(cfg.Serial.Address)
	handler.BaudRate = cfg.Serial.BaudRate
	handler.DataBits = cfg.Serial.DataBits
	handler.StopBits = cfg.Serial.StopBits
	handler.Parity = cfg.Serial.Parity
	handler.Timeout = cfg.Serial.Timeout
	handler.IdleTimeout = cfg.Serial.IdleTimeout
	handler.Logger = logger.Named("serial")
	if err := handler.Connect(); err != nil {
		logger.Fatal("connect", zap.Error(err))
	}
	defer handler.Close()

	opts := []jfy.ClientOption{jfy.WithLogger(logger.Named("jfy"))}
	if cfg.Metrics.Enable {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector())
		opts = append(opts, jfy.WithMetrics(jfy.NewMetrics(reg)))
		srv := serveMetrics(cfg.Metrics, reg, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}
	client := jfy.NewClient(handler, opts...)

	address := cfg.Inverter.Address
	if cfg.Inverter.Register {
		if err := register(client, address, logger); err != nil {
			logger.Fatal("register inverter", zap.Error(err))
		}
	}
	if err := describe(client, address); err != nil {
		logger.Error("describe inverter", zap.Error(err))
	}
	poll(ctx, client, cfg.Poll, address, logger)
}

func serveMetrics(cfg config.MetricsConfig, reg *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{Addr: cfg.Addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", zap.Error(err))
		}
	}()
	return srv
}

// register drops existing registrations and assigns address to the
// first device that answers the offline query.
func register(client *jfy.Client, address byte, logger *zap.Logger) error {
	if err := client.ReRegister(); err != nil {
		return err
	}
	serial, err := client.OfflineQuery()
	if err != nil {
		return err
	}
	logger.Info("found inverter", zap.String("serial", serial))
	if err := client.Register(serial, address); err != nil {
		return err
	}
	logger.Info("registered inverter", zap.String("serial", serial), zap.Uint8("address", address))
	return nil
}

func describe(client *jfy.Client, address byte) error {
	description, err := client.Description(address)
	if err != nil {
		return err
	}
	rwDescription, err := client.RWDescription(address)
	if err != nil {
		return err
	}
	info, err := client.QueryInverterInfo(address)
	if err != nil {
		return err
	}
	settings, err := client.QuerySetInfo(address)
	if err != nil {
		return err
	}
	return printYAML(map[string]interface{}{
		"description":    description,
		"rw_description": rwDescription,
		"inverter":       info,
		"settings":       settings,
	})
}

func poll(ctx context.Context, client *jfy.Client, cfg config.PollConfig, address byte, logger *zap.Logger) {
	ticker := time.NewTicker(cfg.Interval)
	defer ticker.Stop()

	for n := 0; cfg.Count == 0 || n < cfg.Count; n++ {
		info, err := client.QueryNormalInfo(address)
		if err != nil {
			logger.Error("query normal info", zap.Error(err))
		} else if err := printYAML(map[string]interface{}{"time": time.Now().Format(time.RFC3339), "normal": info}); err != nil {
			logger.Error("print", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func printYAML(v interface{}) error {
	enc := yaml.NewEncoder(os.Stdout)
	defer enc.Close()
	return enc.Encode(v)
}

// Command pulsewire starts the realtime broker's HTTP surface: the
// WebSocket handshake route, the subscription-auth endpoint, the publish
// endpoint, and channel introspection.
package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/pulsewire/broker/internal/app"
	"github.com/pulsewire/broker/internal/config"
	"github.com/pulsewire/broker/internal/httpapi"
	"github.com/pulsewire/broker/internal/logger"
	"github.com/pulsewire/broker/internal/stats"
)

// defaultAppID, defaultAppKey and defaultAppSecret describe the development
// tenant bootstrapped on every boot unless administratively overridden.
const (
	defaultAppID     = "test"
	defaultAppKey    = "test"
	defaultAppSecret = "test"
)

func main() {
	cfg := config.FromEnv()
	logger.Initialize(cfg.LogLevel, cfg.LogPretty)

	apps := app.NewRegistry()
	apps.Add(app.New(defaultAppID, defaultAppKey, defaultAppSecret))

	if extra, err := config.LoadApps(cfg.AppsFile); err != nil {
		log.Fatalf("failed to load apps config %q: %v", cfg.AppsFile, err)
	} else {
		for _, a := range extra {
			apps.Add(app.New(a.ID, a.Key, a.Secret))
			logger.Log.Info().Str("app_id", a.ID).Msg("bootstrapped application from config file")
		}
	}

	reporter := stats.NewReporter(apps)
	if err := reporter.Start("@every 30s"); err != nil {
		log.Fatalf("failed to start stats reporter: %v", err)
	}
	defer reporter.Stop()

	server := httpapi.NewServer(apps)

	addr := fmt.Sprintf("%s:%d", cfg.BindAddr, cfg.Port)
	logger.Log.Info().Str("addr", addr).Msg("pulsewire listening")
	if err := http.ListenAndServe(addr, server.Handler()); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

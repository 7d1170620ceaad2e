package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/ducminhle1904/crypto-risk-engine/internal/config"
	"github.com/ducminhle1904/crypto-risk-engine/internal/featuregate"
	"github.com/ducminhle1904/crypto-risk-engine/internal/logger"
	"github.com/ducminhle1904/crypto-risk-engine/internal/notifications"
	"github.com/ducminhle1904/crypto-risk-engine/internal/strategy"
)

// loadConfig reads the configuration and resolves the selected profile
func loadConfig() (*config.Config, strategy.Profile, error) {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return nil, strategy.Profile{}, err
	}
	reg, err := cfg.Registry()
	if err != nil {
		return nil, strategy.Profile{}, err
	}
	profile, err := reg.Get(cfg.Strategy.Profile)
	if err != nil {
		return nil, strategy.Profile{}, err
	}
	return cfg, profile, nil
}

// alerts is the assembled notification pipeline
type alerts struct {
	notifier notifications.Notifier
	hub      *notifications.Hub
	closers  []func()
}

func (a *alerts) Close() {
	for _, c := range a.closers {
		c()
	}
}

// buildAlerts wires the enabled sinks behind one dispatcher. A sink that
// cannot connect is logged and left out; alerts never stop the engine.
func buildAlerts(ctx context.Context, cfg *config.Config, log *logger.Logger) *alerts {
	n := cfg.Notifications
	a := &alerts{notifier: notifications.Nop{}}

	var sinks []notifications.Sink
	var sinkClosers []func()
	if n.Telegram.Enabled {
		sinks = append(sinks, notifications.NewTelegramNotifier(n.Telegram.Token, n.Telegram.ChatID))
	}
	if n.Discord.Enabled {
		sinks = append(sinks, notifications.NewDiscordNotifier(n.Discord.WebhookURL))
	}
	if n.AMQP.Enabled {
		pub, err := notifications.NewAMQPPublisher(ctx, n.AMQP.URL, n.AMQP.Queue, log)
		if err != nil {
			log.LogWarning("notifications", "AMQP sink disabled: %v", err)
		} else {
			sinks = append(sinks, pub)
			sinkClosers = append(sinkClosers, pub.Close)
		}
	}
	if n.WebSocket.Enabled && cfg.Monitoring.Enabled {
		a.hub = notifications.NewHub(n.WebSocket.AllowedOrigins, log)
		sinks = append(sinks, a.hub)
	}
	if len(sinks) == 0 {
		return a
	}

	d := notifications.NewDispatcher(n.Dispatcher, log, sinks...)
	// the dispatcher drains before its sinks close
	a.closers = append([]func(){d.Close}, sinkClosers...)
	a.notifier = d
	if len(n.Events) > 0 {
		allowed := make([]notifications.EventType, 0, len(n.Events))
		for _, e := range n.Events {
			allowed = append(allowed, notifications.EventType(strings.ToUpper(e)))
		}
		a.notifier = notifications.NewFilter(d, allowed...)
	}
	log.Info("📣 Notifications: %s", strings.Join(d.Sinks(), ", "))
	return a
}

// buildFeatureGate returns the static answer or the license on disk
func buildFeatureGate(ctx context.Context, cfg *config.Config, log *logger.Logger) (featuregate.Gate, error) {
	if cfg.FeatureGate.Mode != "license" {
		return featuregate.Static(cfg.FeatureGate.Automation), nil
	}
	lic, err := featuregate.LoadLicense(cfg.FeatureGate.LicenseFile)
	if err != nil {
		return nil, fmt.Errorf("feature gate: %w", err)
	}
	status := lic.Status()
	log.Info("🔑 License tier %s, automation permitted: %t", status.Tier, lic.AutomationPermitted(ctx))
	return lic, nil
}

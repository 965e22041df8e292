// Package integration wires the outbound relays that carry outcome toasts
// beyond the console.
package integration

import (
	"context"
	"fmt"
	"log/slog"

	"cardadmin/service/config"
	"cardadmin/service/delivery"
	"cardadmin/service/integration/telegram"
	"cardadmin/service/integration/webpush"
)

const ChannelLive = "live"

type Integration interface {
	Name() string
	// Start checks the relay. A permanent error takes it out of the publisher.
	Start(ctx context.Context, logger *slog.Logger) error
	IsEnabled() bool
	Health(ctx context.Context) (linked bool, account string)
}

type Status struct {
	Linked   bool   `json:"linked"`
	Account  string `json:"account,omitempty"`
	Relaying bool   `json:"relaying"`
}

type Integrations struct {
	Publisher    *delivery.Publisher
	Telegram     *telegram.Integration
	WebPush      *webpush.Integration
	integrations []Integration
}

// Initialize builds the publisher. live receives every toast; the external
// relays are registered only when configured.
func Initialize(cfg *config.Config, live delivery.Sender, logger *slog.Logger) (*Integrations, error) {
	telegramIntegration, err := telegram.NewIntegration(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram: %w", err)
	}

	webpushIntegration, err := webpush.NewIntegration(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize webpush: %w", err)
	}

	publisher := delivery.NewPublisher(logger, cfg.RelayMaxRetries, cfg.RelayBaseDelay)
	if live != nil {
		publisher.RegisterSender(ChannelLive, live)
	}
	if telegramIntegration.Sender != nil {
		publisher.RegisterSender(telegramIntegration.Name(), telegramIntegration.Sender)
	}
	if webpushIntegration.Sender != nil {
		publisher.RegisterSender(webpushIntegration.Name(), webpushIntegration.Sender)
	}

	return &Integrations{
		Publisher:    publisher,
		Telegram:     telegramIntegration,
		WebPush:      webpushIntegration,
		integrations: []Integration{telegramIntegration, webpushIntegration},
	}, nil
}

func (i *Integrations) Start(ctx context.Context, logger *slog.Logger) {
	for _, integration := range i.integrations {
		if !integration.IsEnabled() {
			continue
		}
		err := integration.Start(ctx, logger)
		if err == nil {
			continue
		}
		if delivery.IsPermanent(err) {
			i.Publisher.DeregisterSender(integration.Name())
			logger.Warn("Relay disabled", "relay", integration.Name(), "error", err)
			continue
		}
		logger.Error("Relay check failed", "relay", integration.Name(), "error", err)
	}
}

// Health reports every enabled relay by name.
func (i *Integrations) Health(ctx context.Context) map[string]Status {
	out := make(map[string]Status)
	for _, integration := range i.integrations {
		if !integration.IsEnabled() {
			continue
		}
		linked, account := integration.Health(ctx)
		out[integration.Name()] = Status{
			Linked:   linked,
			Account:  account,
			Relaying: i.Publisher.HasSender(integration.Name()),
		}
	}
	return out
}

// Close waits for queued relays to finish.
func (i *Integrations) Close() {
	i.Publisher.Close()
}

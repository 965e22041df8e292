package webpush

import (
	"context"
	"log/slog"
	"net/url"

	"cardadmin/service/config"
)

type Integration struct {
	endpoint string
	Sender   *Sender
}

func NewIntegration(cfg *config.Config, logger *slog.Logger) (*Integration, error) {
	w := &Integration{endpoint: cfg.WebPushEndpoint}
	if !cfg.IsWebPushEnabled() {
		return w, nil
	}

	sender, err := NewSender(Subscription{
		Endpoint:        cfg.WebPushEndpoint,
		P256dh:          cfg.WebPushP256dh,
		Auth:            cfg.WebPushAuth,
		VapidPrivateKey: cfg.VAPIDPrivateKey,
	}, logger)
	if err != nil {
		return nil, err
	}
	w.Sender = sender
	return w, nil
}

func (w *Integration) Name() string {
	return "webpush"
}

func (w *Integration) Start(ctx context.Context, logger *slog.Logger) error {
	logger.Info("Web Push enabled", "host", w.host(), "encrypted", w.Sender.sub.HasEncryption())
	return nil
}

func (w *Integration) IsEnabled() bool {
	return w.Sender != nil
}

// Health reports the push host; there is nothing to check without sending.
func (w *Integration) Health(ctx context.Context) (bool, string) {
	if !w.IsEnabled() {
		return false, ""
	}
	return true, w.host()
}

func (w *Integration) host() string {
	u, err := url.Parse(w.endpoint)
	if err != nil {
		return ""
	}
	return u.Host
}

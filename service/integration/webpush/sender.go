package webpush

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"cardadmin/service/delivery"

	webpush "github.com/SherClockHolmes/webpush-go"
)

const ttlSeconds = 86400

// Subscription is the single push endpoint toasts are relayed to. Without
// the encryption keys the endpoint is treated as a plain JSON webhook.
type Subscription struct {
	Endpoint        string
	P256dh          string
	Auth            string
	VapidPrivateKey string
}

func (s *Subscription) HasEncryption() bool {
	return s.P256dh != "" && s.Auth != "" && s.VapidPrivateKey != ""
}

// Normalize validates the endpoint and keys and re-encodes the keys as
// unpadded base64url.
func (s *Subscription) Normalize() error {
	if err := validatePushEndpoint(s.Endpoint, s.HasEncryption()); err != nil {
		return err
	}
	if !s.HasEncryption() {
		return nil
	}

	var err error
	if s.P256dh, err = normalizeP256DH(s.P256dh); err != nil {
		return err
	}
	if s.Auth, err = normalizeAuthSecret(s.Auth); err != nil {
		return err
	}
	if s.VapidPrivateKey, err = normalizeVAPIDPrivateKey(s.VapidPrivateKey); err != nil {
		return err
	}
	return nil
}

type Sender struct {
	sub    Subscription
	http   *http.Client
	logger *slog.Logger
}

func NewSender(sub Subscription, logger *slog.Logger) (*Sender, error) {
	if err := sub.Normalize(); err != nil {
		return nil, fmt.Errorf("invalid webpush subscription: %w", err)
	}
	return &Sender{
		sub:    sub,
		http:   &http.Client{},
		logger: logger,
	}, nil
}

func (s *Sender) Send(ctx context.Context, toast delivery.Toast) error {
	payload, err := json.Marshal(toast)
	if err != nil {
		return delivery.NewPermanentError(fmt.Errorf("failed to marshal toast: %w", err))
	}

	var resp *http.Response
	if s.sub.HasEncryption() {
		subscription := &webpush.Subscription{
			Endpoint: s.sub.Endpoint,
			Keys: webpush.Keys{
				P256dh: s.sub.P256dh,
				Auth:   s.sub.Auth,
			},
		}

		resp, err = webpush.SendNotification(payload, subscription, &webpush.Options{
			HTTPClient:      s.http,
			VAPIDPrivateKey: s.sub.VapidPrivateKey,
			TTL:             ttlSeconds,
		})
		if err != nil {
			return fmt.Errorf("failed to send webpush: %w", err)
		}
	} else {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.sub.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return delivery.NewPermanentError(fmt.Errorf("failed to build webhook request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err = s.http.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send webhook: %w", err)
		}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return delivery.Permanentf("push endpoint gone (status %d)", resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("push endpoint returned status %d", resp.StatusCode)
	}

	s.logger.Debug("Relayed toast via push", "encrypted", s.sub.HasEncryption(), "url", s.sub.Endpoint)
	return nil
}

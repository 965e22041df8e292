package webpush

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"cardadmin/service/delivery"
	"cardadmin/service/util"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainWebhook(t *testing.T) {
	var got delivery.Toast
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	s, err := NewSender(Subscription{Endpoint: srv.URL}, util.DiscardLogger())
	require.NoError(t, err)

	require.NoError(t, s.Send(context.Background(), delivery.Success("Карта пересоздана успешно").For(3)))
	assert.Equal(t, "Карта пересоздана успешно", got.Message)
	assert.Equal(t, int64(3), got.NotificationID)
}

func TestWebhookStatusHandling(t *testing.T) {
	status := http.StatusGone
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
	}))
	defer srv.Close()

	s, err := NewSender(Subscription{Endpoint: srv.URL}, util.DiscardLogger())
	require.NoError(t, err)

	err = s.Send(context.Background(), delivery.Success("x"))
	assert.True(t, delivery.IsPermanent(err))

	status = http.StatusServiceUnavailable
	err = s.Send(context.Background(), delivery.Success("x"))
	require.Error(t, err)
	assert.False(t, delivery.IsPermanent(err))
}

func TestSubscriptionValidation(t *testing.T) {
	_, err := NewSender(Subscription{Endpoint: "not a url"}, util.DiscardLogger())
	assert.ErrorContains(t, err, "invalid pushEndpoint URL")

	_, err = NewSender(Subscription{Endpoint: "ftp://push.test/x"}, util.DiscardLogger())
	assert.ErrorContains(t, err, "http or https")

	_, err = NewSender(Subscription{
		Endpoint:        "http://push.test/x",
		P256dh:          "AAAA",
		Auth:            "AAAA",
		VapidPrivateKey: "AAAA",
	}, util.DiscardLogger())
	assert.ErrorContains(t, err, "must use https")

	_, err = NewSender(Subscription{
		Endpoint:        "https://push.test/x",
		P256dh:          "AAAA",
		Auth:            "AAAA",
		VapidPrivateKey: "AAAA",
	}, util.DiscardLogger())
	assert.ErrorContains(t, err, "p256dh")
}

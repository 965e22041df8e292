package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"cardadmin/service/bankapi"
	"cardadmin/service/bankapi/banktest"
	"cardadmin/service/delivery"
	"cardadmin/service/notification"
	"cardadmin/service/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	toasts []delivery.Toast
}

func (r *recorder) Notify(t delivery.Toast) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, t)
}

func (r *recorder) all() []delivery.Toast {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]delivery.Toast(nil), r.toasts...)
}

type fixture struct {
	d      *Dispatcher
	board  *notification.Board
	bank   *banktest.Server
	toasts *recorder
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	bank := banktest.NewServer()
	t.Cleanup(bank.Close)
	return newFixtureWithURL(t, bank, bank.URL)
}

func newFixtureWithURL(t *testing.T, bank *banktest.Server, url string) *fixture {
	t.Helper()
	f := &fixture{
		board:  notification.NewBoard(),
		bank:   bank,
		toasts: &recorder{},
		now:    time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC),
	}
	client := bankapi.NewClient(url, "", time.Second, util.DiscardLogger())
	f.d = New(f.board, client, f.toasts, util.DiscardLogger(), Options{
		StepTimeout: time.Second,
		ConfirmTTL:  time.Minute,
		Now:         func() time.Time { return f.now },
	})
	return f
}

func (f *fixture) ingest(t *testing.T, n notification.Notification) {
	t.Helper()
	_, err := f.d.Ingest(n)
	require.NoError(t, err)
}

func (f *fixture) state(t *testing.T, id int64) notification.Entry {
	t.Helper()
	e, err := f.board.Get(id)
	require.NoError(t, err)
	return e
}

func TestResolve(t *testing.T) {
	cases := map[notification.Type]string{
		notification.TypeBlockRequest:    "🚫 Блокировка карты",
		notification.TypeTopUpRequest:    "💰 Пополнение карты",
		notification.TypeUnblockRequest:  "🔓 Разблокировка карты",
		notification.TypeCreateRequest:   "➕ Создание карты",
		notification.TypeRecreateRequest: "🔄 Пересоздание карты",
	}
	for typ, title := range cases {
		t.Run(string(typ), func(t *testing.T) {
			h := Resolve(typ)
			assert.True(t, h.HasAction())
			assert.Equal(t, title, h.ConfirmTitle)
			assert.Equal(t, "Отмена", h.CancelLabel)
			assert.NotEmpty(t, h.ButtonLabel)
		})
	}

	t.Run("unknown type", func(t *testing.T) {
		h := Resolve("CARD_EXPIRED")
		assert.False(t, h.HasAction())
		assert.Equal(t, "🔍 Детали уведомления", h.DetailTitle)
		assert.Empty(t, h.ConfirmMessage(Params{}))
		assert.Empty(t, h.ButtonLabel)
	})
}

func TestConfirmBlock(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, notification.Notification{ID: 1, Type: notification.TypeBlockRequest, CardID: 7, ReasonText: "Утеряна карта"})

	details, err := f.d.ShowDetails(1)
	require.NoError(t, err)
	assert.True(t, details.Actionable)
	assert.Equal(t, "🔍 Детали запроса на блокировку", details.Handler.DetailTitle)
	assert.Equal(t, notification.StateDetailShown, details.Entry.State)

	c, err := f.d.RequestConfirmation(1)
	require.NoError(t, err)
	assert.Equal(t, "Вы уверены, что хотите заблокировать эту карту?", c.Message)
	assert.Equal(t, "Заблокировать", c.ConfirmLabel)
	assert.Equal(t, notification.StateConfirming, f.state(t, 1).State)
	assert.Empty(t, f.bank.Requests())

	out, err := f.d.Confirm(context.Background(), c.Token)
	require.NoError(t, err)

	assert.Equal(t, []string{"POST /cards/7/block", "POST /notifications/1/process"}, f.bank.Paths())
	assert.Equal(t, BlockReason, f.bank.Requests()[0].Form.Get("reason"))
	assert.Equal(t, notification.StateProcessed, out.Entry.State)
	assert.True(t, out.Entry.Reconciled)
	assert.False(t, out.Entry.Actionable())
	assert.Equal(t, "Карта заблокирована и уведомление обработано", out.Toast.Message)
	assert.Equal(t, int64(1), out.Toast.NotificationID)
	assert.Equal(t, []delivery.Toast{out.Toast}, f.toasts.all())
}

func TestConfirmUnblock(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, notification.Notification{ID: 2, Type: notification.TypeUnblockRequest, CardID: 9})

	c, err := f.d.RequestConfirmation(2)
	require.NoError(t, err)
	assert.Equal(t, "Разблокировать карту?", c.Message)

	out, err := f.d.Confirm(context.Background(), c.Token)
	require.NoError(t, err)
	assert.Equal(t, []string{"POST /cards/9/activate", "POST /notifications/2/process"}, f.bank.Paths())
	assert.Equal(t, UnblockReason, f.bank.Requests()[0].Form.Get("reason"))
	assert.Equal(t, "Карта разблокирована и уведомление обработано", out.Toast.Message)
}

func TestConfirmTopUp(t *testing.T) {
	t.Run("amount parsed from text", func(t *testing.T) {
		f := newFixture(t)
		f.ingest(t, notification.Notification{
			ID:         3,
			Type:       notification.TypeTopUpRequest,
			CardID:     7,
			ReasonText: "Пользователь ivan@example.com запросил пополнение карты на сумму 1 234,50 руб.",
		})

		c, err := f.d.RequestConfirmation(3)
		require.NoError(t, err)
		assert.Equal(t, notification.SourceParsed, c.Params.AmountSource)
		assert.Equal(t, "Пополнить карту на 1234.5 ₽?", c.Message)

		out, err := f.d.Confirm(context.Background(), c.Token)
		require.NoError(t, err)
		require.Len(t, f.bank.Requests(), 2)
		assert.Equal(t, "/cards/7/topup", f.bank.Requests()[0].Path)
		assert.Equal(t, "1234.5", f.bank.Requests()[0].Form.Get("amount"))
		assert.Equal(t, "Карта пополнена на 1234.5 ₽ и уведомление обработано", out.Toast.Message)
	})

	t.Run("structured amount wins", func(t *testing.T) {
		f := newFixture(t)
		f.ingest(t, notification.Notification{
			ID:         4,
			Type:       notification.TypeTopUpRequest,
			CardID:     7,
			Amount:     decimal.NewNullDecimal(decimal.RequireFromString("250.75")),
			ReasonText: "на сумму 10 руб.",
		})

		c, err := f.d.RequestConfirmation(4)
		require.NoError(t, err)
		assert.Equal(t, notification.SourceStructured, c.Params.AmountSource)

		_, err = f.d.Confirm(context.Background(), c.Token)
		require.NoError(t, err)
		assert.Equal(t, "250.75", f.bank.Requests()[0].Form.Get("amount"))
	})

	t.Run("fallback amount", func(t *testing.T) {
		f := newFixture(t)
		f.ingest(t, notification.Notification{ID: 5, Type: notification.TypeTopUpRequest, CardID: 7, ReasonText: "пополнить"})

		c, err := f.d.RequestConfirmation(5)
		require.NoError(t, err)
		assert.Equal(t, notification.SourceFallback, c.Params.AmountSource)
		assert.Equal(t, "Пополнить карту на 1000 ₽?", c.Message)
	})
}

func TestConfirmCreate(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		f := newFixture(t)
		f.ingest(t, notification.Notification{
			ID:         6,
			Type:       notification.TypeCreateRequest,
			UserName:   "Иван Петров",
			ReasonText: "Пользователь ivan@example.com запросил создание новой карты. Срок действия: 05/29",
		})

		c, err := f.d.RequestConfirmation(6)
		require.NoError(t, err)
		assert.Equal(t, "Создать новую карту для Иван Петров со сроком действия 05/29?", c.Message)
		assert.Equal(t, "ivan@example.com", c.Params.UserEmail)

		out, err := f.d.Confirm(context.Background(), c.Token)
		require.NoError(t, err)
		assert.Equal(t, []string{"POST /api/cards", "POST /notifications/6/process"}, f.bank.Paths())
		assert.JSONEq(t, `{"ownerEmail":"ivan@example.com","expiryDate":"05/29"}`, f.bank.Requests()[0].Body)
		require.NotNil(t, out.Card)
		assert.Positive(t, out.Card.ID)
		assert.Equal(t, "Карта создана и уведомление обработано", out.Toast.Message)
	})

	t.Run("expiry defaults to first generated option", func(t *testing.T) {
		f := newFixture(t)
		f.ingest(t, notification.Notification{ID: 7, Type: notification.TypeCreateRequest, UserEmail: "anna@example.com"})

		c, err := f.d.RequestConfirmation(7)
		require.NoError(t, err)
		assert.Equal(t, "03/27", c.Params.Expiry)
		assert.Equal(t, notification.SourceFallback, c.Params.ExpirySource)
		assert.Equal(t, "Создать новую карту для anna@example.com со сроком действия 03/27?", c.Message)
	})

	t.Run("missing user is rejected locally", func(t *testing.T) {
		f := newFixture(t)
		f.ingest(t, notification.Notification{ID: 8, Type: notification.TypeCreateRequest, ReasonText: "Пользователь запросил создание новой карты"})

		_, err := f.d.RequestConfirmation(8)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "Не удалось определить пользователя", verr.Message)
		assert.Empty(t, f.bank.Requests())
		assert.Equal(t, notification.StateUnseen, f.state(t, 8).State)
	})

	t.Run("bank failure leaves notification actionable", func(t *testing.T) {
		f := newFixture(t)
		f.bank.Stub(http.MethodPost, "/api/cards", http.StatusInternalServerError, "boom")
		f.ingest(t, notification.Notification{ID: 9, Type: notification.TypeCreateRequest, UserEmail: "anna@example.com"})

		c, err := f.d.RequestConfirmation(9)
		require.NoError(t, err)

		out, err := f.d.Confirm(context.Background(), c.Token)
		require.Error(t, err)
		assert.True(t, bankapi.IsNetwork(err))
		assert.Equal(t, []string{"POST /api/cards"}, f.bank.Paths())
		assert.Equal(t, notification.StateFailed, out.Entry.State)
		assert.True(t, out.Entry.Actionable())
		assert.Equal(t, "Ошибка при создании карты: boom", out.Toast.Message)
		assert.True(t, out.Toast.IsError())
	})
}

func TestConfirmRecreate(t *testing.T) {
	recreate := notification.Notification{
		ID:            10,
		Type:          notification.TypeRecreateRequest,
		CardID:        7,
		UserEmail:     "ivan@example.com",
		NewExpiryDate: "03/29",
	}

	t.Run("success", func(t *testing.T) {
		f := newFixture(t)
		f.ingest(t, recreate)

		c, err := f.d.RequestConfirmation(10)
		require.NoError(t, err)
		assert.Equal(t, "Пересоздать карту для ivan@example.com со сроком действия 03/29?", c.Message)

		out, err := f.d.Confirm(context.Background(), c.Token)
		require.NoError(t, err)
		assert.Equal(t, []string{
			"POST /api/cards",
			"DELETE /api/cards/7",
			"POST /api/notifications/10/mark-processed",
		}, f.bank.Paths())
		assert.Nil(t, out.Partial)
		assert.Equal(t, "Карта пересоздана успешно", out.Toast.Message)
	})

	t.Run("delete failure is a partial success", func(t *testing.T) {
		f := newFixture(t)
		f.bank.Stub(http.MethodDelete, "/api/cards/7", http.StatusInternalServerError, "locked")
		f.ingest(t, recreate)

		c, err := f.d.RequestConfirmation(10)
		require.NoError(t, err)

		out, err := f.d.Confirm(context.Background(), c.Token)
		require.NoError(t, err)
		require.NotNil(t, out.Partial)
		assert.Equal(t, int64(7), out.Partial.OldCardID)
		assert.Equal(t, http.StatusInternalServerError, bankapi.StatusCode(out.Partial))
		assert.Equal(t, notification.StateProcessed, out.Entry.State)
		assert.False(t, out.Toast.IsError())
		assert.Equal(t, "POST /api/notifications/10/mark-processed", f.bank.Paths()[2])
	})

	t.Run("create failure skips delete", func(t *testing.T) {
		f := newFixture(t)
		f.bank.Stub(http.MethodPost, "/api/cards", http.StatusInternalServerError, "")
		f.ingest(t, recreate)

		c, err := f.d.RequestConfirmation(10)
		require.NoError(t, err)

		out, err := f.d.Confirm(context.Background(), c.Token)
		require.Error(t, err)
		assert.Equal(t, []string{"POST /api/cards"}, f.bank.Paths())
		assert.True(t, out.Entry.Actionable())
		assert.Equal(t, "Ошибка при пересоздании карты: HTTP 500", out.Toast.Message)
	})
}

func TestConfirmIsSingleShot(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, notification.Notification{ID: 11, Type: notification.TypeBlockRequest, CardID: 7})

	c, err := f.d.RequestConfirmation(11)
	require.NoError(t, err)

	_, err = f.d.Confirm(context.Background(), c.Token)
	require.NoError(t, err)
	sent := len(f.bank.Requests())

	_, err = f.d.Confirm(context.Background(), c.Token)
	assert.ErrorIs(t, err, ErrConfirmationNotFound)

	_, err = f.d.RequestConfirmation(11)
	assert.ErrorIs(t, err, ErrNotActionable)

	assert.Len(t, f.bank.Requests(), sent)
	assert.Len(t, f.toasts.all(), 1)
}

func TestReopenRevokesPreviousConfirmation(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, notification.Notification{ID: 12, Type: notification.TypeUnblockRequest, CardID: 7})

	first, err := f.d.RequestConfirmation(12)
	require.NoError(t, err)
	second, err := f.d.RequestConfirmation(12)
	require.NoError(t, err)
	assert.NotEqual(t, first.Token, second.Token)

	_, err = f.d.Confirm(context.Background(), first.Token)
	assert.ErrorIs(t, err, ErrConfirmationNotFound)
	assert.Empty(t, f.bank.Requests())

	_, err = f.d.Confirm(context.Background(), second.Token)
	require.NoError(t, err)
}

func TestCancelConfirmation(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, notification.Notification{ID: 13, Type: notification.TypeBlockRequest, CardID: 7})

	c, err := f.d.RequestConfirmation(13)
	require.NoError(t, err)

	e, err := f.d.Cancel(c.Token)
	require.NoError(t, err)
	assert.Equal(t, notification.StateDetailShown, e.State)

	_, err = f.d.Confirm(context.Background(), c.Token)
	assert.ErrorIs(t, err, ErrConfirmationNotFound)
	assert.Empty(t, f.bank.Requests())

	e, err = f.d.CloseDetails(13)
	require.NoError(t, err)
	assert.Equal(t, notification.StateUnseen, e.State)
}

func TestConfirmationExpiry(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, notification.Notification{ID: 14, Type: notification.TypeBlockRequest, CardID: 7})
	f.ingest(t, notification.Notification{ID: 15, Type: notification.TypeBlockRequest, CardID: 8})

	stale, err := f.d.RequestConfirmation(14)
	require.NoError(t, err)
	_, err = f.d.RequestConfirmation(15)
	require.NoError(t, err)

	f.now = f.now.Add(2 * time.Minute)

	_, err = f.d.Confirm(context.Background(), stale.Token)
	assert.ErrorIs(t, err, ErrConfirmationNotFound)
	assert.Equal(t, notification.StateDetailShown, f.state(t, 14).State)

	assert.Equal(t, 1, f.d.ExpireConfirmations())
	assert.Equal(t, notification.StateDetailShown, f.state(t, 15).State)
	assert.Equal(t, 0, f.d.pending.len())
	assert.Empty(t, f.bank.Requests())
}

func TestMarkProcessedFailureStillSucceeds(t *testing.T) {
	f := newFixture(t)
	f.bank.Stub(http.MethodPost, "/notifications/16/process", http.StatusServiceUnavailable, "")
	n := notification.Notification{ID: 16, Type: notification.TypeBlockRequest, CardID: 7}
	f.ingest(t, n)

	c, err := f.d.RequestConfirmation(16)
	require.NoError(t, err)

	out, err := f.d.Confirm(context.Background(), c.Token)
	require.NoError(t, err)
	assert.Equal(t, notification.StateProcessed, out.Entry.State)
	assert.False(t, out.Entry.Reconciled)
	assert.Equal(t, "Карта заблокирована и уведомление обработано", out.Toast.Message)

	// the server still lists it as unprocessed
	f.ingest(t, n)
	e := f.state(t, 16)
	assert.Equal(t, notification.StateUnseen, e.State)
	assert.True(t, e.Actionable())
}

func TestNetworkFailure(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	url := down.URL
	down.Close()

	f := newFixtureWithURL(t, nil, url)
	f.ingest(t, notification.Notification{ID: 17, Type: notification.TypeTopUpRequest, CardID: 7})

	c, err := f.d.RequestConfirmation(17)
	require.NoError(t, err)

	out, err := f.d.Confirm(context.Background(), c.Token)
	require.Error(t, err)
	assert.True(t, bankapi.IsNetwork(err))
	assert.Equal(t, notification.StateFailed, out.Entry.State)
	assert.NotEmpty(t, out.Entry.LastError)
	assert.True(t, out.Entry.Actionable())
	assert.Contains(t, out.Toast.Message, "Ошибка при пополнении карты: ")

	// a failed entry can be confirmed again
	_, err = f.d.RequestConfirmation(17)
	assert.NoError(t, err)
}

func TestConfirmIgnoresCallerCancellation(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, notification.Notification{ID: 18, Type: notification.TypeBlockRequest, CardID: 7})

	c, err := f.d.RequestConfirmation(18)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out, err := f.d.Confirm(ctx, c.Token)
	require.NoError(t, err)
	assert.Equal(t, notification.StateProcessed, out.Entry.State)
	assert.Len(t, f.bank.Requests(), 2)
}

func TestUnknownTypeHasNoAction(t *testing.T) {
	f := newFixture(t)
	f.ingest(t, notification.Notification{ID: 19, Type: "CARD_EXPIRED", ReasonText: "Срок действия карты истёк"})

	d, err := f.d.ShowDetails(19)
	require.NoError(t, err)
	assert.False(t, d.Actionable)
	assert.Equal(t, "🔍 Детали уведомления", d.Handler.DetailTitle)
	assert.Equal(t, "Уведомление", d.Description)

	_, err = f.d.RequestConfirmation(19)
	assert.ErrorIs(t, err, ErrNoAction)
	assert.Empty(t, f.bank.Requests())
}

func TestIngestRevokesConfirmationOfProcessedEntry(t *testing.T) {
	f := newFixture(t)
	n := notification.Notification{ID: 20, Type: notification.TypeBlockRequest, CardID: 7}
	f.ingest(t, n)

	c, err := f.d.RequestConfirmation(20)
	require.NoError(t, err)

	n.Processed = true
	f.ingest(t, n)

	_, err = f.d.Confirm(context.Background(), c.Token)
	assert.ErrorIs(t, err, ErrConfirmationNotFound)
	assert.Empty(t, f.bank.Requests())
}

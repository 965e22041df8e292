package bankapi_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"cardadmin/service/bankapi"
	"cardadmin/service/bankapi/banktest"
	"cardadmin/service/util"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T, srv *banktest.Server) *bankapi.Client {
	t.Helper()
	return bankapi.NewClient(srv.URL+"/", "tok", 2*time.Second, util.DiscardLogger())
}

func TestCreateCard(t *testing.T) {
	srv := banktest.NewServer()
	defer srv.Close()

	card, err := newClient(t, srv).CreateCard(context.Background(), bankapi.CreateCardRequest{
		OwnerEmail: "anna@bank.test",
		ExpiryDate: "10/28",
	})
	require.NoError(t, err)
	assert.Equal(t, "anna@bank.test", card.OwnerEmail)
	assert.Equal(t, "10/28", card.ExpiryDate)

	reqs := srv.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "application/json", reqs[0].ContentType)
	assert.JSONEq(t, `{"ownerEmail":"anna@bank.test","expiryDate":"10/28"}`, reqs[0].Body)
	assert.Equal(t, "Bearer tok", reqs[0].Authorization)
}

func TestFormEndpoints(t *testing.T) {
	srv := banktest.NewServer()
	defer srv.Close()

	c := newClient(t, srv)
	ctx := context.Background()

	msg, err := c.BlockCard(ctx, 7, "Блокировка по запросу пользователя")
	require.NoError(t, err)
	assert.Equal(t, "ok: POST /cards/7/block", msg)

	_, err = c.ActivateCard(ctx, 7, "Разблокировка")
	require.NoError(t, err)
	_, err = c.TopUp(ctx, 7, decimal.RequireFromString("1234.50"))
	require.NoError(t, err)
	_, err = c.RequestTopUp(ctx, 7, decimal.NewFromInt(10))
	require.NoError(t, err)
	_, err = c.RequestBlock(ctx, 7, "Кража карты")
	require.NoError(t, err)
	_, err = c.RequestUnblock(ctx, 7, "Проблема решена")
	require.NoError(t, err)
	_, err = c.RequestRecreate(ctx, 7, "10/28")
	require.NoError(t, err)
	_, err = c.RequestCreate(ctx, "10/29")
	require.NoError(t, err)

	assert.Equal(t, []string{
		"POST /cards/7/block",
		"POST /cards/7/activate",
		"POST /cards/7/topup",
		"POST /cards/7/request-topup",
		"POST /cards/7/request-block",
		"POST /cards/7/request-unblock",
		"POST /cards/7/request-recreate",
		"POST /cards/request-create",
	}, srv.Paths())

	reqs := srv.Requests()
	assert.Equal(t, "Блокировка по запросу пользователя", reqs[0].Form.Get("reason"))
	assert.Equal(t, "1234.5", reqs[2].Form.Get("amount"))
	assert.Equal(t, "10/28", reqs[6].Form.Get("newExpiryDate"))
	assert.Equal(t, "10/29", reqs[7].Form.Get("expiryDate"))
}

func TestDeleteAndMarkProcessed(t *testing.T) {
	srv := banktest.NewServer()
	defer srv.Close()

	c := newClient(t, srv)
	ctx := context.Background()

	require.NoError(t, c.DeleteCard(ctx, 5))
	require.NoError(t, c.MarkProcessed(ctx, 11, bankapi.RouteProcess))
	require.NoError(t, c.MarkProcessed(ctx, 12, bankapi.RouteMarkProcessed))

	assert.Equal(t, []string{
		"DELETE /api/cards/5",
		"POST /notifications/11/process",
		"POST /api/notifications/12/mark-processed",
	}, srv.Paths())
}

func TestGetAndRemoveCard(t *testing.T) {
	srv := banktest.NewServer()
	defer srv.Close()
	srv.Stub(http.MethodPost, "/cards/9/delete", http.StatusOK, "🗑️ Карта успешно удалена\n")

	c := newClient(t, srv)
	ctx := context.Background()

	card, err := c.GetCard(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, int64(9), card.ID)
	assert.Equal(t, banktest.OwnerEmail, card.OwnerEmail)

	msg, err := c.RemoveCard(ctx, 9)
	require.NoError(t, err)
	assert.Equal(t, "🗑️ Карта успешно удалена", msg)

	assert.Equal(t, []string{"GET /api/cards/9", "POST /cards/9/delete"}, srv.Paths())
}

func TestGetCardRejectsMalformedBody(t *testing.T) {
	srv := banktest.NewServer()
	defer srv.Close()
	srv.Stub(http.MethodGet, "/api/cards/9", http.StatusOK, "<html>")

	_, err := newClient(t, srv).GetCard(context.Background(), 9)
	assert.ErrorContains(t, err, "failed to decode card 9")
}

func TestNon2xxIsNetworkError(t *testing.T) {
	srv := banktest.NewServer()
	defer srv.Close()
	srv.Stub(http.MethodPost, "/cards/7/block", http.StatusConflict, "Карта уже заблокирована")

	_, err := newClient(t, srv).BlockCard(context.Background(), 7, "x")
	require.Error(t, err)
	assert.True(t, bankapi.IsNetwork(err))
	assert.Equal(t, http.StatusConflict, bankapi.StatusCode(err))
	assert.Contains(t, err.Error(), "Карта уже заблокирована")
}

func TestTransportFailureIsNetworkError(t *testing.T) {
	srv := banktest.NewServer()
	url := srv.URL
	srv.Close()

	c := bankapi.NewClient(url, "", time.Second, util.DiscardLogger())
	err := c.DeleteCard(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, bankapi.IsNetwork(err))
	assert.Zero(t, bankapi.StatusCode(err))
}

// Package request files a card holder's requests with the bank. Each request
// becomes a notification on the admin console.
package request

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"cardadmin/service/bankapi"
	"cardadmin/service/delivery"
	"cardadmin/service/dispatch"
	"cardadmin/service/expiry"
	"cardadmin/service/util"

	"github.com/shopspring/decimal"
)

type Flow string

const (
	FlowTopUp    Flow = "topup"
	FlowBlock    Flow = "block"
	FlowUnblock  Flow = "unblock"
	FlowRecreate Flow = "recreate"
	FlowCreate   Flow = "create"
)

// OtherReason requires a free-text reason.
const OtherReason = "Другое"

var (
	BlockReasons = []string{
		"Утеряна карта",
		"Кража карты",
		"Подозрительные операции",
		"Смена номера телефона",
		OtherReason,
	}
	UnblockReasons = []string{
		"Ошибка при блокировке",
		"Карта была заблокирована по ошибке",
		"Проблема решена",
		OtherReason,
	}

	MinTopUp = decimal.RequireFromString("0.01")

	ErrAlreadySent = errors.New("request already sent")
)

type Bank interface {
	RequestTopUp(ctx context.Context, cardID int64, amount decimal.Decimal) (string, error)
	RequestBlock(ctx context.Context, cardID int64, reason string) (string, error)
	RequestUnblock(ctx context.Context, cardID int64, reason string) (string, error)
	RequestRecreate(ctx context.Context, cardID int64, newExpiryDate string) (string, error)
	RequestCreate(ctx context.Context, expiryDate string) (string, error)
}

// Result carries the bank's reply, which is shown to the user verbatim.
type Result struct {
	Flow    Flow           `json:"flow"`
	CardID  int64          `json:"cardId,omitempty"`
	Message string         `json:"message"`
	Toast   delivery.Toast `json:"toast"`
}

// DefaultWindow is how long a sent request blocks an identical one.
const DefaultWindow = 5 * time.Minute

// key identifies one request form. Create has no card, so the chosen expiry
// date tells its forms apart.
type key struct {
	flow   Flow
	cardID int64
	detail string
}

type Service struct {
	bank   Bank
	logger *slog.Logger
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	sent map[key]time.Time // zero while in flight
}

// NewService returns a service that refuses to repeat a sent request for the
// same flow and card within window.
func NewService(bank Bank, logger *slog.Logger, window time.Duration) *Service {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Service{
		bank:   bank,
		logger: logger,
		window: window,
		now:    time.Now,
		sent:   make(map[key]time.Time),
	}
}

// ParseAmount validates a top-up amount typed by a person. A comma is
// accepted as the decimal separator.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Decimal{}, invalid("amount", "Пожалуйста, введите сумму")
	}
	d, err := decimal.NewFromString(strings.ReplaceAll(raw, ",", "."))
	if err != nil || !d.IsPositive() {
		return decimal.Decimal{}, invalid("amount", "Пожалуйста, введите корректную сумму (больше 0)")
	}
	if d.LessThan(MinTopUp) {
		return decimal.Decimal{}, invalid("amount", "Минимальная сумма пополнения: 0.01 ₽")
	}
	return d, nil
}

func (s *Service) TopUp(ctx context.Context, cardID int64, amount string) (Result, error) {
	d, err := ParseAmount(amount)
	if err != nil {
		return Result{}, err
	}

	return s.file(ctx, key{flow: FlowTopUp, cardID: cardID}, func(ctx context.Context) (string, error) {
		return s.bank.RequestTopUp(ctx, cardID, d)
	})
}

func (s *Service) Block(ctx context.Context, cardID int64, reason, custom string) (Result, error) {
	r, err := pickReason(reason, custom, "блокировки")
	if err != nil {
		return Result{}, err
	}
	return s.file(ctx, key{flow: FlowBlock, cardID: cardID}, func(ctx context.Context) (string, error) {
		return s.bank.RequestBlock(ctx, cardID, r)
	})
}

func (s *Service) Unblock(ctx context.Context, cardID int64, reason, custom string) (Result, error) {
	r, err := pickReason(reason, custom, "разблокировки")
	if err != nil {
		return Result{}, err
	}
	return s.file(ctx, key{flow: FlowUnblock, cardID: cardID}, func(ctx context.Context) (string, error) {
		return s.bank.RequestUnblock(ctx, cardID, r)
	})
}

func (s *Service) Recreate(ctx context.Context, cardID int64, newExpiryDate string) (Result, error) {
	if !expiry.IsOffered(newExpiryDate, s.now()) {
		return Result{}, invalid("newExpiryDate", "Пожалуйста, выберите новый срок действия карты")
	}
	return s.file(ctx, key{flow: FlowRecreate, cardID: cardID}, func(ctx context.Context) (string, error) {
		return s.bank.RequestRecreate(ctx, cardID, newExpiryDate)
	})
}

func (s *Service) Create(ctx context.Context, expiryDate string) (Result, error) {
	if !expiry.IsOffered(expiryDate, s.now()) {
		return Result{}, invalid("expiryDate", "Пожалуйста, выберите срок действия карты")
	}
	return s.file(ctx, key{flow: FlowCreate, detail: expiryDate}, func(ctx context.Context) (string, error) {
		return s.bank.RequestCreate(ctx, expiryDate)
	})
}

// file sends one request. The same form is refused while it is in flight and
// for the guard window after it succeeded; a failed request may be retried
// at once.
func (s *Service) file(ctx context.Context, k key, send func(context.Context) (string, error)) (Result, error) {
	flow, cardID := k.flow, k.cardID

	s.mu.Lock()
	if at, busy := s.sent[k]; busy && (at.IsZero() || s.now().Sub(at) < s.window) {
		s.mu.Unlock()
		return Result{}, fmt.Errorf("%w: %s for card %d", ErrAlreadySent, flow, cardID)
	}
	s.sent[k] = time.Time{}
	s.prune()
	s.mu.Unlock()

	msg, err := send(ctx)

	s.mu.Lock()
	if err != nil {
		delete(s.sent, k)
	} else {
		s.sent[k] = s.now()
	}
	s.mu.Unlock()

	if err != nil {
		toast := delivery.Failure("Ошибка при отправке запроса: " + bankapi.Describe(err))
		err = util.LogError(s.logger, fmt.Sprintf("failed to send %s request", flow), err,
			"card", cardID, "status", bankapi.StatusCode(err))
		return Result{Flow: flow, CardID: cardID, Toast: toast}, err
	}

	s.logger.Info("Card request sent", "flow", flow, "card", cardID)
	return Result{Flow: flow, CardID: cardID, Message: msg, Toast: delivery.Success(msg)}, nil
}

// prune drops guards whose window has passed. Callers hold s.mu.
func (s *Service) prune() {
	now := s.now()
	for k, at := range s.sent {
		if !at.IsZero() && now.Sub(at) >= s.window {
			delete(s.sent, k)
		}
	}
}

func pickReason(reason, custom, what string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", invalid("reason", "Пожалуйста, выберите причину "+what)
	}
	if reason == OtherReason {
		custom = strings.TrimSpace(custom)
		if custom == "" {
			return "", invalid("customReason", "Пожалуйста, укажите причину "+what)
		}
		return custom, nil
	}
	return reason, nil
}

func invalid(field, message string) error {
	return &dispatch.ValidationError{Field: field, Message: message}
}

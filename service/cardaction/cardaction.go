// Package cardaction runs the actions an admin takes on a card directly from
// the card list, without a notification: activate, block, top up, recreate
// and delete.
package cardaction

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"cardadmin/service/bankapi"
	"cardadmin/service/delivery"
	"cardadmin/service/dispatch"
	"cardadmin/service/expiry"
	"cardadmin/service/request"
	"cardadmin/service/util"

	"github.com/shopspring/decimal"
)

type Action string

const (
	ActionActivate Action = "activate"
	ActionBlock    Action = "block"
	ActionTopUp    Action = "topup"
	ActionRecreate Action = "recreate"
	ActionDelete   Action = "delete"
)

// ActivateReason is sent when the admin gives none.
const ActivateReason = "Активация администратором"

func ParseAction(s string) (Action, bool) {
	switch a := Action(s); a {
	case ActionActivate, ActionBlock, ActionTopUp, ActionRecreate, ActionDelete:
		return a, true
	}
	return "", false
}

// Params is the raw input of an action. Only the fields the action reads are
// validated.
type Params struct {
	Reason     string `json:"reason,omitempty"`
	Amount     string `json:"amount,omitempty"`
	ExpiryDate string `json:"expiryDate,omitempty"`
	OwnerEmail string `json:"ownerEmail,omitempty"`
}

// Prompt is the confirmation shown before an action runs.
type Prompt struct {
	Action       Action `json:"action"`
	CardID       int64  `json:"cardId"`
	Title        string `json:"title"`
	Message      string `json:"message"`
	ConfirmLabel string `json:"confirmLabel"`
	CancelLabel  string `json:"cancelLabel"`
}

type Result struct {
	Action  Action                   `json:"action"`
	CardID  int64                    `json:"cardId"`
	Message string                   `json:"message"`
	Card    *bankapi.Card            `json:"card,omitempty"`
	Partial *dispatch.PartialSuccess `json:"-"`
	Toast   delivery.Toast           `json:"toast"`
}

type Bank interface {
	GetCard(ctx context.Context, cardID int64) (*bankapi.Card, error)
	CreateCard(ctx context.Context, req bankapi.CreateCardRequest) (*bankapi.Card, error)
	DeleteCard(ctx context.Context, cardID int64) error
	RemoveCard(ctx context.Context, cardID int64) (string, error)
	ActivateCard(ctx context.Context, cardID int64, reason string) (string, error)
	BlockCard(ctx context.Context, cardID int64, reason string) (string, error)
	TopUp(ctx context.Context, cardID int64, amount decimal.Decimal) (string, error)
}

type copyText struct {
	title   string
	confirm string
	failing string
	done    string
	message func(in input) string
}

var texts = map[Action]copyText{
	ActionActivate: {
		title:   "🔓 Активация карты",
		confirm: "Активировать",
		failing: "активации карты",
		done:    "Карта активирована",
		message: func(input) string { return "Вы уверены, что хотите активировать эту карту?" },
	},
	ActionBlock: {
		title:   "🔒 Блокировка карты",
		confirm: "Заблокировать",
		failing: "блокировке карты",
		done:    "Карта заблокирована",
		message: func(input) string { return "Вы уверены, что хотите заблокировать эту карту?" },
	},
	ActionTopUp: {
		title:   "💰 Пополнение карты",
		confirm: "Пополнить",
		failing: "пополнении карты",
		done:    "Карта пополнена",
		message: func(in input) string {
			return fmt.Sprintf("Вы уверены, что хотите пополнить карту на %s ₽?", util.FormatAmount(in.amount))
		},
	},
	ActionRecreate: {
		title:   "🔄 Пересоздание карты",
		confirm: "Да, пересоздать",
		failing: "пересоздании карты",
		done:    "Карта пересоздана успешно",
		message: func(in input) string {
			return fmt.Sprintf("Вы точно хотите пересоздать карту с новым сроком действия %s?", in.expiry)
		},
	},
	ActionDelete: {
		title:   "🗑️ Удаление карты",
		confirm: "Удалить",
		failing: "удалении карты",
		done:    "Карта удалена",
		message: func(input) string { return "Вы уверены, что хотите удалить эту карту? Это действие необратимо!" },
	},
}

// input is Params after validation.
type input struct {
	reason string
	amount decimal.Decimal
	expiry string
	owner  string
}

type Service struct {
	bank        Bank
	notifier    dispatch.Notifier
	logger      *slog.Logger
	stepTimeout time.Duration
	now         func() time.Time
}

func NewService(bank Bank, notifier dispatch.Notifier, logger *slog.Logger, stepTimeout time.Duration) *Service {
	if stepTimeout <= 0 {
		stepTimeout = 10 * time.Second
	}
	return &Service{
		bank:        bank,
		notifier:    notifier,
		logger:      logger,
		stepTimeout: stepTimeout,
		now:         time.Now,
	}
}

// Prompt validates p and returns the confirmation for the action. Nothing is
// sent to the bank.
func (s *Service) Prompt(cardID int64, action Action, p Params) (Prompt, error) {
	in, err := s.validate(cardID, action, p)
	if err != nil {
		return Prompt{}, err
	}
	t := texts[action]
	return Prompt{
		Action:       action,
		CardID:       cardID,
		Title:        t.title,
		Message:      t.message(in),
		ConfirmLabel: t.confirm,
		CancelLabel:  "Отмена",
	}, nil
}

// Run performs a confirmed action. Like notification actions it keeps running
// when ctx is cancelled, each bank call bounded by the step timeout.
func (s *Service) Run(ctx context.Context, cardID int64, action Action, p Params) (Result, error) {
	in, err := s.validate(cardID, action, p)
	if err != nil {
		return Result{}, err
	}

	ctx = context.WithoutCancel(ctx)
	logger := s.logger.With("card", cardID, "action", action)

	res, err := s.perform(ctx, logger, cardID, action, in)
	res.Action, res.CardID = action, cardID
	if err != nil {
		res.Toast = delivery.Failure(fmt.Sprintf("Ошибка при %s: %s", texts[action].failing, bankapi.Describe(err)))
		s.notifier.Notify(res.Toast)
		return res, util.LogError(logger, fmt.Sprintf("failed to %s card %d", action, cardID), err)
	}

	res.Toast = delivery.Success(res.Message)
	s.notifier.Notify(res.Toast)
	logger.Info("Card action done")
	return res, nil
}

func (s *Service) perform(ctx context.Context, logger *slog.Logger, cardID int64, action Action, in input) (Result, error) {
	var call func(context.Context) (string, error)
	switch action {
	case ActionActivate:
		call = func(ctx context.Context) (string, error) { return s.bank.ActivateCard(ctx, cardID, in.reason) }
	case ActionBlock:
		call = func(ctx context.Context) (string, error) { return s.bank.BlockCard(ctx, cardID, in.reason) }
	case ActionTopUp:
		call = func(ctx context.Context) (string, error) { return s.bank.TopUp(ctx, cardID, in.amount) }
	case ActionDelete:
		call = func(ctx context.Context) (string, error) { return s.bank.RemoveCard(ctx, cardID) }
	case ActionRecreate:
		return s.recreate(ctx, logger, cardID, in)
	}

	var msg string
	err := s.step(ctx, func(ctx context.Context) error {
		var err error
		msg, err = call(ctx)
		return err
	})
	if err != nil {
		return Result{}, err
	}
	if msg == "" {
		msg = texts[action].done
	}
	return Result{Message: msg}, nil
}

// recreate creates the replacement card and then deletes the old one. A
// failed delete is a partial success: the new card is kept and reported.
func (s *Service) recreate(ctx context.Context, logger *slog.Logger, cardID int64, in input) (Result, error) {
	owner := in.owner
	if owner == "" {
		var card *bankapi.Card
		err := s.step(ctx, func(ctx context.Context) error {
			var err error
			card, err = s.bank.GetCard(ctx, cardID)
			return err
		})
		if err != nil {
			return Result{}, err
		}
		owner = card.OwnerEmail
	}
	if owner == "" {
		return Result{}, invalid("ownerEmail", "Не удалось определить владельца карты")
	}

	var card *bankapi.Card
	err := s.step(ctx, func(ctx context.Context) error {
		var err error
		card, err = s.bank.CreateCard(ctx, bankapi.CreateCardRequest{OwnerEmail: owner, ExpiryDate: in.expiry})
		return err
	})
	if err != nil {
		return Result{}, err
	}
	logger.Info("Created replacement card", "new", card.ID, "owner", owner)

	res := Result{Card: card, Message: texts[ActionRecreate].done}
	if err := s.step(ctx, func(ctx context.Context) error {
		return s.bank.DeleteCard(ctx, cardID)
	}); err != nil {
		res.Partial = &dispatch.PartialSuccess{NewCardID: card.ID, OldCardID: cardID, Err: err}
		logger.Warn("Recreated card but old card is still present", "error", res.Partial)
	}
	return res, nil
}

func (s *Service) validate(cardID int64, action Action, p Params) (input, error) {
	if cardID <= 0 {
		return input{}, invalid("cardId", "Некорректный номер карты")
	}

	var in input
	switch action {
	case ActionActivate:
		in.reason = strings.TrimSpace(p.Reason)
		if in.reason == "" {
			in.reason = ActivateReason
		}
	case ActionBlock:
		in.reason = strings.TrimSpace(p.Reason)
		if in.reason == "" {
			return input{}, invalid("reason", "Пожалуйста, укажите причину блокировки")
		}
	case ActionTopUp:
		amount, err := request.ParseAmount(p.Amount)
		if err != nil {
			return input{}, err
		}
		in.amount = amount
	case ActionRecreate:
		if !expiry.IsOffered(p.ExpiryDate, s.now()) {
			return input{}, invalid("expiryDate", "Пожалуйста, выберите новый срок действия карты")
		}
		in.expiry = p.ExpiryDate
		in.owner = strings.TrimSpace(p.OwnerEmail)
	case ActionDelete:
	default:
		return input{}, invalid("action", fmt.Sprintf("Неизвестное действие: %s", action))
	}
	return in, nil
}

func (s *Service) step(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, s.stepTimeout)
	defer cancel()
	return fn(ctx)
}

func invalid(field, message string) error {
	return &dispatch.ValidationError{Field: field, Message: message}
}

// Package dispatch turns an operator's decision on a notification into bank
// API calls: resolve the handler, confirm, mutate, mark processed, reconcile.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cardadmin/service/bankapi"
	"cardadmin/service/delivery"
	"cardadmin/service/expiry"
	"cardadmin/service/notification"
	"cardadmin/service/util"

	"github.com/shopspring/decimal"
)

const (
	BlockReason   = "Блокировка по запросу пользователя"
	UnblockReason = "Разблокировка по запросу пользователя через уведомление"

	unknownUser = "пользователя"
)

// Bank is the subset of the bank API the dispatcher mutates through.
type Bank interface {
	CreateCard(ctx context.Context, req bankapi.CreateCardRequest) (*bankapi.Card, error)
	DeleteCard(ctx context.Context, cardID int64) error
	ActivateCard(ctx context.Context, cardID int64, reason string) (string, error)
	BlockCard(ctx context.Context, cardID int64, reason string) (string, error)
	TopUp(ctx context.Context, cardID int64, amount decimal.Decimal) (string, error)
	MarkProcessed(ctx context.Context, notificationID int64, route bankapi.ProcessRoute) error
}

// Notifier receives every outcome toast.
type Notifier interface {
	Notify(toast delivery.Toast)
}

type Options struct {
	// StepTimeout bounds each bank call. Confirm itself never gives up early.
	StepTimeout time.Duration
	ConfirmTTL  time.Duration
	Now         func() time.Time
}

type Dispatcher struct {
	board    *notification.Board
	bank     Bank
	notifier Notifier
	logger   *slog.Logger
	pending  *pending

	stepTimeout time.Duration
	confirmTTL  time.Duration
	now         func() time.Time
}

func New(board *notification.Board, bank Bank, notifier Notifier, logger *slog.Logger, opts Options) *Dispatcher {
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 10 * time.Second
	}
	if opts.ConfirmTTL <= 0 {
		opts.ConfirmTTL = 5 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Dispatcher{
		board:       board,
		bank:        bank,
		notifier:    notifier,
		logger:      logger,
		pending:     newPending(),
		stepTimeout: opts.StepTimeout,
		confirmTTL:  opts.ConfirmTTL,
		now:         opts.Now,
	}
}

// Details is what the operator sees when opening a notification.
type Details struct {
	Entry       notification.Entry `json:"entry"`
	Description string             `json:"description"`
	Handler     Handler            `json:"handler"`
	Actionable  bool               `json:"actionable"`
}

// Outcome is the result of a confirmed action.
type Outcome struct {
	Entry   notification.Entry `json:"entry"`
	Toast   delivery.Toast     `json:"toast"`
	Card    *bankapi.Card      `json:"card,omitempty"`
	Partial *PartialSuccess    `json:"-"`
}

// Ingest puts n on the board. A confirmation left open for an entry that is
// no longer actionable is revoked.
func (d *Dispatcher) Ingest(n notification.Notification) (notification.Entry, error) {
	e, err := d.board.Ingest(n)
	if err != nil {
		return e, err
	}
	if !e.Actionable() && e.State != notification.StateInFlight {
		d.pending.revoke(n.ID)
	}
	return e, nil
}

func (d *Dispatcher) ShowDetails(id int64) (Details, error) {
	e, err := d.board.Apply(id, notification.Transition{Event: notification.EventShowDetails})
	if err != nil {
		return Details{}, err
	}
	return d.details(e), nil
}

func (d *Dispatcher) CloseDetails(id int64) (notification.Entry, error) {
	d.pending.revoke(id)
	return d.board.Apply(id, notification.Transition{Event: notification.EventCloseDetails})
}

func (d *Dispatcher) details(e notification.Entry) Details {
	h := Resolve(e.Notification.Type)
	return Details{
		Entry:       e,
		Description: e.Notification.Type.Description(),
		Handler:     h,
		Actionable:  h.HasAction() && e.Actionable(),
	}
}

// RequestConfirmation resolves and validates the action parameters and opens
// a confirmation for them. Nothing is sent to the bank.
func (d *Dispatcher) RequestConfirmation(id int64) (Confirmation, error) {
	e, err := d.board.Get(id)
	if err != nil {
		return Confirmation{}, err
	}

	h := Resolve(e.Notification.Type)
	if !h.HasAction() {
		return Confirmation{}, fmt.Errorf("%w: %s", ErrNoAction, e.Notification.Type)
	}
	if !e.Actionable() {
		return Confirmation{}, fmt.Errorf("%w: notification %d is %s", ErrNotActionable, id, e.State)
	}

	params, err := d.resolveParams(e.Notification)
	if err != nil {
		return Confirmation{}, err
	}

	if _, err := d.board.Apply(id, notification.Transition{Event: notification.EventConfirmOpened}); err != nil {
		if errors.Is(err, notification.ErrInvalidTransition) {
			return Confirmation{}, fmt.Errorf("%w: %v", ErrNotActionable, err)
		}
		return Confirmation{}, err
	}

	c := d.pending.open(Confirmation{
		NotificationID: id,
		CardID:         e.Notification.CardID,
		Type:           e.Notification.Type,
		Title:          h.ConfirmTitle,
		Message:        h.ConfirmMessage(params),
		ConfirmLabel:   h.ConfirmLabel,
		CancelLabel:    h.CancelLabel,
		Params:         params,
		ExpiresAt:      d.now().Add(d.confirmTTL),
	})

	d.logger.Debug("Opened confirmation",
		"notification", id,
		"type", c.Type,
		"expires", c.ExpiresAt.Format(time.RFC3339),
	)
	return c, nil
}

// Cancel drops the confirmation and returns the entry to its details view.
func (d *Dispatcher) Cancel(token string) (notification.Entry, error) {
	c, err := d.pending.take(token, d.now())
	if c.NotificationID == 0 {
		return notification.Entry{}, err
	}
	return d.closeConfirmation(c.NotificationID)
}

func (d *Dispatcher) closeConfirmation(id int64) (notification.Entry, error) {
	e, err := d.board.Apply(id, notification.Transition{Event: notification.EventConfirmClosed})
	if errors.Is(err, notification.ErrInvalidTransition) {
		return e, nil
	}
	return e, err
}

// ExpireConfirmations closes every confirmation past its deadline and returns
// how many were closed.
func (d *Dispatcher) ExpireConfirmations() int {
	expired := d.pending.expired(d.now())
	for _, c := range expired {
		if _, err := d.closeConfirmation(c.NotificationID); err != nil {
			d.logger.Warn("Failed to close expired confirmation", "notification", c.NotificationID, "error", err)
		}
	}
	return len(expired)
}

// Run expires stale confirmations until ctx is done.
func (d *Dispatcher) Run(ctx context.Context) {
	ticker := time.NewTicker(d.confirmTTL / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := d.ExpireConfirmations(); n > 0 {
				d.logger.Debug("Expired confirmations", "count", n)
			}
		}
	}
}

// Confirm performs the confirmed action. The steps run one after another and
// keep running if ctx is cancelled; each is bounded by the step timeout.
//
// A failed mutation leaves the notification actionable. A failed
// mark-processed still counts as success but the entry stays unreconciled.
func (d *Dispatcher) Confirm(ctx context.Context, token string) (Outcome, error) {
	c, err := d.pending.take(token, d.now())
	if err != nil {
		if c.NotificationID != 0 {
			_, _ = d.closeConfirmation(c.NotificationID)
		}
		return Outcome{}, err
	}

	id := c.NotificationID
	if _, err := d.board.Apply(id, notification.Transition{Event: notification.EventSubmitted}); err != nil {
		if errors.Is(err, notification.ErrInvalidTransition) {
			return Outcome{}, fmt.Errorf("%w: %v", ErrNotActionable, err)
		}
		return Outcome{}, err
	}

	ctx = context.WithoutCancel(ctx)
	h := Resolve(c.Type)
	logger := d.logger.With("notification", id, "type", c.Type)

	card, partial, err := d.perform(ctx, logger, c)
	if err != nil {
		entry, applyErr := d.board.Apply(id, notification.Transition{Event: notification.EventFailed, Err: err})
		if applyErr != nil {
			logger.Error("Failed to record action failure", "error", applyErr)
		}
		toast := delivery.Failure(h.FailureMessage(bankapi.Describe(err))).For(id)
		d.notifier.Notify(toast)
		return Outcome{Entry: entry, Toast: toast}, util.LogError(logger, fmt.Sprintf("failed to execute %s", c.Type), err)
	}

	route := bankapi.RouteProcess
	if c.Type == notification.TypeRecreateRequest {
		route = bankapi.RouteMarkProcessed
	}
	reconciled := true
	if err := d.step(ctx, func(ctx context.Context) error {
		return d.bank.MarkProcessed(ctx, id, route)
	}); err != nil {
		reconciled = false
		logger.Warn("Action succeeded but notification was not marked processed", "error", err)
	}

	entry, err := d.board.Apply(id, notification.Transition{Event: notification.EventSucceeded, Reconciled: reconciled})
	if err != nil {
		logger.Error("Failed to record action success", "error", err)
	}

	toast := delivery.Success(h.SuccessMessage(c.Params)).For(id)
	d.notifier.Notify(toast)
	logger.Info("Notification processed", "reconciled", reconciled)

	return Outcome{Entry: entry, Toast: toast, Card: card, Partial: partial}, nil
}

func (d *Dispatcher) perform(ctx context.Context, logger *slog.Logger, c Confirmation) (*bankapi.Card, *PartialSuccess, error) {
	switch c.Type {
	case notification.TypeBlockRequest:
		return nil, nil, d.step(ctx, func(ctx context.Context) error {
			_, err := d.bank.BlockCard(ctx, c.CardID, BlockReason)
			return err
		})

	case notification.TypeUnblockRequest:
		return nil, nil, d.step(ctx, func(ctx context.Context) error {
			_, err := d.bank.ActivateCard(ctx, c.CardID, UnblockReason)
			return err
		})

	case notification.TypeTopUpRequest:
		return nil, nil, d.step(ctx, func(ctx context.Context) error {
			_, err := d.bank.TopUp(ctx, c.CardID, c.Params.Amount.Decimal)
			return err
		})

	case notification.TypeCreateRequest:
		card, err := d.createCard(ctx, c.Params)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Created card", "card", card.ID, "owner", card.OwnerEmail)
		return card, nil, nil

	case notification.TypeRecreateRequest:
		card, err := d.createCard(ctx, c.Params)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Created replacement card", "card", card.ID, "replaces", c.CardID)

		err = d.step(ctx, func(ctx context.Context) error {
			return d.bank.DeleteCard(ctx, c.CardID)
		})
		if err != nil {
			partial := &PartialSuccess{NewCardID: card.ID, OldCardID: c.CardID, Err: err}
			logger.Warn("Recreated card but old card is still present", "error", partial)
			return card, partial, nil
		}
		return card, nil, nil
	}

	return nil, nil, fmt.Errorf("%w: %s", ErrNoAction, c.Type)
}

func (d *Dispatcher) createCard(ctx context.Context, p Params) (*bankapi.Card, error) {
	var card *bankapi.Card
	err := d.step(ctx, func(ctx context.Context) error {
		var err error
		card, err = d.bank.CreateCard(ctx, bankapi.CreateCardRequest{OwnerEmail: p.UserEmail, ExpiryDate: p.Expiry})
		return err
	})
	return card, err
}

func (d *Dispatcher) step(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, d.stepTimeout)
	defer cancel()
	return fn(ctx)
}

func (d *Dispatcher) resolveParams(n notification.Notification) (Params, error) {
	var p Params
	logger := d.logger.With("notification", n.ID)

	switch n.Type {
	case notification.TypeTopUpRequest:
		amount, src := n.ExtractAmount()
		if !amount.IsPositive() {
			return p, &ValidationError{Field: "amount", Message: "Некорректная сумма пополнения"}
		}
		if src.Lossy() {
			logger.Warn("Top-up amount recovered from notification text", "amount", amount.String(), "source", src)
		}
		p.Amount = decimal.NewNullDecimal(amount)
		p.AmountSource = src

	case notification.TypeCreateRequest, notification.TypeRecreateRequest:
		email, src, ok := n.ExtractEmail()
		if !ok {
			return p, &ValidationError{Field: "userEmail", Message: "Не удалось определить пользователя"}
		}
		if src.Lossy() {
			logger.Warn("User e-mail recovered from notification text", "email", email)
		}

		exp, expSrc := n.ExtractExpiry(d.now())
		if !expiry.IsWellFormed(exp) {
			return p, &ValidationError{Field: "expiryDate", Message: "Некорректный срок действия карты"}
		}
		if expSrc.Lossy() {
			logger.Warn("Expiry date recovered from notification text", "expiry", exp, "source", expSrc)
		}

		p.UserEmail = email
		p.User = displayName(n, email)
		p.Expiry = exp
		p.ExpirySource = expSrc
	}

	return p, nil
}

func displayName(n notification.Notification, email string) string {
	switch {
	case n.UserName != "":
		return n.UserName
	case email != "":
		return email
	default:
		return unknownUser
	}
}

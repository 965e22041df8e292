package dispatch

import (
	"fmt"
	"sync"
	"time"

	"cardadmin/service/notification"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Params are the action parameters resolved when a confirmation is opened.
// Confirm acts on exactly these values.
type Params struct {
	Amount       decimal.NullDecimal `json:"amount"`
	AmountSource notification.Source `json:"amountSource,omitempty"`
	Expiry       string              `json:"expiry,omitempty"`
	ExpirySource notification.Source `json:"expirySource,omitempty"`
	UserEmail    string              `json:"userEmail,omitempty"`
	User         string              `json:"user,omitempty"`
}

// Confirmation is a pending operator decision. The token can be taken once.
type Confirmation struct {
	Token          string            `json:"token"`
	NotificationID int64             `json:"notificationId"`
	CardID         int64             `json:"cardId,omitempty"`
	Type           notification.Type `json:"type"`
	Title          string            `json:"title"`
	Message        string            `json:"message"`
	ConfirmLabel   string            `json:"confirmLabel"`
	CancelLabel    string            `json:"cancelLabel"`
	Params         Params            `json:"params"`
	ExpiresAt      time.Time         `json:"expiresAt"`
}

func (c Confirmation) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// pending keeps at most one confirmation per notification.
type pending struct {
	mu             sync.Mutex
	byToken        map[string]Confirmation
	byNotification map[int64]string
}

func newPending() *pending {
	return &pending{
		byToken:        make(map[string]Confirmation),
		byNotification: make(map[int64]string),
	}
}

// open stores c under a fresh token, revoking any earlier token for the same
// notification.
func (p *pending) open(c Confirmation) Confirmation {
	c.Token = uuid.NewString()

	p.mu.Lock()
	defer p.mu.Unlock()

	if old, ok := p.byNotification[c.NotificationID]; ok {
		delete(p.byToken, old)
	}
	p.byToken[c.Token] = c
	p.byNotification[c.NotificationID] = c.Token
	return c
}

// take removes the token and returns its confirmation. An expired token is
// removed too; its stale value is returned with ErrConfirmationNotFound.
func (p *pending) take(token string, now time.Time) (Confirmation, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, found := p.byToken[token]
	if !found {
		return Confirmation{}, fmt.Errorf("%w: %s", ErrConfirmationNotFound, token)
	}
	delete(p.byToken, token)
	if p.byNotification[c.NotificationID] == token {
		delete(p.byNotification, c.NotificationID)
	}
	if c.Expired(now) {
		return c, fmt.Errorf("%w: %s", ErrConfirmationNotFound, token)
	}
	return c, nil
}

func (p *pending) revoke(notificationID int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if token, ok := p.byNotification[notificationID]; ok {
		delete(p.byToken, token)
		delete(p.byNotification, notificationID)
	}
}

// expired drops and returns every confirmation past its deadline.
func (p *pending) expired(now time.Time) []Confirmation {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []Confirmation
	for token, c := range p.byToken {
		if c.Expired(now) {
			delete(p.byToken, token)
			delete(p.byNotification, c.NotificationID)
			out = append(out, c)
		}
	}
	return out
}

func (p *pending) len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.byToken)
}

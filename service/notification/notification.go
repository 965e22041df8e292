package notification

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound          = errors.New("notification not found")
	ErrInvalidTransition = errors.New("invalid state transition")
)

type Type string

const (
	TypeBlockRequest    Type = "CARD_BLOCK_REQUEST"
	TypeTopUpRequest    Type = "CARD_TOPUP_REQUEST"
	TypeUnblockRequest  Type = "CARD_UNBLOCK_REQUEST"
	TypeCreateRequest   Type = "CARD_CREATE_REQUEST"
	TypeRecreateRequest Type = "CARD_RECREATE_REQUEST"
)

var descriptions = map[Type]string{
	TypeBlockRequest:    "Запрос на блокировку карты",
	TypeTopUpRequest:    "Запрос на пополнение карты",
	TypeUnblockRequest:  "Запрос на разблокировку карты",
	TypeCreateRequest:   "Запрос на создание карты",
	TypeRecreateRequest: "Запрос на пересоздание карты",
}

func (t Type) Known() bool {
	_, ok := descriptions[t]
	return ok
}

func (t Type) Description() string {
	if d, ok := descriptions[t]; ok {
		return d
	}
	return "Уведомление"
}

// NeedsCard reports whether acting on the notification targets an existing card.
func (t Type) NeedsCard() bool {
	return t.Known() && t != TypeCreateRequest
}

// Notification is a server-generated record of a card holder's pending request.
// Amount and NewExpiryDate are optional; older servers only embed them in ReasonText.
type Notification struct {
	ID            int64               `json:"id"`
	Type          Type                `json:"type"`
	CardID        int64               `json:"cardId,omitempty"`
	UserEmail     string              `json:"userEmail,omitempty"`
	UserName      string              `json:"userName,omitempty"`
	CardNumber    string              `json:"cardNumber,omitempty"`
	ReasonText    string              `json:"reasonText"`
	Amount        decimal.NullDecimal `json:"amount"`
	NewExpiryDate string              `json:"newExpiryDate,omitempty"`
	Processed     bool                `json:"processed"`
}

func (n Notification) Validate() error {
	if n.ID <= 0 {
		return fmt.Errorf("notification id must be positive")
	}
	if n.Type == "" {
		return fmt.Errorf("notification %d has no type", n.ID)
	}
	if n.Type.NeedsCard() && n.CardID <= 0 {
		return fmt.Errorf("notification %d of type %s has no card", n.ID, n.Type)
	}
	return nil
}

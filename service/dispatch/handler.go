package dispatch

import (
	"fmt"

	"cardadmin/service/notification"
	"cardadmin/service/util"
)

const cancelLabel = "Отмена"

// Handler carries the operator-facing copy of one notification type. Handlers
// for unknown types only have a DetailTitle.
type Handler struct {
	Type         notification.Type `json:"type"`
	DetailTitle  string            `json:"detailTitle"`
	ButtonLabel  string            `json:"buttonLabel,omitempty"`
	ConfirmTitle string            `json:"confirmTitle,omitempty"`
	ConfirmLabel string            `json:"confirmLabel,omitempty"`
	CancelLabel  string            `json:"cancelLabel,omitempty"`

	// failing is the noun phrase used in "Ошибка при <failing>: <cause>".
	failing string
	message func(Params) string
	success func(Params) string
}

var handlers = map[notification.Type]Handler{
	notification.TypeBlockRequest: {
		DetailTitle:  "🔍 Детали запроса на блокировку",
		ButtonLabel:  "🚫 Заблокировать карту",
		ConfirmTitle: "🚫 Блокировка карты",
		ConfirmLabel: "Заблокировать",
		failing:      "блокировке карты",
		message: func(Params) string {
			return "Вы уверены, что хотите заблокировать эту карту?"
		},
		success: func(Params) string {
			return "Карта заблокирована и уведомление обработано"
		},
	},
	notification.TypeTopUpRequest: {
		DetailTitle:  "🔍 Детали запроса на пополнение",
		ButtonLabel:  "💰 Пополнить карту",
		ConfirmTitle: "💰 Пополнение карты",
		ConfirmLabel: "Пополнить",
		failing:      "пополнении карты",
		message: func(p Params) string {
			return fmt.Sprintf("Пополнить карту на %s ₽?", util.FormatAmount(p.Amount.Decimal))
		},
		success: func(p Params) string {
			return fmt.Sprintf("Карта пополнена на %s ₽ и уведомление обработано", util.FormatAmount(p.Amount.Decimal))
		},
	},
	notification.TypeUnblockRequest: {
		DetailTitle:  "🔍 Детали запроса на разблокировку",
		ButtonLabel:  "🔓 Разблокировать карту",
		ConfirmTitle: "🔓 Разблокировка карты",
		ConfirmLabel: "Разблокировать",
		failing:      "разблокировке карты",
		message: func(Params) string {
			return "Разблокировать карту?"
		},
		success: func(Params) string {
			return "Карта разблокирована и уведомление обработано"
		},
	},
	notification.TypeCreateRequest: {
		DetailTitle:  "🔍 Детали запроса на создание карты",
		ButtonLabel:  "➕ Создать карту",
		ConfirmTitle: "➕ Создание карты",
		ConfirmLabel: "Создать",
		failing:      "создании карты",
		message: func(p Params) string {
			return fmt.Sprintf("Создать новую карту для %s со сроком действия %s?", p.User, p.Expiry)
		},
		success: func(Params) string {
			return "Карта создана и уведомление обработано"
		},
	},
	notification.TypeRecreateRequest: {
		DetailTitle:  "🔍 Детали запроса на пересоздание карты",
		ButtonLabel:  "🔄 Пересоздать карту",
		ConfirmTitle: "🔄 Пересоздание карты",
		ConfirmLabel: "Пересоздать",
		failing:      "пересоздании карты",
		message: func(p Params) string {
			return fmt.Sprintf("Пересоздать карту для %s со сроком действия %s?", p.User, p.Expiry)
		},
		success: func(Params) string {
			return "Карта пересоздана успешно"
		},
	},
}

// Resolve returns the handler for t. It never fails: unknown types get a
// handler without an action.
func Resolve(t notification.Type) Handler {
	h, ok := handlers[t]
	if !ok {
		return Handler{Type: t, DetailTitle: "🔍 Детали уведомления"}
	}
	h.Type = t
	h.CancelLabel = cancelLabel
	return h
}

func (h Handler) HasAction() bool {
	return h.message != nil
}

func (h Handler) ConfirmMessage(p Params) string {
	if h.message == nil {
		return ""
	}
	return h.message(p)
}

func (h Handler) SuccessMessage(p Params) string {
	if h.success == nil {
		return ""
	}
	return h.success(p)
}

func (h Handler) FailureMessage(cause string) string {
	return fmt.Sprintf("Ошибка при %s: %s", h.failing, cause)
}

package server

import (
	"errors"
	"net/http"

	"cardadmin/service/bankapi"
	"cardadmin/service/delivery"
	"cardadmin/service/dispatch"
	"cardadmin/service/notification"
	"cardadmin/service/request"
	"cardadmin/service/util"
)

func statusFor(err error) int {
	switch {
	case dispatch.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, notification.ErrNotFound),
		errors.Is(err, dispatch.ErrConfirmationNotFound):
		return http.StatusNotFound
	case errors.Is(err, dispatch.ErrNotActionable),
		errors.Is(err, dispatch.ErrNoAction),
		errors.Is(err, notification.ErrInvalidTransition),
		errors.Is(err, request.ErrAlreadySent):
		return http.StatusConflict
	case bankapi.IsNetwork(err):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// messageFor is the operator-facing text for err.
func messageFor(err error) string {
	var verr *dispatch.ValidationError
	switch {
	case errors.As(err, &verr):
		return verr.Message
	case errors.Is(err, notification.ErrNotFound):
		return "Уведомление не найдено"
	case errors.Is(err, dispatch.ErrConfirmationNotFound):
		return "Подтверждение устарело, откройте его заново"
	case errors.Is(err, dispatch.ErrNoAction):
		return "Для этого уведомления нет действия"
	case errors.Is(err, dispatch.ErrNotActionable), errors.Is(err, notification.ErrInvalidTransition):
		return "Уведомление уже обрабатывается или обработано"
	case errors.Is(err, request.ErrAlreadySent):
		return "Запрос уже отправлен"
	default:
		return err.Error()
	}
}

// writeError answers with the mapped status, a JSON body and a toast header.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := statusFor(err)
	msg := messageFor(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "status", code, "error", err)
	} else {
		s.logger.Debug("Request rejected", "status", code, "error", err)
	}

	toast := delivery.Failure(msg)
	util.SetToast(w, toast.Title, toast.Message, string(toast.Level))
	util.WriteJSON(w, s.logger, code, map[string]string{"error": msg})
}

func setToast(w http.ResponseWriter, toast delivery.Toast) {
	util.SetToast(w, toast.Title, toast.Message, string(toast.Level))
}

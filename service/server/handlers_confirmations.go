package server

import (
	"net/http"

	"cardadmin/service/util"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	out, err := s.dispatcher.Confirm(r.Context(), token)
	if err != nil {
		if out.Toast.Message == "" {
			s.writeError(w, err)
			return
		}
		// the action ran and failed; the outcome carries the entry and toast
		setToast(w, out.Toast)
		util.WriteJSON(w, s.logger, statusFor(err), out)
		return
	}

	setToast(w, out.Toast)
	util.WriteJSON(w, s.logger, http.StatusOK, out)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	e, err := s.dispatcher.Cancel(chi.URLParam(r, "token"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	util.WriteJSON(w, s.logger, http.StatusOK, e)
}

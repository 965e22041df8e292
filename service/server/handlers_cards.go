package server

import (
	"net/http"

	"cardadmin/service/cardaction"
	"cardadmin/service/util"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleCardPrompt(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		util.WriteJSON(w, s.logger, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	action, ok := cardaction.ParseAction(chi.URLParam(r, "action"))
	if !ok {
		util.WriteJSON(w, s.logger, http.StatusNotFound, map[string]string{"error": "unknown card action"})
		return
	}

	prompt, err := s.cards.Prompt(id, action, cardParams(r))
	if err != nil {
		s.writeError(w, err)
		return
	}
	util.WriteJSON(w, s.logger, http.StatusOK, prompt)
}

func (s *Server) cardAction(action cardaction.Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := idParam(r)
		if err != nil {
			util.WriteJSON(w, s.logger, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		if err := r.ParseForm(); err != nil {
			util.LogAndError(w, s.logger, "Invalid form data", http.StatusBadRequest, err)
			return
		}

		res, err := s.cards.Run(r.Context(), id, action, cardParams(r))
		if err != nil {
			if res.Toast.Message == "" {
				s.writeError(w, err)
				return
			}
			setToast(w, res.Toast)
			util.WriteJSON(w, s.logger, statusFor(err), map[string]string{"error": res.Toast.Message})
			return
		}

		setToast(w, res.Toast)
		util.WriteJSON(w, s.logger, http.StatusOK, res)
	}
}

func cardParams(r *http.Request) cardaction.Params {
	return cardaction.Params{
		Reason:     r.FormValue("reason"),
		Amount:     r.FormValue("amount"),
		ExpiryDate: r.FormValue("expiryDate"),
		OwnerEmail: r.FormValue("ownerEmail"),
	}
}

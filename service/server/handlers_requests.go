package server

import (
	"net/http"

	"cardadmin/service/expiry"
	"cardadmin/service/request"
	"cardadmin/service/util"
)

func (s *Server) handleRequestTopUp(w http.ResponseWriter, r *http.Request) {
	s.cardRequest(w, r, func(id int64) (request.Result, error) {
		return s.requests.TopUp(r.Context(), id, r.FormValue("amount"))
	})
}

func (s *Server) handleRequestBlock(w http.ResponseWriter, r *http.Request) {
	s.cardRequest(w, r, func(id int64) (request.Result, error) {
		return s.requests.Block(r.Context(), id, r.FormValue("reason"), r.FormValue("customReason"))
	})
}

func (s *Server) handleRequestUnblock(w http.ResponseWriter, r *http.Request) {
	s.cardRequest(w, r, func(id int64) (request.Result, error) {
		return s.requests.Unblock(r.Context(), id, r.FormValue("reason"), r.FormValue("customReason"))
	})
}

func (s *Server) handleRequestRecreate(w http.ResponseWriter, r *http.Request) {
	s.cardRequest(w, r, func(id int64) (request.Result, error) {
		return s.requests.Recreate(r.Context(), id, r.FormValue("newExpiryDate"))
	})
}

func (s *Server) handleRequestCreate(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		util.LogAndError(w, s.logger, "Invalid form data", http.StatusBadRequest, err)
		return
	}
	res, err := s.requests.Create(r.Context(), r.FormValue("expiryDate"))
	s.writeRequestResult(w, res, err)
}

func (s *Server) cardRequest(w http.ResponseWriter, r *http.Request, send func(id int64) (request.Result, error)) {
	id, err := idParam(r)
	if err != nil {
		util.WriteJSON(w, s.logger, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err := r.ParseForm(); err != nil {
		util.LogAndError(w, s.logger, "Invalid form data", http.StatusBadRequest, err)
		return
	}

	res, err := send(id)
	s.writeRequestResult(w, res, err)
}

func (s *Server) writeRequestResult(w http.ResponseWriter, res request.Result, err error) {
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

func (s *Server) handleExpiryOptions(w http.ResponseWriter, r *http.Request) {
	util.WriteJSON(w, s.logger, http.StatusOK, expiry.Options(s.now()))
}

package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"cardadmin/service/notification"
	"cardadmin/service/util"

	"github.com/go-chi/chi/v5"
)

const maxIngestBody = 1 << 20

type ingestResponse struct {
	Ingested int                  `json:"ingested"`
	Entries  []notification.Entry `json:"entries"`
}

// handleIngest accepts one notification or a JSON array of them.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxIngestBody))
	if err != nil {
		util.LogAndError(w, s.logger, "Failed to read body", http.StatusBadRequest, err)
		return
	}

	var batch []notification.Notification
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		err = json.Unmarshal(trimmed, &batch)
	} else {
		var n notification.Notification
		err = json.Unmarshal(trimmed, &n)
		batch = append(batch, n)
	}
	if err != nil {
		util.LogAndError(w, s.logger, "Invalid notification JSON", http.StatusBadRequest, err)
		return
	}

	for _, n := range batch {
		if err := n.Validate(); err != nil {
			util.WriteJSON(w, s.logger, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
	}

	resp := ingestResponse{Entries: make([]notification.Entry, 0, len(batch))}
	for _, n := range batch {
		e, err := s.dispatcher.Ingest(n)
		if err != nil {
			s.writeError(w, err)
			return
		}
		resp.Entries = append(resp.Entries, e)
	}
	resp.Ingested = len(resp.Entries)

	s.logger.Debug("Ingested notifications", "count", resp.Ingested)
	util.WriteJSON(w, s.logger, http.StatusOK, resp)
}

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	entries := s.board.List()
	if r.URL.Query().Get("actionable") == "true" {
		filtered := entries[:0]
		for _, e := range entries {
			if e.Actionable() {
				filtered = append(filtered, e)
			}
		}
		entries = filtered
	}
	util.WriteJSON(w, s.logger, http.StatusOK, entries)
}

func (s *Server) handleShowDetails(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		util.WriteJSON(w, s.logger, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	details, err := s.dispatcher.ShowDetails(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	util.WriteJSON(w, s.logger, http.StatusOK, details)
}

func (s *Server) handleCloseDetails(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		util.WriteJSON(w, s.logger, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	e, err := s.dispatcher.CloseDetails(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	util.WriteJSON(w, s.logger, http.StatusOK, e)
}

func (s *Server) handleRequestConfirmation(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		util.WriteJSON(w, s.logger, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	c, err := s.dispatcher.RequestConfirmation(id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	util.WriteJSON(w, s.logger, http.StatusOK, c)
}

func idParam(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

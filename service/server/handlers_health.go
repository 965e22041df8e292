package server

import (
	"context"
	"net/http"
	"time"

	"cardadmin/service/integration"
	"cardadmin/service/notification"
	"cardadmin/service/util"
)

type healthResponse struct {
	Version       string                        `json:"version"`
	Uptime        string                        `json:"uptime"`
	Notifications map[notification.State]int    `json:"notifications"`
	LiveClients   int                           `json:"liveClients"`
	Relays        []string                      `json:"relays"`
	Integrations  map[string]integration.Status `json:"integrations,omitempty"`
}

func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := healthResponse{
		Version:       s.version,
		Uptime:        util.FormatUptime(time.Since(s.startTime)),
		Notifications: s.board.Stats(),
		LiveClients:   s.hub.ClientsCount(),
		Relays:        s.integrations.Publisher.Senders(),
		Integrations:  s.integrations.Health(ctx),
	}

	util.WriteJSON(w, s.logger, http.StatusOK, resp)
}

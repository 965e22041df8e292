// Package banktest provides a fake bank card REST API for tests.
//
// Every request is recorded. By default each endpoint answers 200 with a short
// text body (or a card JSON for POST /api/cards and GET /api/cards/{id}); Stub overrides the status
// and body of a single method and path.
package banktest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// OwnerEmail is the owner of every card served by GET /api/cards/{id}.
const OwnerEmail = "holder@bank.test"

// Request is a recorded call to the fake server.
type Request struct {
	Method        string
	Path          string
	ContentType   string
	Authorization string
	Form          url.Values
	Body          string
}

// Stub is a canned answer for one method and path.
type Stub struct {
	Status int
	Body   string
}

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	requests []Request
	stubs    map[string]Stub
	nextCard int64
}

func NewServer() *Server {
	s := &Server{
		stubs:    make(map[string]Stub),
		nextCard: 100,
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	return s
}

// Stub makes method+path answer with status and body.
func (s *Server) Stub(method, path string, status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stubs[method+" "+path] = Stub{Status: status, Body: body}
}

// Requests returns a copy of every recorded request in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Paths returns "METHOD /path" for every recorded request.
func (s *Server) Paths() []string {
	reqs := s.Requests()
	out := make([]string, len(reqs))
	for i, r := range reqs {
		out[i] = r.Method + " " + r.Path
	}
	return out
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	raw, _ := io.ReadAll(r.Body)
	rec := Request{
		Method:        r.Method,
		Path:          r.URL.Path,
		ContentType:   r.Header.Get("Content-Type"),
		Authorization: r.Header.Get("Authorization"),
		Body:          string(raw),
	}
	if strings.HasPrefix(rec.ContentType, "application/x-www-form-urlencoded") {
		rec.Form, _ = url.ParseQuery(string(raw))
	}

	s.mu.Lock()
	s.requests = append(s.requests, rec)
	stub, stubbed := s.stubs[r.Method+" "+r.URL.Path]
	cardID := s.nextCard
	s.nextCard++
	s.mu.Unlock()

	if stubbed {
		w.WriteHeader(stub.Status)
		_, _ = io.WriteString(w, stub.Body)
		return
	}

	if r.Method == http.MethodPost && r.URL.Path == "/api/cards" {
		var req struct {
			OwnerEmail string `json:"ownerEmail"`
			ExpiryDate string `json:"expiryDate"`
		}
		_ = json.Unmarshal(raw, &req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":           cardID,
			"maskedNumber": "**** **** **** 4242",
			"ownerEmail":   req.OwnerEmail,
			"expiryDate":   req.ExpiryDate,
			"status":       "ACTIVE",
			"balance":      "0.00",
		})
		return
	}

	if r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/api/cards/") {
		id, err := strconv.ParseInt(strings.TrimPrefix(r.URL.Path, "/api/cards/"), 10, 64)
		if err != nil {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":           id,
			"maskedNumber": "**** **** **** 1111",
			"ownerEmail":   OwnerEmail,
			"expiryDate":   "01/25",
			"status":       "EXPIRED",
			"balance":      "0.00",
		})
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = fmt.Fprintf(w, "ok: %s %s", r.Method, r.URL.Path)
}

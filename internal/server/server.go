// Package server exposes the mirror API and the Slack webhook receiver.
package server

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/slackmirror/slackmirror/internal/dedupe"
	"github.com/slackmirror/slackmirror/internal/mirror"
	"github.com/slackmirror/slackmirror/internal/tenant"
	"github.com/slackmirror/slackmirror/internal/webhook"
)

// Metrics are the counters reported by /status.
type Metrics struct {
	StartedAt time.Time `json:"started_at"`

	EventsAccepted int `json:"events_accepted"`
	EventsDeduped  int `json:"events_deduped"`
	EventsRejected int `json:"events_rejected"`
	RepliesSent    int `json:"replies_sent"`

	LastError   string `json:"last_error,omitempty"`
	LastErrorAt string `json:"last_error_at,omitempty"`
}

// Server wires the HTTP surface over the registry, mirror service, and
// webhook dispatcher.
type Server struct {
	registry    *tenant.Registry
	mirror      *mirror.Service
	dispatcher  *webhook.Dispatcher
	deduper     *dedupe.Deduper
	logger      *slog.Logger
	allowOrigin string

	metricsMu sync.Mutex
	metrics   Metrics
}

// New builds the server. allowOrigin configures CORS; empty means "*".
func New(registry *tenant.Registry, svc *mirror.Service, dispatcher *webhook.Dispatcher, deduper *dedupe.Deduper, allowOrigin string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	return &Server{
		registry:    registry,
		mirror:      svc,
		dispatcher:  dispatcher,
		deduper:     deduper,
		logger:      logger,
		allowOrigin: allowOrigin,
		metrics:     Metrics{StartedAt: time.Now().UTC()},
	}
}

// Handler returns the fully wired HTTP handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /api/organizations", s.handleOrganizations)
	mux.HandleFunc("GET /api/orgs/{org_id}/chats", s.handleOrgChats)
	mux.HandleFunc("GET /api/chats/{chat_id}/messages", s.handleChatMessages)
	mux.HandleFunc("GET /api/chats/{chat_id}/thread", s.handleChatThread)
	mux.HandleFunc("POST /slack/events", s.handleSlackEvents)
	mux.HandleFunc("POST /reply", s.handleReply)
	mux.HandleFunc("GET /inspect/user/{team_id}/{user_id}", s.handleInspectUser)
	mux.HandleFunc("GET /inspect/channel/{team_id}/{channel_id}", s.handleInspectChannel)
	mux.HandleFunc("GET /inspect/workspace/{team_id}", s.handleInspectWorkspace)
	mux.HandleFunc("GET /inspect/history/{team_id}/{channel_id}", s.handleInspectHistory)
	return s.withCORS(s.withRecovery(mux))
}

func (s *Server) noteEvent(duplicate bool) {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	if duplicate {
		s.metrics.EventsDeduped++
		return
	}
	s.metrics.EventsAccepted++
}

func (s *Server) noteRejected(err error) {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	s.metrics.EventsRejected++
	if err != nil {
		s.metrics.LastError = err.Error()
		s.metrics.LastErrorAt = time.Now().UTC().Format(time.RFC3339)
	}
}

func (s *Server) noteReply() {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	s.metrics.RepliesSent++
}

func (s *Server) snapshotMetrics() Metrics {
	s.metricsMu.Lock()
	defer s.metricsMu.Unlock()
	return s.metrics
}

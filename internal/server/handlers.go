package server

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
)

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":           true,
		"metrics":      s.snapshotMetrics(),
		"tenants":      len(s.registry.Organizations()),
		"dedupe_cache": s.deduper.Size(),
	})
}

func (s *Server) handleOrganizations(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Organizations())
}

func (s *Server) handleOrgChats(w http.ResponseWriter, r *http.Request) {
	chats, err := s.mirror.ListChats(r.Context(), r.PathValue("org_id"))
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

func (s *Server) handleChatMessages(w http.ResponseWriter, r *http.Request) {
	orgID := strings.TrimSpace(r.URL.Query().Get("org_id"))
	if orgID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "org_id required"})
		return
	}
	msgs, err := s.mirror.ListMessages(r.Context(), orgID, r.PathValue("chat_id"))
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleChatThread(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orgID := strings.TrimSpace(q.Get("org_id"))
	threadTS := strings.TrimSpace(q.Get("thread_ts"))
	if orgID == "" || threadTS == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "org_id and thread_ts required"})
		return
	}
	thread, err := s.mirror.Thread(r.Context(), orgID, r.PathValue("chat_id"), threadTS)
	if err != nil {
		s.writeLookupError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, thread)
}

func (s *Server) handleSlackEvents(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad body"})
		return
	}
	ack, err := s.dispatcher.Dispatch(r.Context(), body, r.Header)
	if err != nil {
		s.noteRejected(err)
		s.writeError(w, err)
		return
	}
	if ack.Challenge == "" {
		s.noteEvent(ack.Duplicate)
	}
	writeJSON(w, http.StatusOK, ack)
}

type replyRequest struct {
	TeamID   string `json:"team_id"`
	Channel  string `json:"channel"`
	Text     string `json:"text"`
	ThreadTS string `json:"thread_ts,omitempty"`
}

func (s *Server) handleReply(w http.ResponseWriter, r *http.Request) {
	var req replyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON payload"})
		return
	}
	if strings.TrimSpace(req.TeamID) == "" || strings.TrimSpace(req.Channel) == "" || strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "team_id, channel and text required"})
		return
	}
	ts, err := s.mirror.PostReply(r.Context(), req.TeamID, req.Channel, req.Text, req.ThreadTS)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.noteReply()
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "ts": ts})
}

func (s *Server) handleInspectUser(w http.ResponseWriter, r *http.Request) {
	info, err := s.mirror.UserInfo(r.Context(), r.PathValue("team_id"), r.PathValue("user_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleInspectChannel(w http.ResponseWriter, r *http.Request) {
	info, err := s.mirror.ChannelInfo(r.Context(), r.PathValue("team_id"), r.PathValue("channel_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleInspectWorkspace(w http.ResponseWriter, r *http.Request) {
	info, err := s.mirror.WorkspaceInfo(r.Context(), r.PathValue("team_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (s *Server) handleInspectHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := strings.TrimSpace(r.URL.Query().Get("limit")); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	msgs, err := s.mirror.RawHistory(r.Context(), r.PathValue("team_id"), r.PathValue("channel_id"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs})
}

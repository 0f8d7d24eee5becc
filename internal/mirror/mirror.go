// Package mirror builds normalized chat and message projections over the
// Slack Web API. Views are rebuilt per request; nothing here is persisted.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/slackmirror/slackmirror/internal/tenant"
)

// ErrUpstreamUnavailable is returned when the Slack API keeps failing after
// the internal retry. The HTTP boundary maps it to 503.
var ErrUpstreamUnavailable = errors.New("mirror: upstream unavailable")

const (
	conversationPageSize = 200
	defaultMessageLimit  = 40
	historyAttempts      = 2
)

// ChatEntry is the normalized channel or DM summary.
type ChatEntry struct {
	ID            string `json:"id"`
	Type          string `json:"type"`
	OrgID         string `json:"org_id"`
	Name          string `json:"name"`
	Path          string `json:"path"`
	Owner         string `json:"owner"`
	Preview       string `json:"preview"`
	LastMessageAt string `json:"lastMessageAt"`
	Unread        int    `json:"unread"`
	TeamID        string `json:"team_id"`
}

// Message is the normalized message projection.
type Message struct {
	ID          string   `json:"id"`
	ChatID      string   `json:"chat_id"`
	User        string   `json:"user"`
	Avatar      string   `json:"avatar"`
	Text        string   `json:"text"`
	Time        string   `json:"time"`
	Attachments []string `json:"attachments"`
	ReplyCount  int      `json:"reply_count"`
	ThreadTS    string   `json:"thread_ts"`
}

// Thread is a parent message with its replies.
type Thread struct {
	Parent  *Message  `json:"parent"`
	Replies []Message `json:"replies"`
}

// Service resolves every operation through the tenant registry so a request
// can never reach another tenant's workspace.
type Service struct {
	registry *tenant.Registry
	lookback time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// NewService builds the mirror service. lookback bounds how far back message
// listings reach; non-positive means 12 hours.
func NewService(registry *tenant.Registry, lookback time.Duration, logger *slog.Logger) *Service {
	if lookback <= 0 {
		lookback = 12 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		registry: registry,
		lookback: lookback,
		logger:   logger,
		now:      time.Now,
	}
}

// ListChats returns channel and DM summaries for one organization.
func (s *Service) ListChats(ctx context.Context, orgID string) ([]ChatEntry, error) {
	tn, err := s.registry.ByOrg(orgID)
	if err != nil {
		return nil, err
	}
	cache := newUserLabelCache(tn.Client)

	channels, err := s.fetchConversations(ctx, tn.Client, []string{"public_channel", "private_channel"})
	if err != nil {
		return nil, err
	}
	dms, err := s.fetchConversations(ctx, tn.Client, []string{"im", "mpim"})
	if err != nil {
		return nil, err
	}

	chats := make([]ChatEntry, 0, len(channels)+len(dms))
	for _, ch := range channels {
		chats = append(chats, s.buildChatEntry(ctx, tn, ch, "channel", cache))
	}
	for _, dm := range dms {
		chats = append(chats, s.buildChatEntry(ctx, tn, dm, "dm", cache))
	}
	return chats, nil
}

// ListMessages returns the recent messages of a chat, oldest first, bounded
// by the lookback window.
func (s *Service) ListMessages(ctx context.Context, orgID, chatID string) ([]Message, error) {
	tn, err := s.registry.ByOrg(orgID)
	if err != nil {
		return nil, err
	}
	oldest := s.now().Add(-s.lookback)
	raw, err := s.fetchChannelHistory(ctx, tn.Client, chatID, defaultMessageLimit, oldest)
	if err != nil {
		return nil, err
	}
	cache := newUserLabelCache(tn.Client)
	out := make([]Message, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		out = append(out, s.buildMessage(ctx, raw[i], chatID, cache))
	}
	return out, nil
}

// Thread returns a parent message and its replies.
func (s *Service) Thread(ctx context.Context, orgID, chatID, threadTS string) (Thread, error) {
	tn, err := s.registry.ByOrg(orgID)
	if err != nil {
		return Thread{}, err
	}
	msgs, _, _, err := tn.Client.GetConversationRepliesContext(ctx, &slack.GetConversationRepliesParameters{
		ChannelID: chatID,
		Timestamp: threadTS,
		Limit:     defaultMessageLimit,
		Inclusive: true,
	})
	if err != nil {
		s.logger.Error("thread replies load failed", "org", orgID, "chat", chatID, "error", err)
		return Thread{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	if len(msgs) == 0 {
		return Thread{Replies: []Message{}}, nil
	}
	cache := newUserLabelCache(tn.Client)
	parent := s.buildMessage(ctx, msgs[0], chatID, cache)
	replies := make([]Message, 0, len(msgs)-1)
	for _, m := range msgs[1:] {
		replies = append(replies, s.buildMessage(ctx, m, chatID, cache))
	}
	return Thread{Parent: &parent, Replies: replies}, nil
}

// PostReply sends a message into a tenant's workspace, optionally threaded.
// Returns the posted message timestamp.
func (s *Service) PostReply(ctx context.Context, teamID, channel, text, threadTS string) (string, error) {
	client, err := s.registry.ClientForTeam(teamID)
	if err != nil {
		return "", err
	}
	var ts string
	err = withRetry(3, 200*time.Millisecond, func() (bool, error) {
		opts := []slack.MsgOption{slack.MsgOptionText(text, false)}
		if v := strings.TrimSpace(threadTS); v != "" {
			opts = append(opts, slack.MsgOptionTS(v))
		}
		var perr error
		_, ts, perr = client.PostMessageContext(ctx, channel, opts...)
		return retryDecision(perr)
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	s.logger.Info("reply posted", "team", teamID, "channel", channel, "ts", ts)
	return ts, nil
}

// fetchConversations pages through conversations.list until the cursor runs
// out.
func (s *Service) fetchConversations(ctx context.Context, client tenant.API, types []string) ([]slack.Channel, error) {
	var all []slack.Channel
	cursor := ""
	for {
		chs, next, err := client.GetConversationsContext(ctx, &slack.GetConversationsParameters{
			Types:           types,
			Limit:           conversationPageSize,
			Cursor:          cursor,
			ExcludeArchived: true,
		})
		if err != nil {
			s.logger.Error("conversations load failed", "types", strings.Join(types, ","), "error", err)
			return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
		}
		all = append(all, chs...)
		cursor = strings.TrimSpace(next)
		if cursor == "" {
			return all, nil
		}
	}
}

// fetchChannelHistory reads recent messages with a bounded retry for
// transient read failures.
func (s *Service) fetchChannelHistory(ctx context.Context, client tenant.API, channelID string, limit int, oldest time.Time) ([]slack.Message, error) {
	params := &slack.GetConversationHistoryParameters{
		ChannelID: channelID,
		Limit:     limit,
	}
	if !oldest.IsZero() {
		params.Oldest = strconv.FormatInt(oldest.Unix(), 10)
	}
	var lastErr error
	for attempt := 1; attempt <= historyAttempts; attempt++ {
		resp, err := client.GetConversationHistoryContext(ctx, params)
		if err == nil {
			return resp.Messages, nil
		}
		lastErr = err
		s.logger.Warn("history load failed", "channel", channelID, "attempt", attempt, "error", err)
		if attempt < historyAttempts {
			sleepForRateLimit(err)
		}
	}
	return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, lastErr)
}

func (s *Service) buildChatEntry(ctx context.Context, tn *tenant.Tenant, ch slack.Channel, chatType string, cache *userLabelCache) ChatEntry {
	var chatName, owner, pathType string
	if chatType == "dm" {
		label := cache.lookup(ctx, ch.User)
		chatName = label.Name
		owner = label.Name
		pathType = "Direct messages"
	} else {
		chatName = ch.Name
		if chatName == "" {
			chatName = ch.Topic.Value
		}
		if chatName == "" {
			chatName = "Channel"
		}
		owner = chatName
		pathType = "Channels"
	}

	unread := ch.UnreadCountDisplay
	if unread == 0 {
		unread = ch.UnreadCount
	}
	entry := ChatEntry{
		ID:      ch.ID,
		Type:    chatType,
		OrgID:   tn.ID,
		Name:    chatName,
		Path:    tn.Name + " / " + pathType + " / " + chatName,
		Owner:   owner,
		Preview: previewText(ch.Latest),
		Unread:  unread,
		TeamID:  tn.TeamID,
	}
	if ch.Latest != nil {
		entry.LastMessageAt = formatClockTime(ch.Latest.Timestamp)
	}
	return entry
}

func (s *Service) buildMessage(ctx context.Context, msg slack.Message, chatID string, cache *userLabelCache) Message {
	actor := msg.User
	if actor == "" {
		actor = msg.BotID
	}
	label := cache.lookup(ctx, actor)
	attachments := make([]string, 0, len(msg.Files))
	for _, f := range msg.Files {
		attachments = append(attachments, fileLabel(f.Name, f.Title))
	}
	threadTS := msg.ThreadTimestamp
	if threadTS == "" {
		threadTS = msg.Timestamp
	}
	return Message{
		ID:          msg.Timestamp,
		ChatID:      chatID,
		User:        label.Name,
		Avatar:      label.Initials,
		Text:        msg.Text,
		Time:        formatClockTime(msg.Timestamp),
		Attachments: attachments,
		ReplyCount:  msg.ReplyCount,
		ThreadTS:    threadTS,
	}
}

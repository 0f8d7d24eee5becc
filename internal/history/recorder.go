// Package history is the side-effect half of event dispatch: accepted user
// messages are logged, dumped to the terminal, and optionally persisted and
// published. Nothing here may affect the webhook acknowledgment.
package history

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"

	"github.com/slackmirror/slackmirror/internal/mirror"
	"github.com/slackmirror/slackmirror/internal/tenant"
	"github.com/slackmirror/slackmirror/internal/webhook"
)

// Entry is one recorded inbound message event.
type Entry struct {
	EventID    string    `json:"event_id"`
	TraceID    string    `json:"trace_id"`
	OrgID      string    `json:"org_id"`
	TeamID     string    `json:"team_id"`
	Channel    string    `json:"channel"`
	UserID     string    `json:"user_id"`
	Text       string    `json:"text"`
	TS         string    `json:"ts"`
	ReceivedAt time.Time `json:"received_at"`
}

// Recorder implements webhook.Sink. Store and publisher are optional; every
// stage is best-effort and failures stop at the log line.
type Recorder struct {
	mirror     *mirror.Service
	store      *Store
	publisher  *Publisher
	logHistory bool
	logger     *slog.Logger
	out        io.Writer
}

// NewRecorder builds the recorder. store and publisher may be nil; logHistory
// enables the recent-history terminal dump.
func NewRecorder(svc *mirror.Service, store *Store, publisher *Publisher, logHistory bool, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		mirror:     svc,
		store:      store,
		publisher:  publisher,
		logHistory: logHistory,
		logger:     logger,
		out:        os.Stdout,
	}
}

// SetOutput redirects the terminal dumps. Test helper.
func (r *Recorder) SetOutput(w io.Writer) { r.out = w }

// Record logs one accepted user message. Called detached from the webhook
// handler; errors are logged and swallowed.
func (r *Recorder) Record(ctx context.Context, tn *tenant.Tenant, env webhook.Envelope) {
	ev := env.Event
	entry := Entry{
		EventID:    env.EventID,
		TraceID:    uuid.NewString(),
		OrgID:      tn.ID,
		TeamID:     tn.TeamID,
		Channel:    ev.Channel,
		UserID:     ev.User,
		Text:       ev.Text,
		TS:         ev.TS,
		ReceivedAt: time.Now().UTC(),
	}

	r.logger.Info("inbound message",
		"team", entry.TeamID,
		"channel", entry.Channel,
		"user", entry.UserID,
		"event_id", entry.EventID,
		"trace_id", entry.TraceID,
		"at", mirror.FormatDatetime(entry.TS),
	)

	r.dumpUserInfo(ctx, tn, ev.User)
	r.dumpChannelInfo(ctx, tn, ev.Channel)
	if r.logHistory {
		r.dumpHistory(ctx, tn, ev.Channel, 10)
	}

	if r.store != nil {
		if err := r.store.Insert(ctx, entry); err != nil {
			r.logger.Error("history store insert failed", "event_id", entry.EventID, "error", err)
		}
	}
	if r.publisher != nil {
		if err := r.publisher.Publish(ctx, entry); err != nil {
			r.logger.Error("history publish failed", "event_id", entry.EventID, "error", err)
		}
	}
}

const ruleWidth = 60

func (r *Recorder) banner(teamID, title string) {
	rule := strings.Repeat("=", ruleWidth)
	now := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(r.out, "\n%s\n", rule)
	fmt.Fprintln(r.out, color.CyanString("[%s] [%s] %s", now, teamID, title))
	fmt.Fprintln(r.out, rule)
}

func (r *Recorder) dumpUserInfo(ctx context.Context, tn *tenant.Tenant, userID string) {
	info, err := r.mirror.UserInfo(ctx, tn.TeamID, userID)
	if err != nil {
		r.logger.Warn("user info load failed", "user", userID, "error", err)
		return
	}
	workspace, _ := r.mirror.WorkspaceInfo(ctx, tn.TeamID)
	r.banner(tn.TeamID, "USER INFORMATION")
	fmt.Fprintf(r.out, "User ID: %s\n", info.ID)
	fmt.Fprintf(r.out, "Name: %s\n", info.Name)
	fmt.Fprintf(r.out, "Display Name: %s\n", info.DisplayName)
	fmt.Fprintf(r.out, "Email: %s\n", info.Email)
	fmt.Fprintf(r.out, "Workspace: %s (ID: %s)\n", workspace.Name, workspace.ID)
	fmt.Fprintf(r.out, "%s\n\n", strings.Repeat("=", ruleWidth))
}

func (r *Recorder) dumpChannelInfo(ctx context.Context, tn *tenant.Tenant, channelID string) {
	info, err := r.mirror.ChannelInfo(ctx, tn.TeamID, channelID)
	if err != nil {
		r.logger.Warn("channel info load failed", "channel", channelID, "error", err)
		return
	}
	r.banner(tn.TeamID, "CHANNEL INFORMATION")
	fmt.Fprintf(r.out, "Channel ID: %s\n", info.ID)
	fmt.Fprintf(r.out, "Name: %s\n", info.Name)
	fmt.Fprintf(r.out, "Private: %t\n", info.IsPrivate)
	fmt.Fprintf(r.out, "Direct Message: %t\n", info.IsDM)
	fmt.Fprintf(r.out, "Topic: %s\n", info.Topic)
	fmt.Fprintf(r.out, "%s\n\n", strings.Repeat("=", ruleWidth))
}

func (r *Recorder) dumpHistory(ctx context.Context, tn *tenant.Tenant, channelID string, limit int) {
	msgs, err := r.mirror.RawHistory(ctx, tn.TeamID, channelID, limit)
	if err != nil {
		r.logger.Warn("history dump failed", "channel", channelID, "error", err)
		return
	}
	r.banner(tn.TeamID, fmt.Sprintf("MESSAGE HISTORY - %s (Last %d messages)", channelID, len(msgs)))
	for i := len(msgs) - 1; i >= 0; i-- {
		msg := msgs[i]
		user := msg.User
		if user == "" {
			user = "bot"
		}
		text := msg.Text
		if text == "" {
			text = "[no text]"
		}
		fmt.Fprintf(r.out, "\n[%s] %s:\n", mirror.FormatDatetime(msg.Timestamp), color.YellowString(user))
		fmt.Fprintf(r.out, "  %s\n", text)
	}
	fmt.Fprintf(r.out, "\n%s\n\n", strings.Repeat("=", ruleWidth))
}

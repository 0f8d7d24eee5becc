package mirror

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/slackmirror/slackmirror/internal/tenant"
)

// formatClockTime renders a Slack timestamp as a short clock time, e.g.
// "3:07 PM". Unparseable input is returned as-is.
func formatClockTime(ts string) string {
	sec, ok := parseSlackTS(ts)
	if !ok {
		return ts
	}
	return time.Unix(sec, 0).Format("3:04 PM")
}

// FormatDatetime renders a Slack timestamp as "2006-01-02 15:04:05".
// Unparseable input is returned as-is.
func FormatDatetime(ts string) string {
	sec, ok := parseSlackTS(ts)
	if !ok {
		return ts
	}
	return time.Unix(sec, 0).Format("2006-01-02 15:04:05")
}

// parseSlackTS parses the "1700000000.000100" wire format, keeping only the
// whole seconds.
func parseSlackTS(ts string) (int64, bool) {
	ts = strings.TrimSpace(ts)
	if ts == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return 0, false
	}
	return int64(f), true
}

// previewText summarizes a chat's latest message for the chat list.
func previewText(msg *slack.Message) string {
	if msg == nil {
		return "No messages yet"
	}
	if msg.Text != "" {
		return msg.Text
	}
	if len(msg.Files) > 0 {
		names := make([]string, 0, len(msg.Files))
		for _, f := range msg.Files {
			names = append(names, fileLabel(f.Name, f.Title))
		}
		return "Attachment · " + strings.Join(names, ", ")
	}
	return "Sent a message"
}

func fileLabel(name, title string) string {
	if name != "" {
		return name
	}
	if title != "" {
		return title
	}
	return "attachment"
}

// userLabel is the cached display projection of a message author.
type userLabel struct {
	Name     string
	Initials string
}

// userLabelCache resolves user ids to display labels for the lifetime of one
// request, so repeated authors cost one API call.
type userLabelCache struct {
	client tenant.API
	labels map[string]userLabel
}

func newUserLabelCache(client tenant.API) *userLabelCache {
	return &userLabelCache{client: client, labels: map[string]userLabel{}}
}

func (c *userLabelCache) lookup(ctx context.Context, userID string) userLabel {
	if strings.TrimSpace(userID) == "" {
		return userLabel{Name: "Slack App", Initials: "S"}
	}
	if label, ok := c.labels[userID]; ok {
		return label
	}
	name := userID
	if user, err := c.client.GetUserInfoContext(ctx, userID); err == nil && user != nil {
		if user.RealName != "" {
			name = user.RealName
		} else if user.Profile.DisplayName != "" {
			name = user.Profile.DisplayName
		}
	}
	label := userLabel{Name: name, Initials: initialOf(name)}
	c.labels[userID] = label
	return label
}

func initialOf(name string) string {
	for _, r := range name {
		return strings.ToUpper(string(r))
	}
	return "S"
}

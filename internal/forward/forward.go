// Package forward mirrors user messages from one workspace channel into a
// channel of another tenant's workspace, driven by configured rules.
package forward

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/slack-go/slack"

	"github.com/slackmirror/slackmirror/internal/config"
	"github.com/slackmirror/slackmirror/internal/tenant"
	"github.com/slackmirror/slackmirror/internal/webhook"
)

// rule carries a configured forward rule plus lazily resolved channel ids.
type rule struct {
	config.ForwardRule
	sourceChannelID string
	targetChannelID string
}

// Forwarder implements webhook.Sink. Forwarding failures are logged and
// swallowed; the inbound event was already acknowledged.
type Forwarder struct {
	registry *tenant.Registry
	logger   *slog.Logger

	mu    sync.Mutex
	rules []*rule
}

// New builds a forwarder over the configured rules.
func New(registry *tenant.Registry, rules []config.ForwardRule, logger *slog.Logger) *Forwarder {
	if logger == nil {
		logger = slog.Default()
	}
	f := &Forwarder{registry: registry, logger: logger}
	for _, r := range rules {
		f.rules = append(f.rules, &rule{ForwardRule: r})
	}
	return f
}

// Record implements webhook.Sink.
func (f *Forwarder) Record(ctx context.Context, tn *tenant.Tenant, env webhook.Envelope) {
	ev := env.Event
	if !ev.IsUserMessage() {
		return
	}
	for _, r := range f.matchingRules(tn.TeamID) {
		if err := f.forward(ctx, tn, r, ev); err != nil {
			f.logger.Error("forward failed",
				"source_team", r.SourceTeam,
				"source_channel", r.SourceChannelName,
				"error", err,
			)
		}
	}
}

func (f *Forwarder) matchingRules(teamID string) []*rule {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*rule
	for _, r := range f.rules {
		if r.SourceTeam == teamID {
			out = append(out, r)
		}
	}
	return out
}

func (f *Forwarder) forward(ctx context.Context, tn *tenant.Tenant, r *rule, ev webhook.MessageEvent) error {
	sourceID, err := f.channelID(ctx, r.SourceTeam, r.SourceChannelName, &r.sourceChannelID)
	if err != nil {
		return err
	}
	if ev.Channel != sourceID {
		return nil
	}
	targetID, err := f.channelID(ctx, r.TargetTeam, r.TargetChannelName, &r.targetChannelID)
	if err != nil {
		return err
	}
	targetClient, err := f.registry.ClientForTeam(r.TargetTeam)
	if err != nil {
		return err
	}

	author := ev.User
	if user, uerr := tn.Client.GetUserInfoContext(ctx, ev.User); uerr == nil && user != nil && user.RealName != "" {
		author = user.RealName
	}
	outbound := fmt.Sprintf("[#%s] %s: %s", r.SourceChannelName, author, ev.Text)
	if _, _, err := targetClient.PostMessageContext(ctx, targetID, slack.MsgOptionText(outbound, false)); err != nil {
		return err
	}
	f.logger.Info("message forwarded",
		"from", r.SourceTeam+"#"+r.SourceChannelName,
		"to", r.TargetTeam+"#"+r.TargetChannelName,
		"ts", ev.TS,
	)
	return nil
}

// channelID resolves a channel name to its id through the owning tenant's
// client, caching the result on the rule.
func (f *Forwarder) channelID(ctx context.Context, teamID, name string, cached *string) (string, error) {
	f.mu.Lock()
	if *cached != "" {
		id := *cached
		f.mu.Unlock()
		return id, nil
	}
	f.mu.Unlock()

	client, err := f.registry.ClientForTeam(teamID)
	if err != nil {
		return "", err
	}
	cursor := ""
	for {
		chs, next, err := client.GetConversationsContext(ctx, &slack.GetConversationsParameters{
			Types:           []string{"public_channel", "private_channel"},
			Limit:           200,
			Cursor:          cursor,
			ExcludeArchived: true,
		})
		if err != nil {
			return "", err
		}
		for _, ch := range chs {
			if strings.EqualFold(ch.Name, name) {
				f.mu.Lock()
				*cached = ch.ID
				f.mu.Unlock()
				return ch.ID, nil
			}
		}
		cursor = strings.TrimSpace(next)
		if cursor == "" {
			return "", fmt.Errorf("forward: channel %q not found in team %s", name, teamID)
		}
	}
}

package forward

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/slack-go/slack"

	"github.com/slackmirror/slackmirror/internal/config"
	"github.com/slackmirror/slackmirror/internal/tenant"
	"github.com/slackmirror/slackmirror/internal/webhook"
)

// teamAPI is a per-team Slack API fake that records posted messages.
type teamAPI struct {
	channels []slack.Channel

	mu     sync.Mutex
	posted []string

	listCalls int
}

func newTeamAPI(channels map[string]string) *teamAPI {
	api := &teamAPI{}
	for id, name := range channels {
		ch := slack.Channel{}
		ch.ID = id
		ch.Name = name
		api.channels = append(api.channels, ch)
	}
	return api
}

func (a *teamAPI) AuthTestContext(context.Context) (*slack.AuthTestResponse, error) {
	return &slack.AuthTestResponse{}, nil
}

func (a *teamAPI) GetConversationsContext(context.Context, *slack.GetConversationsParameters) ([]slack.Channel, string, error) {
	a.mu.Lock()
	a.listCalls++
	a.mu.Unlock()
	return a.channels, "", nil
}

func (a *teamAPI) GetConversationHistoryContext(context.Context, *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error) {
	return &slack.GetConversationHistoryResponse{}, nil
}

func (a *teamAPI) GetConversationRepliesContext(context.Context, *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error) {
	return nil, false, "", nil
}

func (a *teamAPI) GetConversationInfoContext(context.Context, *slack.GetConversationInfoInput) (*slack.Channel, error) {
	return nil, errors.New("not implemented")
}

func (a *teamAPI) GetUserInfoContext(_ context.Context, user string) (*slack.User, error) {
	return &slack.User{ID: user, RealName: "Dana Scully"}, nil
}

func (a *teamAPI) GetTeamInfoContext(context.Context) (*slack.TeamInfo, error) {
	return nil, errors.New("not implemented")
}

func (a *teamAPI) PostMessageContext(_ context.Context, channelID string, options ...slack.MsgOption) (string, string, error) {
	// Render the options to recover the outbound text.
	_, values, err := slack.UnsafeApplyMsgOptions("token", channelID, "https://slack.test/api/", options...)
	if err != nil {
		return "", "", err
	}
	a.mu.Lock()
	a.posted = append(a.posted, channelID+"|"+values.Get("text"))
	a.mu.Unlock()
	return channelID, "1.1", nil
}

func testSetup(t *testing.T) (*tenant.Registry, *teamAPI, *teamAPI) {
	t.Helper()
	source := newTeamAPI(map[string]string{"C-SRC": "general"})
	target := newTeamAPI(map[string]string{"C-TGT": "mirror-inbox"})
	apis := map[string]tenant.API{"T111": source, "T222": target}
	registry, err := tenant.NewRegistry([]config.TenantConfig{
		{ID: "acme", TeamID: "T111", Name: "Acme", SigningSecret: "s1", APIToken: "x1"},
		{ID: "globex", TeamID: "T222", Name: "Globex", SigningSecret: "s2", APIToken: "x2"},
	}, tenant.WithClientFactory(func(tc config.TenantConfig) tenant.API { return apis[tc.TeamID] }))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return registry, source, target
}

func userMessage(channel, text string) webhook.Envelope {
	return webhook.Envelope{
		Type:    webhook.TypeEventCallback,
		TeamID:  "T111",
		EventID: "Ev1",
		Event: webhook.MessageEvent{
			Type:    "message",
			User:    "U1",
			Channel: channel,
			Text:    text,
			TS:      "1.1",
		},
	}
}

func TestForwardMatchingMessage(t *testing.T) {
	registry, _, target := testSetup(t)
	f := New(registry, []config.ForwardRule{{
		SourceTeam: "T111", SourceChannelName: "general",
		TargetTeam: "T222", TargetChannelName: "mirror-inbox",
	}}, nil)

	tn, _ := registry.ByTeam("T111")
	f.Record(context.Background(), tn, userMessage("C-SRC", "ship it"))

	if len(target.posted) != 1 {
		t.Fatalf("posted = %v", target.posted)
	}
	if got := target.posted[0]; got != "C-TGT|[#general] Dana Scully: ship it" {
		t.Fatalf("outbound = %q", got)
	}
}

func TestForwardIgnoresOtherChannels(t *testing.T) {
	registry, _, target := testSetup(t)
	f := New(registry, []config.ForwardRule{{
		SourceTeam: "T111", SourceChannelName: "general",
		TargetTeam: "T222", TargetChannelName: "mirror-inbox",
	}}, nil)

	tn, _ := registry.ByTeam("T111")
	f.Record(context.Background(), tn, userMessage("C-OTHER", "off topic"))

	if len(target.posted) != 0 {
		t.Fatalf("unexpected forwards: %v", target.posted)
	}
}

func TestForwardIgnoresBotTraffic(t *testing.T) {
	registry, _, target := testSetup(t)
	f := New(registry, []config.ForwardRule{{
		SourceTeam: "T111", SourceChannelName: "general",
		TargetTeam: "T222", TargetChannelName: "mirror-inbox",
	}}, nil)

	env := userMessage("C-SRC", "beep")
	env.Event.BotID = "B1"
	tn, _ := registry.ByTeam("T111")
	f.Record(context.Background(), tn, env)

	if len(target.posted) != 0 {
		t.Fatalf("bot message forwarded: %v", target.posted)
	}
}

func TestForwardCachesChannelResolution(t *testing.T) {
	registry, source, target := testSetup(t)
	f := New(registry, []config.ForwardRule{{
		SourceTeam: "T111", SourceChannelName: "general",
		TargetTeam: "T222", TargetChannelName: "mirror-inbox",
	}}, nil)

	tn, _ := registry.ByTeam("T111")
	f.Record(context.Background(), tn, userMessage("C-SRC", "one"))
	f.Record(context.Background(), tn, userMessage("C-SRC", "two"))

	if len(target.posted) != 2 {
		t.Fatalf("posted = %v", target.posted)
	}
	if source.listCalls != 1 || target.listCalls != 1 {
		t.Fatalf("channel listings source=%d target=%d, want 1 each", source.listCalls, target.listCalls)
	}
}

func TestForwardNoRulesForTeam(t *testing.T) {
	registry, _, target := testSetup(t)
	f := New(registry, []config.ForwardRule{{
		SourceTeam: "T222", SourceChannelName: "mirror-inbox",
		TargetTeam: "T111", TargetChannelName: "general",
	}}, nil)

	tn, _ := registry.ByTeam("T111")
	f.Record(context.Background(), tn, userMessage("C-SRC", "hi"))

	if len(target.posted) != 0 {
		t.Fatalf("unexpected forwards: %v", target.posted)
	}
}

package history

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/slack-go/slack"

	"github.com/slackmirror/slackmirror/internal/config"
	"github.com/slackmirror/slackmirror/internal/mirror"
	"github.com/slackmirror/slackmirror/internal/tenant"
	"github.com/slackmirror/slackmirror/internal/webhook"
)

type fakeAPI struct{}

func (fakeAPI) AuthTestContext(context.Context) (*slack.AuthTestResponse, error) {
	return &slack.AuthTestResponse{}, nil
}

func (fakeAPI) GetConversationsContext(context.Context, *slack.GetConversationsParameters) ([]slack.Channel, string, error) {
	return nil, "", nil
}

func (fakeAPI) GetConversationHistoryContext(context.Context, *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error) {
	m := slack.Message{}
	m.Timestamp = "1700000100.000100"
	m.User = "U1"
	m.Text = "earlier message"
	return &slack.GetConversationHistoryResponse{Messages: []slack.Message{m}}, nil
}

func (fakeAPI) GetConversationRepliesContext(context.Context, *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error) {
	return nil, false, "", nil
}

func (fakeAPI) GetConversationInfoContext(context.Context, *slack.GetConversationInfoInput) (*slack.Channel, error) {
	ch := slack.Channel{}
	ch.ID = "C1"
	ch.Name = "general"
	return &ch, nil
}

func (fakeAPI) GetUserInfoContext(_ context.Context, user string) (*slack.User, error) {
	u := &slack.User{ID: user, RealName: "Dana Scully"}
	u.Profile.Email = "dana@example.com"
	return u, nil
}

func (fakeAPI) GetTeamInfoContext(context.Context) (*slack.TeamInfo, error) {
	return &slack.TeamInfo{ID: "T111", Name: "Acme", Domain: "acme"}, nil
}

func (fakeAPI) PostMessageContext(_ context.Context, channelID string, _ ...slack.MsgOption) (string, string, error) {
	return channelID, "1.1", nil
}

func testMirror(t *testing.T) (*mirror.Service, *tenant.Tenant) {
	t.Helper()
	registry, err := tenant.NewRegistry([]config.TenantConfig{
		{ID: "acme", TeamID: "T111", Name: "Acme", SigningSecret: "s1", APIToken: "x1"},
	}, tenant.WithClientFactory(func(config.TenantConfig) tenant.API { return fakeAPI{} }))
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	tn, _ := registry.ByTeam("T111")
	return mirror.NewService(registry, time.Hour, nil), tn
}

func TestStoreRoundtrip(t *testing.T) {
	store, err := OpenStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	entries := []Entry{
		{EventID: "Ev1", TraceID: "t1", OrgID: "acme", TeamID: "T111", Channel: "C1", UserID: "U1", Text: "first", TS: "1.1", ReceivedAt: base},
		{EventID: "Ev2", TraceID: "t2", OrgID: "acme", TeamID: "T111", Channel: "C1", UserID: "U1", Text: "second", TS: "1.2", ReceivedAt: base.Add(time.Minute)},
		{EventID: "Ev3", TraceID: "t3", OrgID: "globex", TeamID: "T222", Channel: "C9", UserID: "U9", Text: "other team", TS: "2.1", ReceivedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		if err := store.Insert(ctx, e); err != nil {
			t.Fatalf("Insert %s: %v", e.EventID, err)
		}
	}

	got, err := store.RecentByTeam(ctx, "T111", 10)
	if err != nil {
		t.Fatalf("RecentByTeam: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	// Newest first.
	if got[0].EventID != "Ev2" || got[1].EventID != "Ev1" {
		t.Fatalf("order = %s, %s", got[0].EventID, got[1].EventID)
	}
	if got[0].Text != "second" || got[0].Channel != "C1" {
		t.Fatalf("entry = %+v", got[0])
	}
}

func TestRecorderWritesStoreAndDumps(t *testing.T) {
	svc, tn := testMirror(t)
	store, err := OpenStore(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()

	rec := NewRecorder(svc, store, nil, true, nil)
	var out bytes.Buffer
	rec.SetOutput(&out)

	env := webhook.Envelope{
		Type:    webhook.TypeEventCallback,
		TeamID:  "T111",
		EventID: "Ev1",
		Event: webhook.MessageEvent{
			Type:    "message",
			User:    "U1",
			Channel: "C1",
			Text:    "hello there",
			TS:      "1700000200.000100",
		},
	}
	rec.Record(context.Background(), tn, env)

	entries, err := store.RecentByTeam(context.Background(), "T111", 10)
	if err != nil {
		t.Fatalf("RecentByTeam: %v", err)
	}
	if len(entries) != 1 || entries[0].EventID != "Ev1" || entries[0].Text != "hello there" {
		t.Fatalf("stored = %+v", entries)
	}
	if entries[0].TraceID == "" {
		t.Fatalf("trace id not assigned")
	}

	dump := out.String()
	for _, want := range []string{"USER INFORMATION", "Dana Scully", "CHANNEL INFORMATION", "general", "MESSAGE HISTORY", "earlier message"} {
		if !strings.Contains(dump, want) {
			t.Errorf("dump missing %q", want)
		}
	}
}

func TestRecorderWithoutStoreOrPublisher(t *testing.T) {
	svc, tn := testMirror(t)
	rec := NewRecorder(svc, nil, nil, false, nil)
	var out bytes.Buffer
	rec.SetOutput(&out)

	env := webhook.Envelope{
		Type:    webhook.TypeEventCallback,
		TeamID:  "T111",
		EventID: "Ev2",
		Event:   webhook.MessageEvent{Type: "message", User: "U1", Channel: "C1", Text: "hi", TS: "1.1"},
	}
	// Must not panic with persistence disabled.
	rec.Record(context.Background(), tn, env)

	if !strings.Contains(out.String(), "USER INFORMATION") {
		t.Fatalf("user dump missing: %s", out.String())
	}
	if strings.Contains(out.String(), "MESSAGE HISTORY") {
		t.Fatalf("history dump printed with logHistory disabled")
	}
}

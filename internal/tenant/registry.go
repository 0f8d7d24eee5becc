// Package tenant holds the workspace registry and per-tenant client routing.
package tenant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/slackmirror/slackmirror/internal/config"
)

// ErrUnknownTenant is returned when no registry entry matches the requested
// organization or team. Lookups fail closed.
var ErrUnknownTenant = errors.New("tenant: unknown tenant")

// API is the subset of the Slack Web API the mirror talks to. *slack.Client
// satisfies it; tests substitute fakes.
type API interface {
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
	GetConversationsContext(ctx context.Context, params *slack.GetConversationsParameters) ([]slack.Channel, string, error)
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	GetConversationRepliesContext(ctx context.Context, params *slack.GetConversationRepliesParameters) ([]slack.Message, bool, string, error)
	GetConversationInfoContext(ctx context.Context, input *slack.GetConversationInfoInput) (*slack.Channel, error)
	GetUserInfoContext(ctx context.Context, user string) (*slack.User, error)
	GetTeamInfoContext(ctx context.Context) (*slack.TeamInfo, error)
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Tenant is one independently credentialed workspace. Immutable after the
// registry is built.
type Tenant struct {
	ID            string
	TeamID        string
	Name          string
	Status        string
	Initials      string
	Accent        string
	SigningSecret string
	Client        API
}

// Organization is the display projection served by /api/organizations.
type Organization struct {
	ID       string `json:"id"`
	TeamID   string `json:"team_id"`
	Name     string `json:"name"`
	Status   string `json:"status"`
	Initials string `json:"initials"`
	Accent   string `json:"accent"`
}

// ClientFactory builds the Slack client for one tenant.
type ClientFactory func(tc config.TenantConfig) API

// Registry resolves tenants by organization id or Slack team id.
type Registry struct {
	byOrg  map[string]*Tenant
	byTeam map[string]*Tenant
	order  []*Tenant
}

// Option customizes registry construction.
type Option func(*registryOptions)

type registryOptions struct {
	factory ClientFactory
}

// WithClientFactory overrides how tenant clients are built. Tests use this to
// avoid real Slack clients.
func WithClientFactory(f ClientFactory) Option {
	return func(o *registryOptions) { o.factory = f }
}

// NewRegistry builds the immutable tenant registry from configuration.
// Config validation has already enforced required credentials and uniqueness;
// this re-checks so the registry cannot be built from an unvalidated config.
func NewRegistry(tenants []config.TenantConfig, opts ...Option) (*Registry, error) {
	ro := registryOptions{factory: defaultClientFactory()}
	for _, opt := range opts {
		opt(&ro)
	}
	r := &Registry{
		byOrg:  map[string]*Tenant{},
		byTeam: map[string]*Tenant{},
	}
	for _, tc := range tenants {
		id := strings.TrimSpace(tc.ID)
		teamID := strings.TrimSpace(tc.TeamID)
		if id == "" || teamID == "" || strings.TrimSpace(tc.SigningSecret) == "" || strings.TrimSpace(tc.APIToken) == "" {
			return nil, fmt.Errorf("tenant: %q: incomplete credentials", tc.ID)
		}
		if _, dup := r.byOrg[id]; dup {
			return nil, fmt.Errorf("tenant: duplicate id %q", id)
		}
		if _, dup := r.byTeam[teamID]; dup {
			return nil, fmt.Errorf("tenant: duplicate team id %q", teamID)
		}
		t := &Tenant{
			ID:            id,
			TeamID:        teamID,
			Name:          tc.Name,
			Status:        tc.Status,
			Initials:      initialsOrDerived(tc.Initials, tc.Name),
			Accent:        tc.Accent,
			SigningSecret: tc.SigningSecret,
			Client:        ro.factory(tc),
		}
		r.byOrg[id] = t
		r.byTeam[teamID] = t
		r.order = append(r.order, t)
	}
	if len(r.order) == 0 {
		return nil, errors.New("tenant: registry requires at least one tenant")
	}
	return r, nil
}

func defaultClientFactory() ClientFactory {
	httpClient := &http.Client{Timeout: 20 * time.Second}
	return func(tc config.TenantConfig) API {
		opts := []slack.Option{slack.OptionHTTPClient(httpClient)}
		if base := strings.TrimSpace(tc.APIBase); base != "" {
			opts = append(opts, slack.OptionAPIURL(strings.TrimRight(base, "/")+"/"))
		}
		return slack.New(tc.APIToken, opts...)
	}
}

// ByOrg resolves a tenant by organization id.
func (r *Registry) ByOrg(orgID string) (*Tenant, error) {
	t, ok := r.byOrg[strings.TrimSpace(orgID)]
	if !ok {
		return nil, ErrUnknownTenant
	}
	return t, nil
}

// ByTeam resolves a tenant by Slack team id.
func (r *Registry) ByTeam(teamID string) (*Tenant, error) {
	t, ok := r.byTeam[strings.TrimSpace(teamID)]
	if !ok {
		return nil, ErrUnknownTenant
	}
	return t, nil
}

// ClientForTeam returns the API client for a team, guaranteeing an outbound
// request never uses another tenant's credential.
func (r *Registry) ClientForTeam(teamID string) (API, error) {
	t, err := r.ByTeam(teamID)
	if err != nil {
		return nil, err
	}
	return t.Client, nil
}

// Organizations returns display metadata in config order.
func (r *Registry) Organizations() []Organization {
	out := make([]Organization, 0, len(r.order))
	for _, t := range r.order {
		out = append(out, Organization{
			ID:       t.ID,
			TeamID:   t.TeamID,
			Name:     t.Name,
			Status:   t.Status,
			Initials: t.Initials,
			Accent:   t.Accent,
		})
	}
	return out
}

func initialsOrDerived(initials, name string) string {
	if v := strings.TrimSpace(initials); v != "" {
		return v
	}
	var b strings.Builder
	for _, word := range strings.Fields(name) {
		b.WriteString(strings.ToUpper(word[:1]))
		if b.Len() >= 2 {
			break
		}
	}
	if b.Len() == 0 {
		return "W"
	}
	return b.String()
}

package mirror

import (
	"context"
	"fmt"
	"time"

	"github.com/slack-go/slack"
)

// UserInfo is the metadata projection for one workspace user.
type UserInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
}

// ChannelInfo is the metadata projection for one conversation.
type ChannelInfo struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsPrivate bool   `json:"is_private"`
	IsDM      bool   `json:"is_dm"`
	Topic     string `json:"topic"`
}

// WorkspaceInfo is the metadata projection for one workspace.
type WorkspaceInfo struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Domain string `json:"domain"`
}

// UserInfo fetches user metadata through the tenant's client.
func (s *Service) UserInfo(ctx context.Context, teamID, userID string) (UserInfo, error) {
	client, err := s.registry.ClientForTeam(teamID)
	if err != nil {
		return UserInfo{}, err
	}
	user, err := client.GetUserInfoContext(ctx, userID)
	if err != nil {
		return UserInfo{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return UserInfo{
		ID:          user.ID,
		Name:        user.RealName,
		DisplayName: user.Profile.DisplayName,
		Email:       user.Profile.Email,
	}, nil
}

// ChannelInfo fetches conversation metadata through the tenant's client.
func (s *Service) ChannelInfo(ctx context.Context, teamID, channelID string) (ChannelInfo, error) {
	client, err := s.registry.ClientForTeam(teamID)
	if err != nil {
		return ChannelInfo{}, err
	}
	ch, err := client.GetConversationInfoContext(ctx, &slack.GetConversationInfoInput{ChannelID: channelID})
	if err != nil {
		return ChannelInfo{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return ChannelInfo{
		ID:        ch.ID,
		Name:      ch.Name,
		IsPrivate: ch.IsPrivate,
		IsDM:      ch.IsIM,
		Topic:     ch.Topic.Value,
	}, nil
}

// WorkspaceInfo fetches team metadata through the tenant's client.
func (s *Service) WorkspaceInfo(ctx context.Context, teamID string) (WorkspaceInfo, error) {
	client, err := s.registry.ClientForTeam(teamID)
	if err != nil {
		return WorkspaceInfo{}, err
	}
	team, err := client.GetTeamInfoContext(ctx)
	if err != nil {
		return WorkspaceInfo{}, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return WorkspaceInfo{ID: team.ID, Name: team.Name, Domain: team.Domain}, nil
}

// RawHistory fetches recent raw messages for the inspection routes and the
// history dumps. No lookback bound; the limit is the caller's.
func (s *Service) RawHistory(ctx context.Context, teamID, channelID string, limit int) ([]slack.Message, error) {
	client, err := s.registry.ClientForTeam(teamID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}
	return s.fetchChannelHistory(ctx, client, channelID, limit, time.Time{})
}

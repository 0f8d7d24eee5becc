// Package config provides configuration types and loading for slackmirror.
package config

import "time"

// Config is the root configuration struct.
// Top-level groups: Server, Verify, Dedupe, History, plus the tenant and
// forward-rule lists that only come from the config file.
type Config struct {
	Server  ServerConfig   `json:"server"`
	Verify  VerifyConfig   `json:"verify"`
	Dedupe  DedupeConfig   `json:"dedupe"`
	History HistoryConfig  `json:"history"`
	Tenants []TenantConfig `json:"tenants"`
	Forward []ForwardRule  `json:"forward,omitempty"`
}

// ServerConfig groups HTTP listener settings.
type ServerConfig struct {
	Addr        string `json:"addr" envconfig:"ADDR"`
	AllowOrigin string `json:"allowOrigin" envconfig:"ALLOW_ORIGIN"`
}

// VerifyConfig controls webhook signature verification.
type VerifyConfig struct {
	FreshnessSeconds int `json:"freshnessSeconds" envconfig:"FRESHNESS_SECONDS"`
}

// Freshness returns the maximum allowed age of a signed request timestamp.
func (v VerifyConfig) Freshness() time.Duration {
	if v.FreshnessSeconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(v.FreshnessSeconds) * time.Second
}

// DedupeConfig controls the inbound event dedup window.
type DedupeConfig struct {
	TTLSeconds int `json:"ttlSeconds" envconfig:"TTL_SECONDS"`
}

// TTL returns the dedup retention window.
func (d DedupeConfig) TTL() time.Duration {
	if d.TTLSeconds <= 0 {
		return 300 * time.Second
	}
	return time.Duration(d.TTLSeconds) * time.Second
}

// HistoryConfig controls the inbound event logging pipeline.
type HistoryConfig struct {
	LogHistory      bool   `json:"logHistory" envconfig:"LOG_HISTORY"`
	LookbackSeconds int    `json:"lookbackSeconds" envconfig:"LOOKBACK_SECONDS"`
	DBPath          string `json:"dbPath" envconfig:"DB_PATH"`
	KafkaBrokers    string `json:"kafkaBrokers" envconfig:"KAFKA_BROKERS"`
	KafkaTopic      string `json:"kafkaTopic" envconfig:"KAFKA_TOPIC"`
}

// Lookback returns the message-history lookback window.
func (h HistoryConfig) Lookback() time.Duration {
	if h.LookbackSeconds <= 0 {
		return 12 * time.Hour
	}
	return time.Duration(h.LookbackSeconds) * time.Second
}

// TenantConfig describes one Slack workspace served by the mirror.
// SigningSecret and APIToken are deployment secrets and normally arrive via
// ${VAR} substitution from the environment.
type TenantConfig struct {
	ID            string `json:"id"`
	TeamID        string `json:"teamId"`
	Name          string `json:"name"`
	Status        string `json:"status"`
	Initials      string `json:"initials"`
	Accent        string `json:"accent"`
	SigningSecret string `json:"signingSecret"`
	APIToken      string `json:"apiToken"`
	APIBase       string `json:"apiBase,omitempty"`
}

// ForwardRule mirrors user messages from one workspace channel into another.
// Channel IDs are resolved lazily by name at forward time.
type ForwardRule struct {
	SourceTeam        string `json:"sourceTeam"`
	SourceChannelName string `json:"sourceChannelName"`
	TargetTeam        string `json:"targetTeam"`
	TargetChannelName string `json:"targetChannelName"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":18790",
			AllowOrigin: "*",
		},
		Verify: VerifyConfig{
			FreshnessSeconds: 300,
		},
		Dedupe: DedupeConfig{
			TTLSeconds: 300,
		},
		History: HistoryConfig{
			LookbackSeconds: 12 * 60 * 60,
		},
	}
}

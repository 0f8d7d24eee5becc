package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".slackmirror"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("SLACKMIRROR_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults. Tenant credentials are validated
// here so a misconfigured process refuses to start instead of failing per
// request.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	LoadEnvFileCandidates()

	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}
	data, err := loadResolvedConfig(path)
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	envconfig.Process("SLACKMIRROR_SERVER", &cfg.Server)
	envconfig.Process("SLACKMIRROR_VERIFY", &cfg.Verify)
	envconfig.Process("SLACKMIRROR_DEDUPE", &cfg.Dedupe)
	envconfig.Process("SLACKMIRROR_HISTORY", &cfg.History)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks tenant completeness and uniqueness invariants.
func (c *Config) Validate() error {
	if len(c.Tenants) == 0 {
		return fmt.Errorf("config: at least one tenant is required")
	}
	ids := map[string]struct{}{}
	teams := map[string]struct{}{}
	tokens := map[string]struct{}{}
	for i, t := range c.Tenants {
		id := strings.TrimSpace(t.ID)
		if id == "" {
			return fmt.Errorf("config: tenant %d: id is required", i)
		}
		for name, v := range map[string]string{
			"teamId":        t.TeamID,
			"signingSecret": t.SigningSecret,
			"apiToken":      t.APIToken,
		} {
			if strings.TrimSpace(v) == "" {
				return fmt.Errorf("config: tenant %q: %s is required", id, name)
			}
		}
		if _, dup := ids[id]; dup {
			return fmt.Errorf("config: duplicate tenant id %q", id)
		}
		if _, dup := teams[t.TeamID]; dup {
			return fmt.Errorf("config: duplicate team id %q", t.TeamID)
		}
		if _, dup := tokens[t.APIToken]; dup {
			return fmt.Errorf("config: tenants %q: api token reused across tenants", id)
		}
		ids[id] = struct{}{}
		teams[t.TeamID] = struct{}{}
		tokens[t.APIToken] = struct{}{}
	}
	for i, r := range c.Forward {
		if strings.TrimSpace(r.SourceTeam) == "" || strings.TrimSpace(r.SourceChannelName) == "" ||
			strings.TrimSpace(r.TargetTeam) == "" || strings.TrimSpace(r.TargetChannelName) == "" {
			return fmt.Errorf("config: forward rule %d: all fields are required", i)
		}
	}
	return nil
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func loadResolvedConfig(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	substituteEnvValues(raw)
	return json.Marshal(raw)
}

// substituteEnvValues replaces ${VAR} references in string values with the
// value of the named environment variable. Unset variables resolve to the
// empty string so Validate catches missing secrets.
func substituteEnvValues(obj map[string]any) {
	for k, v := range obj {
		obj[k] = substituteValue(v)
	}
}

func substituteValue(v any) any {
	switch val := v.(type) {
	case string:
		return envPattern.ReplaceAllStringFunc(val, func(m string) string {
			name := envPattern.FindStringSubmatch(m)[1]
			return os.Getenv(name)
		})
	case map[string]any:
		substituteEnvValues(val)
		return val
	case []any:
		for i, item := range val {
			val[i] = substituteValue(item)
		}
		return val
	default:
		return v
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/teambition/rrule-go"
	"gopkg.in/yaml.v3"

	"github.com/voisinsolidaire/voisin/pkg/core/schedule"
)

// Supported backends
const (
	BackendSupabase = "supabase"
	BackendPostgres = "postgres"
)

// Defaults applied to omitted settings
const (
	DefaultTimezone     = "Europe/Paris"
	DefaultPageSize     = 10
	DefaultPollInterval = 5 * time.Second
	DefaultServerAddr   = ":8080"
)

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Addr           string   `yaml:"addr" validate:"required"`
	AllowedOrigins []string `yaml:"allowedOrigins,omitempty" validate:"dive,required"`
}

// Config represents the application configuration
type Config struct {
	Backend string `yaml:"backend" validate:"required,oneof=supabase postgres"`

	SupabaseURL     string `yaml:"supabaseURL,omitempty" validate:"required_if=Backend supabase"`
	SupabaseAnonKey string `yaml:"supabaseAnonKey,omitempty" validate:"required_if=Backend supabase"`
	DatabaseURL     string `yaml:"databaseURL,omitempty" validate:"required_if=Backend postgres"`

	// JWTSecret verifies session tokens. Only the supabase backend may leave it
	// empty, since row-level security checks every token again.
	JWTSecret string `yaml:"jwtSecret,omitempty" validate:"required_if=Backend postgres"`

	Timezone     string        `yaml:"timezone" validate:"required"`
	PageSize     int           `yaml:"pageSize" validate:"min=1,max=100"`
	PollInterval time.Duration `yaml:"pollInterval" validate:"min=1s"`

	RosterSheetID string `yaml:"rosterSheetID,omitempty"`
	GmailSender   string `yaml:"gmailSender,omitempty" validate:"omitempty,email"`

	Server           ServerConfig        `yaml:"server"`
	MissionTemplates []schedule.Template `yaml:"missionTemplates,omitempty" validate:"dive"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// BackendVerifiesTokens reports whether the backend checks access tokens
// itself, so the API may read their claims unverified
func (c *Config) BackendVerifiesTokens() bool {
	return c.Backend == BackendSupabase
}

// LoadWithEnv loads voisin_config.<env>.yaml from the current or home directory
func LoadWithEnv(env string) (*Config, error) {
	configPath, err := findFile(configFileName(env))
	if err != nil {
		return nil, fmt.Errorf("failed to find config file: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads and validates the configuration from a specific path.
// ${VAR} references are expanded from the environment before parsing.
func LoadFromPath(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.PollInterval == 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.Server.Addr == "" {
		c.Server.Addr = DefaultServerAddr
	}
}

// Validate validates the configuration struct, the timezone and each template's rrule
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	seen := make(map[string]bool, len(cfg.MissionTemplates))
	for i, tpl := range cfg.MissionTemplates {
		if _, err := rrule.StrToRRule(tpl.RRule); err != nil {
			return fmt.Errorf("invalid rrule in missionTemplates[%d]: %w", i, err)
		}
		if seen[tpl.Name] {
			return fmt.Errorf("duplicate template name %q in missionTemplates[%d]", tpl.Name, i)
		}
		seen[tpl.Name] = true
	}

	return nil
}

// Location returns the configured timezone
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Template returns the mission template with the given name
func (c *Config) Template(name string) (*schedule.Template, error) {
	for i := range c.MissionTemplates {
		if c.MissionTemplates[i].Name == name {
			return &c.MissionTemplates[i], nil
		}
	}
	return nil, fmt.Errorf("no mission template named %q", name)
}

func configFileName(env string) string {
	if env == "" {
		return "voisin_config.yaml"
	}
	return "voisin_config." + env + ".yaml"
}

// findFile searches for name in the current directory, then the home directory
func findFile(name string) (string, error) {
	if _, err := os.Stat(name); err == nil {
		return name, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}

	homePath := filepath.Join(homeDir, name)
	if _, err := os.Stat(homePath); err == nil {
		return homePath, nil
	}

	return "", fmt.Errorf("%s not found in current directory or home directory", name)
}

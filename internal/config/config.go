package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Connect modes mirror the bootstrap behaviour toggles.
const (
	ConnectNormal    = 0
	ConnectExitReady = 1
	ConnectExitSetup = 2
)

// Milestone is one named reminder firing condition. Exactly one of Seconds or At is
// set: a duration before the due instant, or a civil time of day on the due date.
type Milestone struct {
	Name    string     `mapstructure:"name"`
	Seconds int64      `mapstructure:"seconds"`
	At      *TimeOfDay `mapstructure:"at"`
}

// TimeOfDay is a wall-clock civil time.
type TimeOfDay struct {
	Hour   int `mapstructure:"hour"`
	Minute int `mapstructure:"minute"`
}

// IsDuration reports whether the milestone is the duration shape.
func (m Milestone) IsDuration() bool {
	return m.At == nil
}

// Config holds runtime configuration for the assistant.
type Config struct {
	AppName string
	AppEnv  string
	Dev     bool

	Guilds     []string
	Token      string
	Intents    []string
	Extensions []string

	Reminders []Milestone
	Tutors    []string

	DatabasePath  string
	TimetablePath string
	TargetsPath   string
	HorizonYear   int

	Email         string
	EmailPassword string
	EmailDomain   string

	OAuthID          string
	OAuthSecret      string
	OAuthRedirectURI string

	HTTPHost    string
	HTTPPort    string
	WebServer   bool
	ConnectMode int

	RedisURL      string
	NATSURL       string
	OpenAIAPIKey  string
	StatsCacheTTL time.Duration

	ConnectivityURL string
	PlatformBaseURL string
	ViewCommand     string
	EditCommand     string
}

// HTTPAddress returns the bind address for the web server.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf("%s:%s", c.HTTPHost, c.HTTPPort)
}

// MainGuild returns the canonical guild id.
func (c Config) MainGuild() string {
	if len(c.Guilds) == 0 {
		return ""
	}
	return c.Guilds[0]
}

// HasPresenceIntent reports whether the presence capability was requested.
func (c Config) HasPresenceIntent() bool {
	for _, intent := range c.Intents {
		if strings.EqualFold(intent, "presences") {
			return true
		}
	}
	return false
}

// ExtensionEnabled reports whether the named feature set is active. An empty
// extensions list enables everything.
func (c Config) ExtensionEnabled(name string) bool {
	if len(c.Extensions) == 0 {
		return true
	}
	for _, ext := range c.Extensions {
		if strings.EqualFold(ext, name) {
			return true
		}
	}
	return false
}

// OAuthEnabled reports whether the web verification flow has full OAuth credentials.
func (c Config) OAuthEnabled() bool {
	return c.OAuthID != "" && c.OAuthSecret != "" && c.OAuthRedirectURI != ""
}

// Load reads configuration from an optional config.yaml, environment variables and
// an optional .env file. Unknown keys are ignored.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("COHORT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetDefault("app.name", "Cohort Assistant")
	v.SetDefault("app.env", "development")
	v.SetDefault("database.path", "main.db")
	v.SetDefault("timetable.path", "utils/timetable.json")
	v.SetDefault("timetable.horizon_year", 2100)
	v.SetDefault("targets.path", "targets.json")
	v.SetDefault("http.host", "127.0.0.1")
	v.SetDefault("http.port", "3762")
	v.SetDefault("web.server", true)
	v.SetDefault("connect.mode", ConnectNormal)
	v.SetDefault("verify.email_domain", "my.leedscitycollege.ac.uk")
	v.SetDefault("stats.cache_ttl", "1m")
	v.SetDefault("probe.connectivity_url", "https://google.co.uk/")
	v.SetDefault("platform.base_url", "https://discord.com/api/v10")
	v.SetDefault("commands.view", "/assignments view")
	v.SetDefault("commands.edit", "/assignments edit")
	v.SetDefault("tutors", []string{"jay", "zach", "ian", "rebecca", "lupupa", "other"})

	ttl, err := time.ParseDuration(v.GetString("stats.cache_ttl"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid stats cache ttl: %w", err)
	}

	var milestones []Milestone
	if err := v.UnmarshalKey("reminders", &milestones); err != nil {
		return Config{}, fmt.Errorf("invalid reminders configuration: %w", err)
	}
	if len(milestones) == 0 {
		milestones = DefaultMilestones()
	}
	if err := ValidateMilestones(milestones); err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		Dev:              v.GetBool("dev"),
		Guilds:           v.GetStringSlice("guilds"),
		Token:            v.GetString("token"),
		Intents:          v.GetStringSlice("intents"),
		Extensions:       v.GetStringSlice("extensions"),
		Reminders:        milestones,
		Tutors:           v.GetStringSlice("tutors"),
		DatabasePath:     v.GetString("database.path"),
		TimetablePath:    v.GetString("timetable.path"),
		TargetsPath:      v.GetString("targets.path"),
		HorizonYear:      v.GetInt("timetable.horizon_year"),
		Email:            v.GetString("email"),
		EmailPassword:    v.GetString("email_password"),
		EmailDomain:      v.GetString("verify.email_domain"),
		OAuthID:          v.GetString("oauth_id"),
		OAuthSecret:      v.GetString("oauth_secret"),
		OAuthRedirectURI: v.GetString("oauth_redirect_uri"),
		HTTPHost:         v.GetString("http.host"),
		HTTPPort:         v.GetString("http.port"),
		WebServer:        v.GetBool("web.server"),
		ConnectMode:      v.GetInt("connect.mode"),
		RedisURL:         v.GetString("redis.url"),
		NATSURL:          v.GetString("nats.url"),
		OpenAIAPIKey:     v.GetString("openai_api_key"),
		StatsCacheTTL:    ttl,
		ConnectivityURL:  v.GetString("probe.connectivity_url"),
		PlatformBaseURL:  v.GetString("platform.base_url"),
		ViewCommand:      v.GetString("commands.view"),
		EditCommand:      v.GetString("commands.edit"),
	}

	if len(cfg.Guilds) == 0 {
		return Config{}, fmt.Errorf("at least one guild id must be configured")
	}

	return cfg, nil
}

// DefaultMilestones returns the stock reminder schedule.
func DefaultMilestones() []Milestone {
	return []Milestone{
		{Name: "1 week", Seconds: 604800},
		{Name: "2 days", Seconds: 172800},
		{Name: "1 day", Seconds: 86400},
		{Name: "6pm", At: &TimeOfDay{Hour: 18, Minute: 0}},
		{Name: "3 hours", Seconds: 10800},
	}
}

// ValidateMilestones enforces unique names and exactly one recognized shape per entry.
func ValidateMilestones(milestones []Milestone) error {
	seen := make(map[string]struct{}, len(milestones))
	for _, m := range milestones {
		if m.Name == "" {
			return fmt.Errorf("reminder milestone without a name")
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("duplicate reminder milestone %q", m.Name)
		}
		seen[m.Name] = struct{}{}
		if m.At != nil && m.Seconds != 0 {
			return fmt.Errorf("reminder milestone %q sets both a duration and a time of day", m.Name)
		}
		if m.At == nil && m.Seconds <= 0 {
			return fmt.Errorf("reminder milestone %q must set a positive duration or a time of day", m.Name)
		}
		if m.At != nil && (m.At.Hour < 0 || m.At.Hour > 23 || m.At.Minute < 0 || m.At.Minute > 59) {
			return fmt.Errorf("reminder milestone %q has an invalid time of day", m.Name)
		}
	}
	return nil
}

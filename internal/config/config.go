package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/pion/logging"

	"remoteview/native/internal/domain"
	"remoteview/native/internal/logx"
	"remoteview/native/internal/resolve"
)

const (
	envAPIBaseURL    = "REMOTEVIEW_API_BASE_URL"
	envSTUNURI       = "REMOTEVIEW_STUN_URI"
	envTURNURI       = "REMOTEVIEW_TURN_URI"
	envTURNUsername  = "REMOTEVIEW_TURN_USERNAME"
	envTURNPassword  = "REMOTEVIEW_TURN_PASSWORD"
	envDisplayWidth  = "REMOTEVIEW_DISPLAY_WIDTH"
	envDisplayHeight = "REMOTEVIEW_DISPLAY_HEIGHT"
	envDisplayFPS    = "REMOTEVIEW_DISPLAY_FPS"
	envLogLevel      = "REMOTEVIEW_LOG_LEVEL"
	envStatsInterval = "REMOTEVIEW_STATS_INTERVAL"
	envSessionURL    = "REMOTEVIEW_SESSION_URL"

	DefaultAPIBaseURL    = "https://api.remoteview.local"
	DefaultDisplayWidth  = 1280
	DefaultDisplayHeight = 720
	DefaultDisplayFPS    = 60
	DefaultStatsInterval = 5 * time.Second
)

// Config holds the application configuration.
//
// TURN credentials have no defaults: a relay is only used when the operator
// supplies a password.
type Config struct {
	APIBaseURL    string `validate:"required,http_url"`
	STUNServerURI string `validate:"required,ice_scheme=stun"`
	TURNServerURI string `validate:"required_with=TURNPassword,ice_scheme=turn"`
	TURNUsername  string `validate:"required_with=TURNPassword"`
	TURNPassword  string

	DisplayWidth  int `validate:"min=1,max=7680"`
	DisplayHeight int `validate:"min=1,max=4320"`
	DisplayFPS    int `validate:"min=1,max=240"`

	LogLevel      logging.LogLevel
	StatsInterval time.Duration

	// SessionURL is used when no link is given on the command line.
	SessionURL string
}

// Load reads configuration from a .env file (if present) and environment variables.
// Environment variables take precedence over .env values.
func Load() (*Config, error) {
	// godotenv.Load does not overwrite existing env vars
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds and validates a Config from the given lookup function.
func FromEnv(getenv func(string) string) (*Config, error) {
	cfg := &Config{
		APIBaseURL:    valueOr(getenv(envAPIBaseURL), DefaultAPIBaseURL),
		STUNServerURI: valueOr(getenv(envSTUNURI), resolve.DefaultSTUNServerURI),
		TURNServerURI: strings.TrimSpace(getenv(envTURNURI)),
		TURNUsername:  strings.TrimSpace(getenv(envTURNUsername)),
		TURNPassword:  getenv(envTURNPassword),
		SessionURL:    strings.TrimSpace(getenv(envSessionURL)),
	}

	var err error
	if cfg.DisplayWidth, err = intOr(getenv, envDisplayWidth, DefaultDisplayWidth); err != nil {
		return nil, err
	}
	if cfg.DisplayHeight, err = intOr(getenv, envDisplayHeight, DefaultDisplayHeight); err != nil {
		return nil, err
	}
	if cfg.DisplayFPS, err = intOr(getenv, envDisplayFPS, DefaultDisplayFPS); err != nil {
		return nil, err
	}

	if cfg.LogLevel, err = logx.ParseLevel(getenv(envLogLevel)); err != nil {
		return nil, fmt.Errorf("%s: %w", envLogLevel, err)
	}

	cfg.StatsInterval = DefaultStatsInterval
	if raw := strings.TrimSpace(getenv(envStatsInterval)); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", envStatsInterval, err)
		}
		cfg.StatsInterval = d
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Connection returns the connection parameters consumed by the resolver.
func (c *Config) Connection() domain.ConnectionConfig {
	return domain.ConnectionConfig{
		APIBaseURL:    c.APIBaseURL,
		STUNServerURI: c.STUNServerURI,
		TURNServerURI: c.TURNServerURI,
		TURNUsername:  c.TURNUsername,
		TURNPassword:  c.TURNPassword,
	}
}

// Display returns the requested stream geometry.
func (c *Config) Display() domain.Display {
	return domain.Display{Width: c.DisplayWidth, Height: c.DisplayHeight, FPS: c.DisplayFPS}
}

var envNames = map[string]string{
	"APIBaseURL":    envAPIBaseURL,
	"STUNServerURI": envSTUNURI,
	"TURNServerURI": envTURNURI,
	"TURNUsername":  envTURNUsername,
	"DisplayWidth":  envDisplayWidth,
	"DisplayHeight": envDisplayHeight,
	"DisplayFPS":    envDisplayFPS,
}

func validate(cfg *Config) error {
	v := validator.New()
	if err := v.RegisterValidation("ice_scheme", validateICEScheme); err != nil {
		return fmt.Errorf("register validator: %w", err)
	}
	err := v.Struct(cfg)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	name := envNames[fe.Field()]
	if name == "" {
		name = fe.Field()
	}
	return fmt.Errorf("%s: invalid value %q (%s)", name, fmt.Sprint(fe.Value()), fe.Tag())
}

// validateICEScheme accepts empty values; presence is enforced by the
// required tags.
func validateICEScheme(fl validator.FieldLevel) bool {
	raw := strings.ToLower(fl.Field().String())
	if raw == "" {
		return true
	}
	kind := fl.Param()
	return strings.HasPrefix(raw, kind+":") || strings.HasPrefix(raw, kind+"s:")
}

func valueOr(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

func intOr(getenv func(string) string, key string, def int) (int, error) {
	raw := strings.TrimSpace(getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

package config

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"
)

const (
	envPrefix              = "NOTES"
	defaultHTTPAddress     = "0.0.0.0:3001"
	defaultDatabaseURL     = "notes.db"
	defaultLogLevel        = "info"
	defaultAllowedOrigin   = "http://localhost:3000"
	defaultAuthIssuer      = "notes-auth"
	defaultAuthAudience    = "notes-api"
	defaultTokenTTLMinutes = 60
	defaultSummaryProvider = SummaryProviderGroq
	defaultSummaryBaseURL  = "https://api.groq.com/openai/v1"
	defaultSummaryModel    = "mixtral-8x7b-32768"
	defaultSummaryTimeout  = 15
)

// Summary providers.
const (
	SummaryProviderGroq     = "groq"
	SummaryProviderExcerpt  = "excerpt"
	SummaryProviderDisabled = "disabled"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress    string
	AllowedOrigins []string
	DatabaseURL    string
	LogLevel       string
	LogFile        string
	Auth           AuthConfig
	Summary        SummaryConfig
}

// AuthConfig configures bearer token validation.
type AuthConfig struct {
	SigningSecret string
	Issuer        string
	Audience      string
	TokenTTL      time.Duration
}

// SummaryConfig configures the summary generator.
type SummaryConfig struct {
	Provider string
	APIKey   string
	BaseURL  string
	Model    string
	Timeout  time.Duration
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("cors.allowed_origins", []string{defaultAllowedOrigin})
	configViper.SetDefault("database.url", defaultDatabaseURL)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.file", "")
	configViper.SetDefault("auth.issuer", defaultAuthIssuer)
	configViper.SetDefault("auth.audience", defaultAuthAudience)
	configViper.SetDefault("auth.token_ttl_minutes", defaultTokenTTLMinutes)
	configViper.SetDefault("summary.provider", defaultSummaryProvider)
	configViper.SetDefault("summary.base_url", defaultSummaryBaseURL)
	configViper.SetDefault("summary.model", defaultSummaryModel)
	configViper.SetDefault("summary.timeout_seconds", defaultSummaryTimeout)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:    configViper.GetString("http.address"),
		AllowedOrigins: splitList(configViper.GetStringSlice("cors.allowed_origins")),
		DatabaseURL:    configViper.GetString("database.url"),
		LogLevel:       configViper.GetString("log.level"),
		LogFile:        strings.TrimSpace(configViper.GetString("log.file")),
		Auth:           loadAuthConfig(configViper),
		Summary: SummaryConfig{
			Provider: strings.ToLower(strings.TrimSpace(configViper.GetString("summary.provider"))),
			APIKey:   configViper.GetString("summary.api_key"),
			BaseURL:  configViper.GetString("summary.base_url"),
			Model:    configViper.GetString("summary.model"),
			Timeout:  time.Duration(configViper.GetInt("summary.timeout_seconds")) * time.Second,
		},
	}

	if err := cfg.Validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

// LoadAuth parses and validates only the token settings, for commands that
// mint credentials without starting the server.
func LoadAuth(configViper *viper.Viper) (AuthConfig, error) {
	cfg := loadAuthConfig(configViper)
	if err := cfg.Validate(); err != nil {
		return AuthConfig{}, err
	}
	return cfg, nil
}

func loadAuthConfig(configViper *viper.Viper) AuthConfig {
	return AuthConfig{
		SigningSecret: configViper.GetString("auth.signing_secret"),
		Issuer:        configViper.GetString("auth.issuer"),
		Audience:      configViper.GetString("auth.audience"),
		TokenTTL:      time.Duration(configViper.GetInt("auth.token_ttl_minutes")) * time.Minute,
	}
}

// Validate validates the configuration.
func (c AppConfig) Validate() error {
	if err := validation.ValidateStruct(&c,
		validation.Field(&c.HTTPAddress, validation.By(notBlank)),
		validation.Field(&c.DatabaseURL, validation.By(notBlank)),
		validation.Field(&c.AllowedOrigins, validation.Required),
	); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	return c.Summary.Validate()
}

// Validate validates the auth configuration.
func (c AuthConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.SigningSecret, validation.By(notBlank)),
		validation.Field(&c.Issuer, validation.By(notBlank)),
		validation.Field(&c.Audience, validation.By(notBlank)),
		validation.Field(&c.TokenTTL, validation.Required, validation.Min(time.Minute)),
	)
}

// Validate validates the summary configuration.
func (c SummaryConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Provider, validation.Required,
			validation.In(SummaryProviderGroq, SummaryProviderExcerpt, SummaryProviderDisabled)),
		validation.Field(&c.APIKey, validation.When(c.Provider == SummaryProviderGroq, validation.By(notBlank))),
		validation.Field(&c.BaseURL, validation.When(c.Provider == SummaryProviderGroq, validation.By(notBlank))),
		validation.Field(&c.Model, validation.When(c.Provider == SummaryProviderGroq, validation.By(notBlank))),
		validation.Field(&c.Timeout, validation.Min(time.Duration(0))),
	)
}

func notBlank(value interface{}) error {
	text, _ := value.(string)
	if strings.TrimSpace(text) == "" {
		return validation.ErrRequired
	}
	return nil
}

// splitList accepts both repeated values and a single comma separated value,
// which is how list settings arrive through environment variables.
func splitList(values []string) []string {
	result := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
	}
	return result
}

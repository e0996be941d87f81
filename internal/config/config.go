package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

var ErrMissingRequired = errors.New("missing required configuration")

type Config struct {
	DBHost string `envconfig:"DB_HOST" default:"postgres"`
	DBPort int    `envconfig:"DB_PORT" default:"5432"`
	DBUser string `envconfig:"DB_USER" default:"rateright"`
	DBPass string `envconfig:"DB_PASS" default:"password"`
	DBName string `envconfig:"DB_NAME" default:"rateright"`

	WeaviateHost   string `envconfig:"WEAVIATE_HOST" default:"localhost:8080"`
	WeaviateScheme string `envconfig:"WEAVIATE_SCHEME" default:"http"`

	NSQLookupd string `envconfig:"NSQ_LOOKUPD" default:"nsqlookupd:4161"`
	NSQDHost   string `envconfig:"NSQD_HOST" default:"nsqd:4150"`
	NSQDHTTP   string `envconfig:"NSQD_HTTP" default:"nsqd:4151"`

	RedisAddr string `envconfig:"REDIS_ADDR"` // empty: in-memory claim store

	GeminiAPIKey  string `envconfig:"GEMINI_API_KEY"`
	SerpAPIKey    string `envconfig:"SERPAPI_KEY"`
	AWSRegion     string `envconfig:"AWS_REGION" default:"eu-west-1"`
	FromEmail     string `envconfig:"FROM_EMAIL"`
	IMAPHost      string `envconfig:"IMAP_HOST"`
	IMAPPort      int    `envconfig:"IMAP_PORT" default:"993"`
	IMAPUser      string `envconfig:"IMAP_USER"`
	IMAPPassword  string `envconfig:"IMAP_PASSWORD"`
	MigrationPath string `envconfig:"MIGRATION_PATH" default:"file://migrations"`

	ServerPort int `envconfig:"SERVER_PORT" default:"8081"`

	// Matching thresholds. Tuned constants, not domain invariants.
	SemanticCertainty float64 `envconfig:"SEMANTIC_CERTAINTY" default:"0.75"`
	LexicalThreshold  float64 `envconfig:"LEXICAL_THRESHOLD" default:"0.10"`
	MatchLimit        int     `envconfig:"MATCH_LIMIT" default:"10"`

	// Discovery cascade.
	CoverageThreshold   int `envconfig:"COVERAGE_THRESHOLD" default:"1"`
	CascadeTimeoutSec   int `envconfig:"CASCADE_TIMEOUT_SECONDS" default:"90"`
	FetchConcurrency    int `envconfig:"FETCH_CONCURRENCY" default:"8"`
	SemanticOverlapGate int `envconfig:"SEMANTIC_OVERLAP_GATE" default:"2"`
	ClaimTTLSec         int `envconfig:"CLAIM_TTL_SECONDS" default:"180"`
	CooldownTTLSec      int `envconfig:"COOLDOWN_TTL_SECONDS" default:"300"`

	// Inbox polling.
	ReplyPollSeconds int `envconfig:"REPLY_POLL_SECONDS" default:"120"`

	// Resilience.
	BootstrapRetryAttempts     int `envconfig:"BOOTSTRAP_RETRY_ATTEMPTS" default:"10"`
	BootstrapRetryDelaySeconds int `envconfig:"BOOTSTRAP_RETRY_DELAY_SECONDS" default:"2"`
}

func Load() (*Config, error) {
	// Env vars may be set in the shell; .env files are best-effort.
	_ = godotenv.Load(".env")
	cwd, _ := os.Getwd()
	_ = godotenv.Load(filepath.Join(cwd, "../.env"))

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate enforces the required settings. SerpAPI, mail, and redis are
// optional: the affected features degrade when they are absent.
func (c *Config) Validate() error {
	if c.DBHost == "" {
		return fmt.Errorf("%w: DB_HOST", ErrMissingRequired)
	}
	if c.DBUser == "" {
		return fmt.Errorf("%w: DB_USER", ErrMissingRequired)
	}
	if c.DBName == "" {
		return fmt.Errorf("%w: DB_NAME", ErrMissingRequired)
	}
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("%w: GEMINI_API_KEY", ErrMissingRequired)
	}
	return nil
}

// PlacesEnabled reports whether the business-listing discovery tier can run.
func (c *Config) PlacesEnabled() bool { return c.SerpAPIKey != "" }

// MailEnabled reports whether inquiry sending is configured.
func (c *Config) MailEnabled() bool { return c.FromEmail != "" }

// InboxEnabled reports whether reply checking is configured.
func (c *Config) InboxEnabled() bool {
	return c.IMAPHost != "" && c.IMAPUser != ""
}

package config

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"cardroom/database"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	// Database configuration
	DatabaseURL  string `envconfig:"DATABASE_URL"`
	DatabaseName string `envconfig:"DATABASE_NAME"`

	// NATS configuration. Empty servers selects the in-process event bus.
	NATSServers    string        `envconfig:"NATS_SERVERS"`
	CommandTimeout time.Duration `envconfig:"TABLE_COMMAND_TIMEOUT" default:"10s"`

	// Rules engine: "local" runs showdowns in-process, "nats" uses request/reply
	RulesEngine         string        `envconfig:"RULES_ENGINE" default:"local"`
	RulesSubject        string        `envconfig:"RULES_SUBJECT" default:"rules.hand.settle"`
	RulesRequestTimeout time.Duration `envconfig:"RULES_REQUEST_TIMEOUT" default:"5s"`

	// Debug API configuration (loopback only)
	DebugAPIPort int `envconfig:"DEBUG_API_PORT" default:"8089"`

	// OpenTelemetry configuration
	OTelEnabled              bool   `envconfig:"OTEL_ENABLED" default:"false"`
	OTelServiceName          string `envconfig:"OTEL_SERVICE_NAME" default:"cardroom"`
	OTelExporterType         string `envconfig:"OTEL_EXPORTER_TYPE" default:"console"` // console, otlp, none
	OTelOTLPEndpoint         string `envconfig:"OTEL_OTLP_ENDPOINT" default:"localhost:4317"`
	OTelExportIntervalMillis int    `envconfig:"OTEL_EXPORT_INTERVAL_MILLIS" default:"30000"`

	// Table defaults
	DefaultMaxSeats   int           `envconfig:"TABLE_MAX_SEATS" default:"6"`
	DefaultMinPlayers int           `envconfig:"TABLE_MIN_PLAYERS" default:"2"`
	InactivityTTL     time.Duration `envconfig:"TABLE_INACTIVITY_TTL" default:"15m"`
	PersistentHorizon time.Duration `envconfig:"TABLE_PERSISTENT_HORIZON" default:"8760h"`

	// Sit-and-go configuration
	SNGJoinWindow    time.Duration `envconfig:"SNG_JOIN_WINDOW" default:"2m"`
	SNGMinEntrants   int           `envconfig:"SNG_MIN_ENTRANTS" default:"2"`
	SNGMaxEntrants   int           `envconfig:"SNG_MAX_ENTRANTS" default:"6"`
	SNGStartingStack int64         `envconfig:"SNG_STARTING_STACK" default:"1500"`

	// Timeout enforcement
	TimeoutThreshold   int `envconfig:"TIMEOUT_THRESHOLD" default:"3"`
	TimeoutStrikeLimit int `envconfig:"TIMEOUT_STRIKE_LIMIT" default:"3"`

	// Invites and grants
	InviteTTL          time.Duration `envconfig:"INVITE_TTL" default:"24h"`
	InviteTokenLength  int           `envconfig:"INVITE_TOKEN_LENGTH" default:"16"`
	InitialPlayGrant   int64         `envconfig:"INITIAL_PLAY_GRANT" default:"10000"`
	ReferralReward     int64         `envconfig:"REFERRAL_REWARD" default:"1000"`
	ReferralCurrency   string        `envconfig:"REFERRAL_CURRENCY" default:"play"`
	ReferralMaxUses    int           `envconfig:"REFERRAL_MAX_USES" default:"10"`
	ReferralCodeLength int           `envconfig:"REFERRAL_CODE_LENGTH" default:"8"`

	// Background job schedules (robfig/cron specs)
	RouterSchedule       string `envconfig:"ROUTER_SCHEDULE" default:"@every 2s"`
	ExpirationSchedule   string `envconfig:"EXPIRATION_SCHEDULE" default:"@every 30s"`
	JoinWindowSchedule   string `envconfig:"JOIN_WINDOW_SCHEDULE" default:"@every 5s"`
	InviteExpirySchedule string `envconfig:"INVITE_EXPIRY_SCHEDULE" default:"@every 1m"`

	// Per-table mailboxes
	DispatcherIdleTimeout  time.Duration `envconfig:"DISPATCHER_IDLE_TIMEOUT" default:"5m"`
	DispatcherMailboxDepth int           `envconfig:"DISPATCHER_MAILBOX_DEPTH" default:"64"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Environment
	Environment string `envconfig:"ENVIRONMENT" default:"development"` // "development", "production" or "test"
}

var (
	instance *Config
	once     sync.Once
	mu       sync.Mutex // Protects instance for test setup
)

// Get returns the global configuration instance
func Get() *Config {
	mu.Lock()
	defer mu.Unlock()

	// If instance is already set (e.g., by tests), return it
	if instance != nil {
		return instance
	}

	once.Do(func() {
		var err error
		instance, err = load()
		if err != nil {
			// In test environment, use a default test config instead of panicking
			if os.Getenv("GO_TEST") == "1" || os.Getenv("ENVIRONMENT") == "test" {
				instance = NewTestConfig()
			} else {
				panic(fmt.Sprintf("failed to load config: %v", err))
			}
		}
	})
	return instance
}

// GetDatabaseURL constructs the full database URL by combining base URL and database name
func (c *Config) GetDatabaseURL() string {
	return database.ConstructDatabaseURL(c.DatabaseURL, c.DatabaseName)
}

// UseNATS returns true if events should be published to a NATS server
func (c *Config) UseNATS() bool {
	return strings.TrimSpace(c.NATSServers) != ""
}

// load loads configuration from an optional .env file and the environment
func load() (*Config, error) {
	// A missing .env file is normal outside local development
	_ = godotenv.Load()

	config := &Config{}
	if err := envconfig.Process("", config); err != nil {
		return nil, fmt.Errorf("failed to process environment: %w", err)
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// validate checks required values and cross-field constraints
func (c *Config) validate() error {
	if c.Environment != "test" && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DatabaseName != "" && strings.TrimSpace(c.DatabaseName) == "" {
		return fmt.Errorf("DATABASE_NAME cannot be empty when provided")
	}
	if c.RulesEngine != "local" && c.RulesEngine != "nats" {
		return fmt.Errorf("RULES_ENGINE must be local or nats, got %q", c.RulesEngine)
	}
	if c.RulesEngine == "nats" && !c.UseNATS() {
		return fmt.Errorf("RULES_ENGINE=nats requires NATS_SERVERS")
	}
	if c.DefaultMinPlayers < 2 || c.DefaultMinPlayers > c.DefaultMaxSeats {
		return fmt.Errorf("TABLE_MIN_PLAYERS must be between 2 and TABLE_MAX_SEATS")
	}
	if c.SNGMinEntrants < 2 || c.SNGMinEntrants > c.SNGMaxEntrants {
		return fmt.Errorf("SNG_MIN_ENTRANTS must be between 2 and SNG_MAX_ENTRANTS")
	}
	if c.InviteTokenLength < 8 || c.InviteTokenLength > 64 {
		return fmt.Errorf("INVITE_TOKEN_LENGTH must be between 8 and 64")
	}
	if c.TimeoutThreshold < 1 || c.TimeoutStrikeLimit < 1 {
		return fmt.Errorf("TIMEOUT_THRESHOLD and TIMEOUT_STRIKE_LIMIT must be positive")
	}
	if c.ReferralCurrency != "real" && c.ReferralCurrency != "play" {
		return fmt.Errorf("REFERRAL_CURRENCY must be real or play")
	}
	return nil
}

// Test helpers - only use in tests

// SetTestConfig overrides the global config instance for testing
// This should only be called from test files
func SetTestConfig(testConfig *Config) {
	mu.Lock()
	defer mu.Unlock()
	instance = testConfig
}

// ResetConfig resets the global config instance and sync.Once for testing
// This should only be called from test files
func ResetConfig() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
	once = sync.Once{}
}

// NewTestConfig creates a config with the production defaults suitable for unit tests
func NewTestConfig() *Config {
	return &Config{
		CommandTimeout:         10 * time.Second,
		RulesEngine:            "local",
		RulesSubject:           "rules.hand.settle",
		RulesRequestTimeout:    5 * time.Second,
		DebugAPIPort:           8089,
		OTelServiceName:        "cardroom",
		OTelExporterType:       "none",
		DefaultMaxSeats:        6,
		DefaultMinPlayers:      2,
		InactivityTTL:          15 * time.Minute,
		PersistentHorizon:      8760 * time.Hour,
		SNGJoinWindow:          2 * time.Minute,
		SNGMinEntrants:         2,
		SNGMaxEntrants:         6,
		SNGStartingStack:       1500,
		TimeoutThreshold:       3,
		TimeoutStrikeLimit:     3,
		InviteTTL:              24 * time.Hour,
		InviteTokenLength:      16,
		InitialPlayGrant:       10000,
		ReferralReward:         1000,
		ReferralCurrency:       "play",
		ReferralMaxUses:        10,
		ReferralCodeLength:     8,
		RouterSchedule:         "@every 2s",
		ExpirationSchedule:     "@every 30s",
		JoinWindowSchedule:     "@every 5s",
		InviteExpirySchedule:   "@every 1m",
		DispatcherIdleTimeout:  5 * time.Minute,
		DispatcherMailboxDepth: 64,
		LogLevel:               "debug",
		Environment:            "test",
	}
}

package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	defaultEnvFile           = ".env"
	defaultPort              = "8080"
	defaultEnvironment       = "local"
	defaultReadTimeout       = 15 * time.Second
	defaultWriteTimeout      = 30 * time.Second
	defaultIdleTimeout       = 120 * time.Second
	defaultShutdownTimeout   = 10 * time.Second
	defaultReadinessTimeout  = 1500 * time.Millisecond
	defaultMaxBodyBytes      = 64 * 1024
	defaultPreviewRateLimit  = 120
	defaultPreviewRateWindow = time.Minute
	defaultCurrency          = "ils"
	defaultFeePercent        = 0.029
	defaultFixedFees         = "usd=0.30,ils=1.20"
	defaultFallbackCurrency  = "ils"
	defaultAmountTolerance   = 0.01
	defaultIdempotencyHeader = "Idempotency-Key"
	defaultIdempotencyTTL    = 24 * time.Hour
	defaultIdempotencyStore  = "firestore"
	defaultSettlementTopic   = "payment-settlements"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Environment string
	Server      ServerConfig
	Firebase    FirebaseConfig
	Firestore   FirestoreConfig
	Payments    PaymentsConfig
	Idempotency IdempotencyConfig
	Events      EventsConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port             string
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	IdleTimeout      time.Duration
	ShutdownTimeout  time.Duration
	MaxBodyBytes     int64
	ReadinessTimeout time.Duration

	// PreviewRateLimit caps split previews per client per PreviewRateWindow. Zero disables it.
	PreviewRateLimit  int
	PreviewRateWindow time.Duration
}

// FirebaseConfig stores Firebase project settings.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// PaymentsConfig holds processor credentials and the fee schedule used by the split engine.
type PaymentsConfig struct {
	StripeAPIKey     string
	StripeAccountID  string
	DefaultCurrency  string
	FeePercent       float64
	FixedFees        map[string]float64
	FallbackCurrency string
	AmountTolerance  float64
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Header string
	TTL    time.Duration
	Store  string
}

// EventsConfig names the Pub/Sub topics the service publishes to. Empty topics disable publishing.
type EventsConfig struct {
	SettlementTopic string
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects explicit values that take precedence over the process environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets the resolver used for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

func newLoaderOptions(opts []Option) loaderOptions {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// Load assembles the configuration from defaults, .env overrides, environment variables and
// Secret Manager references. Precedence: explicit map, then process env, then .env file.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	lookup := func(key string) (string, bool) {
		if value, ok := options.envMap[key]; ok {
			return value, true
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		value, ok := dotEnvValues[key]
		return value, ok
	}

	var invalid []string
	fixedFees, err := feeTableWithDefault(lookup, "MUNCH_PAYMENTS_FIXED_FEES", defaultFixedFees)
	if err != nil {
		invalid = append(invalid, "Payments.FixedFees")
	}

	cfg := Config{
		Environment: strings.ToLower(stringWithDefault(lookup, "MUNCH_ENVIRONMENT", defaultEnvironment)),
		Server: ServerConfig{
			Port:              stringWithDefault(lookup, "MUNCH_SERVER_PORT", defaultPort),
			ReadTimeout:       durationWithDefault(lookup, "MUNCH_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout:      durationWithDefault(lookup, "MUNCH_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:       durationWithDefault(lookup, "MUNCH_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			ShutdownTimeout:   durationWithDefault(lookup, "MUNCH_SERVER_SHUTDOWN_TIMEOUT", defaultShutdownTimeout),
			MaxBodyBytes:      int64(intWithDefault(lookup, "MUNCH_SERVER_MAX_BODY_BYTES", defaultMaxBodyBytes)),
			ReadinessTimeout:  durationWithDefault(lookup, "MUNCH_SERVER_READINESS_TIMEOUT", defaultReadinessTimeout),
			PreviewRateLimit:  intWithDefault(lookup, "MUNCH_SERVER_PREVIEW_RATE_LIMIT", defaultPreviewRateLimit),
			PreviewRateWindow: durationWithDefault(lookup, "MUNCH_SERVER_PREVIEW_RATE_WINDOW", defaultPreviewRateWindow),
		},
		Firebase: FirebaseConfig{
			ProjectID:       stringWithDefault(lookup, "MUNCH_FIREBASE_PROJECT_ID", ""),
			CredentialsFile: stringWithDefault(lookup, "MUNCH_FIREBASE_CREDENTIALS_FILE", ""),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "MUNCH_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "MUNCH_FIRESTORE_EMULATOR_HOST", ""),
		},
		Payments: PaymentsConfig{
			StripeAPIKey:     stringWithDefault(lookup, "MUNCH_STRIPE_API_KEY", ""),
			StripeAccountID:  stringWithDefault(lookup, "MUNCH_STRIPE_ACCOUNT_ID", ""),
			DefaultCurrency:  strings.ToLower(stringWithDefault(lookup, "MUNCH_PAYMENTS_DEFAULT_CURRENCY", defaultCurrency)),
			FeePercent:       floatWithDefault(lookup, "MUNCH_PAYMENTS_FEE_PERCENT", defaultFeePercent),
			FixedFees:        fixedFees,
			FallbackCurrency: strings.ToLower(stringWithDefault(lookup, "MUNCH_PAYMENTS_FALLBACK_CURRENCY", defaultFallbackCurrency)),
			AmountTolerance:  floatWithDefault(lookup, "MUNCH_PAYMENTS_AMOUNT_TOLERANCE", defaultAmountTolerance),
		},
		Idempotency: IdempotencyConfig{
			Header: stringWithDefault(lookup, "MUNCH_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:    durationWithDefault(lookup, "MUNCH_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			Store:  strings.ToLower(stringWithDefault(lookup, "MUNCH_IDEMPOTENCY_STORE", defaultIdempotencyStore)),
		},
		Events: EventsConfig{
			SettlementTopic: stringWithDefault(lookup, "MUNCH_EVENTS_SETTLEMENT_TOPIC", defaultSettlementTopic),
		},
	}

	// Firestore project defaults to Firebase project when unspecified.
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}

	cfg.Payments.StripeAPIKey, err = resolveSecret(ctx, cfg.Payments.StripeAPIKey, options.secret)
	if err != nil {
		return Config{}, err
	}

	if err := validateConfig(cfg, invalid); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// EnvironmentValues returns the merged environment using the same precedence as Load so callers can
// build dependencies (such as the secret fetcher) before loading.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := newLoaderOptions(opts)

	values, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}
	if values == nil {
		values = make(map[string]string)
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			key, value, ok := strings.Cut(entry, "=")
			if !ok || strings.TrimSpace(key) == "" {
				continue
			}
			values[strings.TrimSpace(key)] = value
		}
	}
	for key, value := range options.envMap {
		values[key] = value
	}
	return values, nil
}

func validateConfig(cfg Config, invalid []string) error {
	missing := append([]string(nil), invalid...)

	if cfg.Server.Port == "" {
		missing = append(missing, "Server.Port")
	}
	if cfg.Server.MaxBodyBytes <= 0 {
		missing = append(missing, "Server.MaxBodyBytes")
	}
	if cfg.Server.ReadinessTimeout <= 0 {
		missing = append(missing, "Server.ReadinessTimeout")
	}
	if cfg.Server.PreviewRateLimit < 0 {
		missing = append(missing, "Server.PreviewRateLimit")
	}
	if cfg.Firestore.ProjectID == "" {
		missing = append(missing, "Firestore.ProjectID")
	}
	if cfg.Environment != defaultEnvironment && strings.TrimSpace(cfg.Payments.StripeAPIKey) == "" {
		missing = append(missing, "Payments.StripeAPIKey")
	}
	if cfg.Payments.FeePercent < 0 || cfg.Payments.FeePercent >= 1 {
		missing = append(missing, "Payments.FeePercent")
	}
	if _, ok := cfg.Payments.FixedFees[cfg.Payments.FallbackCurrency]; !ok {
		missing = append(missing, "Payments.FallbackCurrency")
	}
	if cfg.Payments.AmountTolerance < 0 {
		missing = append(missing, "Payments.AmountTolerance")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		missing = append(missing, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		missing = append(missing, "Idempotency.TTL")
	}
	switch cfg.Idempotency.Store {
	case "memory", "firestore":
	default:
		missing = append(missing, "Idempotency.Store")
	}

	if len(missing) > 0 {
		return &ValidationError{fields: missing}
	}
	return nil
}

var errInvalidFeeTable = errors.New("invalid fixed fee table")

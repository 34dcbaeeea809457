// Package config loads and validates application configuration from
// environment variables, optionally seeded from a dotenv file named by
// CONFIG_FILE.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Event broker choices for EVENT_BROKER.
const (
	BrokerLog      = "log"
	BrokerRabbitMQ = "rabbitmq"
	BrokerKafka    = "kafka"
)

// Config holds all configuration values for the API server.
type Config struct {
	Port        string
	DatabaseURL string
	// LogLevel is one of debug, info, warn, error.
	LogLevel    string
	CORSOrigins []string

	JWTSecret    string
	JWTExpiresIn time.Duration

	MercadoPagoAccessToken   string
	MercadoPagoBaseURL       string
	MercadoPagoWebhookSecret string
	GatewayMaxRetries        int

	// PixHoldTTL is how long a seat stays held for an unpaid PIX charge.
	PixHoldTTL        time.Duration
	ReconcileInterval time.Duration

	// RedisURL enables the payment status cache when set.
	RedisURL string

	EventBroker  string
	AMQPURL      string
	AMQPExchange string
	KafkaBrokers []string
	KafkaTopic   string

	MigrateOnStart  bool
	MaxBodyBytes    int64
	LoginRatePerMin int
}

var defaults = map[string]any{
	"PORT":                 "8080",
	"LOG_LEVEL":            "info",
	"CORS_ORIGINS":         "http://localhost:5173,http://localhost:3000,http://127.0.0.1:5173",
	"JWT_EXPIRES_IN":       "168h",
	"MERCADOPAGO_BASE_URL": "https://api.mercadopago.com",
	"GATEWAY_MAX_RETRIES":  3,
	"PIX_HOLD_TTL":         "30m",
	"RECONCILE_INTERVAL":   "1m",
	"EVENT_BROKER":         BrokerLog,
	"AMQP_EXCHANGE":        "carpool.events",
	"KAFKA_TOPIC":          "carpool.events",
	"MIGRATE_ON_START":     true,
	"MAX_BODY_BYTES":       1 << 20,
	"LOGIN_RATE_PER_MIN":   20,
}

// Load reads configuration from the environment and returns a Config.
// Returns an error listing any required variables that are not set, or
// describing the first invalid value.
func Load() (Config, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config.Load: reading %s: %w", file, err)
		}
	}

	cfg := Config{
		Port:                     v.GetString("PORT"),
		DatabaseURL:              v.GetString("DATABASE_URL"),
		LogLevel:                 strings.ToLower(v.GetString("LOG_LEVEL")),
		CORSOrigins:              splitCSV(v.GetString("CORS_ORIGINS")),
		JWTSecret:                v.GetString("JWT_SECRET"),
		MercadoPagoAccessToken:   v.GetString("MERCADOPAGO_ACCESS_TOKEN"),
		MercadoPagoBaseURL:       strings.TrimRight(v.GetString("MERCADOPAGO_BASE_URL"), "/"),
		MercadoPagoWebhookSecret: v.GetString("MERCADOPAGO_WEBHOOK_SECRET"),
		GatewayMaxRetries:        v.GetInt("GATEWAY_MAX_RETRIES"),
		RedisURL:                 v.GetString("REDIS_URL"),
		EventBroker:              strings.ToLower(v.GetString("EVENT_BROKER")),
		AMQPURL:                  v.GetString("AMQP_URL"),
		AMQPExchange:             v.GetString("AMQP_EXCHANGE"),
		KafkaBrokers:             splitCSV(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:               v.GetString("KAFKA_TOPIC"),
		MigrateOnStart:           v.GetBool("MIGRATE_ON_START"),
		MaxBodyBytes:             v.GetInt64("MAX_BODY_BYTES"),
		LoginRatePerMin:          v.GetInt("LOGIN_RATE_PER_MIN"),
	}

	var missing []string
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if cfg.JWTSecret == "" {
		missing = append(missing, "JWT_SECRET")
	}
	switch cfg.EventBroker {
	case BrokerLog:
	case BrokerRabbitMQ:
		if cfg.AMQPURL == "" {
			missing = append(missing, "AMQP_URL")
		}
	case BrokerKafka:
		if len(cfg.KafkaBrokers) == 0 {
			missing = append(missing, "KAFKA_BROKERS")
		}
	default:
		return Config{}, fmt.Errorf("EVENT_BROKER must be one of log, rabbitmq, kafka; got %q", cfg.EventBroker)
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}

	var errs []error
	for _, d := range []struct {
		key string
		dst *time.Duration
	}{
		{"JWT_EXPIRES_IN", &cfg.JWTExpiresIn},
		{"PIX_HOLD_TTL", &cfg.PixHoldTTL},
		{"RECONCILE_INTERVAL", &cfg.ReconcileInterval},
	} {
		dur, err := time.ParseDuration(v.GetString(d.key))
		if err != nil || dur <= 0 {
			errs = append(errs, fmt.Errorf("%s must be a positive duration such as 30m, got %q", d.key, v.GetString(d.key)))
			continue
		}
		*d.dst = dur
	}
	if cfg.GatewayMaxRetries < 0 {
		errs = append(errs, fmt.Errorf("GATEWAY_MAX_RETRIES must not be negative"))
	}
	if cfg.MaxBodyBytes <= 0 {
		errs = append(errs, fmt.Errorf("MAX_BODY_BYTES must be positive"))
	}
	if cfg.LoginRatePerMin <= 0 {
		errs = append(errs, fmt.Errorf("LOGIN_RATE_PER_MIN must be positive"))
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// AdminConfig holds the settings for the createadmin command.
type AdminConfig struct {
	DatabaseURL string
	Name        string
	Email       string
	Password    string
}

// LoadAdmin reads the createadmin settings. Flags win over ADMIN_NAME,
// ADMIN_EMAIL, ADMIN_PASSWORD and DATABASE_URL from the environment.
func LoadAdmin(args []string) (AdminConfig, error) {
	fs := pflag.NewFlagSet("createadmin", pflag.ContinueOnError)
	fs.String("database-url", "", "Postgres connection string (DATABASE_URL)")
	fs.String("name", "Administrator", "display name (ADMIN_NAME)")
	fs.String("email", "", "login email (ADMIN_EMAIL)")
	fs.String("password", "", "password, at least 6 characters (ADMIN_PASSWORD)")
	if err := fs.Parse(args); err != nil {
		return AdminConfig{}, fmt.Errorf("config.LoadAdmin: %w", err)
	}

	v := viper.New()
	v.AutomaticEnv()
	for key, flag := range map[string]string{
		"DATABASE_URL":   "database-url",
		"ADMIN_NAME":     "name",
		"ADMIN_EMAIL":    "email",
		"ADMIN_PASSWORD": "password",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return AdminConfig{}, fmt.Errorf("config.LoadAdmin: %w", err)
		}
	}

	cfg := AdminConfig{
		DatabaseURL: v.GetString("DATABASE_URL"),
		Name:        strings.TrimSpace(v.GetString("ADMIN_NAME")),
		Email:       strings.TrimSpace(v.GetString("ADMIN_EMAIL")),
		Password:    v.GetString("ADMIN_PASSWORD"),
	}
	var missing []string
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}
	if cfg.Email == "" {
		missing = append(missing, "ADMIN_EMAIL")
	}
	if cfg.Password == "" {
		missing = append(missing, "ADMIN_PASSWORD")
	}
	if len(missing) > 0 {
		return AdminConfig{}, fmt.Errorf("required settings not provided: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

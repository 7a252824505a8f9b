package config

import (
	"errors"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the gateway. Keys are read from the
// environment without a prefix so existing deployments keep their variables.
type Config struct {
	ServerPort            int    `mapstructure:"PORT"`
	LogLevel              string `mapstructure:"LOG_LEVEL"`
	AppEnv                string `mapstructure:"APP_ENV"`
	RequestTimeoutSeconds int    `mapstructure:"REQUEST_TIMEOUT_SECONDS"`

	// Asset search
	CloudName           string `mapstructure:"CLOUD_NAME"`
	CloudinaryAPIKey    string `mapstructure:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `mapstructure:"CLOUDINARY_API_SECRET"`
	CloudinaryFolder    string `mapstructure:"CLOUDINARY_FOLDER"`
	CloudinaryBaseURL   string `mapstructure:"CLOUDINARY_API_BASE_URL"`

	// Primary SMTP relay
	SMTPHost  string `mapstructure:"SMTP_HOST"`
	SMTPPort  int    `mapstructure:"SMTP_PORT"`
	SMTPUser  string `mapstructure:"SMTP_USER"`
	SMTPPass  string `mapstructure:"SMTP_PASS"`
	FromEmail string `mapstructure:"FROM_EMAIL"`
	FromName  string `mapstructure:"FROM_NAME"`
	SMTPDebug string `mapstructure:"SMTP_DEBUG"`

	// HTTP mail APIs
	BrevoAPIKey     string `mapstructure:"BREVO_API_KEY"`
	BrevoBaseURL    string `mapstructure:"BREVO_API_BASE_URL"`
	SendGridAPIKey  string `mapstructure:"SENDGRID_API_KEY"`
	SendGridBaseURL string `mapstructure:"SENDGRID_API_BASE_URL"`

	// Fallback SMTP account; always sends from its own address.
	FallbackSMTPHost string `mapstructure:"FALLBACK_SMTP_HOST"`
	FallbackSMTPPort int    `mapstructure:"FALLBACK_SMTP_PORT"`
	FallbackSMTPUser string `mapstructure:"FALLBACK_SMTP_USER"`
	FallbackSMTPPass string `mapstructure:"FALLBACK_SMTP_PASS"`

	// Delivery policy
	MailChannelOrder    string  `mapstructure:"MAIL_CHANNEL_ORDER"`
	MailVerifyTimeoutMs int     `mapstructure:"MAIL_VERIFY_TIMEOUT_MS"`
	MailSendTimeoutMs   int     `mapstructure:"MAIL_SEND_TIMEOUT_MS"`
	MailSimulate        bool    `mapstructure:"MAIL_SIMULATE"`
	OTPSubject          string  `mapstructure:"OTP_SUBJECT"`
	OTPRateLimitRPS     float64 `mapstructure:"OTP_RATE_LIMIT_RPS"`
	OTPRateLimitBurst   int     `mapstructure:"OTP_RATE_LIMIT_BURST"`
	// TrustProxyHeaders takes the client IP from X-Forwarded-For / X-Real-IP.
	// Only enable behind a proxy that overwrites those headers.
	TrustProxyHeaders bool `mapstructure:"TRUST_PROXY_HEADERS"`

	// Classification
	ModelsDir      string `mapstructure:"MODELS_DIR"`
	ModelNames     string `mapstructure:"MODEL_NAMES"`
	MaxUploadBytes int64  `mapstructure:"MAX_UPLOAD_BYTES"`

	// Delivery audit events: "none", "nats" or "kafka".
	AuditBroker  string `mapstructure:"AUDIT_BROKER"`
	NATSUrl      string `mapstructure:"NATS_URL"`
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	AuditTopic   string `mapstructure:"AUDIT_TOPIC"`
}

var defaults = map[string]any{
	"PORT":                    5000,
	"LOG_LEVEL":               "info",
	"APP_ENV":                 "development",
	"REQUEST_TIMEOUT_SECONDS": 60,

	"CLOUD_NAME":              "",
	"CLOUDINARY_API_KEY":      "",
	"CLOUDINARY_API_SECRET":   "",
	"CLOUDINARY_FOLDER":       "",
	"CLOUDINARY_API_BASE_URL": "https://api.cloudinary.com",

	"SMTP_HOST":  "smtp-relay.brevo.com",
	"SMTP_PORT":  587,
	"SMTP_USER":  "",
	"SMTP_PASS":  "",
	"FROM_EMAIL": "",
	"FROM_NAME":  "FSL Express",
	"SMTP_DEBUG": "",

	"BREVO_API_KEY":         "",
	"BREVO_API_BASE_URL":    "https://api.brevo.com",
	"SENDGRID_API_KEY":      "",
	"SENDGRID_API_BASE_URL": "https://api.sendgrid.com",

	"FALLBACK_SMTP_HOST": "smtp.gmail.com",
	"FALLBACK_SMTP_PORT": 587,
	"FALLBACK_SMTP_USER": "",
	"FALLBACK_SMTP_PASS": "",

	"MAIL_CHANNEL_ORDER":     "brevo-smtp,brevo-api,sendgrid-api,fallback-smtp",
	"MAIL_VERIFY_TIMEOUT_MS": 5000,
	"MAIL_SEND_TIMEOUT_MS":   10000,
	"MAIL_SIMULATE":          false,
	"OTP_SUBJECT":            "Your OTP Code",
	"OTP_RATE_LIMIT_RPS":     0.0,
	"OTP_RATE_LIMIT_BURST":   5,
	"TRUST_PROXY_HEADERS":    false,

	"MODELS_DIR":       "./models",
	"MODEL_NAMES":      "alphabet,words",
	"MAX_UPLOAD_BYTES": 10 << 20,

	"AUDIT_BROKER":  "none",
	"NATS_URL":      "nats://localhost:4222",
	"KAFKA_BROKERS": "localhost:9092",
	"AUDIT_TOPIC":   "mail.delivery.audit",
}

// Load reads configuration from defaults, an optional configs/config.defaults.yaml
// and the environment. Outside production a .env file in the working
// directory is loaded first; variables already set are not overridden.
func Load(serviceName string) (*Config, error) {
	if !isProduction() {
		if err := godotenv.Load(); err == nil {
			log.Printf("%s: loaded .env file", serviceName)
		}
	}

	v := viper.New()
	v.SetConfigName("config.defaults")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if cfg.AppEnv == "" {
		cfg.AppEnv = os.Getenv("NODE_ENV")
	}
	return &cfg, nil
}

func isProduction() bool {
	for _, key := range []string{"APP_ENV", "NODE_ENV"} {
		if strings.EqualFold(strings.TrimSpace(os.Getenv(key)), "production") {
			return true
		}
	}
	return false
}

// SenderAddress is the address OTP mail is sent from: FROM_EMAIL when set,
// otherwise the SMTP relay user.
func (c *Config) SenderAddress() string {
	if s := strings.TrimSpace(c.FromEmail); s != "" {
		return s
	}
	return strings.TrimSpace(c.SMTPUser)
}

// ChannelOrder returns the configured channel names in priority order.
func (c *Config) ChannelOrder() []string {
	return splitList(c.MailChannelOrder)
}

// ModelNameList returns the names of the classification models to serve.
func (c *Config) ModelNameList() []string {
	return splitList(c.ModelNames)
}

// KafkaBrokerList returns the configured kafka bootstrap addresses.
func (c *Config) KafkaBrokerList() []string {
	return splitList(c.KafkaBrokers)
}

// MailDebug reports whether SMTP dialogue logging is enabled.
func (c *Config) MailDebug() bool {
	return strings.TrimSpace(c.SMTPDebug) == "1"
}

func (c *Config) VerifyTimeout() time.Duration {
	return time.Duration(c.MailVerifyTimeoutMs) * time.Millisecond
}

func (c *Config) SendTimeout() time.Duration {
	return time.Duration(c.MailSendTimeoutMs) * time.Millisecond
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

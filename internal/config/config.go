// Package config loads the process configuration once at startup. The
// returned values are never mutated afterwards.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Env         string        `env:"APP_ENV" envDefault:"development"`
	Port        string        `env:"PORT" envDefault:"8080"`
	DBPath      string        `env:"DB_PATH" envDefault:"./estore.db"`
	JWTSecret   string        `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTTTL      time.Duration `env:"JWT_TTL" envDefault:"24h"`
	CORSOrigins []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"LOG_FORMAT" envDefault:"text"`
	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`

	NotifySink   string   `env:"NOTIFY_SINK" envDefault:"log"`
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"payment-notifications"`
	RedisAddr    string   `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisChannel string   `env:"REDIS_CHANNEL" envDefault:"payment-notifications"`

	MonitorInterval time.Duration `env:"MONITOR_INTERVAL" envDefault:"1m"`
	WebhookSecret   string        `env:"WEBHOOK_SECRET"`

	Payment PaymentConfig `envPrefix:"PAYMENT_"`
}

// PaymentConfig is the immutable payment and tax configuration handed to the
// processor and the invoice generator.
type PaymentConfig struct {
	CreditFeeRate  decimal.Decimal `env:"CREDIT_FEE_RATE" envDefault:"0.0299"`
	CreditFeeFixed decimal.Decimal `env:"CREDIT_FEE_FIXED" envDefault:"0.50"`
	DebitFeeRate   decimal.Decimal `env:"DEBIT_FEE_RATE" envDefault:"0.0150"`
	DebitFeeFixed  decimal.Decimal `env:"DEBIT_FEE_FIXED" envDefault:"0.25"`
	TaxRate        decimal.Decimal `env:"TAX_RATE" envDefault:"0.18"`

	MaxInstallments  int           `env:"MAX_INSTALLMENTS" envDefault:"12"`
	GatewayTimeout   time.Duration `env:"GATEWAY_TIMEOUT" envDefault:"5s"`
	PixExpiry        time.Duration `env:"PIX_EXPIRY" envDefault:"30m"`
	SlipBusinessDays int           `env:"SLIP_BUSINESS_DAYS" envDefault:"3"`

	PixKey          string `env:"PIX_KEY" envDefault:"pagamentos@estore.com"`
	PixMerchantName string `env:"PIX_MERCHANT_NAME" envDefault:"E-Store"`
	PixMerchantCity string `env:"PIX_MERCHANT_CITY" envDefault:"Sao Paulo"`
	SlipBankCode    string `env:"SLIP_BANK_CODE" envDefault:"341"`

	// Simulated gateway approval probabilities.
	CreditApprovalRate float64 `env:"CREDIT_APPROVAL_RATE" envDefault:"0.85"`
	DebitApprovalRate  float64 `env:"DEBIT_APPROVAL_RATE" envDefault:"0.92"`

	Company CompanyInfo `envPrefix:"COMPANY_"`
}

// CompanyInfo is the issuer block copied into every invoice snapshot.
type CompanyInfo struct {
	Name    string `env:"NAME" envDefault:"E-Store LTDA"`
	CNPJ    string `env:"CNPJ" envDefault:"12.345.678/0001-90"`
	Address string `env:"ADDRESS" envDefault:"Rua das Flores, 123 - Centro, São Paulo/SP, 01234-567"`
	Phone   string `env:"PHONE" envDefault:"(11) 99999-9999"`
	Email   string `env:"EMAIL" envDefault:"contato@estore.com"`
}

// Load lê o .env (se existir) e as variáveis de ambiente.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Env == "production" && c.JWTSecret == "dev-secret-change-me" {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	switch c.NotifySink {
	case "log", "kafka", "redis":
	default:
		return fmt.Errorf("NOTIFY_SINK must be one of log, kafka, redis (got %q)", c.NotifySink)
	}
	return c.Payment.validate()
}

func (p PaymentConfig) validate() error {
	if p.TaxRate.IsNegative() || p.CreditFeeRate.IsNegative() || p.DebitFeeRate.IsNegative() {
		return fmt.Errorf("payment rates must not be negative")
	}
	if p.MaxInstallments < 1 {
		return fmt.Errorf("PAYMENT_MAX_INSTALLMENTS must be at least 1")
	}
	if p.GatewayTimeout <= 0 {
		return fmt.Errorf("PAYMENT_GATEWAY_TIMEOUT must be positive")
	}
	return nil
}

// DefaultPayment returns the payment configuration built from defaults only,
// ignoring the process environment.
func DefaultPayment() PaymentConfig {
	var p PaymentConfig
	if err := env.ParseWithOptions(&p, env.Options{Environment: map[string]string{}}); err != nil {
		panic(fmt.Sprintf("config: invalid payment defaults: %v", err))
	}
	return p
}

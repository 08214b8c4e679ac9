package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestDefaultPayment(t *testing.T) {
	p := DefaultPayment()

	decimals := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"CreditFeeRate", p.CreditFeeRate, "0.0299"},
		{"CreditFeeFixed", p.CreditFeeFixed, "0.50"},
		{"DebitFeeRate", p.DebitFeeRate, "0.015"},
		{"DebitFeeFixed", p.DebitFeeFixed, "0.25"},
		{"TaxRate", p.TaxRate, "0.18"},
	}
	for _, tt := range decimals {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("%s = %s, want %s", tt.name, tt.got, tt.want)
			}
		})
	}

	if p.MaxInstallments != 12 {
		t.Errorf("MaxInstallments = %d, want 12", p.MaxInstallments)
	}
	if p.GatewayTimeout != 5*time.Second {
		t.Errorf("GatewayTimeout = %s, want 5s", p.GatewayTimeout)
	}
	if p.PixExpiry != 30*time.Minute {
		t.Errorf("PixExpiry = %s, want 30m", p.PixExpiry)
	}
	if p.SlipBusinessDays != 3 {
		t.Errorf("SlipBusinessDays = %d, want 3", p.SlipBusinessDays)
	}
	if p.Company.Name != "E-Store LTDA" {
		t.Errorf("Company.Name = %q", p.Company.Name)
	}
	if err := p.validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("NOTIFY_SINK", "kafka")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("PAYMENT_TAX_RATE", "0.12")
	t.Setenv("PAYMENT_COMPANY_NAME", "Loja Teste")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Port != "9090" {
		t.Errorf("Port = %q", cfg.Port)
	}
	if len(cfg.KafkaBrokers) != 2 {
		t.Errorf("KafkaBrokers = %v", cfg.KafkaBrokers)
	}
	if !cfg.Payment.TaxRate.Equal(decimal.RequireFromString("0.12")) {
		t.Errorf("TaxRate = %s", cfg.Payment.TaxRate)
	}
	if cfg.Payment.Company.Name != "Loja Teste" {
		t.Errorf("Company.Name = %q", cfg.Payment.Company.Name)
	}
}

func TestLoadRejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"sink desconhecido", map[string]string{"NOTIFY_SINK": "smtp"}},
		{"segredo padrão em produção", map[string]string{"APP_ENV": "production"}},
		{"parcelas zero", map[string]string{"PAYMENT_MAX_INSTALLMENTS": "0"}},
		{"taxa negativa", map[string]string{"PAYMENT_TAX_RATE": "-0.1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Error("Load() should fail")
			}
		})
	}
}

package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Server         ServerConfig
	Logger         LoggerConfig
	Postgres       PostgresConfig
	JWT            JWTConfig
	Tax            TaxConfig
	Orders         OrderConfig
	PurchaseOrders PurchaseOrderConfig
	Invoices       InvoiceConfig
	Admin          AdminConfig
}

type ServerConfig struct {
	AppEnv      string
	Port        string
	GinMode     string
	CORSOrigins []string

	// CookieSecure marks the auth cookie Secure with SameSite=None.
	CookieSecure bool
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
}

type JWTConfig struct {
	Secret   string
	TTLHours int
}

// TaxConfig holds the flat sales tax rate applied to order and invoice subtotals.
type TaxConfig struct {
	Rate float64
}

type OrderConfig struct {
	MaxItems           int
	MaxQuantityPerItem int
}

type PurchaseOrderConfig struct {
	MaxItems            int
	MaxQuantityPerItem  int
	DefaultDeliveryDays int
}

type InvoiceConfig struct {
	DefaultPaymentDays int
}

// AdminConfig seeds the first administrator when the users table has none.
type AdminConfig struct {
	Username string
	Email    string
	Password string
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:       getEnv("APP_ENV", "development"),
			Port:         getEnv("PORT", "8080"),
			GinMode:      getEnv("GIN_MODE", "debug"),
			CORSOrigins:  getEnvSlice("CORS_ORIGINS", []string{"http://localhost:5173", "http://127.0.0.1:5173"}),
			CookieSecure: getEnvBool("COOKIE_SECURE", false),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "debug"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			DBName:          getEnv("DB_NAME", "erp"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("DB_CONN_MAX_LIFETIME", 300),
		},
		JWT: JWTConfig{
			Secret:   getEnv("JWT_SECRET", ""),
			TTLHours: getEnvInt("JWT_TTL_HOURS", 24),
		},
		Tax: TaxConfig{
			Rate: getEnvFloat("TAX_RATE", 0.12),
		},
		Orders: OrderConfig{
			MaxItems:           getEnvInt("ORDER_MAX_ITEMS", 100),
			MaxQuantityPerItem: getEnvInt("ORDER_MAX_QTY_PER_ITEM", 10000),
		},
		PurchaseOrders: PurchaseOrderConfig{
			MaxItems:            getEnvInt("PO_MAX_ITEMS", 100),
			MaxQuantityPerItem:  getEnvInt("PO_MAX_QTY_PER_ITEM", 100000),
			DefaultDeliveryDays: getEnvInt("PO_DEFAULT_DELIVERY_DAYS", 7),
		},
		Invoices: InvoiceConfig{
			DefaultPaymentDays: getEnvInt("INVOICE_PAYMENT_DAYS", 30),
		},
		Admin: AdminConfig{
			Username: getEnv("ADMIN_USERNAME", "admin"),
			Email:    getEnv("ADMIN_EMAIL", ""),
			Password: getEnv("ADMIN_PASSWORD", ""),
		},
	}
}

// Validate rejects settings the workflows cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Tax.Rate < 0 || c.Tax.Rate > 1 {
		errs = append(errs, fmt.Errorf("TAX_RATE must be between 0 and 1, got %v", c.Tax.Rate))
	}
	if c.Orders.MaxItems <= 0 || c.Orders.MaxQuantityPerItem <= 0 {
		errs = append(errs, errors.New("order limits must be positive"))
	}
	if c.PurchaseOrders.MaxItems <= 0 || c.PurchaseOrders.MaxQuantityPerItem <= 0 {
		errs = append(errs, errors.New("purchase order limits must be positive"))
	}
	if c.PurchaseOrders.DefaultDeliveryDays < 0 || c.Invoices.DefaultPaymentDays < 0 {
		errs = append(errs, errors.New("default day offsets cannot be negative"))
	}
	if c.Server.GinMode == "release" && c.JWT.Secret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required in release mode"))
	}
	return errors.Join(errs...)
}

// JWTSecret returns the signing key, falling back to a development key outside release mode.
func (c *Config) JWTSecret() []byte {
	return c.JWT.SigningKey()
}

func (j JWTConfig) SigningKey() []byte {
	if j.Secret == "" {
		return []byte("default_super_secret_key")
	}
	return []byte(j.Secret)
}

func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s", p.User, p.Password, p.Host, p.Port, p.DBName, p.SSLMode)
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return fallback
}

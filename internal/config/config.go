package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the full application configuration surface.
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Inventory InventoryConfig
	Pricing   PricingConfig
	Sheets    SheetsConfig
	WhatsApp  WhatsAppConfig
	Reporting ReportingConfig
	RabbitMQ  RabbitMQConfig
}

// ServerConfig holds HTTP server related options.
type ServerConfig struct {
	Port     string
	LogLevel string
}

// MongoDBConfig holds settings for MongoDB.
type MongoDBConfig struct {
	URI                  string
	DBName               string
	LayingCollection     string
	GrowingCollection    string
	FatteningCollection  string
	ProductionCollection string
	SalesCollection      string
}

// InventoryConfig tunes the product catalogue cache.
type InventoryConfig struct {
	LivestockTTL     time.Duration
	EggsTTL          time.Duration
	PreloadTimeout   time.Duration
	WarmSchedule     string
	FetchConcurrency int
}

// PricingConfig holds the env-provided price keys. Empty values are unset keys.
type PricingConfig struct {
	LayingUnitPrice string
	EggUnitPrice    string
	PricePerPound   string
	TargetWeightLb  string
	UnitsPerCase    int
	SheetRange      string
	RefreshSchedule string
}

// SheetsConfig contains configuration required to interact with Google Sheets.
type SheetsConfig struct {
	CredentialsPath string
	SpreadsheetID   string
	SalesRange      string
}

// Enabled reports whether both sheet settings are present.
func (s SheetsConfig) Enabled() bool {
	return s.CredentialsPath != "" && s.SpreadsheetID != ""
}

// WhatsAppConfig contains credentials and options for the Meta WhatsApp Cloud API.
type WhatsAppConfig struct {
	AccessToken     string
	PhoneNumberID   string
	BaseURL         string
	APIVersion      string
	ReportRecipient string
}

// Enabled reports whether the stock summary can be delivered.
func (w WhatsAppConfig) Enabled() bool {
	return w.AccessToken != ""
}

// ReportingConfig holds scheduler-related settings.
type ReportingConfig struct {
	CronSchedule string
	Timezone     string
}

// RabbitMQConfig holds the inventory event exchange settings.
type RabbitMQConfig struct {
	URL               string
	InventoryExchange string
}

// Enabled reports whether a broker URL was provided.
func (r RabbitMQConfig) Enabled() bool {
	return r.URL != ""
}

// Load reads environment variables (optionally from the provided file) and
// materializes a Config instance.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("failed loading env file %s: %w", envFile, err)
			}
		}
	} else {
		// Missing .env files are acceptable when configuration comes from the environment directly.
		_ = godotenv.Load()
	}

	livestockTTL, err := getenvDuration("INVENTORY_LIVESTOCK_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}
	eggsTTL, err := getenvDuration("INVENTORY_EGGS_TTL", 2*time.Minute)
	if err != nil {
		return nil, err
	}
	preloadTimeout, err := getenvDuration("INVENTORY_PRELOAD_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	concurrency, err := getenvInt("INVENTORY_FETCH_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}
	unitsPerCase, err := getenvInt("PRICE_UNITS_PER_CASE", 30)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:     getenvWithDefault("APP_PORT", "8080"),
			LogLevel: getenvWithDefault("LOG_LEVEL", "info"),
		},
		MongoDB: MongoDBConfig{
			URI:                  getenvWithDefault("MONGODB_URI", "mongodb://localhost:27017"),
			DBName:               getenvWithDefault("MONGODB_DB_NAME", "gallinapp"),
			LayingCollection:     getenvWithDefault("MONGODB_LAYING_COLLECTION", "laying_batches"),
			GrowingCollection:    getenvWithDefault("MONGODB_GROWING_COLLECTION", "growing_batches"),
			FatteningCollection:  getenvWithDefault("MONGODB_FATTENING_COLLECTION", "fattening_batches"),
			ProductionCollection: getenvWithDefault("MONGODB_PRODUCTION_COLLECTION", "egg_production"),
			SalesCollection:      getenvWithDefault("MONGODB_SALES_COLLECTION", "sales"),
		},
		Inventory: InventoryConfig{
			LivestockTTL:     livestockTTL,
			EggsTTL:          eggsTTL,
			PreloadTimeout:   preloadTimeout,
			WarmSchedule:     getenvWithDefault("INVENTORY_WARM_SCHEDULE", "*/10 * * * *"),
			FetchConcurrency: concurrency,
		},
		Pricing: PricingConfig{
			LayingUnitPrice: os.Getenv("PRICE_LAYING_UNIT"),
			EggUnitPrice:    os.Getenv("PRICE_EGG_UNIT"),
			PricePerPound:   os.Getenv("PRICE_PER_POUND"),
			TargetWeightLb:  os.Getenv("PRICE_TARGET_WEIGHT_LB"),
			UnitsPerCase:    unitsPerCase,
			SheetRange:      getenvWithDefault("PRICE_SHEET_RANGE", "Pricing!A:B"),
			RefreshSchedule: getenvWithDefault("PRICE_REFRESH_SCHEDULE", "*/30 * * * *"),
		},
		Sheets: SheetsConfig{
			CredentialsPath: os.Getenv("GOOGLE_SHEETS_CREDENTIALS_PATH"),
			SpreadsheetID:   os.Getenv("GOOGLE_SHEET_DATABASE_ID"),
			SalesRange:      getenvWithDefault("SALES_LEDGER_RANGE", "Sales!A:G"),
		},
		WhatsApp: WhatsAppConfig{
			AccessToken:     os.Getenv("WHATSAPP_TOKEN"),
			PhoneNumberID:   os.Getenv("WHATSAPP_PHONE_NUMBER_ID"),
			BaseURL:         getenvWithDefault("WHATSAPP_BASE_URL", "https://graph.facebook.com"),
			APIVersion:      getenvWithDefault("WHATSAPP_API_VERSION", "v20.0"),
			ReportRecipient: os.Getenv("WHATSAPP_REPORT_RECIPIENT"),
		},
		Reporting: ReportingConfig{
			CronSchedule: getenvWithDefault("REPORT_CRON_SCHEDULE", "0 20 * * *"),
			Timezone:     getenvWithDefault("TIMEZONE", "America/Santo_Domingo"),
		},
		RabbitMQ: RabbitMQConfig{
			URL:               os.Getenv("RABBITMQ_URL"),
			InventoryExchange: getenvWithDefault("RABBITMQ_INVENTORY_EXCHANGE", "inventory.events"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate ensures that required configuration fields are populated.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}

	if c.Server.Port == "" {
		return errors.New("APP_PORT must be provided")
	}

	switch {
	case c.MongoDB.URI == "":
		return errors.New("MONGODB_URI must be provided")
	case c.MongoDB.DBName == "":
		return errors.New("MONGODB_DB_NAME must be provided")
	}

	switch {
	case c.Inventory.LivestockTTL <= 0:
		return errors.New("INVENTORY_LIVESTOCK_TTL must be positive")
	case c.Inventory.EggsTTL <= 0:
		return errors.New("INVENTORY_EGGS_TTL must be positive")
	case c.Inventory.PreloadTimeout <= 0:
		return errors.New("INVENTORY_PRELOAD_TIMEOUT must be positive")
	case c.Inventory.FetchConcurrency <= 0:
		return errors.New("INVENTORY_FETCH_CONCURRENCY must be positive")
	}

	if c.Inventory.WarmSchedule == "" {
		return errors.New("INVENTORY_WARM_SCHEDULE must not be empty")
	}

	if c.Pricing.UnitsPerCase < 0 {
		return errors.New("PRICE_UNITS_PER_CASE must not be negative")
	}

	if c.WhatsApp.Enabled() {
		switch {
		case c.WhatsApp.PhoneNumberID == "":
			return errors.New("WHATSAPP_PHONE_NUMBER_ID must be provided")
		case c.WhatsApp.ReportRecipient == "":
			return errors.New("WHATSAPP_REPORT_RECIPIENT must be provided")
		}
	}

	if c.Reporting.Timezone == "" {
		return errors.New("TIMEZONE must be provided")
	}

	return nil
}

func getenvWithDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}

func getenvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

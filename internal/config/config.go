package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Grant strategies for obtaining the first Xero token.
const (
	GrantAuthorizationCode = "authorization_code"
	GrantClientCredentials = "client_credentials"
	GrantRefreshToken      = "refresh_token"
)

var defaultXeroScopes = []string{
	"offline_access",
	"openid",
	"profile",
	"email",
	"accounting.transactions",
	"accounting.contacts",
	"accounting.settings",
}

// Config holds application configuration, loaded from the environment.
type Config struct {
	ListenAddr     string
	Environment    string
	LogLevel       string
	AllowedOrigins []string

	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string

	XeroClientID         string
	XeroClientSecret     string
	XeroRedirectURL      string
	XeroScopes           []string
	XeroGrantType        string
	XeroSeedRefreshToken string
	XeroTenantID         string
	XeroContactName      string

	GoogleCredentialsJSON string
	SpreadsheetID         string
}

// Load reads configuration from environment variables and an optional .env
// file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		ListenAddr:     getenv("LISTEN_ADDR", ":8080"),
		Environment:    getenv("ENVIRONMENT", "development"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		AllowedOrigins: splitList(getenv("ALLOWED_ORIGINS", "http://localhost:3000")),

		DBHost:     getenv("DB_HOST", "localhost"),
		DBPort:     getenv("DB_PORT", "5432"),
		DBName:     getenv("DB_NAME", "invoice_sync"),
		DBUser:     getenv("DB_USER", "postgres"),
		DBPassword: getenv("DB_PASSWORD", ""),
		DBSSLMode:  getenv("DB_SSLMODE", "disable"),

		XeroClientID:         os.Getenv("XERO_CLIENT_ID"),
		XeroClientSecret:     os.Getenv("XERO_CLIENT_SECRET"),
		XeroRedirectURL:      getenv("XERO_REDIRECT_URL", "http://localhost:8080/api/auth/callback"),
		XeroScopes:           scopes(os.Getenv("XERO_SCOPES")),
		XeroGrantType:        getenv("XERO_GRANT_TYPE", GrantAuthorizationCode),
		XeroSeedRefreshToken: os.Getenv("XERO_REFRESH_TOKEN"),
		XeroTenantID:         os.Getenv("XERO_TENANT_ID"),
		XeroContactName:      os.Getenv("XERO_CONTACT_NAME"),

		GoogleCredentialsJSON: os.Getenv("GOOGLE_CREDENTIALS"),
		SpreadsheetID:         os.Getenv("GOOGLE_SHEETS_SPREADSHEET_ID"),
	}
}

// DSN builds the postgres connection string.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

// InitDB opens the postgres connection.
func InitDB(c Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(c.DSN()), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func scopes(s string) []string {
	if parsed := strings.Fields(s); len(parsed) > 0 {
		return parsed
	}
	return defaultXeroScopes
}

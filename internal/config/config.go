// Package config holds the externally supplied, validated-once configuration
// for a run.
//
// All values come from the environment (seeded from GitHub Actions secrets in
// production, optionally from a .env file locally). The loaded Config is
// immutable by convention: it is validated once at startup and passed
// explicitly through every component entry point, so no code reads ambient
// state mid-pipeline.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Fixed endpoints and identifiers of the TORI integration. These are not
// secrets and not expected to vary per environment, so they are constants
// rather than configuration.
const (
	TokenURL   = "https://login.microsoftonline.com/05d75c05-fa1a-42e7-9cf1-eb416c396f2d/oauth2/v2.0/token"
	Scope      = "4a730d72-d145-4f6a-91f8-9783c9ceed41/.default"
	ReportsURL = "https://tori-agent.maersk-digital.net/reports/"
	UserAgent  = "TORI Data Processor"

	// DefaultTable is the destination relation name.
	DefaultTable = "ToriReports"
)

// Config is the complete set of run inputs.
type Config struct {
	// Identity provider client credentials.
	ClientID     string
	ClientSecret string

	// Destination store parameters.
	SQLServer   string
	SQLDatabase string
	SQLUsername string
	SQLPassword string
}

// Load reads configuration from the environment. When envFile is non-empty
// and exists, it is loaded first without overriding already-set variables
// (godotenv semantics), which keeps real environments authoritative over
// checked-in .env files.
//
// Load does not validate; call Validate before any side-effecting work.
func Load(envFile string) Config {
	if envFile != "" {
		// Missing file is fine: .env is a local convenience only.
		_ = godotenv.Load(envFile)
	} else {
		_ = godotenv.Load()
	}

	return Config{
		ClientID:     os.Getenv("CLIENT_ID"),
		ClientSecret: os.Getenv("CLIENT_SECRET"),
		SQLServer:    os.Getenv("AZURE_SQL_SERVER"),
		SQLDatabase:  os.Getenv("AZURE_SQL_DATABASE"),
		SQLUsername:  os.Getenv("AZURE_SQL_USERNAME"),
		SQLPassword:  os.Getenv("AZURE_SQL_PASSWORD"),
	}
}

// Validate checks completeness of the configuration.
//
// Behavior:
//   - All missing variables are reported in one error so an operator fixes
//     the environment in one pass instead of one failure at a time.
//   - Validation happens before any network call; a run with incomplete
//     configuration has zero external side effects.
func (c Config) Validate() error {
	var missing []string
	for _, v := range []struct {
		name  string
		value string
	}{
		{"CLIENT_ID", c.ClientID},
		{"CLIENT_SECRET", c.ClientSecret},
		{"AZURE_SQL_SERVER", c.SQLServer},
		{"AZURE_SQL_DATABASE", c.SQLDatabase},
		{"AZURE_SQL_USERNAME", c.SQLUsername},
		{"AZURE_SQL_PASSWORD", c.SQLPassword},
	} {
		if strings.TrimSpace(v.value) == "" {
			missing = append(missing, v.name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}
	return nil
}

// SQLServerDSN assembles the go-mssqldb connection URL for the destination:
// encryption on, server certificate verified, 30-second dial timeout.
func (c Config) SQLServerDSN() string {
	q := url.Values{}
	q.Set("database", c.SQLDatabase)
	q.Set("encrypt", "true")
	q.Set("TrustServerCertificate", "false")
	q.Set("dial timeout", "30")

	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(c.SQLUsername, c.SQLPassword),
		Host:     c.SQLServer,
		RawQuery: q.Encode(),
	}
	return u.String()
}

package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds everything the server needs at startup.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Gemini   GeminiConfig   `yaml:"gemini"`
	Sheets   SheetsConfig   `yaml:"sheets"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	Port      string `yaml:"port"`
	StaticDir string `yaml:"static_dir"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"-"`
	SSLMode  string `yaml:"sslmode"`
}

type GeminiConfig struct {
	APIKey string `yaml:"-"`
	Model  string `yaml:"model"`
	// Temperature is left to the model default when unset
	Temperature *float64 `yaml:"temperature"`
}

type SheetsConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	SpreadsheetName string `yaml:"spreadsheet_name"`
	SpreadsheetID   string `yaml:"spreadsheet_id"`
	Worksheet       string `yaml:"worksheet"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:      "8000",
			StaticDir: "static",
		},
		Database: DatabaseConfig{
			Port:    "5432",
			SSLMode: "prefer",
		},
		Gemini: GeminiConfig{
			Model: "gemini-2.5-flash",
		},
		Sheets: SheetsConfig{
			CredentialsFile: "credentials.json",
			SpreadsheetName: "Family_Library_Books",
			Worksheet:       "Sheet1",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the configuration from defaults, the optional YAML file at path
// and the environment, in that order. Secrets are only read from the
// environment. It fails if any required variable is missing.
func Load(path string) (Config, error) {
	return loadWith(path, os.LookupEnv)
}

type lookupFunc func(string) (string, bool)

func loadWith(path string, lookup lookupFunc) (Config, error) {
	cfg := defaults()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnv(&cfg, lookup)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, lookup lookupFunc) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	set("PORT", &cfg.Server.Port)
	set("STATIC_DIR", &cfg.Server.StaticDir)

	set("DB_HOST", &cfg.Database.Host)
	set("DB_PORT", &cfg.Database.Port)
	set("DB_NAME", &cfg.Database.Name)
	set("DB_USER", &cfg.Database.User)
	set("DB_PASS", &cfg.Database.Password)
	set("DB_SSLMODE", &cfg.Database.SSLMode)

	set("GEMINI_API_KEY", &cfg.Gemini.APIKey)
	set("GEMINI_MODEL", &cfg.Gemini.Model)

	set("GOOGLE_CREDENTIALS_FILE", &cfg.Sheets.CredentialsFile)
	set("SHEET_NAME", &cfg.Sheets.SpreadsheetName)
	set("SPREADSHEET_ID", &cfg.Sheets.SpreadsheetID)
	set("WORKSHEET_NAME", &cfg.Sheets.Worksheet)

	set("LOG_LEVEL", &cfg.Log.Level)
}

func (c Config) validate() error {
	required := []struct {
		env   string
		value string
	}{
		{"DB_HOST", c.Database.Host},
		{"DB_NAME", c.Database.Name},
		{"DB_USER", c.Database.User},
		{"DB_PASS", c.Database.Password},
		{"GEMINI_API_KEY", c.Gemini.APIKey},
	}

	var errs []error
	for _, r := range required {
		if r.value == "" {
			errs = append(errs, fmt.Errorf("missing required environment variable %s", r.env))
		}
	}
	if c.Sheets.SpreadsheetID == "" && c.Sheets.SpreadsheetName == "" {
		errs = append(errs, errors.New("either SPREADSHEET_ID or SHEET_NAME must be set"))
	}
	if c.Sheets.CredentialsFile == "" {
		errs = append(errs, errors.New("credentials file must not be empty"))
	}
	if c.Sheets.Worksheet == "" {
		errs = append(errs, errors.New("worksheet name must not be empty"))
	}
	return errors.Join(errs...)
}

// DSN returns a postgres:// URL for the configured database.
func (c Config) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Database.User, c.Database.Password),
		Host:   net.JoinHostPort(c.Database.Host, c.Database.Port),
		Path:   "/" + c.Database.Name,
	}
	if c.Database.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{c.Database.SSLMode}}.Encode()
	}
	return u.String()
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + c.Server.Port
}

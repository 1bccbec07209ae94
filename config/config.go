package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds the connection details and the locations of the benchmark inputs.
// Values of the form ${VAR} in the file are expanded from the environment.
type Config struct {
	Driver       string
	Host         string
	Port         int
	Database     string
	User         string
	Password     string
	SSLMode      string `yaml:"sslMode"`
	DSN          string `yaml:"dsn"` // overrides the fields above when set
	DataDir      string `yaml:"dataDir"`
	DataExt      string `yaml:"dataExt"`
	Delimiter    string
	SchemaFile   string `yaml:"schemaFile"`
	QueriesDir   string `yaml:"queriesDir"`
	QueryExt     string `yaml:"queryExt"`
	ResultsTable string `yaml:"resultsTable"`
	Analyze      bool   // run ANALYZE on each table after loading it
}

// Default returns a config with the values used when the file leaves a field empty.
func Default() *Config {
	return &Config{
		Driver:       "postgres",
		Host:         "127.0.0.1",
		Port:         5432,
		SSLMode:      "disable",
		DataExt:      ".tbl",
		Delimiter:    "|",
		QueryExt:     ".sql",
		ResultsTable: "tpch_results",
	}
}

// Load reads the yaml file at path on top of the defaults and validates the result.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("missing config file")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Driver {
	case "postgres", "sqlite3":
	default:
		return fmt.Errorf("unsupported driver %q (postgres|sqlite3)", c.Driver)
	}
	if c.Database == "" && c.DSN == "" {
		return errors.New("database is required")
	}
	if len([]rune(c.Delimiter)) != 1 {
		return fmt.Errorf("delimiter must be a single character, got %q", c.Delimiter)
	}
	if c.DataExt == "" || c.QueryExt == "" {
		return errors.New("dataExt and queryExt must not be empty")
	}
	if c.ResultsTable == "" {
		return errors.New("resultsTable is required")
	}
	return nil
}

// DataSourceName returns the string handed to sql.Open for the configured driver.
func (c *Config) DataSourceName() string {
	if c.DSN != "" {
		return c.DSN
	}

	if c.Driver == "sqlite3" {
		return c.Database
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	if c.User != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{c.SSLMode}}.Encode()
	}
	return u.String()
}

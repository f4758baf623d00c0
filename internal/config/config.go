// Package config loads the audit configuration from YAML, .env files and SWAUDIT_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SWAUDIT_"

type Config struct {
	Inventory InventoryConfig `yaml:"inventory"`
	Inputs    InputsConfig    `yaml:"inputs"`
	Checks    ChecksConfig    `yaml:"checks"`
	Audit     AuditConfig     `yaml:"audit"`
	SNMP      SNMPConfig      `yaml:"snmp"`
	API       APIConfig       `yaml:"api"`
	Logging   LoggingConfig   `yaml:"logging"`

	// Credentials come from the environment only.
	Credentials Credentials `yaml:"-"`
}

type InventoryConfig struct {
	HostsFile string `yaml:"hosts_file" validate:"required"`
	Platform  string `yaml:"platform" validate:"oneof=huawei_vrp cisco_iosxe"`
	Transport string `yaml:"transport" validate:"oneof=ssh2"`
	Port      int    `yaml:"port" validate:"min=1,max=65535"`
}

type InputsConfig struct {
	CommandsFile       string `yaml:"commands_file"`
	GlobalLinesFile    string `yaml:"global_lines_file"`
	InterfaceLinesFile string `yaml:"interface_lines_file"`
}

type ChecksConfig struct {
	InterfaceParent   string `yaml:"interface_parent"`
	InterfaceSelector string `yaml:"interface_selector"`
}

type AuditConfig struct {
	Workers          int    `yaml:"workers" validate:"min=0"`
	OutputDir        string `yaml:"output_dir" validate:"required"`
	ConnectTimeoutMS int    `yaml:"connect_timeout_ms" validate:"min=1"`
	CommandTimeoutMS int    `yaml:"command_timeout_ms" validate:"min=1"`
	ReportFile       string `yaml:"report_file" validate:"required"`
	JSONReportFile   string `yaml:"json_report_file"`
}

type SNMPConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Community string `yaml:"community" validate:"required_if=Enabled true"`
	Port      int    `yaml:"port" validate:"min=1,max=65535"`
	TimeoutMS int    `yaml:"timeout_ms" validate:"min=1"`
}

type APIConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Host           string `yaml:"host"`
	Port           int    `yaml:"port" validate:"min=1,max=65535"`
	JWTSecret      string `yaml:"jwt_secret" validate:"omitempty,min=32"`
	AdminUsername  string `yaml:"admin_username" validate:"required_with=JWTSecret"`
	AdminPassword  string `yaml:"admin_password" validate:"required_with=JWTSecret"`
	JWTExpiryHours int    `yaml:"jwt_expiry_hours" validate:"min=1"`
	ReadTimeoutMS  int    `yaml:"read_timeout_ms" validate:"min=1"`
	WriteTimeoutMS int    `yaml:"write_timeout_ms" validate:"min=1"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json terminal"`
}

// Credentials are shared by every device in the inventory.
type Credentials struct {
	Username string `validate:"required"`
	Password string `validate:"required"`
}

// Default returns the configuration used for keys the file leaves out.
func Default() *Config {
	return &Config{
		Inventory: InventoryConfig{
			HostsFile: "hosts.txt",
			Platform:  "huawei_vrp",
			Transport: "ssh2",
			Port:      22,
		},
		Inputs: InputsConfig{
			CommandsFile:       "commands.txt",
			GlobalLinesFile:    "global_lines_to_check.txt",
			InterfaceLinesFile: "interface_lines_to_check.txt",
		},
		Checks: ChecksConfig{
			InterfaceParent:   `^interface\s+`,
			InterfaceSelector: `port link-type (access|trunk|hybrid)`,
		},
		Audit: AuditConfig{
			Workers:          10,
			OutputDir:        "output",
			ConnectTimeoutMS: 10000,
			CommandTimeoutMS: 30000,
			ReportFile:       "output.xlsx",
		},
		SNMP: SNMPConfig{
			Community: "public",
			Port:      161,
			TimeoutMS: 2000,
		},
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           8080,
			AdminUsername:  "admin",
			JWTExpiryHours: 24,
			ReadTimeoutMS:  15000,
			WriteTimeoutMS: 15000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads configuration from file, loads optional .env files (next to the config, then
// the working directory), applies environment variable overrides and validates the result.
// Relative input and output paths are resolved against the config file's directory.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	baseDir := filepath.Dir(configPath)
	if err := loadDotEnv(filepath.Join(baseDir, ".env"), ".env"); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	cfg.resolvePaths(baseDir)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// loadDotEnv loads each existing file. Variables already set in the process win.
func loadDotEnv(paths ...string) error {
	seen := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err == nil {
			if seen[abs] {
				continue
			}
			seen[abs] = true
		}
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// applyEnvOverrides checks for environment variables with the SWAUDIT_ prefix.
func applyEnvOverrides(cfg *Config) error {
	cfg.Credentials.Username = os.Getenv(EnvPrefix + "USERNAME")
	cfg.Credentials.Password = os.Getenv(EnvPrefix + "PASSWORD")

	if v := os.Getenv(EnvPrefix + "HOSTS_FILE"); v != "" {
		cfg.Inventory.HostsFile = v
	}
	if v := os.Getenv(EnvPrefix + "PLATFORM"); v != "" {
		cfg.Inventory.Platform = v
	}
	if v := os.Getenv(EnvPrefix + "OUTPUT_DIR"); v != "" {
		cfg.Audit.OutputDir = v
	}
	if v := os.Getenv(EnvPrefix + "WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %sWORKERS %q: %w", EnvPrefix, v, err)
		}
		cfg.Audit.Workers = n
	}
	if v := os.Getenv(EnvPrefix + "SNMP_COMMUNITY"); v != "" {
		cfg.SNMP.Community = v
	}
	if v := os.Getenv(EnvPrefix + "API_JWT_SECRET"); v != "" {
		cfg.API.JWTSecret = v
	}
	if v := os.Getenv(EnvPrefix + "API_ADMIN_PASSWORD"); v != "" {
		cfg.API.AdminPassword = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.Logging.Level = strings.ToLower(v)
	}
	return nil
}

func (c *Config) resolvePaths(baseDir string) {
	for _, p := range []*string{
		&c.Inventory.HostsFile,
		&c.Inputs.CommandsFile,
		&c.Inputs.GlobalLinesFile,
		&c.Inputs.InterfaceLinesFile,
		&c.Audit.OutputDir,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(baseDir, *p)
		}
	}
}

// Validate checks every section and the credentials against their validation tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		validationErrs := &ValidationErrors{}
		for _, e := range fieldErrs {
			validationErrs.Errors = append(validationErrs.Errors, ValidationError{
				Field:   fieldPath(e.Namespace()),
				Message: formatValidationMessage(e),
			})
		}
		return validationErrs
	}
	return nil
}

// ReportPath returns the workbook path under the output directory.
func (a *AuditConfig) ReportPath() string {
	return joinUnder(a.OutputDir, a.ReportFile)
}

// JSONReportPath returns the JSON report path, or "" when disabled.
func (a *AuditConfig) JSONReportPath() string {
	if a.JSONReportFile == "" {
		return ""
	}
	return joinUnder(a.OutputDir, a.JSONReportFile)
}

func joinUnder(dir, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(dir, name)
}

// GetConnectTimeout returns the SSH connect timeout as a duration
func (a *AuditConfig) GetConnectTimeout() time.Duration {
	return time.Duration(a.ConnectTimeoutMS) * time.Millisecond
}

// GetCommandTimeout returns the per-command timeout as a duration
func (a *AuditConfig) GetCommandTimeout() time.Duration {
	return time.Duration(a.CommandTimeoutMS) * time.Millisecond
}

func (s *SNMPConfig) GetTimeout() time.Duration {
	return time.Duration(s.TimeoutMS) * time.Millisecond
}

// GetReadTimeout returns the read timeout as a duration
func (a *APIConfig) GetReadTimeout() time.Duration {
	return time.Duration(a.ReadTimeoutMS) * time.Millisecond
}

// GetWriteTimeout returns the write timeout as a duration
func (a *APIConfig) GetWriteTimeout() time.Duration {
	return time.Duration(a.WriteTimeoutMS) * time.Millisecond
}

// GetJWTExpiry returns JWT expiry as duration
func (a *APIConfig) GetJWTExpiry() time.Duration {
	return time.Duration(a.JWTExpiryHours) * time.Hour
}

// Addr returns the listen address.
func (a *APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return toSnakeCase(f.Name)
		}
		return name
	})
	return v
}

// fieldPath drops the root type from a validator namespace: "Config.audit.workers" -> "audit.workers".
func fieldPath(namespace string) string {
	_, rest, found := strings.Cut(namespace, ".")
	if !found {
		return namespace
	}
	return rest
}

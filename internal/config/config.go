package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DatabaseConfig Postgres connection settings for the registry mirror.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
	MaxConns int    `yaml:"max_conns"`
	MaxIdle  int    `yaml:"max_idle"`
}

// GetDSN returns the lib/pq connection string.
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// RedisConfig Redis connection settings for the run lock.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// PolicyConfig business rules that change between seasons.
type PolicyConfig struct {
	// Categories loaded from the accounts table; other accounts are ignored entirely.
	ActiveAccountTypes []string `yaml:"active_account_types"`
	// Categories that require waivers.
	EligibleAccountTypes []string `yaml:"eligible_account_types"`

	ParentMinGap      int `yaml:"parent_min_gap"`
	ParentMaxGap      int `yaml:"parent_max_gap"`
	CoParentMaxSpread int `yaml:"co_parent_max_spread"`
	// Two digit years above the pivot are 19xx, others 20xx.
	YearPivot int `yaml:"year_pivot"`
}

// Config waiver-reconciler configuration
type Config struct {
	Input struct {
		AccountsFile string `yaml:"accounts_file"`
		MembersFile  string `yaml:"members_file"`
		ParentsFile  string `yaml:"parents_file"`
		KeysFile     string `yaml:"keys_file"`
	} `yaml:"input"`

	Output struct {
		Dir               string `yaml:"dir"`
		AdultRecordsFile  string `yaml:"adult_records_file"`
		FamilyRecordsFile string `yaml:"family_records_file"`
		UnknownFile       string `yaml:"unknown_file"`
		MemberWaiversFile string `yaml:"member_waivers_file"`
		AttestationsFile  string `yaml:"attestations_file"`
		GuestWaiversFile  string `yaml:"guest_waivers_file"`
		ReportsDir        string `yaml:"reports_dir"`
		Workbook          bool   `yaml:"workbook"`
		Backup            bool   `yaml:"backup"`
	} `yaml:"output"`

	Policy PolicyConfig `yaml:"policy"`

	DBEnabled bool           `yaml:"db_enabled"`
	Database  DatabaseConfig `yaml:"database"`

	Lock struct {
		// "redis" or "file"
		Mode string        `yaml:"mode"`
		Key  string        `yaml:"key"`
		TTL  time.Duration `yaml:"ttl"`
	} `yaml:"lock"`
	Redis RedisConfig `yaml:"redis"`

	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// Load builds the configuration: defaults, then the optional YAML file named by
// WAIVER_CONFIG, then environment variables (a .env file in the working
// directory is loaded into the environment first).
func Load() (*Config, error) {
	if err := loadDotEnv(getEnv("WAIVER_ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := Defaults()

	if path := os.Getenv("WAIVER_CONFIG"); path != "" {
		if err := cfg.applyYAML(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	cfg := &Config{}

	cfg.Input.AccountsFile = "input/accounts.csv"
	cfg.Input.MembersFile = "input/members.csv"
	cfg.Input.ParentsFile = "input/parents.csv"
	cfg.Input.KeysFile = "input/keys.csv"

	cfg.Output.Dir = "output"
	cfg.Output.AdultRecordsFile = "adult_records.csv"
	cfg.Output.FamilyRecordsFile = "family_records.csv"
	cfg.Output.UnknownFile = "unknown_families.csv"
	cfg.Output.MemberWaiversFile = "member_waivers.csv"
	cfg.Output.AttestationsFile = "attestations.csv"
	cfg.Output.GuestWaiversFile = "guest_waivers.csv"
	cfg.Output.ReportsDir = "reports"
	cfg.Output.Workbook = true
	cfg.Output.Backup = true

	cfg.Policy = PolicyConfig{
		ActiveAccountTypes: []string{
			"Proprietary Member Annual",
			"Staff",
			"Special Leave with Alumni Passes",
		},
		EligibleAccountTypes: []string{
			"Proprietary Member Annual",
			"Special Leave with Alumni Passes",
		},
		ParentMinGap:      19,
		ParentMaxGap:      55,
		CoParentMaxSpread: 16,
		YearPivot:         26,
	}

	cfg.DBEnabled = false
	cfg.Database = DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "waivers",
		SSLMode:  "disable",
	}

	cfg.Lock.Mode = "file"
	cfg.Lock.Key = "waiver-reconciler:run-lock"
	cfg.Lock.TTL = 30 * time.Minute
	cfg.Redis.Addr = "localhost:6379"

	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

// OutputPath resolves a registry file name against the output directory.
func (c *Config) OutputPath(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Output.Dir, name)
}

// ReportPath resolves a report file name against the reports directory.
func (c *Config) ReportPath(name string) string {
	return filepath.Join(c.OutputPath(c.Output.ReportsDir), name)
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Input.AccountsFile == "" || c.Input.MembersFile == "" {
		return errors.New("accounts and members files are required")
	}
	if c.Lock.Mode != "redis" && c.Lock.Mode != "file" {
		return fmt.Errorf("unsupported lock mode: %s", c.Lock.Mode)
	}
	if c.Policy.ParentMinGap < 0 || c.Policy.ParentMaxGap < c.Policy.ParentMinGap {
		return fmt.Errorf("invalid parent age gap range: %d..%d", c.Policy.ParentMinGap, c.Policy.ParentMaxGap)
	}
	if len(c.Policy.EligibleAccountTypes) == 0 {
		return errors.New("at least one eligible account type is required")
	}
	return nil
}

func (c *Config) applyYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.Input.AccountsFile = getEnv("WAIVER_ACCOUNTS_FILE", c.Input.AccountsFile)
	c.Input.MembersFile = getEnv("WAIVER_MEMBERS_FILE", c.Input.MembersFile)
	c.Input.ParentsFile = getEnv("WAIVER_PARENTS_FILE", c.Input.ParentsFile)
	c.Input.KeysFile = getEnv("WAIVER_KEYS_FILE", c.Input.KeysFile)

	c.Output.Dir = getEnv("WAIVER_OUTPUT_DIR", c.Output.Dir)
	c.Output.ReportsDir = getEnv("WAIVER_REPORTS_DIR", c.Output.ReportsDir)
	c.Output.Workbook = parseBool(getEnv("WAIVER_WORKBOOK", ""), c.Output.Workbook)
	c.Output.Backup = parseBool(getEnv("WAIVER_BACKUP", ""), c.Output.Backup)

	if v := getEnv("WAIVER_ELIGIBLE_ACCOUNT_TYPES", ""); v != "" {
		c.Policy.EligibleAccountTypes = splitList(v)
	}
	if v := getEnv("WAIVER_ACTIVE_ACCOUNT_TYPES", ""); v != "" {
		c.Policy.ActiveAccountTypes = splitList(v)
	}
	c.Policy.YearPivot = parseInt(getEnv("WAIVER_YEAR_PIVOT", ""), c.Policy.YearPivot)

	c.DBEnabled = parseBool(getEnv("DB_ENABLED", ""), c.DBEnabled)
	c.Database.Host = getEnv("DB_HOST", c.Database.Host)
	c.Database.Port = parseInt(getEnv("DB_PORT", ""), c.Database.Port)
	c.Database.User = getEnv("DB_USER", c.Database.User)
	c.Database.Password = getEnv("DB_PASSWORD", c.Database.Password)
	c.Database.Database = getEnv("DB_NAME", c.Database.Database)
	c.Database.SSLMode = getEnv("DB_SSLMODE", c.Database.SSLMode)

	c.Lock.Mode = getEnv("LOCK_MODE", c.Lock.Mode)
	c.Lock.Key = getEnv("LOCK_KEY", c.Lock.Key)
	if v := getEnv("LOCK_TTL", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.Lock.TTL = d
		}
	}
	c.Redis.Addr = getEnv("REDIS_ADDR", c.Redis.Addr)
	c.Redis.Password = getEnv("REDIS_PASSWORD", c.Redis.Password)
	c.Redis.DB = parseInt(getEnv("REDIS_DB", ""), c.Redis.DB)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to stat env file %s: %w", path, err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func parseBool(s string, def bool) bool {
	if s == "" {
		return def
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return def
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

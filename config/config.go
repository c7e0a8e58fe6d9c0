package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// ErrUnknownCategory is returned when an operator asks for a category the
// marketplace does not have.
var ErrUnknownCategory = errors.New("unknown category")

// Config holds all crawler configuration. It is loaded once and passed by
// value into the pipeline.
type Config struct {
	Crawl    CrawlConfig
	Detail   DetailConfig
	Browser  BrowserConfig
	Category CategoryConfig
	Output   OutputConfig
	Postgres PostgresConfig

	LogDebug bool `envconfig:"LOG_DEBUG" default:"false"`
}

// CrawlConfig drives the list page and its "load more" expansion.
type CrawlConfig struct {
	BaseURL         string        `envconfig:"BASE_URL" default:"https://www.daangn.com/kr/buy-sell/"`
	TargetCount     int           `envconfig:"TARGET_COUNT" default:"1000"`
	PollInterval    time.Duration `envconfig:"POLL_INTERVAL" default:"200ms"`
	PollMax         time.Duration `envconfig:"POLL_MAX" default:"5s"`
	ListWaitTimeout time.Duration `envconfig:"LIST_WAIT_TIMEOUT" default:"10s"`
	ListRetries     int           `envconfig:"LIST_RETRIES" default:"3"`
}

// DetailConfig drives the detail enrichment stage.
type DetailConfig struct {
	Concurrency   int           `envconfig:"DETAIL_CONCURRENCY" default:"4"`
	Timeout       time.Duration `envconfig:"DETAIL_TIMEOUT" default:"15s"`
	WaitTimeout   time.Duration `envconfig:"DETAIL_WAIT_TIMEOUT" default:"5s"`
	FallbackDelay time.Duration `envconfig:"DETAIL_FALLBACK_DELAY" default:"200ms"`
	Delay         time.Duration `envconfig:"DETAIL_DELAY" default:"800ms"`
	FailureDelay  time.Duration `envconfig:"DETAIL_FAILURE_DELAY" default:"200ms"`
	RateLimit     time.Duration `envconfig:"RATE_LIMIT_INTERVAL" default:"0s"`
}

// BrowserConfig configures the headless browser.
type BrowserConfig struct {
	Headless  bool   `envconfig:"HEADLESS" default:"true"`
	ChromeBin string `envconfig:"CHROME_BIN" default:""`
}

// CategoryConfig lists the marketplace categories.
type CategoryConfig struct {
	File    string   `envconfig:"CATEGORY_FILE" default:""`
	Known   []string `envconfig:"KNOWN_CATEGORIES" default:"디지털기기,생활가전,가구/인테리어,생활/주방,유아동,유아도서,여성의류,여성잡화,남성패션/잡화,뷰티/미용,스포츠/레저,취미/게임/음반,도서,티켓/교환권,e쿠폰,가공식품,건강기능식품,반려동물용품,식물,기타 중고물품,삽니다"`
	Default []string `envconfig:"DEFAULT_CATEGORIES" default:"디지털기기,남성패션/잡화,티켓/교환권,e쿠폰"`
}

// OutputConfig configures the result sink.
type OutputConfig struct {
	ResultsDir string `envconfig:"RESULTS_DIR" default:"results"`
	SnapshotDB string `envconfig:"SNAPSHOT_DB" default:""` // "", postgres, or sqlite
	SQLitePath string `envconfig:"SQLITE_PATH" default:"./results/snapshot.db"`
}

// PostgresConfig holds the optional snapshot mirror connection settings.
type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" default:"localhost"`
	Port     string `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" default:"scraper"`
	Password string `envconfig:"POSTGRES_PASSWORD" default:"scraper123"`
	DB       string `envconfig:"POSTGRES_DB" default:"market_db"`
	SSLMode  string `envconfig:"POSTGRES_SSLMODE" default:"disable"`
}

// DSN returns the PostgreSQL connection string.
func (p PostgresConfig) DSN() string {
	return "host=" + p.Host +
		" port=" + p.Port +
		" user=" + p.User +
		" password=" + p.Password +
		" dbname=" + p.DB +
		" sslmode=" + p.SSLMode
}

// categoryFile is the YAML shape of CATEGORY_FILE.
type categoryFile struct {
	Known   []string `yaml:"known"`
	Default []string `yaml:"default"`
}

// Load reads the .env file and the environment and returns a populated Config.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: process env: %w", err)
	}

	if cfg.Category.File != "" {
		known, def, err := LoadCategoryFile(cfg.Category.File)
		if err != nil {
			return Config{}, err
		}
		if len(known) > 0 {
			cfg.Category.Known = known
		}
		if len(def) > 0 {
			cfg.Category.Default = def
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadCategoryFile reads known and default category lists from a YAML file.
func LoadCategoryFile(path string) (known, def []string, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("config: read category file: %w", err)
	}

	var f categoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("config: parse category file: %w", err)
	}
	return cleanList(f.Known), cleanList(f.Default), nil
}

func (c Config) validate() error {
	switch {
	case c.Crawl.TargetCount < 0:
		return fmt.Errorf("config: TARGET_COUNT must be >= 0, got %d", c.Crawl.TargetCount)
	case c.Crawl.PollInterval <= 0:
		return fmt.Errorf("config: POLL_INTERVAL must be positive")
	case c.Crawl.PollMax < c.Crawl.PollInterval:
		return fmt.Errorf("config: POLL_MAX (%v) is shorter than POLL_INTERVAL (%v)", c.Crawl.PollMax, c.Crawl.PollInterval)
	case c.Detail.Concurrency < 1:
		return fmt.Errorf("config: DETAIL_CONCURRENCY must be >= 1, got %d", c.Detail.Concurrency)
	case c.Detail.Timeout <= 0:
		return fmt.Errorf("config: DETAIL_TIMEOUT must be positive")
	}

	switch c.Output.SnapshotDB {
	case "", "postgres", "sqlite":
	default:
		return fmt.Errorf("config: SNAPSHOT_DB must be empty, postgres or sqlite, got %q", c.Output.SnapshotDB)
	}

	if _, err := ValidateCategories(c.Category.Default, c.Category.Known); err != nil {
		return fmt.Errorf("config: DEFAULT_CATEGORIES: %w", err)
	}
	return nil
}

// ValidateCategories trims the requested categories, drops blanks and checks
// each one against the known set.
func ValidateCategories(requested, known []string) ([]string, error) {
	knownSet := make(map[string]struct{}, len(known))
	for _, k := range known {
		knownSet[strings.TrimSpace(k)] = struct{}{}
	}

	out := cleanList(requested)
	var unknown []string
	for _, c := range out {
		if _, ok := knownSet[c]; !ok {
			unknown = append(unknown, c)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return nil, fmt.Errorf("%w: %s", ErrUnknownCategory, strings.Join(unknown, ", "))
	}
	return out, nil
}

// SplitCategories parses a comma separated --categories value.
func SplitCategories(raw string) []string {
	return cleanList(strings.Split(raw, ","))
}

func cleanList(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

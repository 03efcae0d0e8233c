// Package config loads planner settings from an optional YAML file overlaid
// with MVPPLAN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"mvpplanner/pkg/domain"
)

// Source drivers.
const (
	SourceSheets   = "sheets"
	SourceWorkbook = "workbook"
	SourceSQLite   = "sqlite"
	SourcePostgres = "postgres"
	SourceMemory   = "memory"
)

// Cache drivers.
const (
	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

// Config is the full planner configuration.
type Config struct {
	Organization string        `yaml:"organization"`
	HTTPAddr     string        `yaml:"http_addr"`
	Source       SourceConfig  `yaml:"source"`
	Cache        CacheConfig   `yaml:"cache"`
	Blob         BlobConfig    `yaml:"blob"`
	Logging      LoggingConfig `yaml:"logging"`
}

// SourceConfig selects where the nine collections are read from.
type SourceConfig struct {
	Driver       string            `yaml:"driver"`
	SheetID      string            `yaml:"sheet_id"`
	SheetBaseURL string            `yaml:"sheet_base_url"`
	SheetGIDs    map[string]string `yaml:"sheet_gids"`
	Timeout      time.Duration     `yaml:"timeout"`
	Retries      int               `yaml:"retries"`
	WorkbookPath string            `yaml:"workbook_path"`
	SQLitePath   string            `yaml:"sqlite_path"`
	PostgresDSN  string            `yaml:"postgres_dsn"`
}

// CacheConfig configures the collection cache.
type CacheConfig struct {
	Driver    string        `yaml:"driver"`
	RedisAddr string        `yaml:"redis_addr"`
	RedisDB   int           `yaml:"redis_db"`
	TTL       time.Duration `yaml:"ttl"`
}

// BlobConfig configures where export artifacts are written.
type BlobConfig struct {
	Driver      string `yaml:"driver"`
	FSRoot      string `yaml:"fs_root"`
	S3Bucket    string `yaml:"s3_bucket"`
	S3Region    string `yaml:"s3_region"`
	S3Endpoint  string `yaml:"s3_endpoint"`
	S3PathStyle bool   `yaml:"s3_path_style"`
}

// LoggingConfig configures the zap logger and the engine span trace.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// TraceFile receives engine spans as JSON lines when set.
	TraceFile string `yaml:"trace_file"`
}

// DefaultSheetID is the spreadsheet the planner was first deployed against.
const DefaultSheetID = "1CHs8cP3mDQkwG-XL-B7twFVukRxcB4umn9VX9ZK2VqM"

// DefaultSheetGIDs maps each collection to its tab in the default spreadsheet.
func DefaultSheetGIDs() map[string]string {
	return map[string]string{
		string(domain.CollectionClinicians):  "0",
		string(domain.CollectionMeasures):    "1838421790",
		string(domain.CollectionMVPs):        "467952052",
		string(domain.CollectionBenchmarks):  "322699637",
		string(domain.CollectionAssignments): "1879320597",
		string(domain.CollectionSelections):  "1724246569",
		string(domain.CollectionPerformance): "557443576",
		string(domain.CollectionWork):        "1972144134",
		string(domain.CollectionConfig):      "128453598",
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Organization: "Memorial of Converse",
		HTTPAddr:     ":8080",
		Source: SourceConfig{
			Driver:       SourceSheets,
			SheetID:      DefaultSheetID,
			SheetBaseURL: "https://docs.google.com",
			SheetGIDs:    DefaultSheetGIDs(),
			Timeout:      15 * time.Second,
			Retries:      2,
			WorkbookPath: "mvp-planner.xlsx",
			SQLitePath:   "mvpplanner.db",
		},
		Cache: CacheConfig{
			Driver:    CacheNone,
			RedisAddr: "localhost:6379",
			TTL:       60 * time.Second,
		},
		Blob: BlobConfig{
			Driver: "fs",
			FSRoot: "./exports",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads path when it exists, applies environment overrides and
// validates the result. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("MVPPLAN_ORGANIZATION", &c.Organization)
	str("MVPPLAN_HTTP_ADDR", &c.HTTPAddr)
	str("MVPPLAN_SOURCE_DRIVER", &c.Source.Driver)
	str("MVPPLAN_SHEET_ID", &c.Source.SheetID)
	str("MVPPLAN_SHEET_BASE_URL", &c.Source.SheetBaseURL)
	str("MVPPLAN_WORKBOOK_PATH", &c.Source.WorkbookPath)
	str("MVPPLAN_SQLITE_PATH", &c.Source.SQLitePath)
	str("MVPPLAN_POSTGRES_DSN", &c.Source.PostgresDSN)
	str("MVPPLAN_CACHE_DRIVER", &c.Cache.Driver)
	str("MVPPLAN_REDIS_ADDR", &c.Cache.RedisAddr)
	str("MVPPLAN_BLOB_DRIVER", &c.Blob.Driver)
	str("MVPPLAN_BLOB_FS_ROOT", &c.Blob.FSRoot)
	str("MVPPLAN_BLOB_S3_BUCKET", &c.Blob.S3Bucket)
	str("MVPPLAN_BLOB_S3_REGION", &c.Blob.S3Region)
	str("MVPPLAN_BLOB_S3_ENDPOINT", &c.Blob.S3Endpoint)
	str("MVPPLAN_LOG_LEVEL", &c.Logging.Level)
	str("MVPPLAN_LOG_FORMAT", &c.Logging.Format)
	str("MVPPLAN_TRACE_FILE", &c.Logging.TraceFile)

	if v, ok := lookup("MVPPLAN_BLOB_S3_PATH_STYLE"); ok && v != "" {
		c.Blob.S3PathStyle = strings.EqualFold(v, "true")
	}
	if v, ok := lookup("MVPPLAN_CACHE_TTL"); ok && v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("MVPPLAN_CACHE_TTL: %w", err)
		}
		c.Cache.TTL = ttl
	}
	if v, ok := lookup("MVPPLAN_REDIS_DB"); ok && v != "" {
		db, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MVPPLAN_REDIS_DB: %w", err)
		}
		c.Cache.RedisDB = db
	}
	for _, name := range domain.Collections() {
		key := "MVPPLAN_GID_" + strings.ToUpper(string(name))
		if v, ok := lookup(key); ok && v != "" {
			if c.Source.SheetGIDs == nil {
				c.Source.SheetGIDs = map[string]string{}
			}
			c.Source.SheetGIDs[string(name)] = v
		}
	}
	return nil
}

// Validate rejects unknown drivers and missing driver settings.
func (c *Config) Validate() error {
	switch c.Source.Driver {
	case SourceSheets:
		if c.Source.SheetID == "" {
			return errors.New("source: sheet_id required for sheets driver")
		}
		for _, name := range domain.Collections() {
			if c.Source.SheetGIDs[string(name)] == "" {
				return fmt.Errorf("source: no gid for collection %s", name)
			}
		}
	case SourceWorkbook:
		if c.Source.WorkbookPath == "" {
			return errors.New("source: workbook_path required for workbook driver")
		}
	case SourceSQLite:
		if c.Source.SQLitePath == "" {
			return errors.New("source: sqlite_path required for sqlite driver")
		}
	case SourcePostgres:
		if c.Source.PostgresDSN == "" {
			return errors.New("source: postgres_dsn required for postgres driver")
		}
	case SourceMemory:
	default:
		return fmt.Errorf("source: unknown driver %q", c.Source.Driver)
	}
	switch c.Cache.Driver {
	case CacheNone, CacheMemory, CacheRedis:
	default:
		return fmt.Errorf("cache: unknown driver %q", c.Cache.Driver)
	}
	switch c.Blob.Driver {
	case "fs", "memory", "s3":
	default:
		return fmt.Errorf("blob: unknown driver %q", c.Blob.Driver)
	}
	return nil
}

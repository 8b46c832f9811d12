package common

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// ConfigFileName is the base name for configuration files (without extension).
	ConfigFileName = "referral-intake"

	// MinRasterDPI is twice the 72 dpi PDF user space.
	MinRasterDPI = 144
)

// Config holds all application configuration
type Config struct {
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	OCR      OCRConfig      `mapstructure:"ocr" yaml:"ocr"`
	LLM      LLMConfig      `mapstructure:"llm" yaml:"llm"`
	Queue    QueueConfig    `mapstructure:"queue" yaml:"queue"`
	Ingest   IngestConfig   `mapstructure:"ingest" yaml:"ingest"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"` // text | json
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	URL              string        `mapstructure:"url" yaml:"url"`
	MaxConns         int32         `mapstructure:"max_conns" yaml:"max_conns"`
	MinConns         int32         `mapstructure:"min_conns" yaml:"min_conns"`
	MaxConnLifetime  time.Duration `mapstructure:"max_conn_lifetime" yaml:"max_conn_lifetime"`
	MaxConnIdleTime  time.Duration `mapstructure:"max_conn_idle_time" yaml:"max_conn_idle_time"`
	DialTimeout      time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	StatementTimeout time.Duration `mapstructure:"statement_timeout" yaml:"statement_timeout"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr       string        `mapstructure:"grpc_addr" yaml:"grpc_addr"`
	MetricsAddr    string        `mapstructure:"metrics_addr" yaml:"metrics_addr"`
	HealthInterval time.Duration `mapstructure:"health_interval" yaml:"health_interval"`
}

// OCRConfig holds normalizer and recognition engine configuration
type OCRConfig struct {
	Pdftoppm    string `mapstructure:"pdftoppm" yaml:"pdftoppm"`
	Tesseract   string `mapstructure:"tesseract" yaml:"tesseract"`
	Language    string `mapstructure:"language" yaml:"language"`
	TessdataDir string `mapstructure:"tessdata_dir" yaml:"tessdata_dir"`
	DPI         int    `mapstructure:"dpi" yaml:"dpi"`
	MaxPages    int    `mapstructure:"max_pages" yaml:"max_pages"`
	PSM         int    `mapstructure:"psm" yaml:"psm"`
	OEM         int    `mapstructure:"oem" yaml:"oem"`
	TempDir     string `mapstructure:"temp_dir" yaml:"temp_dir"`
}

// LLMConfig holds extraction backend configuration
type LLMConfig struct {
	Provider       string        `mapstructure:"provider" yaml:"provider"` // openai | vertex | none
	Model          string        `mapstructure:"model" yaml:"model"`
	APIKey         string        `mapstructure:"api_key" yaml:"api_key"`
	BaseURL        string        `mapstructure:"base_url" yaml:"base_url"`
	Temperature    float32       `mapstructure:"temperature" yaml:"temperature"`
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	VertexProject  string        `mapstructure:"vertex_project" yaml:"vertex_project"`
	VertexLocation string        `mapstructure:"vertex_location" yaml:"vertex_location"`
}

// QueueConfig sizes the background processor queue
type QueueConfig struct {
	Workers        int           `mapstructure:"workers" yaml:"workers"`
	Size           int           `mapstructure:"size" yaml:"size"`
	ProcessTimeout time.Duration `mapstructure:"process_timeout" yaml:"process_timeout"`
}

// IngestConfig configures hot-folder ingestion
type IngestConfig struct {
	WatchDirs   []string      `mapstructure:"watch_dirs" yaml:"watch_dirs"`
	Debounce    time.Duration `mapstructure:"debounce" yaml:"debounce"`
	InitialScan bool          `mapstructure:"initial_scan" yaml:"initial_scan"`
	UploaderID  string        `mapstructure:"uploader_id" yaml:"uploader_id"`
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{
			URL:             "sqlite://referral-intake.db",
			MaxConns:        20,
			MinConns:        5,
			MaxConnLifetime: 30 * time.Minute,
			MaxConnIdleTime: 5 * time.Minute,
			DialTimeout:     3 * time.Second,
		},
		Server: ServerConfig{
			GRPCAddr:       ":8080",
			MetricsAddr:    ":9090",
			HealthInterval: 15 * time.Second,
		},
		OCR: OCRConfig{
			Pdftoppm:  "pdftoppm",
			Tesseract: "tesseract",
			Language:  "eng",
			DPI:       300,
			PSM:       3,
		},
		LLM: LLMConfig{
			Provider:       "openai",
			Model:          "gpt-4o-mini",
			BaseURL:        "https://api.openai.com/v1",
			Timeout:        45 * time.Second,
			VertexLocation: "us-central1",
		},
		Queue: QueueConfig{
			Workers:        4,
			Size:           256,
			ProcessTimeout: 10 * time.Minute,
		},
		Ingest: IngestConfig{
			Debounce:    2 * time.Second,
			InitialScan: true,
			UploaderID:  "hotfolder",
		},
	}
}

// envBindings keeps the historical environment variable names working.
var envBindings = map[string]string{
	"log.level":                   "LOG_LEVEL",
	"log.format":                  "LOG_FORMAT",
	"database.url":                "DB_URL",
	"database.max_conns":          "DB_MAX_CONNS",
	"database.min_conns":          "DB_MIN_CONNS",
	"database.max_conn_lifetime":  "DB_MAX_CONN_LIFETIME",
	"database.max_conn_idle_time": "DB_MAX_CONN_IDLE_TIME",
	"database.dial_timeout":       "DB_DIAL_TIMEOUT",
	"database.statement_timeout":  "DB_STATEMENT_TIMEOUT",
	"server.grpc_addr":            "GRPC_ADDR",
	"server.metrics_addr":         "METRICS_ADDR",
	"ocr.tessdata_dir":            "TESSDATA_PREFIX",
	"ocr.language":                "OCR_LANG",
	"ocr.dpi":                     "OCR_DPI",
	"ocr.max_pages":               "OCR_MAX_PAGES",
	"llm.provider":                "LLM_PROVIDER",
	"llm.model":                   "OPENAI_MODEL",
	"llm.api_key":                 "OPENAI_API_KEY",
	"llm.base_url":                "OPENAI_BASE_URL",
	"llm.temperature":             "OPENAI_TEMPERATURE",
	"llm.timeout":                 "OPENAI_TIMEOUT",
	"llm.vertex_project":          "VERTEX_PROJECT",
	"llm.vertex_location":         "VERTEX_LOCATION",
	"queue.workers":               "QUEUE_WORKERS",
	"queue.size":                  "QUEUE_SIZE",
	"queue.process_timeout":       "QUEUE_PROCESS_TIMEOUT",
	"ingest.watch_dirs":           "INGEST_DIRS",
}

// Loader handles loading configuration from files, environment variables and defaults.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader with its own viper instance.
func NewLoader() *Loader {
	return &Loader{v: viper.New()}
}

// Viper exposes the underlying instance so commands can bind flags.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load reads configFile (or searches the default locations when empty),
// applies env overrides and validates the result.
func (l *Loader) Load(configFile string) (*Config, error) {
	if configFile != "" {
		if _, err := os.Stat(configFile); err != nil {
			return nil, NewAppError(CodeConfig, "config file not readable: "+configFile, err)
		}
		l.v.SetConfigFile(configFile)
	} else {
		l.v.SetConfigName(ConfigFileName)
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", ConfigFileName))
		}
	}

	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	l.v.AutomaticEnv()
	for key, env := range envBindings {
		_ = l.v.BindEnv(key, env)
	}
	l.setDefaults()

	if err := l.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *Loader) setDefaults() {
	d := DefaultConfig()
	l.v.SetDefault("log.level", d.Log.Level)
	l.v.SetDefault("log.format", d.Log.Format)

	l.v.SetDefault("database.url", d.Database.URL)
	l.v.SetDefault("database.max_conns", d.Database.MaxConns)
	l.v.SetDefault("database.min_conns", d.Database.MinConns)
	l.v.SetDefault("database.max_conn_lifetime", d.Database.MaxConnLifetime)
	l.v.SetDefault("database.max_conn_idle_time", d.Database.MaxConnIdleTime)
	l.v.SetDefault("database.dial_timeout", d.Database.DialTimeout)
	l.v.SetDefault("database.statement_timeout", d.Database.StatementTimeout)

	l.v.SetDefault("server.grpc_addr", d.Server.GRPCAddr)
	l.v.SetDefault("server.metrics_addr", d.Server.MetricsAddr)
	l.v.SetDefault("server.health_interval", d.Server.HealthInterval)

	l.v.SetDefault("ocr.pdftoppm", d.OCR.Pdftoppm)
	l.v.SetDefault("ocr.tesseract", d.OCR.Tesseract)
	l.v.SetDefault("ocr.language", d.OCR.Language)
	l.v.SetDefault("ocr.tessdata_dir", d.OCR.TessdataDir)
	l.v.SetDefault("ocr.dpi", d.OCR.DPI)
	l.v.SetDefault("ocr.max_pages", d.OCR.MaxPages)
	l.v.SetDefault("ocr.psm", d.OCR.PSM)
	l.v.SetDefault("ocr.oem", d.OCR.OEM)
	l.v.SetDefault("ocr.temp_dir", d.OCR.TempDir)

	l.v.SetDefault("llm.provider", d.LLM.Provider)
	l.v.SetDefault("llm.model", d.LLM.Model)
	l.v.SetDefault("llm.api_key", d.LLM.APIKey)
	l.v.SetDefault("llm.base_url", d.LLM.BaseURL)
	l.v.SetDefault("llm.temperature", d.LLM.Temperature)
	l.v.SetDefault("llm.timeout", d.LLM.Timeout)
	l.v.SetDefault("llm.vertex_project", d.LLM.VertexProject)
	l.v.SetDefault("llm.vertex_location", d.LLM.VertexLocation)

	l.v.SetDefault("queue.workers", d.Queue.Workers)
	l.v.SetDefault("queue.size", d.Queue.Size)
	l.v.SetDefault("queue.process_timeout", d.Queue.ProcessTimeout)

	l.v.SetDefault("ingest.watch_dirs", d.Ingest.WatchDirs)
	l.v.SetDefault("ingest.debounce", d.Ingest.Debounce)
	l.v.SetDefault("ingest.initial_scan", d.Ingest.InitialScan)
	l.v.SetDefault("ingest.uploader_id", d.Ingest.UploaderID)
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return NewAppError(CodeConfig, "DB_URL is required", ErrInvalidInput)
	}
	if c.OCR.DPI < MinRasterDPI {
		return NewAppError(CodeConfig, fmt.Sprintf("ocr.dpi must be at least %d", MinRasterDPI), ErrInvalidInput)
	}
	switch c.LLM.Provider {
	case "openai":
		if c.LLM.APIKey == "" {
			return NewAppError(CodeConfig, "OPENAI_API_KEY is required for the openai provider", ErrInvalidInput)
		}
	case "vertex":
		if c.LLM.VertexProject == "" || c.LLM.VertexLocation == "" {
			return NewAppError(CodeConfig, "VERTEX_PROJECT and VERTEX_LOCATION are required for the vertex provider", ErrInvalidInput)
		}
	case "none":
	default:
		return NewAppError(CodeConfig, fmt.Sprintf("unknown llm.provider %q", c.LLM.Provider), ErrInvalidInput)
	}
	if c.Queue.Workers < 1 {
		return NewAppError(CodeConfig, "queue.workers must be at least 1", ErrInvalidInput)
	}
	return nil
}

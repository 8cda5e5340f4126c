package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dgallion1/pageflow/internal/dom"
	"github.com/dgallion1/pageflow/internal/measure"
	"github.com/dgallion1/pageflow/internal/pageflow"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port string `yaml:"port"`

	// Auth
	APIKey string `yaml:"api_key"`

	// Page geometry
	MaxPageHeight float64 `yaml:"max_page_height"`
	Margin        float64 `yaml:"margin"`

	// Measurement
	ContentWidth float64 `yaml:"content_width"`
	FontSize     float64 `yaml:"font_size"`
	LineHeight   float64 `yaml:"line_height"`
	CacheSize    int     `yaml:"measure_cache_size"` // Measured blocks kept in memory.

	// Anchor classes
	Selectors dom.Selectors `yaml:"selectors"`

	// Editor session triggers
	LoadDelay       Duration `yaml:"load_delay"`
	StructuralDelay Duration `yaml:"structural_delay"`
	EditorPongWait  Duration `yaml:"editor_pong_wait"` // Idle editor connections close after this.

	// Worker pool
	WorkerCount  int `yaml:"worker_count"`
	MaxQueueSize int `yaml:"max_queue_size"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// Job state
	JobTTL Duration `yaml:"job_ttl"`

	// Stats window
	StatsWindow Duration `yaml:"stats_window"`

	// PDF
	PDFFallbackPdftotext bool `yaml:"pdf_fallback_pdftotext"`

	// Attendance portal used by the CLI
	PortalURL string `yaml:"portal_url"`

	// Path of the YAML file the values were read from, if any.
	File string `yaml:"-"`
}

// Duration reads "500ms" or "1h" style values from YAML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.String(), nil
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	geo := pageflow.DefaultOptions()
	m := measure.DefaultConfig()
	return Config{
		Port:                 "8090",
		MaxPageHeight:        geo.MaxPageHeight,
		Margin:               geo.Margin,
		ContentWidth:         m.ContentWidth,
		FontSize:             m.FontSize,
		LineHeight:           m.LineHeight,
		CacheSize:            m.CacheSize,
		Selectors:            dom.DefaultSelectors(),
		LoadDelay:            Duration{500 * time.Millisecond},
		StructuralDelay:      Duration{300 * time.Millisecond},
		EditorPongWait:       Duration{60 * time.Second},
		WorkerCount:          4,
		MaxQueueSize:         100,
		MaxUploadBytes:       52428800, // 50MB
		JobTTL:               Duration{time.Hour},
		StatsWindow:          Duration{time.Hour},
		PDFFallbackPdftotext: true,
		PortalURL:            "http://localhost:8069",
	}
}

// Load starts from Defaults, applies the YAML file named by PAGEFLOW_CONFIG
// when set, then applies environment variables.
func Load() (Config, error) {
	cfg := Defaults()

	if path := os.Getenv("PAGEFLOW_CONFIG"); path != "" {
		if err := cfg.readFile(path); err != nil {
			return cfg, err
		}
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.APIKey = envOr("PAGEFLOW_API_KEY", cfg.APIKey)

	cfg.MaxPageHeight = envFloat("MAX_PAGE_HEIGHT", cfg.MaxPageHeight)
	cfg.Margin = envFloat("PAGE_MARGIN", cfg.Margin)
	cfg.ContentWidth = envFloat("CONTENT_WIDTH", cfg.ContentWidth)
	cfg.FontSize = envFloat("FONT_SIZE", cfg.FontSize)
	cfg.LineHeight = envFloat("LINE_HEIGHT", cfg.LineHeight)
	cfg.CacheSize = envInt("MEASURE_CACHE_SIZE", cfg.CacheSize)

	cfg.Selectors.Header = envOr("HEADER_CLASS", cfg.Selectors.Header)
	cfg.Selectors.Footer = envOr("FOOTER_CLASS", cfg.Selectors.Footer)
	cfg.Selectors.Content = envOr("CONTENT_CLASS", cfg.Selectors.Content)
	cfg.Selectors.Page = envOr("PAGE_CLASS", cfg.Selectors.Page)

	cfg.LoadDelay.Duration = envDuration("LOAD_DELAY", cfg.LoadDelay.Duration)
	cfg.StructuralDelay.Duration = envDuration("STRUCTURAL_DELAY", cfg.StructuralDelay.Duration)
	cfg.EditorPongWait.Duration = envDuration("EDITOR_PONG_WAIT", cfg.EditorPongWait.Duration)

	cfg.WorkerCount = envInt("WORKER_COUNT", cfg.WorkerCount)
	cfg.MaxQueueSize = envInt("MAX_QUEUE_SIZE", cfg.MaxQueueSize)
	cfg.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.JobTTL.Duration = envDuration("JOB_TTL", cfg.JobTTL.Duration)
	cfg.StatsWindow.Duration = envDuration("STATS_WINDOW", cfg.StatsWindow.Duration)

	cfg.PDFFallbackPdftotext = envBool("PDF_FALLBACK_PDFTOTEXT", cfg.PDFFallbackPdftotext)
	cfg.PortalURL = envOr("PORTAL_URL", cfg.PortalURL)

	def := Defaults()
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = def.CacheSize
	}
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = def.WorkerCount
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = def.MaxQueueSize
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = def.MaxUploadBytes
	}
	if cfg.EditorPongWait.Duration <= 0 {
		cfg.EditorPongWait = def.EditorPongWait
	}
	if cfg.JobTTL.Duration <= 0 {
		cfg.JobTTL = def.JobTTL
	}
	if cfg.StatsWindow.Duration <= 0 {
		cfg.StatsWindow = def.StatsWindow
	}

	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	c.File = path
	return nil
}

// Validate checks the settings the server cannot start without.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("PAGEFLOW_API_KEY is required")
	}
	if c.MaxPageHeight <= 0 {
		return fmt.Errorf("max page height must be positive, got %v", c.MaxPageHeight)
	}
	if c.Margin < 0 || c.Margin >= c.MaxPageHeight {
		return fmt.Errorf("margin %v must be between 0 and the page height %v", c.Margin, c.MaxPageHeight)
	}
	if c.ContentWidth <= 0 || c.FontSize <= 0 || c.LineHeight <= 0 {
		return fmt.Errorf("content width, font size and line height must be positive")
	}
	s := c.Selectors
	if s.Header == "" || s.Footer == "" || s.Content == "" || s.Page == "" {
		return fmt.Errorf("all anchor classes must be set, got %+v", s)
	}
	if c.LoadDelay.Duration < 0 || c.StructuralDelay.Duration < 0 {
		return fmt.Errorf("trigger delays must not be negative")
	}
	return nil
}

// PageOptions returns the pagination geometry.
func (c Config) PageOptions() pageflow.Options {
	return pageflow.Options{MaxPageHeight: c.MaxPageHeight, Margin: c.Margin}
}

// MeasureConfig returns the measurement box model.
func (c Config) MeasureConfig() measure.Config {
	return measure.Config{
		ContentWidth: c.ContentWidth,
		FontSize:     c.FontSize,
		LineHeight:   c.LineHeight,
		CacheSize:    c.CacheSize,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

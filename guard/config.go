package guard

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/linkguard/classify"
	"github.com/hazyhaar/linkguard/report"
	"github.com/hazyhaar/linkguard/trigger"
)

// AppName names the XDG directories.
const AppName = "linkguard"

// Config is the linkguard configuration file.
type Config struct {
	Classifier ClassifierConfig `yaml:"classifier"`
	Store      StoreConfig      `yaml:"store"`
	Browser    BrowserConfig    `yaml:"browser"`
	Triggers   TriggerConfig    `yaml:"triggers"`
	Report     ReportConfig     `yaml:"report"`
	Control    ControlConfig    `yaml:"control"`
}

type ClassifierConfig struct {
	Endpoint string        `yaml:"endpoint"`
	Timeout  time.Duration `yaml:"timeout"`
	// MaxConcurrency caps in-flight classifications per scan; 0 is
	// unbounded.
	MaxConcurrency int `yaml:"max_concurrency"`
}

type StoreConfig struct {
	Path         string        `yaml:"path"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type BrowserConfig struct {
	Remote           string   `yaml:"remote"`
	Bin              string   `yaml:"bin"`
	Headless         *bool    `yaml:"headless"`
	Stealth          bool     `yaml:"stealth"`
	ResourceBlocking []string `yaml:"resource_blocking"`
}

type TriggerConfig struct {
	HoverDelay         time.Duration `yaml:"hover_delay"`
	HoverTeardownDelay time.Duration `yaml:"hover_teardown_delay"`
}

type ReportConfig struct {
	Dir    string `yaml:"dir"`
	Format string `yaml:"format"`
}

type ControlConfig struct {
	Addr string `yaml:"addr"`
}

// DataDir is where the store and reports live by default.
func DataDir() string { return filepath.Join(xdg.DataHome, AppName) }

// ConfigDir holds the configuration file.
func ConfigDir() string { return filepath.Join(xdg.ConfigHome, AppName) }

// DefaultConfigPath is the configuration file read when none is given.
func DefaultConfigPath() string { return filepath.Join(ConfigDir(), AppName+".yaml") }

// DefaultConfig returns a Config with every default applied.
func DefaultConfig() *Config {
	var c Config
	c.applyDefaults()
	return &c
}

// LoadConfigFile reads a YAML configuration file. A missing file at the
// default path yields the defaults.
func LoadConfigFile(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !explicit && os.IsNotExist(err) {
			return DefaultConfig(), nil
		}
		return nil, fmt.Errorf("guard: read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("guard: parse config %s: %w", path, err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Classifier.Endpoint == "" {
		c.Classifier.Endpoint = classify.DefaultEndpoint
	}
	if c.Classifier.Timeout <= 0 {
		c.Classifier.Timeout = classify.DefaultTimeout
	}
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(DataDir(), "flags.db")
	}
	if c.Store.PollInterval <= 0 {
		c.Store.PollInterval = 200 * time.Millisecond
	}
	if c.Browser.Headless == nil {
		on := true
		c.Browser.Headless = &on
	}
	if c.Browser.ResourceBlocking == nil {
		c.Browser.ResourceBlocking = []string{"images", "fonts", "media"}
	}
	if c.Triggers.HoverDelay <= 0 {
		c.Triggers.HoverDelay = trigger.HoverDelay
	}
	if c.Triggers.HoverTeardownDelay <= 0 {
		c.Triggers.HoverTeardownDelay = trigger.HoverTeardownDelay
	}
	if c.Report.Dir == "" {
		c.Report.Dir = filepath.Join(DataDir(), "reports")
	}
	if c.Report.Format == "" {
		c.Report.Format = string(report.FormatPDF)
	}
	if c.Control.Addr == "" {
		c.Control.Addr = "127.0.0.1:8766"
	}
}

// Validate checks values defaults cannot fix.
func (c *Config) Validate() error {
	if c.Classifier.MaxConcurrency < 0 {
		return fmt.Errorf("guard: classifier.max_concurrency must be >= 0")
	}
	if _, err := report.ParseFormat(c.Report.Format); err != nil {
		return fmt.Errorf("guard: %w", err)
	}
	return nil
}

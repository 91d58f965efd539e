package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"github.com/miekg/dns"
	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	// Scan target and batching
	Scan ScanConfig `yaml:"scan"`

	// Resolution backend
	Resolver ResolverConfig `yaml:"resolver"`

	// Scan history
	Storage StorageConfig `yaml:"storage"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`

	// Telemetry (OTEL)
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// ScanConfig holds the settings of a single scan run
type ScanConfig struct {
	Domain      string `yaml:"domain"`
	Wordlist    string `yaml:"wordlist"`
	Output      string `yaml:"output"`
	Concurrency int    `yaml:"concurrency"`
	Quiet       bool   `yaml:"quiet"`
	NoColor     bool   `yaml:"no_color"`
}

// ResolverConfig selects how candidate names are looked up
type ResolverConfig struct {
	Backend   string        `yaml:"backend"`   // system, dns
	Upstreams []string      `yaml:"upstreams"` // host:port, empty means resolv.conf (dns) or the OS stub (system)
	Timeout   time.Duration `yaml:"timeout"`   // per lookup
}

// StorageConfig holds scan history settings
type StorageConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DatabasePath  string `yaml:"database_path"`
	BusyTimeout   int    `yaml:"busy_timeout"`   // milliseconds
	WALMode       bool   `yaml:"wal_mode"`
	RetentionDays int    `yaml:"retention_days"` // prune older scans after each save, 0 keeps all
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level     string `yaml:"level"`      // debug, info, warn, error
	Format    string `yaml:"format"`     // json, text
	Output    string `yaml:"output"`     // stdout, stderr, file
	FilePath  string `yaml:"file_path"`  // if output=file
	AddSource bool   `yaml:"add_source"` // include source file/line
}

// TelemetryConfig holds OpenTelemetry settings
type TelemetryConfig struct {
	Enabled           bool   `yaml:"enabled"`
	ServiceName       string `yaml:"service_name"`
	ServiceVersion    string `yaml:"service_version"`
	PrometheusEnabled bool   `yaml:"prometheus_enabled"`
	PrometheusPort    int    `yaml:"prometheus_port"`
}

const (
	// BackendSystem resolves through Go's net.Resolver
	BackendSystem = "system"
	// BackendDNS sends A and AAAA queries with miekg/dns, one attempt each
	BackendDNS = "dns"

	// DefaultBackend is used when no backend is configured
	DefaultBackend = BackendDNS

	// DefaultConcurrency is the batch size used when none is configured
	DefaultConcurrency = 50
)

// Load loads the configuration from a YAML file
func Load(path string) (*Config, error) {
	// Read the file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	cfg.applyDefaults()

	return &cfg, nil
}

// ResolvConfPath is where DefaultUpstreams looks for nameservers
var ResolvConfPath = "/etc/resolv.conf"

// FallbackUpstreams are used when resolv.conf lists no nameserver
var FallbackUpstreams = []string{"1.1.1.1:53", "8.8.8.8:53"}

// DefaultUpstreams returns the servers used by the dns backend when none
// are configured: the nameservers of ResolvConfPath, or FallbackUpstreams.
func DefaultUpstreams() []string {
	if servers := UpstreamsFromResolvConf(ResolvConfPath); len(servers) > 0 {
		return servers
	}
	return append([]string(nil), FallbackUpstreams...)
}

// UpstreamsFromResolvConf returns the nameservers of a resolv.conf file as
// host:port pairs. A missing or unreadable file yields nil.
func UpstreamsFromResolvConf(path string) []string {
	cc, err := dns.ClientConfigFromFile(path)
	if err != nil || len(cc.Servers) == 0 {
		return nil
	}

	port := cc.Port
	if port == "" {
		port = "53"
	}

	servers := make([]string, 0, len(cc.Servers))
	for _, server := range cc.Servers {
		servers = append(servers, net.JoinHostPort(server, port))
	}
	return servers
}

// LoadWithDefaults returns a configuration holding only default values
func LoadWithDefaults() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults sets default values for unset configuration fields
func (c *Config) applyDefaults() {
	if c.Scan.Concurrency == 0 {
		c.Scan.Concurrency = DefaultConcurrency
	}

	// Resolver defaults
	if c.Resolver.Backend == "" {
		c.Resolver.Backend = DefaultBackend
	}
	if c.Resolver.Backend == BackendDNS && len(c.Resolver.Upstreams) == 0 {
		c.Resolver.Upstreams = DefaultUpstreams()
	}
	if c.Resolver.Timeout == 0 {
		c.Resolver.Timeout = 5 * time.Second
	}

	// Storage defaults
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "./domain-hunter.db"
	}
	if c.Storage.BusyTimeout == 0 {
		c.Storage.BusyTimeout = 5000
	}

	// Logging defaults: errors land in a side file so they never interleave
	// with the progress bar.
	if c.Logging.Level == "" {
		c.Logging.Level = "error"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "file"
	}
	if c.Logging.Output == "file" && c.Logging.FilePath == "" {
		c.Logging.FilePath = "scanner_errors.log"
	}

	// Telemetry defaults
	if c.Telemetry.ServiceName == "" {
		c.Telemetry.ServiceName = "domain-hunter"
	}
	if c.Telemetry.ServiceVersion == "" {
		c.Telemetry.ServiceVersion = "dev"
	}
	if c.Telemetry.PrometheusPort == 0 {
		c.Telemetry.PrometheusPort = 9090
	}
}

// ValidateStorage checks the scan history settings on their own, for
// commands that only read history
func (c *Config) ValidateStorage() error {
	if c.Storage.Enabled && c.Storage.DatabasePath == "" {
		return fmt.Errorf("storage.database_path must be set when storage is enabled")
	}
	if c.Storage.RetentionDays < 0 {
		return fmt.Errorf("storage.retention_days cannot be negative")
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate scan config
	if c.Scan.Domain == "" {
		return fmt.Errorf("scan.domain cannot be empty")
	}
	if c.Scan.Wordlist == "" {
		return fmt.Errorf("scan.wordlist cannot be empty")
	}
	if c.Scan.Concurrency <= 0 {
		return fmt.Errorf("invalid concurrency: %d (must be a positive integer)", c.Scan.Concurrency)
	}

	// Validate resolver
	switch c.Resolver.Backend {
	case BackendSystem:
	case BackendDNS:
		if len(c.Resolver.Upstreams) == 0 {
			return fmt.Errorf("resolver backend %q needs at least one upstream", BackendDNS)
		}
	default:
		return fmt.Errorf("invalid resolver backend: %s (must be system or dns)", c.Resolver.Backend)
	}
	if c.Resolver.Timeout < 0 {
		return fmt.Errorf("resolver.timeout cannot be negative")
	}

	if err := c.ValidateStorage(); err != nil {
		return err
	}

	// Validate logging level
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	// Validate logging format
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		return fmt.Errorf("invalid logging format: %s (must be json or text)", c.Logging.Format)
	}

	// Validate logging output
	validOutputs := map[string]bool{
		"stdout": true,
		"stderr": true,
		"file":   true,
	}
	if !validOutputs[c.Logging.Output] {
		return fmt.Errorf("invalid logging output: %s (must be stdout, stderr, or file)", c.Logging.Output)
	}
	if c.Logging.Output == "file" && c.Logging.FilePath == "" {
		return fmt.Errorf("logging.file_path must be set when output is 'file'")
	}

	return nil
}

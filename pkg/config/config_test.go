package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

// withResolvConf points DefaultUpstreams at path for the duration of t
func withResolvConf(t *testing.T, path string) {
	t.Helper()
	prev := ResolvConfPath
	ResolvConfPath = path
	t.Cleanup(func() { ResolvConfPath = prev })
}

func TestLoad(t *testing.T) {
	cfg, err := Load("testdata/config.yml")
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load() returned nil config")
	}

	// Test that values from file are loaded
	if cfg.Scan.Domain != "example.com" {
		t.Errorf("Expected domain example.com, got %s", cfg.Scan.Domain)
	}
	if cfg.Scan.Concurrency != 25 {
		t.Errorf("Expected concurrency 25, got %d", cfg.Scan.Concurrency)
	}
	if cfg.Resolver.Backend != BackendDNS {
		t.Errorf("Expected backend dns, got %s", cfg.Resolver.Backend)
	}
	if len(cfg.Resolver.Upstreams) != 1 || cfg.Resolver.Upstreams[0] != "9.9.9.9:53" {
		t.Errorf("Expected upstreams [9.9.9.9:53], got %v", cfg.Resolver.Upstreams)
	}
	if cfg.Resolver.Timeout != 2*time.Second {
		t.Errorf("Expected timeout 2s, got %s", cfg.Resolver.Timeout)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Expected log level debug, got %s", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Expected log format json, got %s", cfg.Logging.Format)
	}

	if cfg.Storage.RetentionDays != 30 {
		t.Errorf("Expected retention 30 days, got %d", cfg.Storage.RetentionDays)
	}

	// Test that defaults are applied
	if cfg.Storage.DatabasePath != "./domain-hunter.db" {
		t.Errorf("Expected default database path, got %s", cfg.Storage.DatabasePath)
	}
	if cfg.Telemetry.ServiceName != "domain-hunter" {
		t.Errorf("Expected default service name, got %s", cfg.Telemetry.ServiceName)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on loaded config failed: %v", err)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	withResolvConf(t, "testdata/resolv.conf")

	cfg := LoadWithDefaults()
	if cfg == nil {
		t.Fatal("LoadWithDefaults() returned nil")
	}

	if cfg.Scan.Concurrency != DefaultConcurrency {
		t.Errorf("Expected default concurrency %d, got %d", DefaultConcurrency, cfg.Scan.Concurrency)
	}
	if cfg.Resolver.Backend != BackendDNS {
		t.Errorf("Expected default backend dns, got %s", cfg.Resolver.Backend)
	}
	if diff := cmp.Diff([]string{"10.0.0.53:53", "[2001:db8::53]:53"}, cfg.Resolver.Upstreams); diff != "" {
		t.Errorf("default upstreams mismatch (-want +got):\n%s", diff)
	}
	if cfg.Resolver.Timeout != 5*time.Second {
		t.Errorf("Expected default timeout 5s, got %s", cfg.Resolver.Timeout)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Expected default log level error, got %s", cfg.Logging.Level)
	}
	if cfg.Logging.FilePath != "scanner_errors.log" {
		t.Errorf("Expected default log file scanner_errors.log, got %s", cfg.Logging.FilePath)
	}
}

func TestApplyDefaults_DNSBackendGetsUpstreams(t *testing.T) {
	withResolvConf(t, "testdata/resolv-empty.conf")

	cfg := &Config{Resolver: ResolverConfig{Backend: BackendDNS}}
	cfg.applyDefaults()

	if diff := cmp.Diff(FallbackUpstreams, cfg.Resolver.Upstreams); diff != "" {
		t.Errorf("fallback upstreams mismatch (-want +got):\n%s", diff)
	}
}

func TestApplyDefaults_SystemBackendKeepsStubResolver(t *testing.T) {
	cfg := &Config{Resolver: ResolverConfig{Backend: BackendSystem}}
	cfg.applyDefaults()

	if len(cfg.Resolver.Upstreams) != 0 {
		t.Errorf("Expected no upstreams for the system backend, got %v", cfg.Resolver.Upstreams)
	}
}

func TestUpstreamsFromResolvConf(t *testing.T) {
	tests := []struct {
		name string
		path string
		want []string
	}{
		{"nameservers", "testdata/resolv.conf", []string{"10.0.0.53:53", "[2001:db8::53]:53"}},
		{"no nameserver", "testdata/resolv-empty.conf", nil},
		{"missing file", filepath.Join(t.TempDir(), "absent.conf"), nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := UpstreamsFromResolvConf(tt.path)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("UpstreamsFromResolvConf(%q) mismatch (-want +got):\n%s", tt.path, diff)
			}
		})
	}
}

func TestDefaultUpstreams_DoesNotAliasFallback(t *testing.T) {
	withResolvConf(t, "testdata/resolv-empty.conf")

	got := DefaultUpstreams()
	got[0] = "changed"
	if FallbackUpstreams[0] == "changed" {
		t.Error("DefaultUpstreams() returned the shared fallback slice")
	}
}

func TestApplyDefaults_UpstreamsImplyDNSBackend(t *testing.T) {
	cfg := &Config{Resolver: ResolverConfig{Upstreams: []string{"127.0.0.1:5353"}}}
	cfg.applyDefaults()

	if cfg.Resolver.Backend != BackendDNS {
		t.Errorf("Expected backend dns, got %s", cfg.Resolver.Backend)
	}
}

func validConfig() *Config {
	cfg := LoadWithDefaults()
	cfg.Scan.Domain = "example.com"
	cfg.Scan.Wordlist = "words.txt"
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		mutate  func(*Config)
		name    string
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "empty domain",
			mutate:  func(c *Config) { c.Scan.Domain = "" },
			wantErr: true,
		},
		{
			name:    "empty wordlist",
			mutate:  func(c *Config) { c.Scan.Wordlist = "" },
			wantErr: true,
		},
		{
			name:    "zero concurrency",
			mutate:  func(c *Config) { c.Scan.Concurrency = 0 },
			wantErr: true,
		},
		{
			name:    "negative concurrency",
			mutate:  func(c *Config) { c.Scan.Concurrency = -3 },
			wantErr: true,
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.Resolver.Backend = "doh" },
			wantErr: true,
		},
		{
			name: "dns backend without upstreams",
			mutate: func(c *Config) {
				c.Resolver.Backend = BackendDNS
				c.Resolver.Upstreams = nil
			},
			wantErr: true,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "invalid" },
			wantErr: true,
		},
		{
			name:    "invalid log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: true,
		},
		{
			name: "file output without path",
			mutate: func(c *Config) {
				c.Logging.Output = "file"
				c.Logging.FilePath = ""
			},
			wantErr: true,
		},
		{
			name: "storage enabled without path",
			mutate: func(c *Config) {
				c.Storage.Enabled = true
				c.Storage.DatabasePath = ""
			},
			wantErr: true,
		},
		{
			name:    "negative retention",
			mutate:  func(c *Config) { c.Storage.RetentionDays = -1 },
			wantErr: true,
		},
		{
			name:    "system backend",
			mutate:  func(c *Config) { c.Resolver.Backend = BackendSystem },
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateStorage_IgnoresScanSettings(t *testing.T) {
	cfg := LoadWithDefaults()
	cfg.Storage.Enabled = true

	if err := cfg.ValidateStorage(); err != nil {
		t.Errorf("ValidateStorage() without domain or wordlist failed: %v", err)
	}
	if err := cfg.Validate(); err == nil {
		t.Error("Validate() should still require a domain")
	}

	cfg.Storage.DatabasePath = ""
	if err := cfg.ValidateStorage(); err == nil {
		t.Error("ValidateStorage() should reject an enabled store without a path")
	}
}

func TestLoadNonExistentFile(t *testing.T) {
	_, err := Load("nonexistent.yml")
	if err == nil {
		t.Error("Expected error when loading non-existent file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.yml")
	if err := os.WriteFile(path, []byte("scan: [unterminated"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := Load(path); err == nil {
		t.Error("Expected error when loading invalid YAML")
	}
}

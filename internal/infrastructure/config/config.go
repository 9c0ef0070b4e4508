package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"replay-proxy/internal/domain"
)

type Config struct {
	Addr            string
	LogLevel        string
	CORSAllowOrigin string
	InsecureTLS     bool
	// DefaultTarget, when set and no endpoint file is given, becomes a catch-all endpoint.
	DefaultTarget string
	DefaultRecord bool
	BodyMaxBytes  int
	// Artificial delay applied to replayed responses (ms)
	ResponseDelayMs int
	// Optional range: if set, each delay is random in [min,max]
	ResponseDelayMinMs int
	ResponseDelayMaxMs int
	// Recording output
	ScenarioOutputDir string
	WriteScenarios    bool
	IgnoreQuery       bool
	// Optional TLS listener serving the same handler (HTTP/2 enabled by net/http)
	TLSAddr     string
	TLSCertFile string
	TLSKeyFile  string
	// Without cert files, leaves are issued per host from TLSCACert/TLSCAKey or,
	// with TLSDevCerts, from a generated CA written to TLSCAOut.
	TLSCACert   string
	TLSCAKey    string
	TLSDevCerts bool
	TLSCAOut    string

	ConfigFile string
	Endpoints  []domain.Endpoint
}

// fileConfig is the YAML document referenced by CONFIG_FILE.
type fileConfig struct {
	Endpoints []domain.Endpoint `yaml:"endpoints"`
}

func FromEnv() Config {
	cfg := Config{
		Addr:            getEnv("ADDR", ":9091"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		CORSAllowOrigin: getEnv("CORS_ALLOW_ORIGIN", "*"),
	}
	cfg.InsecureTLS = getEnvBool("INSECURE_TLS", false)
	cfg.DefaultTarget = getEnv("DEFAULT_TARGET", "")
	cfg.DefaultRecord = getEnvBool("DEFAULT_RECORD", true)
	cfg.BodyMaxBytes = getEnvInt("BODY_MAX_BYTES", 64<<20) // 64MB
	cfg.ResponseDelayMs, cfg.ResponseDelayMinMs, cfg.ResponseDelayMaxMs = parseDelay(os.Getenv("RESPONSE_DELAY_MS"))
	cfg.ScenarioOutputDir = getEnv("SCENARIO_OUTPUT_DIR", "scenarios")
	cfg.WriteScenarios = getEnvBool("WRITE_SCENARIOS", false)
	cfg.IgnoreQuery = getEnvBool("IGNORE_QUERY", false)
	cfg.TLSAddr = getEnv("TLS_ADDR", ":9443")
	cfg.TLSCertFile = getEnv("TLS_CERT_FILE", "")
	cfg.TLSKeyFile = getEnv("TLS_KEY_FILE", "")
	cfg.TLSCACert = getEnv("TLS_CA_CERT", "")
	cfg.TLSCAKey = getEnv("TLS_CA_KEY", "")
	cfg.TLSDevCerts = getEnvBool("TLS_DEV_CERTS", false)
	cfg.TLSCAOut = getEnv("TLS_CA_OUT", "replay-proxy-ca.pem")
	cfg.ConfigFile = getEnv("CONFIG_FILE", "")
	return cfg
}

// TLSEnabled reports whether the TLS listener has a certificate source.
func (c Config) TLSEnabled() bool {
	return (c.TLSCertFile != "" && c.TLSKeyFile != "") ||
		(c.TLSCACert != "" && c.TLSCAKey != "") ||
		c.TLSDevCerts
}

// Load reads the environment, then the endpoint file when CONFIG_FILE is set.
// Without a file, DEFAULT_TARGET yields a single catch-all endpoint.
func Load() (Config, error) {
	cfg := FromEnv()
	if cfg.ConfigFile != "" {
		eps, err := LoadEndpoints(cfg.ConfigFile)
		if err != nil {
			return cfg, err
		}
		cfg.Endpoints = eps
	}
	if len(cfg.Endpoints) == 0 && cfg.DefaultTarget != "" {
		cfg.Endpoints = []domain.Endpoint{{
			Key:     "default",
			Prefix:  "/",
			Target:  cfg.DefaultTarget,
			Forward: true,
			Record:  cfg.DefaultRecord,
		}}
	}
	return cfg, validateEndpoints(cfg.Endpoints)
}

// LoadEndpoints parses the endpoint list of a YAML config file.
func LoadEndpoints(path string) ([]domain.Endpoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	for i := range fc.Endpoints {
		if fc.Endpoints[i].Prefix == "" {
			fc.Endpoints[i].Prefix = "/" + fc.Endpoints[i].Key
		}
	}
	return fc.Endpoints, nil
}

func validateEndpoints(eps []domain.Endpoint) error {
	seen := make(map[string]bool, len(eps))
	for _, ep := range eps {
		if ep.Key == "" {
			return fmt.Errorf("config: endpoint without key (prefix %q)", ep.Prefix)
		}
		if seen[ep.Key] {
			return fmt.Errorf("config: duplicate endpoint key %q", ep.Key)
		}
		seen[ep.Key] = true
		if !strings.HasPrefix(ep.Prefix, "/") {
			return fmt.Errorf("config: endpoint %q: prefix must start with /", ep.Key)
		}
		if ep.Forward {
			u, err := url.Parse(ep.Target)
			if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
				return fmt.Errorf("config: endpoint %q: forwarding needs an http(s) target, got %q", ep.Key, ep.Target)
			}
		}
	}
	return nil
}

// parseDelay accepts "250" or "100-500"; a reversed range is swapped.
func parseDelay(raw string) (fixed, min, max int) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, 0, 0
	}
	if strings.Contains(raw, "-") {
		parts := strings.SplitN(raw, "-", 2)
		lo, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
		hi, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err1 != nil || err2 != nil {
			return 0, 0, 0
		}
		if hi < lo {
			lo, hi = hi, lo
		}
		return 0, lo, hi
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, 0, 0
	}
	return n, 0, 0
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	}
	return def
}

// Package config handles the parsing and validation of application configuration
// from command-line arguments and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/woozymasta/beacon/internal/logger"
	"github.com/woozymasta/beacon/internal/vars"
)

// ErrNoAuthToken is returned when the admin token is not configured.
var ErrNoAuthToken = errors.New("required flag `-t, --auth-token' or environment variable `BEACON_AUTH_TOKEN' was not specified")

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Server    Server        `group:"Server Options" env-namespace:"BEACON"`
	Registry  Registry      `group:"Registry Options" namespace:"registry" env-namespace:"BEACON_REGISTRY"`
	Verify    Verify        `group:"Verify Options" namespace:"verify" env-namespace:"BEACON_VERIFY"`
	Filter    Filter        `group:"Filter Options" namespace:"filter" env-namespace:"BEACON_FILTER"`
	Storage   Storage       `group:"Storage Options" namespace:"db" env-namespace:"BEACON_DB"`
	GeoIP     GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"BEACON_GEOIP"`
	RateLimit RateLimit     `group:"Rate Limit Options" namespace:"rate-limit" env-namespace:"BEACON_RATE_LIMIT"`
	Logger    logger.Config `group:"Logger Options" namespace:"log" env-namespace:"BEACON_LOG"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Server holds web server configuration.
type Server struct {
	// betteralign:ignore

	Address     string `short:"l" long:"address" env:"LISTEN_ADDRESS" description:"Server listen address" default:":8080"`
	AuthToken   string `short:"t" long:"auth-token" env:"AUTH_TOKEN" description:"Admin authentication token"`
	MaxBodySize int64  `long:"max-body-size" env:"MAX_BODY_SIZE" description:"Max body size for registration requests (mod info)" default:"2097152"`
	TrustProxy  bool   `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`
}

// Registry holds server list lifecycle configuration.
type Registry struct {
	// betteralign:ignore

	Liveness      time.Duration `long:"liveness" env:"LIVENESS" description:"Remove servers without a heartbeat for this long" default:"30s"`
	SweepInterval time.Duration `long:"sweep-interval" env:"SWEEP_INTERVAL" description:"How often stale servers are evicted" default:"5s"`
	Workers       int           `long:"workers" env:"WORKERS" description:"Sighting journal writers" default:"4"`
	QueueSize     int           `long:"queue-size" env:"QUEUE_SIZE" description:"Sighting journal queue capacity" default:"1000"`
}

// Verify holds registration callback configuration.
type Verify struct {
	// betteralign:ignore

	Timeout time.Duration `long:"timeout" env:"TIMEOUT" description:"Verification callback timeout" default:"5s"`
	MaxBody int64         `long:"max-body" env:"MAX_BODY" description:"Max bytes read from the verification response" default:"256"`
}

// Filter holds text sanitizer configuration.
type Filter struct {
	// betteralign:ignore

	WordsFile   string `long:"words-file" env:"WORDS_FILE" description:"Extra profane words, one per line"`
	Placeholder string `long:"placeholder" env:"PLACEHOLDER" description:"Character used to mask profane words" default:"*"`
}

// Storage holds sighting journal configuration.
type Storage struct {
	// betteralign:ignore

	Path          string        `short:"d" long:"path" env:"PATH" description:"Path to SQLite sighting journal" default:"beacon.db"`
	PruneOlder    time.Duration `long:"prune-older-than" description:"Delete sightings not seen within duration and exit"`
	CheckAll      bool          `long:"check-all" description:"Re-verify every sighting, delete those failing the handshake and exit"`
	GenerateCount int           `long:"gen-fake-data" hidden:"true"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file" default:"beacon.mmdb"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
}

// RateLimit holds per-IP limits for the game server endpoints.
type RateLimit struct {
	// betteralign:ignore

	HardLimitCount int           `long:"hard-count" env:"HARD_COUNT" description:"Hard IP limit: requests count" default:"60"`
	HardLimitWin   time.Duration `long:"hard-window" env:"HARD_WINDOW" description:"Hard IP limit: window duration" default:"1m"`
}

// Parse reads the configuration from os.Args and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	cfg, err := ParseArgs(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		if errors.Is(err, ErrNoAuthToken) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}

	if cfg.Version {
		vars.Fprint(os.Stdout)
		os.Exit(0)
	}

	return cfg
}

// ParseArgs parses args into a Config and validates it.
func ParseArgs(args []string) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if cfg.Version {
		return &cfg, nil
	}

	if cfg.Server.AuthToken == "" {
		return nil, ErrNoAuthToken
	}

	if cfg.Registry.Liveness <= 0 {
		return nil, fmt.Errorf("registry liveness must be positive, got %s", cfg.Registry.Liveness)
	}

	if cfg.Registry.SweepInterval <= 0 || cfg.Registry.SweepInterval > cfg.Registry.Liveness {
		cfg.Registry.SweepInterval = cfg.Registry.Liveness
	}

	if cfg.Registry.Workers < 1 {
		cfg.Registry.Workers = 1
	}

	if cfg.Filter.Placeholder == "" {
		cfg.Filter.Placeholder = "*"
	}

	return &cfg, nil
}

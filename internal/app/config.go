package app

import (
	"os"
	"path/filepath"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Backend names.
const (
	BackendGitHub = "github"
	BackendMemory = "memory"
)

// Config holds the complete application configuration, loadable from
// environment variables (SHOPADMIN_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"127.0.0.1:5000" usage:"Admin server listen address"`
	SessionFile string `usage:"Path of the saved repository connection" flag:"session-file"`
	Backend     string `default:"github" usage:"Document backend: github or memory"`
	GitHub      GitHubConfig
	Graceful    GracefulConfig
}

// GitHubConfig controls the Contents API client and image URLs.
type GitHubConfig struct {
	APIURL       string        `default:"https://api.github.com" usage:"GitHub API base URL" flag:"github-api-url"`
	RawHost      string        `default:"raw.githubusercontent.com" usage:"Host serving raw repository files" flag:"github-raw-host"`
	Branch       string        `default:"main" usage:"Branch holding the catalog"`
	ReadTimeout  time.Duration `default:"15s" usage:"Timeout of a single read" flag:"read-timeout"`
	WriteTimeout time.Duration `default:"30s" usage:"Timeout of a single write" flag:"write-timeout"`
	UploadDelay  time.Duration `default:"300ms" usage:"Pause between image uploads" flag:"upload-delay"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"1s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"35s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML config
// files, then fills path defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "SHOPADMIN",
		Files:     []string{"config.yaml", "/etc/shopadmin/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) finish() error {
	switch c.Backend {
	case BackendGitHub, BackendMemory:
	default:
		return errors.Errorf("unknown backend %q", c.Backend)
	}
	if c.SessionFile == "" {
		path, err := DefaultSessionFile()
		if err != nil {
			return err
		}
		c.SessionFile = path
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "127.0.0.1:5000" {
		c.Addr = "0.0.0.0:" + port
	}
	return nil
}

// DefaultSessionFile is <user config dir>/vpecom/session.toml.
func DefaultSessionFile() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", errors.Wrap(err, "user config dir")
	}
	return filepath.Join(dir, "vpecom", "session.toml"), nil
}

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"github.com/ALT-F4-LLC/jmigrate/internal/migrate"
	"github.com/ALT-F4-LLC/jmigrate/internal/mysql"
)

const (
	dbFileName     = "jobs.db"
	configFileName = "config.yaml"
)

// Config holds resolved configuration for the state directory, the site and
// its database.
type Config struct {
	StateDir   string `json:"state_dir"`            // resolved .jmigrate directory path
	DBPath     string `json:"db_path"`              // full path to jobs.db
	EnvVarSet  bool   `json:"env_var_set"`          // whether JMIGRATE_PATH was used
	ConfigFile string `json:"config_file,omitempty"` // YAML file that was read, if any

	Root              string `json:"root"`
	ArchiveDir        string `json:"archive_dir"`
	DSN               string `json:"-"`
	TablePrefix       string `json:"table_prefix"`
	ContentDir        string `json:"content_dir"`
	ProtectedFile     string `json:"protected_file"`
	TempDir           string `json:"temp_dir"`
	DelegateBin       string `json:"delegate_bin,omitempty"`
	DelegateThreshold int64  `json:"delegate_threshold"`
	ReadSize          int    `json:"read_size"`
	HexDiagnostics    bool   `json:"hex_diagnostics"`
	Listen            string `json:"listen"`
}

// fileConfig is the YAML layout of the config file. Sizes accept humanized
// values such as "2GB".
type fileConfig struct {
	Root              string `yaml:"root"`
	ArchiveDir        string `yaml:"archive_dir"`
	DSN               string `yaml:"dsn"`
	TablePrefix       string `yaml:"table_prefix"`
	ContentDir        string `yaml:"content_dir"`
	ProtectedFile     string `yaml:"protected_file"`
	TempDir           string `yaml:"temp_dir"`
	DelegateBin       string `yaml:"delegate_bin"`
	DelegateThreshold string `yaml:"delegate_threshold"`
	ReadSize          string `yaml:"read_size"`
	HexDiagnostics    *bool  `yaml:"hex_diagnostics"`
	Listen            string `yaml:"listen"`
}

// Resolve returns the current configuration. The state directory comes from
// JMIGRATE_PATH, falling back to $PWD/.jmigrate. Each setting is taken from
// its environment variable, then the YAML config file, then its default.
func Resolve() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	c := &Config{}
	if envPath := os.Getenv("JMIGRATE_PATH"); envPath != "" {
		c.StateDir = envPath
		c.EnvVarSet = true
	} else {
		c.StateDir = filepath.Join(cwd, ".jmigrate")
	}
	c.DBPath = filepath.Join(c.StateDir, dbFileName)

	var fc fileConfig
	path := os.Getenv("JMIGRATE_CONFIG")
	explicit := path != ""
	if !explicit {
		path = filepath.Join(c.StateDir, configFileName)
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		c.ConfigFile = path
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	c.Root = pick("JMIGRATE_ROOT", fc.Root, cwd)
	c.ArchiveDir = pick("JMIGRATE_ARCHIVE_DIR", fc.ArchiveDir, filepath.Join(c.Root, "wp-content", "uploads", "jmigrate"))
	c.DSN = pick("JMIGRATE_DSN", fc.DSN, defaultDSN())
	c.TablePrefix = pick("JMIGRATE_TABLE_PREFIX", fc.TablePrefix, "wp_")
	c.ContentDir = pick("JMIGRATE_CONTENT_DIR", fc.ContentDir, "wp-content")
	c.ProtectedFile = pick("JMIGRATE_PROTECTED_FILE", fc.ProtectedFile, "wp-config.php")
	c.TempDir = pick("JMIGRATE_TEMP_DIR", fc.TempDir, os.TempDir())
	c.DelegateBin = pick("JMIGRATE_DELEGATE_BIN", fc.DelegateBin, "")
	c.Listen = pick("JMIGRATE_LISTEN", fc.Listen, "127.0.0.1:8787")

	for _, p := range []*string{&c.Root, &c.ArchiveDir, &c.TempDir} {
		if *p, err = migrate.ResolvePath(*p, cwd); err != nil {
			return nil, err
		}
	}

	threshold, err := parseSize("delegate_threshold", pick("JMIGRATE_DELEGATE_THRESHOLD", fc.DelegateThreshold, "0"))
	if err != nil {
		return nil, err
	}
	c.DelegateThreshold = int64(threshold)

	readSize, err := parseSize("read_size", pick("JMIGRATE_READ_SIZE", fc.ReadSize, "1MiB"))
	if err != nil {
		return nil, err
	}
	if readSize == 0 || readSize > 1<<30 {
		return nil, fmt.Errorf("invalid read_size %d: must be between 1 byte and 1GiB", readSize)
	}
	c.ReadSize = int(readSize)

	if fc.HexDiagnostics != nil {
		c.HexDiagnostics = *fc.HexDiagnostics
	}
	if v := os.Getenv("JMIGRATE_HEX_DIAGNOSTICS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("invalid JMIGRATE_HEX_DIAGNOSTICS %q: %w", v, err)
		}
		c.HexDiagnostics = b
	}

	return c, nil
}

// Exists checks if the state directory and job database both exist.
// It returns an error for non-existence failures (e.g. permission errors).
func (c *Config) Exists() (bool, error) {
	if _, err := os.Stat(c.StateDir); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if _, err := os.Stat(c.DBPath); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// DelegateCandidates lists where to look for the external import tool, in
// order of preference. The directory above Root is searched after Root.
func (c *Config) DelegateCandidates() []string {
	if c.DelegateBin != "" {
		return []string{c.DelegateBin}
	}
	parent := filepath.Dir(filepath.Clean(c.Root))
	return []string{
		os.Getenv("WP_CLI_BIN"),
		filepath.Join(c.Root, "wp"),
		filepath.Join(c.Root, "wp-cli.phar"),
		filepath.Join(parent, "wp"),
		filepath.Join(parent, "wp-cli.phar"),
		"/usr/local/bin/wp",
		"/usr/bin/wp",
		"wp",
	}
}

func pick(env, file, def string) string {
	if v := strings.TrimSpace(os.Getenv(env)); v != "" {
		return v
	}
	if v := strings.TrimSpace(file); v != "" {
		return v
	}
	return def
}

func parseSize(key, v string) (uint64, error) {
	n, err := humanize.ParseBytes(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

// defaultDSN builds a DSN from the DB_* variables a WordPress container
// usually carries. It returns "" when DB_NAME is unset.
func defaultDSN() string {
	name := os.Getenv("DB_NAME")
	if name == "" {
		return ""
	}
	host := os.Getenv("DB_HOST")
	if host == "" {
		host = "localhost"
	}
	return mysql.DSN(host, os.Getenv("DB_USER"), os.Getenv("DB_PASSWORD"), name)
}

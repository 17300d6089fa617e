// Package config loads the line-oriented key/value configuration file of
// spec §6, layered with pflag CLI overrides, in the same spirit as the
// teacher's env-var Load but file-driven.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Config holds every setting cmd/roomd needs to start a room daemon.
type Config struct {
	DataDir string
	DBURL   string

	DBPoolSize    int
	DBPoolSizeMin int

	MumbleHost string
	MumblePort int
	MumbleCert string

	Name string

	HTTPAddr string

	OperatorUsername string
	OperatorPassword string
	JWTSecret        string
	TokenTTL         time.Duration
}

func defaults() Config {
	return Config{
		DataDir:          "./data",
		DBURL:            "sqlite://./data/roomd.db",
		DBPoolSize:       4,
		DBPoolSizeMin:    1,
		Name:             "roomd",
		HTTPAddr:         ":8000",
		OperatorUsername: "operator",
		OperatorPassword: "change-me",
		JWTSecret:        "change-me-in-production-please",
		TokenTTL:         24 * time.Hour,
	}
}

// Load reads path, applies CLI overrides from flags (registered against
// fs, typically pflag.CommandLine), and returns the resulting Config.
// Unknown keys in the file are warned about, never fatal, per spec §6.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	cfg := defaults()

	if path != "" {
		if err := parseFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	applyFlagOverrides(&cfg, fs)

	return &cfg, nil
}

// RegisterFlags adds the pflag overrides Load consults: data-dir, db-url,
// db-pool-size, db-pool-size-min, mumble (as host:port), mumble-cert, name
// and http-addr. The _scale keys and the operator/JWT keys have no flag and
// are set from the file only.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("data-dir", "", "base directory for cached media and state")
	fs.String("db-url", "", "SQL database URL")
	fs.Int("db-pool-size", 0, "max database pool size")
	fs.Int("db-pool-size-min", 0, "minimum idle database pool size")
	fs.String("mumble", "", "voice server host:port")
	fs.String("mumble-cert", "", "client certificate path")
	fs.String("name", "", "display name at the voice server")
	fs.String("http-addr", "", "HTTP control API listen address")
}

func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) {
	if fs == nil {
		return
	}

	if v, err := fs.GetString("data-dir"); err == nil && v != "" {
		cfg.DataDir = v
	}
	if v, err := fs.GetString("db-url"); err == nil && v != "" {
		cfg.DBURL = v
	}
	if v, err := fs.GetInt("db-pool-size"); err == nil && v != 0 {
		cfg.DBPoolSize = v
	}
	if v, err := fs.GetInt("db-pool-size-min"); err == nil && v != 0 {
		cfg.DBPoolSizeMin = v
	}
	if v, err := fs.GetString("mumble"); err == nil && v != "" {
		host, port, err := splitHostPort(v)
		if err != nil {
			slog.Warn("config: --mumble flag ignored, bad host:port", "value", v, "error", err)
		} else {
			cfg.MumbleHost, cfg.MumblePort = host, port
		}
	}
	if v, err := fs.GetString("mumble-cert"); err == nil && v != "" {
		cfg.MumbleCert = v
	}
	if v, err := fs.GetString("name"); err == nil && v != "" {
		cfg.Name = v
	}
	if v, err := fs.GetString("http-addr"); err == nil && v != "" {
		cfg.HTTPAddr = v
	}
}

func parseFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		key := fields[0]
		args := fields[1:]

		if err := applyKey(cfg, key, args); err != nil {
			slog.Warn("config: ignoring bad line", "line", lineNo, "key", key, "error", err)
		}
	}
	return scanner.Err()
}

func applyKey(cfg *Config, key string, args []string) error {
	switch key {
	case "data_dir":
		return setString(&cfg.DataDir, args)
	case "db_url":
		return setString(&cfg.DBURL, args)
	case "db_pool_size":
		return setInt(&cfg.DBPoolSize, args, 1)
	case "db_pool_size_scale":
		return setScaledInt(&cfg.DBPoolSize, args)
	case "db_pool_size_min":
		return setInt(&cfg.DBPoolSizeMin, args, 1)
	case "db_pool_size_min_scale":
		return setScaledInt(&cfg.DBPoolSizeMin, args)
	case "mumble":
		if len(args) != 2 {
			return fmt.Errorf("mumble requires <host> <port>")
		}
		port, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("bad port %q: %w", args[1], err)
		}
		cfg.MumbleHost, cfg.MumblePort = args[0], port
		return nil
	case "mumble_cert":
		return setString(&cfg.MumbleCert, args)
	case "name":
		if len(args) == 0 {
			return fmt.Errorf("expected a value")
		}
		cfg.Name = strings.Join(args, " ")
		return nil
	case "http_addr":
		return setString(&cfg.HTTPAddr, args)
	case "operator_username":
		return setString(&cfg.OperatorUsername, args)
	case "operator_password":
		return setString(&cfg.OperatorPassword, args)
	case "jwt_secret":
		return setString(&cfg.JWTSecret, args)
	default:
		slog.Warn("config: unknown key", "key", key)
		return nil
	}
}

func setString(dst *string, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("expected exactly one value")
	}
	*dst = args[0]
	return nil
}

func setInt(dst *int, args []string, min int) error {
	if len(args) != 1 {
		return fmt.Errorf("expected exactly one value")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return err
	}
	if n < min {
		return fmt.Errorf("value %d below minimum %d", n, min)
	}
	*dst = n
	return nil
}

func setScaledInt(dst *int, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("expected exactly one value")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return err
	}
	*dst = n * runtime.NumCPU()
	return nil
}

func splitHostPort(v string) (string, int, error) {
	idx := strings.LastIndex(v, ":")
	if idx < 0 {
		return "", 0, fmt.Errorf("missing port")
	}
	port, err := strconv.Atoi(v[idx+1:])
	if err != nil {
		return "", 0, err
	}
	return v[:idx], port, nil
}

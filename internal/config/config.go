// Package config loads gqlhost configuration.
//
// Values come from three layers, later ones winning: built-in defaults, an
// optional YAML file, and GQLHOST_* environment variables. The merged result
// is validated against an embedded CUE schema.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

//go:embed schema.cue
var schemaSource string

const (
	envDatabase           = "GQLHOST_DATABASE"
	envUseDefaultIdentity = "GQLHOST_USE_DEFAULT_IDENTITY"
	envMessagePump        = "GQLHOST_MESSAGE_PUMP"
	envMaxValueNodes      = "GQLHOST_MAX_VALUE_NODES"
	envListenAddr         = "GQLHOST_LISTEN_ADDR"
	envLogLevel           = "GQLHOST_LOG_LEVEL"
	envLogFormat          = "GQLHOST_LOG_FORMAT"
)

// Config is the effective configuration.
type Config struct {
	// Database is the SQLite path of the reference engine. Empty means an
	// in-memory database.
	Database string `yaml:"database" json:"database"`

	UseDefaultIdentity bool `yaml:"use_default_identity" json:"use_default_identity"`
	MessagePump        bool `yaml:"message_pump" json:"message_pump"`

	// MaxValueNodes bounds every value tree built by the engine. 0 means
	// unbounded.
	MaxValueNodes int `yaml:"max_value_nodes" json:"max_value_nodes"`

	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
	LogLevel   string `yaml:"log_level" json:"log_level"`
	LogFormat  string `yaml:"log_format" json:"log_format"`
}

// Default returns the built-in defaults.
func Default() Config {
	return Config{
		UseDefaultIdentity: true,
		ListenAddr:         ":8080",
		LogLevel:           "info",
		LogFormat:          "text",
	}
}

// ValidationError lists every schema violation of a Config.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid config: " + strings.Join(e.Problems, "; ")
}

// Load merges defaults, the YAML file at path (skipped when path is empty)
// and the environment, then validates the result.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := applyEnv(&cfg, os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// decodeYAML overlays data onto cfg. Unknown keys are an error.
func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if v, ok := lookup(envDatabase); ok {
		cfg.Database = v
	}
	if v, ok := lookup(envListenAddr); ok && v != "" {
		cfg.ListenAddr = v
	}
	if v, ok := lookup(envLogLevel); ok && v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v, ok := lookup(envLogFormat); ok && v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}

	for _, b := range []struct {
		name string
		dst  *bool
	}{
		{envUseDefaultIdentity, &cfg.UseDefaultIdentity},
		{envMessagePump, &cfg.MessagePump},
	} {
		v, ok := lookup(b.name)
		if !ok || v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", b.name, err)
		}
		*b.dst = parsed
	}

	if v, ok := lookup(envMaxValueNodes); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", envMaxValueNodes, err)
		}
		cfg.MaxValueNodes = n
	}
	return nil
}

// Validate checks c against the embedded CUE schema.
func (c Config) Validate() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	def := schema.LookupPath(cue.ParsePath("#Config"))
	v := def.Unify(ctx.Encode(c))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		var problems []string
		for _, e := range cueerrors.Errors(err) {
			problems = append(problems, e.Error())
		}
		if len(problems) == 0 {
			problems = []string{err.Error()}
		}
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Level returns the slog level for LogLevel.
func (c Config) Level() slog.Level {
	switch c.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds a logger writing to w in LogFormat at LogLevel.
func (c Config) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level()}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// YAML renders c as a config file.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

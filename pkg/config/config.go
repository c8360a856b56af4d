// Package config loads twoslash settings from hcl, yaml or toml files with environment
// overrides.
package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/walteh/twoslash/pkg/backend"
)

var ErrUnsupportedFormat = errors.Base("unsupported config format")

// EnvPrefix prefixes every environment override.
const EnvPrefix = "TWOSLASH_"

// DefaultFiles are searched, in order, when no config path is given.
var DefaultFiles = []string{"twoslash.hcl", "twoslash.yaml", "twoslash.yml", "twoslash.toml"}

type Config struct {
	Backend       string `json:"backend,omitempty" hcl:"backend,optional" yaml:"backend,omitempty" toml:"backend,omitempty"`
	PlaygroundURL string `json:"playground_url,omitempty" hcl:"playground_url,optional" yaml:"playground_url,omitempty" toml:"playground_url,omitempty"`
	Extension     string `json:"extension,omitempty" hcl:"extension,optional" yaml:"extension,omitempty" toml:"extension,omitempty"`
	Concurrency   int    `json:"concurrency,omitempty" hcl:"concurrency,optional" yaml:"concurrency,omitempty" toml:"concurrency,omitempty"`
	CacheSize     int    `json:"cache_size,omitempty" hcl:"cache_size,optional" yaml:"cache_size,omitempty" toml:"cache_size,omitempty"`
	Format        string `json:"format,omitempty" hcl:"format,optional" yaml:"format,omitempty" toml:"format,omitempty"`

	LSP *LSPBlock `json:"lsp,omitempty" hcl:"lsp,block" yaml:"lsp,omitempty" toml:"lsp,omitempty"`
}

// LSPBlock configures the language server backend.
type LSPBlock struct {
	Command         []string          `json:"command" hcl:"command" yaml:"command" toml:"command"`
	LanguageID      string            `json:"language_id,omitempty" hcl:"language_id,optional" yaml:"language_id,omitempty" toml:"language_id,omitempty"`
	FileName        string            `json:"file_name,omitempty" hcl:"file_name,optional" yaml:"file_name,omitempty" toml:"file_name,omitempty"`
	Manifest        map[string]string `json:"manifest,omitempty" hcl:"manifest,optional" yaml:"manifest,omitempty" toml:"manifest,omitempty"`
	DiagnosticsWait string            `json:"diagnostics_wait,omitempty" hcl:"diagnostics_wait,optional" yaml:"diagnostics_wait,omitempty" toml:"diagnostics_wait,omitempty"`
	WorkDir         string            `json:"work_dir,omitempty" hcl:"work_dir,optional" yaml:"work_dir,omitempty" toml:"work_dir,omitempty"`
}

func Default() *Config {
	return &Config{
		Backend:     "go",
		Concurrency: 8,
		CacheSize:   128,
		Format:      "json",
	}
}

// Load reads path (or the first of DefaultFiles found in dir when path is empty),
// applies a .env file from the same directory and then TWOSLASH_* variables from env.
// A missing default file is not an error.
func Load(fs afero.Fs, dir, path string, env func(string) (string, bool)) (*Config, error) {
	cfg := Default()

	if path == "" {
		for _, name := range DefaultFiles {
			candidate := filepath.Join(dir, name)
			if ok, _ := afero.Exists(fs, candidate); ok {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := afero.ReadFile(fs, path)
		if err != nil {
			return nil, errors.Errorf("reading config file: %w", err)
		}
		if err := Decode(path, data, cfg); err != nil {
			return nil, err
		}
		dir = filepath.Dir(path)
	}

	dotenv, err := readDotenv(fs, filepath.Join(dir, ".env"))
	if err != nil {
		return nil, err
	}

	lookup := func(key string) (string, bool) {
		if env != nil {
			if v, ok := env(key); ok {
				return v, true
			}
		}
		v, ok := dotenv[key]
		return v, ok
	}

	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Decode parses data into cfg, picking the format from the extension of path.
func Decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil {
			return errors.Errorf("parsing YAML: %w", err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return errors.Errorf("parsing TOML: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return errors.Errorf("parsing TOML: unknown keys %v", undecoded)
		}
	case ".hcl":
		parser := hclparse.NewParser()
		file, diags := parser.ParseHCL(data, path)
		if diags.HasErrors() {
			return errors.Errorf("parsing HCL: %s", diags.Error())
		}
		ctx := &hcl.EvalContext{
			Variables: map[string]cty.Value{},
		}
		if diags := gohcl.DecodeBody(file.Body, ctx, cfg); diags.HasErrors() {
			return errors.Errorf("decoding HCL: %s", diags.Error())
		}
	default:
		return errors.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
	return nil
}

func readDotenv(fs afero.Fs, path string) (map[string]string, error) {
	f, err := fs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, errors.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	values, err := godotenv.Parse(f)
	if err != nil {
		return nil, errors.Errorf("parsing %s: %w", path, err)
	}
	return values, nil
}

func (me *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(name string, dst *string) {
		if v, ok := lookup(EnvPrefix + name); ok {
			*dst = v
		}
	}
	num := func(name string, dst *int) error {
		v, ok := lookup(EnvPrefix + name)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.Errorf("%s%s: %w", EnvPrefix, name, err)
		}
		*dst = n
		return nil
	}

	str("BACKEND", &me.Backend)
	str("PLAYGROUND_URL", &me.PlaygroundURL)
	str("EXTENSION", &me.Extension)
	str("FORMAT", &me.Format)
	if err := num("CONCURRENCY", &me.Concurrency); err != nil {
		return err
	}
	if err := num("CACHE_SIZE", &me.CacheSize); err != nil {
		return err
	}

	if v, ok := lookup(EnvPrefix + "LSP_COMMAND"); ok {
		if me.LSP == nil {
			me.LSP = &LSPBlock{}
		}
		me.LSP.Command = strings.Fields(v)
	}
	if me.LSP != nil {
		str("LSP_LANGUAGE_ID", &me.LSP.LanguageID)
		str("LSP_DIAGNOSTICS_WAIT", &me.LSP.DiagnosticsWait)
		str("LSP_WORK_DIR", &me.LSP.WorkDir)
	}
	return nil
}

// Settings converts the config into backend settings.
func (me *Config) Settings() (backend.Settings, error) {
	s := backend.Settings{Extension: me.Extension}
	if me.LSP == nil {
		return s, nil
	}

	s.Command = me.LSP.Command
	s.LanguageID = me.LSP.LanguageID
	s.FileName = me.LSP.FileName
	s.Manifest = me.LSP.Manifest
	s.WorkDir = me.LSP.WorkDir

	if me.LSP.DiagnosticsWait != "" {
		wait, err := time.ParseDuration(me.LSP.DiagnosticsWait)
		if err != nil {
			return backend.Settings{}, errors.Errorf("parsing diagnostics_wait: %w", err)
		}
		s.DiagnosticsWait = wait
	}
	return s, nil
}

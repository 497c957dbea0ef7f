// Package config loads and validates the querymigrate configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/hemanthest/dataquerymigration/internal/fileset"
)

// Format identifies the mapping-file encoding.
type Format string

const (
	// FormatCSV reads mapping rows from a CSV sheet.
	FormatCSV Format = "csv"
	// FormatYAML reads mapping rows from a YAML document.
	FormatYAML Format = "yaml"
)

var validFormats = map[Format]struct{}{
	FormatCSV:  {},
	FormatYAML: {},
}

// VerifyConfig captures the optional post-rewrite smoke check.
type VerifyConfig struct {
	Enabled bool `toml:"enabled"`
}

// LoggingConfig captures log output settings.
type LoggingConfig struct {
	Verbose bool `toml:"verbose"`
}

// Config mirrors the expected querymigrate TOML schema.
type Config struct {
	Mappings      string        `toml:"mappings"`
	MappingFormat Format        `toml:"mapping_format"`
	Queries       []string      `toml:"queries"`
	Out           string        `toml:"out"`
	Workers       int           `toml:"workers"`
	Verify        VerifyConfig  `toml:"verify"`
	Logging       LoggingConfig `toml:"logging"`
}

// Plan is the fully-resolved configuration used by the CLI.
type Plan struct {
	Mappings      string
	MappingFormat Format
	Queries       []string
	Out           string
	Workers       int
	Verify        bool
	Verbose       bool
}

// LoadOptions tunes config loading behavior.
type LoadOptions struct {
	Strict   bool
	Resolver *fileset.Resolver
}

// Result wraps a loaded plan alongside any non-fatal warnings.
type Result struct {
	Plan     Plan
	Warnings []string
}

// Load reads, validates, and resolves a querymigrate configuration file.
// Relative paths resolve against the config file's directory.
func Load(path string, opts LoadOptions) (Result, error) {
	var res Result

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return res, fmt.Errorf("read %s: %w", path, err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return res, fmt.Errorf("%s: %w", path, err)
	}

	unknown, err := collectUnknownKeys(data)
	if err != nil {
		return res, fmt.Errorf("%s: %w", path, err)
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		message := fmt.Sprintf("%s: unknown configuration keys: %s", path, strings.Join(unknown, ", "))
		if opts.Strict {
			return res, errors.New(message)
		}
		res.Warnings = append(res.Warnings, message)
	}

	baseDir := filepath.Dir(path)

	mappings, format, err := resolveMappings(path, baseDir, cfg)
	if err != nil {
		return res, err
	}

	var resolver fileset.Resolver
	if opts.Resolver != nil {
		resolver = *opts.Resolver
	} else {
		resolver, err = fileset.NewOSResolver(baseDir)
		if err != nil {
			return res, fmt.Errorf("%s: %w", path, err)
		}
	}
	queries, err := resolveQueries(resolver, cfg.Queries)
	if err != nil {
		return res, fmt.Errorf("%s: %w", path, err)
	}

	out, err := resolveOut(path, baseDir, cfg.Out)
	if err != nil {
		return res, err
	}

	workers, err := resolveWorkers(path, cfg.Workers)
	if err != nil {
		return res, err
	}

	res.Plan = Plan{
		Mappings:      mappings,
		MappingFormat: format,
		Queries:       queries,
		Out:           out,
		Workers:       workers,
		Verify:        cfg.Verify.Enabled,
		Verbose:       cfg.Logging.Verbose,
	}
	return res, nil
}

func collectUnknownKeys(data []byte) ([]string, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	known := map[string]map[string]struct{}{
		"mappings":       nil,
		"mapping_format": nil,
		"queries":        nil,
		"out":            nil,
		"workers":        nil,
		"verify":         {"enabled": {}},
		"logging":        {"verbose": {}},
	}

	var unknown []string
	for key, value := range raw {
		subKnown, ok := known[key]
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		record, ok := value.(map[string]any)
		if subKnown == nil || !ok {
			continue
		}
		for sub := range record {
			if _, ok := subKnown[sub]; !ok {
				unknown = append(unknown, key+"."+sub)
			}
		}
	}
	return unknown, nil
}

func resolveMappings(path, baseDir string, cfg Config) (string, Format, error) {
	if cfg.Mappings == "" {
		return "", "", fmt.Errorf("%s: mappings is required", path)
	}
	format := cfg.MappingFormat
	if format == "" {
		switch strings.ToLower(filepath.Ext(cfg.Mappings)) {
		case ".yaml", ".yml":
			format = FormatYAML
		default:
			format = FormatCSV
		}
	}
	if _, ok := validFormats[format]; !ok {
		return "", "", fmt.Errorf("%s: unsupported mapping_format %q", path, format)
	}
	mappings := cfg.Mappings
	if !filepath.IsAbs(mappings) {
		mappings = filepath.Join(baseDir, mappings)
	}
	return mappings, format, nil
}

func resolveQueries(resolver fileset.Resolver, patterns []string) ([]string, error) {
	paths, err := resolver.Resolve(patterns)
	if err != nil {
		if errors.Is(err, fileset.ErrNoPatterns) {
			return nil, errors.New("queries must include at least one pattern")
		}
		var noMatch fileset.NoMatchError
		if errors.As(err, &noMatch) {
			return nil, fmt.Errorf("queries patterns matched no files: %s", strings.Join(noMatch.Patterns, ", "))
		}
		var patternErr fileset.PatternError
		if errors.As(err, &patternErr) {
			return nil, fmt.Errorf("queries: %w", patternErr)
		}
		return nil, fmt.Errorf("queries: %w", err)
	}
	return paths, nil
}

func resolveOut(path, baseDir, out string) (string, error) {
	if out == "" {
		out = "migrated.csv"
	}
	if filepath.IsAbs(out) {
		return "", fmt.Errorf("%s: out must be a relative path", path)
	}
	cleaned := filepath.Clean(out)
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%s: out must not traverse upwards", path)
	}
	return filepath.Join(baseDir, cleaned), nil
}

func resolveWorkers(path string, workers int) (int, error) {
	if workers < 0 {
		return 0, fmt.Errorf("%s: workers must not be negative", path)
	}
	if workers == 0 {
		return 1, nil
	}
	return workers, nil
}

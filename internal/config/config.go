package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config represents the top-level configuration for the mining service.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Engine      EngineConfig      `koanf:"engine"`
	Constraints ConstraintsConfig `koanf:"constraints"`
	Audit       AuditConfig       `koanf:"audit"`
}

// ServerConfig holds the HTTP query surface's server configuration.
type ServerConfig struct {
	Port          int    `koanf:"port"`
	Host          string `koanf:"host"`
	MaxBodySizeMB int    `koanf:"max_body_size_mb"`
	Mode          string `koanf:"mode"` // "debug" or "release"
}

// EngineConfig holds the FP-Stream engine's thresholds and TTW layout.
type EngineConfig struct {
	TTWDefinition   string  `koanf:"ttw_definition"`
	MinSupport      float64 `koanf:"min_support"`
	MaxSupportError float64 `koanf:"max_support_error"`
	MinConfidence   float64 `koanf:"min_confidence"`
	StrictTailDrop  bool    `koanf:"strict_tail_drop"`
	PersistPath     string  `koanf:"persist_path"`
}

// ConstraintsConfig points at directories of constraint-group YAML files,
// one group per file, loaded via constraints.LoadDir at startup. A missing
// directory means zero constraints in that collection, not an error.
type ConstraintsConfig struct {
	PreprocessDir     string `koanf:"preprocess_dir"`
	ReportDir         string `koanf:"report_dir"`
	RuleAntecedentDir string `koanf:"rule_antecedent_dir"`
	RuleConsequentDir string `koanf:"rule_consequent_dir"`
}

// AuditConfig holds settings for the optional Postgres batch audit trail.
type AuditConfig struct {
	Enabled      bool   `koanf:"enabled"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	AutoMigrate  bool   `koanf:"auto_migrate"`
}

// Load loads the configuration from the given file path and environment
// variables, defaults first, then the file, then the environment.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	defaults := map[string]interface{}{
		"server.port":                  8080,
		"server.host":                  "0.0.0.0",
		"server.max_body_size_mb":      1,
		"server.mode":                  "release",
		"engine.ttw_definition":        "900:QQQQHHHHHHHHHHHHHHHHHHHHHHHHDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDMMMMMMMMMMMMY",
		"engine.min_support":           0.01,
		"engine.max_support_error":     0.001,
		"engine.min_confidence":        0.4,
		"engine.strict_tail_drop":      false,
		"engine.persist_path":          "./streamminer-state.jsonl",
		"audit.enabled":                false,
		"audit.dsn":                    "",
		"audit.max_open_conns":         10,
		"audit.max_idle_conns":         10,
		"audit.auto_migrate":           true,
		"constraints.preprocess_dir":      "./constraints/preprocess",
		"constraints.report_dir":          "./constraints/report",
		"constraints.rule_antecedent_dir": "./constraints/rule-antecedent",
		"constraints.rule_consequent_dir": "./constraints/rule-consequent",
	}
	for key, value := range defaults {
		k.Set(key, value)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// STREAMMINER_SERVER__PORT=9090 overrides server.port
	if err := k.Load(env.Provider("STREAMMINER_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "STREAMMINER_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

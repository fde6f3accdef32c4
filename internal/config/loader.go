package config

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

const (
	// maxConfigFileSize rejects pathological config files.
	maxConfigFileSize = 1024 * 1024 // 1MB

	// envPrefix namespaces sprintd environment variables.
	envPrefix = "SPRINTD_"
)

// sections are the known top-level config keys. The env transformer uses
// them to decide which underscore is the section separator, so that
// SPRINTD_CONTEXT_MAX_DOC_TOKENS maps to context.max_doc_tokens.
var sections = []string{
	"project", "logging", "policy", "context", "embeddings",
	"llm", "recovery", "build", "vcs", "server",
}

// Load reads configuration from an optional YAML file, then overrides with
// SPRINTD_* environment variables, applies defaults and validates.
//
// Precedence (highest to lowest):
//  1. Environment variables (SPRINTD_PROJECT_GOAL, SPRINTD_LLM_MOCK, ...)
//  2. YAML config file
//  3. Defaults
//
// A missing file is not an error; a malformed or invalid one is.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			content, err := readConfigFile(configPath)
			if err != nil {
				return nil, err
			}
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("parsing config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", transformEnv), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// readConfigFile opens and reads a config file with a size bound, using the
// already-open descriptor for validation to avoid a TOCTOU race.
func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}

	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return content, nil
}

// transformEnv maps SPRINTD_SECTION_FIELD_NAME to section.field_name.
func transformEnv(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	for _, section := range sections {
		if strings.HasPrefix(s, section+"_") {
			return section + "." + strings.TrimPrefix(s, section+"_")
		}
	}
	return s
}

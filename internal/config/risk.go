package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RiskConfigFileName is the default supervisor policy file at the repo root.
const RiskConfigFileName = ".supervisor-agent.yml"

// Merge modes for the supervisor policy.
const (
	MergeModeAuto      = "auto_merge"
	MergeModeRecommend = "recommend_only"
)

// RiskConfig is the supervisor policy: risk ceilings, blocking labels,
// protected paths, and merge behavior.
type RiskConfig struct {
	MergeMode                 string   `yaml:"merge_mode"`
	CanonicalLanguage         string   `yaml:"canonical_language"`
	BilingualSummaryLanguages []string `yaml:"bilingual_summary_languages"`
	AutoMergeLevels           []string `yaml:"auto_merge_levels"`

	MaxFilesChanged int `yaml:"max_files_changed"`
	MaxAdditions    int `yaml:"max_additions"`
	MaxDeletions    int `yaml:"max_deletions"`

	BlockLabels    []string `yaml:"block_labels"`
	ProtectedPaths []string `yaml:"protected_paths"`
}

// DefaultRiskConfig returns the policy used when no file is present.
func DefaultRiskConfig() *RiskConfig {
	return &RiskConfig{
		MergeMode:                 MergeModeAuto,
		CanonicalLanguage:         "en",
		BilingualSummaryLanguages: []string{"zh-hant"},
		AutoMergeLevels:           []string{"L0", "L1"},
		MaxFilesChanged:           20,
		MaxAdditions:              500,
		MaxDeletions:              500,
		BlockLabels:               []string{"do-not-merge", "WIP", "blocked", "needs-human"},
		ProtectedPaths: []string{
			".github/workflows/**",
			"**/auth/**",
			"**/security/**",
			"Dockerfile",
			"docker-compose.*",
			"**/*lock*",
		},
	}
}

// LoadRiskConfig loads the policy from path. A missing file returns the
// defaults without error; a malformed file is an error. Keys absent from
// the file keep their default values, except list keys, which replace the
// defaults wholesale when present.
func LoadRiskConfig(path string) (*RiskConfig, error) {
	cfg := DefaultRiskConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("read risk config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse risk config %s: %w", path, err)
	}
	return cfg, nil
}

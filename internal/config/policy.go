package config

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Category names used as policy keys.
const (
	CategoryImage    = "image"
	CategoryVideo    = "video"
	CategoryAudio    = "audio"
	CategoryDocument = "document"
)

// CategoryPolicy bounds what a single category accepts.
type CategoryPolicy struct {
	MaxBytes     int64    `yaml:"max_bytes" json:"max_bytes" jsonschema:"minimum=1,description=Largest accepted file in bytes"`
	AllowedTypes []string `yaml:"allowed_types" json:"allowed_types" jsonschema:"minItems=1,description=Accepted MIME types"`

	// Image only.
	MaxWidth  int  `yaml:"max_width" json:"max_width,omitempty" jsonschema:"minimum=0"`
	MaxHeight int  `yaml:"max_height" json:"max_height,omitempty" jsonschema:"minimum=0"`
	Compress  bool `yaml:"compress" json:"compress,omitempty"`
	Quality   int  `yaml:"quality" json:"quality,omitempty" jsonschema:"minimum=0,maximum=100"`

	// Video only. Advisory: durations are published to clients but not probed.
	MaxDurationSeconds int `yaml:"max_duration_seconds" json:"max_duration_seconds,omitempty" jsonschema:"minimum=0"`

	// Disabled removes the category from the table when set in a policy file.
	Disabled bool `yaml:"disabled" json:"-"`
}

// Allows reports whether the normalized content type is in the allowed set.
func (p CategoryPolicy) Allows(contentType string) bool {
	return slices.Contains(p.AllowedTypes, contentType)
}

func (p CategoryPolicy) clone() CategoryPolicy {
	p.AllowedTypes = slices.Clone(p.AllowedTypes)
	return p
}

// PolicyTable is the process-wide category policy set. It is built once at startup
// and never mutated; every accessor hands out copies.
type PolicyTable struct {
	entries map[string]CategoryPolicy
}

// NewPolicyTable validates and copies entries into an immutable table.
func NewPolicyTable(entries map[string]CategoryPolicy) (*PolicyTable, error) {
	table := &PolicyTable{entries: make(map[string]CategoryPolicy, len(entries))}
	for name, policy := range entries {
		name = strings.ToLower(strings.TrimSpace(name))
		if policy.Disabled {
			continue
		}
		if policy.MaxBytes <= 0 {
			return nil, fmt.Errorf("policy %s: max_bytes must be positive", name)
		}
		if len(policy.AllowedTypes) == 0 {
			return nil, fmt.Errorf("policy %s: allowed_types must not be empty", name)
		}
		if policy.Quality < 0 || policy.Quality > 100 {
			return nil, fmt.Errorf("policy %s: quality must be between 1 and 100", name)
		}
		if policy.Compress && policy.Quality == 0 {
			return nil, fmt.Errorf("policy %s: compress requires a quality", name)
		}
		normalized := policy.clone()
		for i, t := range normalized.AllowedTypes {
			normalized.AllowedTypes[i] = strings.ToLower(strings.TrimSpace(t))
		}
		table.entries[name] = normalized
	}
	return table, nil
}

// Lookup returns a copy of the policy for category.
func (t *PolicyTable) Lookup(category string) (CategoryPolicy, bool) {
	policy, ok := t.entries[category]
	if !ok {
		return CategoryPolicy{}, false
	}
	return policy.clone(), true
}

// Categories lists the configured categories in sorted order.
func (t *PolicyTable) Categories() []string {
	return slices.Sorted(maps.Keys(t.entries))
}

// Snapshot returns a deep copy of the table, suitable for serialization.
func (t *PolicyTable) Snapshot() map[string]CategoryPolicy {
	out := make(map[string]CategoryPolicy, len(t.entries))
	for name, policy := range t.entries {
		out[name] = policy.clone()
	}
	return out
}

// LoadPolicies builds the policy table from env defaults, then applies the optional
// YAML policy file. Entries in the file replace the whole category entry.
func LoadPolicies(cfg *Config) (*PolicyTable, error) {
	entries := DefaultPolicies(cfg)

	if path := strings.TrimSpace(cfg.PolicyFile); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read policy file: %w", err)
		}
		overrides := map[string]CategoryPolicy{}
		if err := yaml.Unmarshal(raw, &overrides); err != nil {
			return nil, fmt.Errorf("parse policy file %s: %w", path, err)
		}
		for name, policy := range overrides {
			entries[strings.ToLower(strings.TrimSpace(name))] = policy
		}
	}

	return NewPolicyTable(entries)
}

// DefaultPolicies returns the env-derived policy entries. Audio has no entry.
func DefaultPolicies(cfg *Config) map[string]CategoryPolicy {
	return map[string]CategoryPolicy{
		CategoryImage: {
			MaxBytes:     cfg.ImageMaxBytes,
			AllowedTypes: slices.Clone(cfg.ImageAllowedTypes),
			MaxWidth:     cfg.ImageMaxWidth,
			MaxHeight:    cfg.ImageMaxHeight,
			Compress:     cfg.ImageCompress,
			Quality:      cfg.ImageQuality,
		},
		CategoryVideo: {
			MaxBytes:           cfg.VideoMaxBytes,
			AllowedTypes:       slices.Clone(cfg.VideoAllowedTypes),
			MaxDurationSeconds: int(cfg.VideoMaxDuration.Seconds()),
		},
		CategoryDocument: {
			MaxBytes:     cfg.DocumentMaxBytes,
			AllowedTypes: slices.Clone(cfg.DocumentAllowedTypes),
		},
	}
}

package preset

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// MaxNameLength bounds preset names.
const MaxNameLength = 64

var (
	// ErrUnknownPreset is returned when a named preset does not exist.
	ErrUnknownPreset = errors.New("unknown preset")
	// ErrInvalidName is returned when a preset name cannot be normalised to
	// a valid one.
	ErrInvalidName = errors.New("invalid preset name")
	// ErrInvalidControls is returned for controls naming an unknown waveform
	// or receiver model.
	ErrInvalidControls = errors.New("invalid controls")
)

//go:embed scenarios.yaml
var scenarioYAML []byte

var (
	namePattern  = regexp.MustCompile(`^[\w\-.]+$`)
	nameReplacer = regexp.MustCompile(`[^a-z0-9\-_.]`)
	dashRun      = regexp.MustCompile(`-+`)
)

var scenarios = mustParseScenarios()

func mustParseScenarios() map[string]Controls {
	s, err := Parse(scenarioYAML)
	if err != nil {
		panic(fmt.Sprintf("preset: embedded scenarios: %v", err))
	}
	return s
}

// Scenario returns a built-in scenario merged over Defaults.
func Scenario(name string) (Controls, error) {
	c, ok := scenarios[name]
	if !ok {
		return Controls{}, fmt.Errorf("%w %q", ErrUnknownPreset, name)
	}
	return c, nil
}

// ScenarioNames returns the built-in scenario names in sorted order.
func ScenarioNames() []string {
	return Names(scenarios)
}

// Scenarios returns a copy of every built-in scenario.
func Scenarios() map[string]Controls {
	out := make(map[string]Controls, len(scenarios))
	for k, v := range scenarios {
		out[k] = v
	}
	return out
}

// Names returns the keys of a preset set in sorted order.
func Names(set map[string]Controls) []string {
	names := make([]string, 0, len(set))
	for k := range set {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// NormalizeName lower-cases a user supplied name, replaces characters outside
// [a-z0-9-_.] with dashes, collapses dash runs, trims leading and trailing
// dashes and truncates to MaxNameLength.
func NormalizeName(name string) string {
	n := strings.ToLower(strings.TrimSpace(name))
	n = nameReplacer.ReplaceAllString(n, "-")
	n = dashRun.ReplaceAllString(n, "-")
	n = strings.Trim(n, "-")
	if len(n) > MaxNameLength {
		n = n[:MaxNameLength]
	}
	return n
}

// IsValidName reports whether name can key a preset.
func IsValidName(name string) bool {
	return name != "" && len(name) <= MaxNameLength && namePattern.MatchString(name)
}

// Parse decodes a YAML mapping of preset name to controls. Each entry is
// merged over Defaults. Entries with invalid names, entries that are not
// mappings and entries without a scheme are skipped. An entry that fails
// Validate, such as one naming an unknown scheme, fails the whole document.
func Parse(data []byte) (map[string]Controls, error) {
	var raw map[string]yaml.Node
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse presets: %w", err)
	}

	out := make(map[string]Controls, len(raw))
	for name, node := range raw {
		if !IsValidName(name) || node.Kind != yaml.MappingNode {
			continue
		}
		c := Defaults()
		c.Scheme = ""
		if err := node.Decode(&c); err != nil || c.Scheme == "" {
			continue
		}
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("preset %q: %w", name, err)
		}
		out[name] = c
	}
	return out, nil
}

// LoadFile reads a preset file. A missing file yields an empty set.
func LoadFile(path string) (map[string]Controls, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]Controls{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}
	return Parse(data)
}

// SaveFile stores c under the normalised name in the preset file at path,
// keeping the other entries. It returns the name actually used.
func SaveFile(path, name string, c Controls) (string, error) {
	key := NormalizeName(name)
	if !IsValidName(key) {
		return "", fmt.Errorf("%w %q", ErrInvalidName, name)
	}
	if err := c.Validate(); err != nil {
		return "", err
	}

	set, err := LoadFile(path)
	if err != nil {
		return "", err
	}
	set[key] = c

	data, err := yaml.Marshal(set)
	if err != nil {
		return "", fmt.Errorf("encode presets: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write presets: %w", err)
	}
	return key, nil
}

// Resolve looks a name up in the user set first, then in the built-in
// scenarios.
func Resolve(name string, user map[string]Controls) (Controls, error) {
	if c, ok := user[name]; ok {
		return c, nil
	}
	return Scenario(name)
}

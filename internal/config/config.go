package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/menta2k/composition-guide/pkg/composition"
)

// Config holds the application configuration
type Config struct {
	Composition composition.Config `json:"composition"`
	Guidance    GuidanceConfig     `json:"guidance"`
	Detection   DetectionConfig    `json:"detection"`
	Output      OutputConfig       `json:"output"`
}

// GuidanceConfig holds configuration for guidance output
type GuidanceConfig struct {
	IntervalMs int    `json:"interval_ms"`
	Voice      bool   `json:"voice"`
	Locale     string `json:"locale"`

	// SkipWhileGated skips detection for frames arriving inside the interval.
	SkipWhileGated bool `json:"skip_while_gated"`
}

// Interval returns the guidance interval as a duration
func (g GuidanceConfig) Interval() time.Duration {
	return time.Duration(g.IntervalMs) * time.Millisecond
}

// DetectionConfig holds configuration for the subject detector
type DetectionConfig struct {
	Backend string `json:"backend"`
	URL     string `json:"url"`
	Model   string `json:"model"`

	// SubjectLabels left unset picks the backend default, see Labels.
	// An empty list accepts any label.
	SubjectLabels []string `json:"subject_labels"`
	MinConfidence float64  `json:"min_confidence"`
	SendFormat    string   `json:"send_format"`
	SendSize      int      `json:"send_size"`
	SendQuality   int      `json:"send_quality"`
}

// Labels returns the subject labels to select on. The local backend only
// reports salient regions, so it accepts any label unless told otherwise;
// model backends look for people.
func (d DetectionConfig) Labels() []string {
	if d.SubjectLabels != nil {
		return d.SubjectLabels
	}
	if d.Backend == "local" {
		return nil
	}
	return []string{"person"}
}

// OutputConfig holds configuration for overlay output
type OutputConfig struct {
	Dir      string `json:"dir"`
	Overlay  bool   `json:"overlay"`
	Format   string `json:"format"`
	Quality  int    `json:"quality"`
	Lossless bool   `json:"lossless"`
}

var (
	validBackends = map[string]bool{"ollama": true, "llamacpp": true, "local": true}
	validFormats  = map[string]bool{"jpg": true, "jpeg": true, "png": true, "webp": true}
)

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Composition: composition.DefaultConfig(),
		Guidance: GuidanceConfig{
			IntervalMs:     3000,
			Voice:          true,
			Locale:         "ru",
			SkipWhileGated: false,
		},
		Detection: DetectionConfig{
			Backend:       "llamacpp",
			URL:           "",
			Model:         "openbmb/minicpm-v4.5",
			MinConfidence: 0.7,
			SendFormat:    "jpg",
			SendSize:      1024,
			SendQuality:   85,
		},
		Output: OutputConfig{
			Dir:     "out",
			Overlay: false,
			Format:  "png",
			Quality: 90,
		},
	}
}

// LoadFromFile loads configuration from a JSON file.
// Fields missing from the file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Composition.Validate(); err != nil {
		return fmt.Errorf("composition: %w", err)
	}

	if c.Guidance.IntervalMs < 0 {
		return fmt.Errorf("guidance.interval_ms must not be negative")
	}

	if !composition.HasLocale(c.Guidance.Locale) {
		return fmt.Errorf("guidance.locale %q is not one of %v", c.Guidance.Locale, composition.Locales())
	}

	if !validBackends[c.Detection.Backend] {
		return fmt.Errorf("detection.backend must be ollama, llamacpp or local")
	}

	if c.Detection.Backend != "local" && c.Detection.Model == "" {
		return fmt.Errorf("detection.model is required for the %s backend", c.Detection.Backend)
	}

	if c.Detection.MinConfidence < 0 || c.Detection.MinConfidence >= 1 {
		return fmt.Errorf("detection.min_confidence must be in [0, 1)")
	}

	if c.Detection.SendQuality < 1 || c.Detection.SendQuality > 100 {
		return fmt.Errorf("detection.send_quality must be between 1 and 100")
	}

	if c.Detection.SendSize < 0 {
		return fmt.Errorf("detection.send_size must not be negative")
	}

	if !validFormats[c.Output.Format] {
		return fmt.Errorf("output.format must be jpg, png or webp")
	}

	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return fmt.Errorf("output.quality must be between 1 and 100")
	}

	return nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "composition-guide", "config.json")
}

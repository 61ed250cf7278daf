// Package config provides configuration loading and management for dicomreformat.
// It handles loading configuration from YAML files and provides default values.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"dicomreformat/internal/models"
	"dicomreformat/pkg/reformation"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	// Processing parameters
	Processing struct {
		// NumCores specifies how many CPU cores to use for decoding and export
		NumCores int `yaml:"numCores"`

		// SliceGap is the distance between slices in mm, used when the
		// input carries no geometry (plain image stacks)
		SliceGap float64 `yaml:"sliceGap"`

		// PixelSpacing is the in-plane spacing in mm for plain image stacks
		PixelSpacing float64 `yaml:"pixelSpacing"`
	} `yaml:"processing"`

	// Viewer parameters
	Viewer struct {
		// WindowCenter and WindowWidth override the series window when WindowWidth > 0
		WindowCenter float64 `yaml:"windowCenter"`
		WindowWidth  float64 `yaml:"windowWidth"`

		// Preset names a built-in window and takes precedence over the values above
		Preset string `yaml:"preset"`

		// AutoWindow derives the window from the 1st and 99th intensity percentiles
		AutoWindow bool `yaml:"autoWindow"`
	} `yaml:"viewer"`

	// Projection parameters
	Projection struct {
		// Mode is slice, mip, minip or aip
		Mode string `yaml:"mode"`

		// SlabThickness is the number of samples combined; 0 uses the full extent
		SlabThickness int `yaml:"slabThickness"`
	} `yaml:"projection"`

	// Export parameters
	Export struct {
		// Format is jpg or png
		Format string `yaml:"format"`

		// JPEGQuality is the JPEG encoder quality (1-100)
		JPEGQuality int `yaml:"jpegQuality"`

		// Annotate draws plane and index labels on exported images
		Annotate bool `yaml:"annotate"`

		// PhysicalAspect resamples anisotropic slices to square physical pixels
		PhysicalAspect bool `yaml:"physicalAspect"`

		// OutputDir is where exported images are written
		OutputDir string `yaml:"outputDir"`
	} `yaml:"export"`
}

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.SliceGap = 1.0
	cfg.Processing.PixelSpacing = 1.0

	cfg.Viewer.WindowCenter = models.DefaultWindowCenter
	cfg.Viewer.WindowWidth = 0 // use the series window

	cfg.Projection.Mode = "slice"
	cfg.Projection.SlabThickness = 0

	cfg.Export.Format = "jpg"
	cfg.Export.JPEGQuality = 90
	cfg.Export.OutputDir = "reformatted"

	return cfg
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Processing.NumCores < 1 {
		return fmt.Errorf("numCores must be at least 1, got %d", c.Processing.NumCores)
	}
	if c.Processing.SliceGap <= 0 {
		return fmt.Errorf("sliceGap must be positive, got %g", c.Processing.SliceGap)
	}
	if c.Processing.PixelSpacing <= 0 {
		return fmt.Errorf("pixelSpacing must be positive, got %g", c.Processing.PixelSpacing)
	}
	if c.Viewer.WindowWidth < 0 {
		return fmt.Errorf("windowWidth must not be negative, got %g", c.Viewer.WindowWidth)
	}
	if !c.SliceMode() {
		if _, err := reformation.ParseProjectionMode(c.Projection.Mode); err != nil {
			return fmt.Errorf("invalid projection mode: %s (must be slice, mip, minip or aip)", c.Projection.Mode)
		}
	}
	if c.Projection.SlabThickness < 0 {
		return fmt.Errorf("slabThickness must not be negative, got %d", c.Projection.SlabThickness)
	}
	switch strings.ToLower(c.Export.Format) {
	case "jpg", "png":
	default:
		return fmt.Errorf("invalid export format: %s (must be jpg or png)", c.Export.Format)
	}
	if c.Export.JPEGQuality < 1 || c.Export.JPEGQuality > 100 {
		return fmt.Errorf("jpegQuality must be between 1 and 100, got %d", c.Export.JPEGQuality)
	}
	return nil
}

// SliceMode reports whether plain slices are exported instead of a projection
func (c *Config) SliceMode() bool {
	return strings.EqualFold(strings.TrimSpace(c.Projection.Mode), "slice")
}

// LoadConfig loads configuration from a YAML file
// If the file doesn't exist, it returns the default configuration
func LoadConfig(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	// Check if config file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	// Read config file
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	// Parse YAML over the defaults so unset keys keep their values
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	// Reject out of range values before anything is loaded
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}

	return cfg, nil
}

// SaveConfig writes cfg as YAML, creating parent directories as needed
func SaveConfig(cfg *Config, configPath string) error {
	// Create the config directory
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	// Marshal to YAML
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	// Write the file
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// CreateDefaultConfigFile writes the default configuration to configPath so
// it can be edited before the first run
func CreateDefaultConfigFile(configPath string) error {
	return SaveConfig(DefaultConfig(), configPath)
}

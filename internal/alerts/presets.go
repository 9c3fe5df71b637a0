package alerts

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Presets holds the default bands and thresholds used when a request does
// not supply its own.
type Presets struct {
	Days              DayBands      `yaml:"days"`
	Fraction          FractionBands `yaml:"fraction"`
	GlobalThreshold   int           `yaml:"global_threshold"`
	LowShelfThreshold int           `yaml:"low_shelf_threshold"`
}

// DefaultPresets returns the built-in bands.
func DefaultPresets() Presets {
	return Presets{
		Days:              DayBands{Red: 7, Orange: 30, Green: 85},
		Fraction:          FractionBands{Red: 0.20, Orange: 0.40, Green: 0.80},
		GlobalThreshold:   10,
		LowShelfThreshold: 10,
	}
}

// Validate checks every band and threshold.
func (p Presets) Validate() error {
	if err := p.Days.Validate(); err != nil {
		return err
	}
	if err := p.Fraction.Validate(); err != nil {
		return err
	}
	if p.GlobalThreshold < 0 || p.LowShelfThreshold < 0 {
		return ErrInvalidThreshold
	}
	return nil
}

// LoadPresets reads a YAML file on top of the defaults. An empty path yields
// the defaults unchanged.
func LoadPresets(path string) (Presets, error) {
	presets := DefaultPresets()
	if path == "" {
		return presets, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return Presets{}, fmt.Errorf("alerts: read presets: %w", err)
	}
	if err := yaml.Unmarshal(raw, &presets); err != nil {
		return Presets{}, fmt.Errorf("alerts: parse presets %s: %w", path, err)
	}
	if err := presets.Validate(); err != nil {
		return Presets{}, err
	}
	return presets, nil
}

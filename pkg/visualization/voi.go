package visualization

import (
	"fmt"
	"sort"
	"strings"

	"dicomreformat/internal/models"
)

// Window holds the VOI parameters of a linear grey-scale mapping
type Window struct {
	Center float64 `yaml:"center"`
	Width  float64 `yaml:"width"`
}

// DefaultWindow is used when neither the series nor the caller supplies one
var DefaultWindow = Window{Center: models.DefaultWindowCenter, Width: models.DefaultWindowWidth}

// Presets are common CT windows in Hounsfield units
var Presets = map[string]Window{
	"abdomen":     {Center: 50, Width: 400},
	"bone":        {Center: 400, Width: 1800},
	"brain":       {Center: 40, Width: 80},
	"liver":       {Center: 30, Width: 150},
	"lung":        {Center: -600, Width: 1500},
	"mediastinum": {Center: 50, Width: 350},
	"stroke":      {Center: 40, Width: 40},
	"subdural":    {Center: 75, Width: 215},
}

// LookupPreset returns the named preset
func LookupPreset(name string) (Window, error) {
	w, ok := Presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		names := make([]string, 0, len(Presets))
		for n := range Presets {
			names = append(names, n)
		}
		sort.Strings(names)
		return Window{}, fmt.Errorf("unknown window preset: %s (available: %s)", name, strings.Join(names, ", "))
	}
	return w, nil
}

// VolumeWindow returns the default window stored with a volume
func VolumeWindow(v *models.Volume) Window {
	center, width := v.Window()
	return Window{Center: center, Width: width}
}

// Bounds returns the intensity interval mapped onto the output range
func (w Window) Bounds() (lower, upper float64) {
	width := w.Width
	if width < 1 {
		width = 1
	}
	return w.Center - 0.5 - (width-1)/2, w.Center - 0.5 + (width-1)/2
}

// ApplyLinearVOI maps x through the DICOM linear VOI LUT function
// (PS3.3 C.11.2.1.2) onto [yMin, yMax]. Widths below 1 are treated as 1,
// which turns the mapping into a threshold at center-0.5.
func ApplyLinearVOI(x, center, width, yMin, yMax float64) float64 {
	if width < 1 {
		width = 1
	}
	lower := center - 0.5 - (width-1)/2
	upper := center - 0.5 + (width-1)/2
	switch {
	case x <= lower:
		return yMin
	case x > upper:
		return yMax
	}
	return ((x-(center-0.5))/(width-1)+0.5)*(yMax-yMin) + yMin
}

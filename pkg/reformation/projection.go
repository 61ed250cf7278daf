package reformation

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"dicomreformat/internal/models"
)

// ProjectionMode selects the per-pixel reduction applied across a slab
type ProjectionMode int

const (
	MaximumIntensity ProjectionMode = iota
	MinimumIntensity
	AverageIntensity
)

func (m ProjectionMode) String() string {
	switch m {
	case MaximumIntensity:
		return "mip"
	case MinimumIntensity:
		return "minip"
	case AverageIntensity:
		return "aip"
	default:
		return fmt.Sprintf("projection(%d)", int(m))
	}
}

// ParseProjectionMode converts "mip", "minip" or "aip" (alias "avg") into a mode
func ParseProjectionMode(name string) (ProjectionMode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "mip", "max":
		return MaximumIntensity, nil
	case "minip", "min":
		return MinimumIntensity, nil
	case "aip", "avg", "average":
		return AverageIntensity, nil
	default:
		return 0, fmt.Errorf("invalid projection mode: %s (must be mip, minip or aip)", name)
	}
}

// GenerateMIP returns the maximum intensity projection along plane
func GenerateMIP(v *models.Volume, plane models.Plane, slabThickness int) *models.Slice {
	return Project(v, plane, MaximumIntensity, slabThickness)
}

// GenerateMinIP returns the minimum intensity projection along plane
func GenerateMinIP(v *models.Volume, plane models.Plane, slabThickness int) *models.Slice {
	return Project(v, plane, MinimumIntensity, slabThickness)
}

// GenerateAverageIP returns the unweighted mean projection along plane
func GenerateAverageIP(v *models.Volume, plane models.Plane, slabThickness int) *models.Slice {
	return Project(v, plane, AverageIntensity, slabThickness)
}

// SlabLength returns the number of samples combined per output pixel:
// the full extent when slabThickness is 0 or negative, otherwise
// slabThickness capped at the extent.
func SlabLength(extent, slabThickness int) int {
	if slabThickness <= 0 || slabThickness > extent {
		return extent
	}
	return slabThickness
}

// Project reduces the volume along the axis of plane. The slab always
// starts at index 0 of that axis and covers SlabLength samples. The output
// has the same shape and spacing as a slice taken in plane, with Index 0.
// It returns nil for an empty volume, an unknown plane or an unknown mode.
func Project(v *models.Volume, plane models.Plane, mode ProjectionMode, slabThickness int) *models.Slice {
	g, ok := geometryFor(v, plane)
	if !ok || g.extent == 0 {
		return nil
	}

	var reduce func([]float64) float64
	switch mode {
	case MaximumIntensity:
		reduce = floats.Max
	case MinimumIntensity:
		reduce = floats.Min
	case AverageIntensity:
		reduce = func(samples []float64) float64 { return stat.Mean(samples, nil) }
	default:
		return nil
	}

	n := SlabLength(g.extent, slabThickness)
	samples := make([]float64, n)
	pixels := make([]float64, g.width*g.height)
	for row := 0; row < g.height; row++ {
		for col := 0; col < g.width; col++ {
			base := g.offset(col, row, 0)
			for k := 0; k < n; k++ {
				samples[k] = v.AtOffset(base + k*g.axisStride)
			}
			pixels[row*g.width+col] = reduce(samples)
		}
	}

	return &models.Slice{
		Plane:         plane,
		Index:         0,
		Width:         g.width,
		Height:        g.height,
		PixelData:     pixels,
		PixelSpacingX: g.spacingX,
		PixelSpacingY: g.spacingY,
	}
}

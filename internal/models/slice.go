package models

import (
	"fmt"
	"strings"
)

// Plane identifies one of the three canonical orthogonal cross-sections
// through a volume. The plane also names the axis a slice index or a
// projection runs along: axial along Z, sagittal along X, coronal along Y.
type Plane int

const (
	Axial Plane = iota
	Sagittal
	Coronal
)

// Planes lists every supported plane in a stable order
var Planes = []Plane{Axial, Sagittal, Coronal}

// String returns the lower-case anatomical name of the plane
func (p Plane) String() string {
	switch p {
	case Axial:
		return "axial"
	case Sagittal:
		return "sagittal"
	case Coronal:
		return "coronal"
	default:
		return fmt.Sprintf("plane(%d)", int(p))
	}
}

// ParsePlane converts a plane name into a Plane. The axis letters used by
// the slice exporter ("z", "x", "y") are accepted as aliases.
func ParsePlane(name string) (Plane, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "axial", "z":
		return Axial, nil
	case "sagittal", "x":
		return Sagittal, nil
	case "coronal", "y":
		return Coronal, nil
	default:
		return 0, fmt.Errorf("invalid plane: %s (must be axial, sagittal or coronal)", name)
	}
}

// Slice represents a 2D cross-section or projection produced from a volume
type Slice struct {
	// Plane is the orientation the slice was taken in
	Plane Plane

	// Index is the position along the slicing axis. Projections report
	// the start of their slab, which is always 0.
	Index int

	// Width and Height are the dimensions of the output image in pixels
	Width  int
	Height int

	// PixelData holds Width*Height intensities in row-major order
	PixelData []float64

	// PixelSpacingX and PixelSpacingY are the physical distances in mm
	// between neighbouring columns and rows of the output
	PixelSpacingX float64
	PixelSpacingY float64
}

// PixelAt returns the intensity at column col and row row.
// The second return value is false when the position is outside the slice.
func (s *Slice) PixelAt(col, row int) (float64, bool) {
	if col < 0 || row < 0 || col >= s.Width || row >= s.Height {
		return 0, false
	}
	idx := row*s.Width + col
	if idx >= len(s.PixelData) {
		return 0, false
	}
	return s.PixelData[idx], true
}

// PhysicalSize returns the extent of the slice in mm
func (s *Slice) PhysicalSize() (width, height float64) {
	return float64(s.Width) * s.PixelSpacingX, float64(s.Height) * s.PixelSpacingY
}

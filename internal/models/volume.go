package models

import (
	"errors"
	"fmt"
	"sync/atomic"
)

// Default VOI parameters used when a series carries none
const (
	DefaultWindowCenter = 40.0
	DefaultWindowWidth  = 400.0
)

// ErrInvalidVolume is returned when volume geometry or voxel data is inconsistent
var ErrInvalidVolume = errors.New("invalid volume")

var volumeIDs atomic.Uint64

// Vec3 is a triple of physical quantities along X, Y and Z
type Vec3 struct {
	X, Y, Z float64
}

// Volume represents a 3D voxel grid assembled from a stack of 2D slices.
//
// Voxels are stored as a 1D array in row-major order, see Index. A Volume
// is read-only once constructed: NewVolume copies the caller's buffer and
// no method hands out the internal slice, so a Volume can be shared freely
// between goroutines.
type Volume struct {
	id uint64

	// voxels holds the rescaled intensities
	voxels []float64

	// dimensions in voxels along X, Y and Z
	width  int
	height int
	depth  int

	// spacing is the physical distance between voxel centres in mm
	spacing Vec3

	// origin is the physical position of voxel (0,0,0)
	origin Vec3

	rescaleSlope     float64
	rescaleIntercept float64

	windowCenter float64
	windowWidth  float64
}

// VolumeOption customises optional volume metadata
type VolumeOption func(v *Volume)

// WithOrigin sets the physical position of voxel (0,0,0)
func WithOrigin(origin Vec3) VolumeOption {
	return func(v *Volume) {
		v.origin = origin
	}
}

// WithRescale records the slope and intercept that were applied to the
// stored values before they reached the volume
func WithRescale(slope, intercept float64) VolumeOption {
	return func(v *Volume) {
		v.rescaleSlope = slope
		v.rescaleIntercept = intercept
	}
}

// WithWindow sets the default VOI window of the volume
func WithWindow(center, width float64) VolumeOption {
	return func(v *Volume) {
		v.windowCenter = center
		v.windowWidth = width
	}
}

// NewVolume builds a volume from a row-major voxel buffer.
// The buffer is copied; later changes to voxels are not observed.
func NewVolume(voxels []float64, width, height, depth int, spacing Vec3, opts ...VolumeOption) (*Volume, error) {
	if width <= 0 || height <= 0 || depth <= 0 {
		return nil, fmt.Errorf("%w: dimensions %dx%dx%d must be positive", ErrInvalidVolume, width, height, depth)
	}
	if len(voxels) != width*height*depth {
		return nil, fmt.Errorf("%w: got %d voxels, expected %d", ErrInvalidVolume, len(voxels), width*height*depth)
	}
	if !(spacing.X > 0 && spacing.Y > 0 && spacing.Z > 0) {
		return nil, fmt.Errorf("%w: spacing (%g, %g, %g) must be positive", ErrInvalidVolume, spacing.X, spacing.Y, spacing.Z)
	}

	v := &Volume{
		id:               volumeIDs.Add(1),
		voxels:           append([]float64(nil), voxels...),
		width:            width,
		height:           height,
		depth:            depth,
		spacing:          spacing,
		rescaleSlope:     1,
		rescaleIntercept: 0,
		windowCenter:     DefaultWindowCenter,
		windowWidth:      DefaultWindowWidth,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// ID returns a process-unique identifier. Two volumes with identical
// content still have different IDs.
func (v *Volume) ID() uint64 { return v.id }

// Dimensions returns the number of voxels along X, Y and Z
func (v *Volume) Dimensions() (width, height, depth int) {
	return v.width, v.height, v.depth
}

func (v *Volume) Width() int  { return v.width }
func (v *Volume) Height() int { return v.height }
func (v *Volume) Depth() int  { return v.depth }

// Spacing returns the voxel spacing in mm
func (v *Volume) Spacing() Vec3 { return v.spacing }

// Origin returns the physical position of voxel (0,0,0)
func (v *Volume) Origin() Vec3 { return v.origin }

// Rescale returns the slope and intercept applied upstream
func (v *Volume) Rescale() (slope, intercept float64) {
	return v.rescaleSlope, v.rescaleIntercept
}

// Window returns the default window center and width
func (v *Volume) Window() (center, width float64) {
	return v.windowCenter, v.windowWidth
}

// Index converts voxel coordinates to the flat offset z*W*H + y*W + x.
// Callers are responsible for bounds checking.
func (v *Volume) Index(x, y, z int) int {
	return z*v.width*v.height + y*v.width + x
}

// At returns the voxel at (x,y,z) without bounds checking
func (v *Volume) At(x, y, z int) float64 {
	return v.voxels[v.Index(x, y, z)]
}

// AtOffset returns the voxel at a flat offset produced by Index
func (v *Volume) AtOffset(offset int) float64 {
	return v.voxels[offset]
}

// VoxelValue returns the voxel at (x,y,z).
// The second return value is false when any coordinate is outside the volume.
func (v *Volume) VoxelValue(x, y, z int) (float64, bool) {
	if x < 0 || y < 0 || z < 0 || x >= v.width || y >= v.height || z >= v.depth {
		return 0, false
	}
	idx := v.Index(x, y, z)
	if idx >= len(v.voxels) {
		return 0, false
	}
	return v.voxels[idx], true
}

// VoxelCount returns width*height*depth
func (v *Volume) VoxelCount() int {
	return v.width * v.height * v.depth
}

// PhysicalSize returns the extent of the volume in mm
func (v *Volume) PhysicalSize() Vec3 {
	return Vec3{
		X: float64(v.width) * v.spacing.X,
		Y: float64(v.height) * v.spacing.Y,
		Z: float64(v.depth) * v.spacing.Z,
	}
}

// WorldPosition maps voxel coordinates to physical coordinates
func (v *Volume) WorldPosition(x, y, z int) Vec3 {
	return Vec3{
		X: v.origin.X + float64(x)*v.spacing.X,
		Y: v.origin.Y + float64(y)*v.spacing.Y,
		Z: v.origin.Z + float64(z)*v.spacing.Z,
	}
}

// IsEmpty reports whether the volume holds no voxels
func (v *Volume) IsEmpty() bool {
	return v == nil || v.width <= 0 || v.height <= 0 || v.depth <= 0 || len(v.voxels) != v.VoxelCount()
}

// Voxels returns a copy of the voxel buffer
func (v *Volume) Voxels() []float64 {
	return append([]float64(nil), v.voxels...)
}

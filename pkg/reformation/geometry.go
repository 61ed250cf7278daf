// Package reformation extracts orthogonal cross-sections and intensity
// projections from a volume.
//
// Every function is a pure function of its inputs: the volume is only read,
// each result owns a freshly allocated pixel buffer, and no package level
// state exists. Functions can therefore be called concurrently on the same
// volume. Invalid input (an index outside the volume, a degenerate volume,
// an unknown plane) yields nil rather than an error.
package reformation

import (
	"dicomreformat/internal/models"
)

// planeGeometry describes how a plane's output pixels and its slicing axis
// map onto the volume's flat voxel buffer
type planeGeometry struct {
	// width and height of the output image
	width  int
	height int

	// extent is the number of voxels along the slicing axis
	extent int

	// physical spacing of the output columns and rows
	spacingX float64
	spacingY float64

	// strides in the flat buffer for a step along output column, output
	// row and slicing axis respectively
	colStride  int
	rowStride  int
	axisStride int
}

// offset returns the flat voxel offset for output pixel (col,row) at
// position k along the slicing axis
func (g planeGeometry) offset(col, row, k int) int {
	return col*g.colStride + row*g.rowStride + k*g.axisStride
}

// geometryFor returns the mapping for plane. Strides are derived from
// Volume.Index so slicing and projection share one addressing function.
func geometryFor(v *models.Volume, plane models.Plane) (planeGeometry, bool) {
	if v.IsEmpty() {
		return planeGeometry{}, false
	}
	w, h, d := v.Dimensions()
	spacing := v.Spacing()
	strideX := v.Index(1, 0, 0)
	strideY := v.Index(0, 1, 0)
	strideZ := v.Index(0, 0, 1)

	switch plane {
	case models.Axial:
		// (row=y, col=x) <- voxel(x, y, index)
		return planeGeometry{
			width: w, height: h, extent: d,
			spacingX: spacing.X, spacingY: spacing.Y,
			colStride: strideX, rowStride: strideY, axisStride: strideZ,
		}, true
	case models.Sagittal:
		// (row=y, col=z) <- voxel(index, y, z)
		return planeGeometry{
			width: d, height: h, extent: w,
			spacingX: spacing.Z, spacingY: spacing.Y,
			colStride: strideZ, rowStride: strideY, axisStride: strideX,
		}, true
	case models.Coronal:
		// (row=z, col=x) <- voxel(x, index, z)
		return planeGeometry{
			width: w, height: d, extent: h,
			spacingX: spacing.X, spacingY: spacing.Z,
			colStride: strideX, rowStride: strideZ, axisStride: strideY,
		}, true
	default:
		return planeGeometry{}, false
	}
}

// MaxSliceIndex returns the largest valid slice index for plane:
// depth-1 for axial, width-1 for sagittal and height-1 for coronal.
// It returns -1 for an empty volume or an unknown plane.
func MaxSliceIndex(plane models.Plane, v *models.Volume) int {
	g, ok := geometryFor(v, plane)
	if !ok {
		return -1
	}
	return g.extent - 1
}

// SliceCount returns the number of slices available along plane
func SliceCount(plane models.Plane, v *models.Volume) int {
	return MaxSliceIndex(plane, v) + 1
}

package reformation

import (
	"dicomreformat/internal/models"
)

// ExtractAxialSlice returns the XY plane at z = index.
// The result is Width x Height with spacing (X, Y).
func ExtractAxialSlice(v *models.Volume, index int) *models.Slice {
	return extract(v, models.Axial, index)
}

// ExtractSagittalSlice returns the YZ plane at x = index.
// The result is Depth x Height with spacing (Z, Y).
func ExtractSagittalSlice(v *models.Volume, index int) *models.Slice {
	return extract(v, models.Sagittal, index)
}

// ExtractCoronalSlice returns the XZ plane at y = index.
// The result is Width x Depth with spacing (X, Z).
func ExtractCoronalSlice(v *models.Volume, index int) *models.Slice {
	return extract(v, models.Coronal, index)
}

// ExtractSlice dispatches to the plane specific extractor
func ExtractSlice(v *models.Volume, plane models.Plane, index int) *models.Slice {
	switch plane {
	case models.Axial:
		return ExtractAxialSlice(v, index)
	case models.Sagittal:
		return ExtractSagittalSlice(v, index)
	case models.Coronal:
		return ExtractCoronalSlice(v, index)
	default:
		return nil
	}
}

func extract(v *models.Volume, plane models.Plane, index int) *models.Slice {
	g, ok := geometryFor(v, plane)
	if !ok || index < 0 || index >= g.extent {
		return nil
	}

	pixels := make([]float64, g.width*g.height)
	for row := 0; row < g.height; row++ {
		for col := 0; col < g.width; col++ {
			pixels[row*g.width+col] = v.AtOffset(g.offset(col, row, index))
		}
	}

	return &models.Slice{
		Plane:         plane,
		Index:         index,
		Width:         g.width,
		Height:        g.height,
		PixelData:     pixels,
		PixelSpacingX: g.spacingX,
		PixelSpacingY: g.spacingY,
	}
}

// ExtractSubVolume crops the region starting at (x0,y0,z0) with size
// (sx,sy,sz). The crop keeps the source spacing, window and rescale, and
// its origin is moved to the physical position of the first cropped voxel.
// It returns nil when the region does not lie entirely inside the volume.
func ExtractSubVolume(v *models.Volume, x0, y0, z0, sx, sy, sz int) *models.Volume {
	if v.IsEmpty() {
		return nil
	}
	if x0 < 0 || y0 < 0 || z0 < 0 || sx <= 0 || sy <= 0 || sz <= 0 {
		return nil
	}
	w, h, d := v.Dimensions()
	if x0+sx > w || y0+sy > h || z0+sz > d {
		return nil
	}

	region := make([]float64, sx*sy*sz)
	for z := 0; z < sz; z++ {
		for y := 0; y < sy; y++ {
			for x := 0; x < sx; x++ {
				region[z*sx*sy+y*sx+x] = v.At(x0+x, y0+y, z0+z)
			}
		}
	}

	slope, intercept := v.Rescale()
	center, width := v.Window()
	sub, err := models.NewVolume(region, sx, sy, sz, v.Spacing(),
		models.WithOrigin(v.WorldPosition(x0, y0, z0)),
		models.WithRescale(slope, intercept),
		models.WithWindow(center, width))
	if err != nil {
		return nil
	}
	return sub
}

package visualization

import (
	"image"
	"image/color"
	"math"

	"dicomreformat/internal/models"
)

// validShape reports whether the slice can be rendered
func validShape(s *models.Slice) bool {
	return s != nil && s.Width > 0 && s.Height > 0 && len(s.PixelData) == s.Width*s.Height
}

// RenderSlice windows a slice into an 8-bit display image.
// It returns nil for an empty slice or when the pixel buffer does not
// match the declared dimensions.
func RenderSlice(s *models.Slice, windowCenter, windowWidth float64) *image.Gray {
	if !validShape(s) {
		return nil
	}
	img := image.NewGray(image.Rect(0, 0, s.Width, s.Height))
	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			value := ApplyLinearVOI(s.PixelData[y*s.Width+x], windowCenter, windowWidth, 0, math.MaxUint8)
			img.SetGray(x, y, color.Gray{Y: uint8(math.Round(value))})
		}
	}
	return img
}

// RenderSlice16 windows a slice into a 16-bit image for lossless export
func RenderSlice16(s *models.Slice, windowCenter, windowWidth float64) *image.Gray16 {
	if !validShape(s) {
		return nil
	}
	img := image.NewGray16(image.Rect(0, 0, s.Width, s.Height))
	for y := 0; y < s.Height; y++ {
		for x := 0; x < s.Width; x++ {
			value := ApplyLinearVOI(s.PixelData[y*s.Width+x], windowCenter, windowWidth, 0, math.MaxUint16)
			img.SetGray16(x, y, color.Gray16{Y: uint16(math.Round(value))})
		}
	}
	return img
}

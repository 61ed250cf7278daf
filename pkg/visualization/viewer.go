package visualization

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/sync/errgroup"

	"dicomreformat/internal/models"
	"dicomreformat/pkg/reformation"
)

// ErrNoImage is returned when a slice or projection cannot be computed
// for the requested plane and index
var ErrNoImage = errors.New("no image at requested position")

// ExportOptions controls how rendered images are written
type ExportOptions struct {
	// Format is the output encoding, "jpg" or "png"
	Format string

	// JPEGQuality is passed to the JPEG encoder (1-100)
	JPEGQuality int

	// Annotate draws the plane and index in the top left corner
	Annotate bool

	// PhysicalAspect resamples anisotropic slices so one output pixel
	// covers the same physical distance along both axes
	PhysicalAspect bool

	// Workers bounds the number of images rendered in parallel
	Workers int
}

// DefaultExportOptions returns JPEG output at quality 90
func DefaultExportOptions() ExportOptions {
	return ExportOptions{
		Format:      "jpg",
		JPEGQuality: 90,
		Workers:     runtime.NumCPU(),
	}
}

// Viewer renders and exports windowed slices and projections of a volume
type Viewer struct {
	// volume is the source data; it is never modified
	volume *models.Volume

	// window is the VOI applied to every rendered image
	window Window

	opts ExportOptions
}

// NewViewer creates a viewer over volume using window for display
func NewViewer(volume *models.Volume, window Window, opts ExportOptions) *Viewer {
	if opts.Format == "" {
		opts.Format = "jpg"
	}
	if opts.JPEGQuality <= 0 || opts.JPEGQuality > 100 {
		opts.JPEGQuality = 90
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	return &Viewer{
		volume: volume,
		window: window,
		opts:   opts,
	}
}

// Window returns the display window of the viewer
func (v *Viewer) Window() Window { return v.window }

// WithWindow returns a copy of the viewer using a different window
func (v *Viewer) WithWindow(w Window) *Viewer {
	c := *v
	c.window = w
	return &c
}

// Render extracts the slice at index along plane and windows it
func (v *Viewer) Render(plane models.Plane, index int) (image.Image, error) {
	s := reformation.ExtractSlice(v.volume, plane, index)
	if s == nil {
		return nil, fmt.Errorf("%w: %s index %d (max %d)", ErrNoImage, plane, index, reformation.MaxSliceIndex(plane, v.volume))
	}
	label := fmt.Sprintf("%s %d/%d", strings.ToUpper(plane.String()), index+1, reformation.SliceCount(plane, v.volume))
	return v.finish(s, label)
}

// RenderProjection computes an intensity projection along plane and windows it
func (v *Viewer) RenderProjection(plane models.Plane, mode reformation.ProjectionMode, slabThickness int) (image.Image, error) {
	s := reformation.Project(v.volume, plane, mode, slabThickness)
	if s == nil {
		return nil, fmt.Errorf("%w: %s projection along %s", ErrNoImage, mode, plane)
	}
	n := reformation.SlabLength(reformation.SliceCount(plane, v.volume), slabThickness)
	label := fmt.Sprintf("%s %s SLAB %d", strings.ToUpper(mode.String()), strings.ToUpper(plane.String()), n)
	return v.finish(s, label)
}

// finish windows, resamples and labels a slice
func (v *Viewer) finish(s *models.Slice, label string) (image.Image, error) {
	if !validShape(s) {
		return nil, fmt.Errorf("failed to render %s slice %d: invalid shape %dx%d", s.Plane, s.Index, s.Width, s.Height)
	}
	var img draw.Image
	if strings.EqualFold(v.opts.Format, "png") {
		img = RenderSlice16(s, v.window.Center, v.window.Width)
	} else {
		img = RenderSlice(s, v.window.Center, v.window.Width)
	}
	if v.opts.PhysicalAspect {
		img = ResampleToPhysicalAspect(img, s.PixelSpacingX, s.PixelSpacingY)
	}
	if v.opts.Annotate {
		DrawLabel(img, label)
	}
	return img, nil
}

// MaxAspectScale bounds the stretch applied by ResampleToPhysicalAspect
const MaxAspectScale = 8

// ResampleToPhysicalAspect scales img so that both axes use the finer of
// the two spacings. The coarser axis is stretched by at most MaxAspectScale.
// Isotropic or invalid spacings return img unchanged.
func ResampleToPhysicalAspect(img draw.Image, spacingX, spacingY float64) draw.Image {
	if spacingX <= 0 || spacingY <= 0 || spacingX == spacingY {
		return img
	}
	target := math.Min(spacingX, spacingY)
	scaleX := math.Min(spacingX/target, MaxAspectScale)
	scaleY := math.Min(spacingY/target, MaxAspectScale)
	b := img.Bounds()
	w := int(math.Round(float64(b.Dx()) * scaleX))
	h := int(math.Round(float64(b.Dy()) * scaleY))
	if w == b.Dx() && h == b.Dy() {
		return img
	}

	var dst draw.Image
	switch img.(type) {
	case *image.Gray16:
		dst = image.NewGray16(image.Rect(0, 0, w, h))
	default:
		dst = image.NewGray(image.Rect(0, 0, w, h))
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)
	return dst
}

// DrawLabel writes text in the top left corner of img
func DrawLabel(img draw.Image, text string) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(img.Bounds().Min.X+2, img.Bounds().Min.Y+13),
	}
	d.DrawString(text)
}

// SaveImage encodes img as JPEG or PNG depending on the file extension
func (v *Viewer) SaveImage(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		err = png.Encode(file, img)
	case ".jpg", ".jpeg":
		err = jpeg.Encode(file, img, &jpeg.Options{Quality: v.opts.JPEGQuality})
	default:
		return fmt.Errorf("unsupported image format: %s", filepath.Ext(filename))
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", filename, err)
	}
	return file.Close()
}

// SaveSlice renders and saves the slice at index along plane
func (v *Viewer) SaveSlice(plane models.Plane, index int, filename string) error {
	img, err := v.Render(plane, index)
	if err != nil {
		return err
	}
	return v.SaveImage(img, filename)
}

// SaveProjection renders and saves a projection along plane
func (v *Viewer) SaveProjection(plane models.Plane, mode reformation.ProjectionMode, slabThickness int, filename string) error {
	img, err := v.RenderProjection(plane, mode, slabThickness)
	if err != nil {
		return err
	}
	return v.SaveImage(img, filename)
}

// SliceFilename returns the file name used for a slice in a sequence
func (v *Viewer) SliceFilename(plane models.Plane, index int) string {
	return fmt.Sprintf("slice_%s_%03d.%s", plane, index, v.opts.Format)
}

// SaveSliceSequence renders every slice along plane into outputDir and
// returns the written paths in index order
func (v *Viewer) SaveSliceSequence(ctx context.Context, plane models.Plane, outputDir string) ([]string, error) {
	count := reformation.SliceCount(plane, v.volume)
	if count <= 0 {
		return nil, fmt.Errorf("%w: %s sequence of an empty volume", ErrNoImage, plane)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	paths := make([]string, count)
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(v.opts.Workers)
	for pos := 0; pos < count; pos++ {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			filename := filepath.Join(outputDir, v.SliceFilename(plane, pos))
			if err := v.SaveSlice(plane, pos, filename); err != nil {
				return fmt.Errorf("failed to save %s slice %d: %w", plane, pos, err)
			}
			paths[pos] = filename
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

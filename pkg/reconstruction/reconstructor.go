// Package reconstruction assembles a volume from a directory of 2D slices.
//
// DICOM series are decoded with their geometry (pixel spacing, image
// position and orientation), rescale and window. Directories holding no
// DICOM files fall back to numbered JPEG/PNG stacks whose spacing comes
// from Params.
package reconstruction

import (
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"dicomreformat/internal/models"
)

// Params holds the assembly parameters
type Params struct {
	// InputDir is the directory containing the slices of one series
	InputDir string

	// NumCores specifies how many files are decoded in parallel
	NumCores int

	// SliceGap is the distance between slices in mm. It is used when the
	// files do not carry enough geometry to derive it.
	SliceGap float64

	// PixelSpacing is the in-plane spacing in mm used when the files
	// carry none
	PixelSpacing float64

	// Verbose prints progress while decoding
	Verbose bool
}

// Reconstructor builds a volume from the slices found in Params.InputDir
type Reconstructor struct {
	params *Params
}

// NewReconstructor creates a new reconstructor instance with the provided parameters
func NewReconstructor(params *Params) *Reconstructor {
	return &Reconstructor{params: params}
}

// Load reads every slice in the input directory and stacks them into a volume
func (r *Reconstructor) Load(ctx context.Context) (*models.Volume, error) {
	entries, err := os.ReadDir(r.params.InputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read input directory: %w", err)
	}

	var dicomFiles, imageFiles []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		switch strings.ToLower(filepath.Ext(name)) {
		case ".jpg", ".jpeg", ".png":
			imageFiles = append(imageFiles, name)
		case ".txt", ".json", ".yaml", ".yml", ".md":
		default:
			dicomFiles = append(dicomFiles, name)
		}
	}

	if len(dicomFiles) > 0 {
		instances, err := r.decodeInstances(ctx, dicomFiles)
		if err != nil {
			return nil, err
		}
		if len(instances) > 0 {
			return r.assembleSeries(instances)
		}
	}

	if len(imageFiles) == 0 {
		return nil, fmt.Errorf("no DICOM or image slices found in %s", r.params.InputDir)
	}
	return r.loadImageStack(ctx, imageFiles)
}

// decodeInstances parses files in parallel. Files that are not DICOM, and
// DICOM objects without pixel data, are skipped; any other failure aborts
// the load.
func (r *Reconstructor) decodeInstances(ctx context.Context, files []string) ([]*instance, error) {
	workers := r.params.NumCores
	if workers < 1 {
		workers = 1
	}

	type decodeResult struct {
		inst *instance
		name string
		err  error
	}

	jobs := make(chan string)
	results := make(chan decodeResult)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range jobs {
				inst, err := parseInstance(filepath.Join(r.params.InputDir, name))
				results <- decodeResult{inst: inst, name: name, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, name := range files {
			select {
			case jobs <- name:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var instances []*instance
	var firstErr error
	completed := 0
	for res := range results {
		completed++
		switch {
		case res.err == nil:
			instances = append(instances, res.inst)
		case isSkippable(res.err):
			log.Printf("Skipping %s: %v", res.name, res.err)
		case firstErr == nil:
			firstErr = fmt.Errorf("failed to decode %s: %w", res.name, res.err)
		}
		if r.params.Verbose {
			fmt.Printf("\rDecoding instances: %.1f%% complete", float64(completed)/float64(len(files))*100)
		}
	}
	if r.params.Verbose {
		fmt.Println()
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return instances, nil
}

// loadImageStack stacks numbered grey-scale images into a volume. Intensities
// are the 16-bit grey level of each pixel.
func (r *Reconstructor) loadImageStack(ctx context.Context, files []string) (*models.Volume, error) {
	// Sort by the number embedded in the file name to keep anatomical order
	sort.SliceStable(files, func(i, j int) bool {
		return extractNumber(files[i]) < extractNumber(files[j])
	})

	var width, height int
	var voxels []float64
	for i, filename := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := loadImage(filepath.Join(r.params.InputDir, filename))
		if err != nil {
			return nil, fmt.Errorf("failed to load image %s: %w", filename, err)
		}

		bounds := img.Bounds()
		if i == 0 {
			width, height = bounds.Dx(), bounds.Dy()
			voxels = make([]float64, 0, width*height*len(files))
		} else if bounds.Dx() != width || bounds.Dy() != height {
			return nil, fmt.Errorf("image %s is %dx%d, expected %dx%d", filename, bounds.Dx(), bounds.Dy(), width, height)
		}
		voxels = append(voxels, imageToFloat(img)...)
	}

	if r.params.Verbose {
		fmt.Printf("Loaded %d slices with dimensions %dx%d\n", len(files), width, height)
		fmt.Printf("Inter-slice gap: %.1f mm\n", r.params.SliceGap)
	}

	spacing := models.Vec3{X: r.params.PixelSpacing, Y: r.params.PixelSpacing, Z: r.params.SliceGap}
	v, err := models.NewVolume(voxels, width, height, len(files), spacing,
		models.WithWindow(32767.5, 65536))
	if err != nil {
		return nil, fmt.Errorf("failed to build volume: %w", err)
	}
	return v, nil
}

// extractNumber extracts the numeric part from a filename
func extractNumber(filename string) int {
	base := filepath.Base(filename)
	numStr := ""
	for _, c := range base {
		if c >= '0' && c <= '9' {
			numStr += string(c)
		}
	}

	if numStr != "" {
		num, err := strconv.Atoi(numStr)
		if err == nil {
			return num
		}
	}
	return 0
}

// loadImage loads a JPEG or PNG image from a file
func loadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		return nil, err
	}
	return img, nil
}

// imageToFloat converts an image to 16-bit grey levels in row-major order
func imageToFloat(img image.Image) []float64 {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	result := make([]float64, width*height)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			r, _, _, _ := img.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			result[y*width+x] = float64(r)
		}
	}
	return result
}

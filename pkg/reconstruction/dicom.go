package reconstruction

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/frame"
	"github.com/suyashkumar/dicom/pkg/tag"

	"dicomreformat/internal/models"
)

var (
	// errNotDICOM marks files without the DICM preamble
	errNotDICOM = errors.New("not a DICOM file")

	// errNoImage marks DICOM objects without pixel data, such as DICOMDIR
	// files, structured reports and presentation states
	errNoImage = errors.New("not an image instance")
)

// isSkippable reports whether a file is ignored rather than failing the load
func isSkippable(err error) bool {
	return errors.Is(err, errNotDICOM) || errors.Is(err, errNoImage)
}

// instance is one decoded image of a series
type instance struct {
	path string

	rows int
	cols int

	// rowSpacing is the distance between rows (Y), colSpacing between columns (X)
	rowSpacing float64
	colSpacing float64

	// position and orientation are nil when the tags are absent
	position    []float64
	orientation []float64

	instanceNumber int

	slope     float64
	intercept float64

	windowCenter float64
	windowWidth  float64
	hasWindow    bool

	sliceThickness       float64
	spacingBetweenSlices float64

	// pixels are the rescaled intensities of the first frame
	pixels []float64
}

// sniffDICOM checks the 128 byte preamble followed by "DICM"
func sniffDICOM(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	header := make([]byte, 132)
	if _, err := io.ReadFull(f, header); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return errNotDICOM
		}
		return err
	}
	if !bytes.Equal(header[128:], []byte("DICM")) {
		return errNotDICOM
	}
	return nil
}

// parseInstance decodes geometry, rescale, window and pixels of one file
func parseInstance(path string) (*instance, error) {
	if err := sniffDICOM(path); err != nil {
		return nil, err
	}

	ds, err := dicom.ParseFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}

	inst := &instance{
		path:      path,
		slope:     1,
		intercept: 0,
	}

	rows := elementInts(&ds, tag.Rows)
	cols := elementInts(&ds, tag.Columns)
	if len(rows) == 0 || len(cols) == 0 {
		return nil, fmt.Errorf("%w: missing Rows/Columns", errNoImage)
	}
	if rows[0] <= 0 || cols[0] <= 0 {
		return nil, fmt.Errorf("invalid image size %dx%d", cols[0], rows[0])
	}
	inst.rows, inst.cols = rows[0], cols[0]

	if spacing := elementFloats(&ds, tag.PixelSpacing); len(spacing) >= 2 {
		inst.rowSpacing, inst.colSpacing = spacing[0], spacing[1]
	}
	if pos := elementFloats(&ds, tag.ImagePositionPatient); len(pos) == 3 {
		inst.position = pos
	}
	if orient := elementFloats(&ds, tag.ImageOrientationPatient); len(orient) == 6 {
		inst.orientation = orient
	}
	if n := elementFloats(&ds, tag.InstanceNumber); len(n) > 0 {
		inst.instanceNumber = int(n[0])
	}
	if v := elementFloats(&ds, tag.RescaleSlope); len(v) > 0 && v[0] != 0 {
		inst.slope = v[0]
	}
	if v := elementFloats(&ds, tag.RescaleIntercept); len(v) > 0 {
		inst.intercept = v[0]
	}
	center := elementFloats(&ds, tag.WindowCenter)
	width := elementFloats(&ds, tag.WindowWidth)
	if len(center) > 0 && len(width) > 0 && width[0] > 0 {
		inst.windowCenter, inst.windowWidth, inst.hasWindow = center[0], width[0], true
	}
	if v := elementFloats(&ds, tag.SliceThickness); len(v) > 0 {
		inst.sliceThickness = v[0]
	}
	if v := elementFloats(&ds, tag.SpacingBetweenSlices); len(v) > 0 {
		inst.spacingBetweenSlices = v[0]
	}

	signed := false
	if v := elementInts(&ds, tag.PixelRepresentation); len(v) > 0 {
		signed = v[0] == 1
	}

	raw, err := firstFrameSamples(&ds, inst.rows*inst.cols, signed)
	if err != nil {
		return nil, err
	}
	inst.pixels = make([]float64, len(raw))
	for i, v := range raw {
		inst.pixels[i] = v*inst.slope + inst.intercept
	}
	return inst, nil
}

// elementInts returns the integer values of t, or nil when absent
func elementInts(ds *dicom.Dataset, t tag.Tag) []int {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem == nil || elem.Value == nil {
		return nil
	}
	switch v := elem.Value.GetValue().(type) {
	case []int:
		return v
	case []string:
		var out []int
		for _, s := range v {
			n, err := strconv.Atoi(strings.TrimSpace(s))
			if err != nil {
				return nil
			}
			out = append(out, n)
		}
		return out
	}
	return nil
}

// elementFloats returns the numeric values of t. Decimal and integer
// strings are parsed; unparsable values yield nil.
func elementFloats(ds *dicom.Dataset, t tag.Tag) []float64 {
	elem, err := ds.FindElementByTag(t)
	if err != nil || elem == nil || elem.Value == nil {
		return nil
	}
	switch v := elem.Value.GetValue().(type) {
	case []float64:
		return v
	case []int:
		out := make([]float64, len(v))
		for i, n := range v {
			out[i] = float64(n)
		}
		return out
	case []string:
		var out []float64
		for _, s := range v {
			s = strings.TrimSpace(strings.TrimRight(s, "\x00"))
			if s == "" {
				continue
			}
			f, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil
			}
			out = append(out, f)
		}
		return out
	}
	return nil
}

type unsignedSample interface {
	~uint8 | ~uint16 | ~uint32
}

// samplesToFloat converts exactly n single-channel samples. When signed is
// set, unsigned storage is reinterpreted as two's complement of the same width.
func samplesToFloat[I unsignedSample](raw []I, n int, signed bool, toSigned func(I) float64) ([]float64, error) {
	if len(raw) < n {
		return nil, fmt.Errorf("pixel data holds %d samples, expected %d", len(raw), n)
	}
	if len(raw) != n {
		return nil, fmt.Errorf("unsupported samples per pixel: %d samples for %d pixels", len(raw), n)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		if signed {
			out[i] = toSigned(raw[i])
		} else {
			out[i] = float64(raw[i])
		}
	}
	return out, nil
}

// firstFrameSamples returns the stored values of the first native frame
func firstFrameSamples(ds *dicom.Dataset, n int, signed bool) ([]float64, error) {
	elem, err := ds.FindElementByTag(tag.PixelData)
	if err != nil {
		return nil, fmt.Errorf("%w: missing pixel data", errNoImage)
	}
	info, ok := elem.Value.GetValue().(dicom.PixelDataInfo)
	if !ok || len(info.Frames) == 0 {
		return nil, fmt.Errorf("missing pixel data frames")
	}
	f := info.Frames[0]
	if f.Encapsulated {
		return nil, fmt.Errorf("encapsulated (compressed) pixel data is not supported")
	}

	switch nf := f.NativeData.(type) {
	case *frame.NativeFrame[uint8]:
		return samplesToFloat(nf.RawData, n, signed, func(v uint8) float64 { return float64(int8(v)) })
	case *frame.NativeFrame[uint16]:
		return samplesToFloat(nf.RawData, n, signed, func(v uint16) float64 { return float64(int16(v)) })
	case *frame.NativeFrame[uint32]:
		return samplesToFloat(nf.RawData, n, signed, func(v uint32) float64 { return float64(int32(v)) })
	default:
		return nil, fmt.Errorf("unsupported native frame type %T", f.NativeData)
	}
}

// sliceNormal returns the unit normal of the image plane
func (inst *instance) sliceNormal() ([3]float64, bool) {
	if inst.orientation == nil {
		return [3]float64{}, false
	}
	r := inst.orientation[0:3]
	c := inst.orientation[3:6]
	n := [3]float64{
		r[1]*c[2] - r[2]*c[1],
		r[2]*c[0] - r[0]*c[2],
		r[0]*c[1] - r[1]*c[0],
	}
	length := math.Sqrt(n[0]*n[0] + n[1]*n[1] + n[2]*n[2])
	if length == 0 {
		return [3]float64{}, false
	}
	return [3]float64{n[0] / length, n[1] / length, n[2] / length}, true
}

// sortInstances orders by position along the slice normal when every
// instance carries geometry, otherwise by InstanceNumber. It returns the
// positions along the normal, or nil when geometry was not used.
func sortInstances(instances []*instance) []float64 {
	normal, ok := instances[0].sliceNormal()
	for _, inst := range instances {
		if inst.position == nil {
			ok = false
			break
		}
	}

	if !ok {
		sort.SliceStable(instances, func(i, j int) bool {
			if instances[i].instanceNumber != instances[j].instanceNumber {
				return instances[i].instanceNumber < instances[j].instanceNumber
			}
			return instances[i].path < instances[j].path
		})
		return nil
	}

	distance := func(inst *instance) float64 {
		return inst.position[0]*normal[0] + inst.position[1]*normal[1] + inst.position[2]*normal[2]
	}
	sort.SliceStable(instances, func(i, j int) bool {
		di, dj := distance(instances[i]), distance(instances[j])
		if di != dj {
			return di < dj
		}
		return instances[i].instanceNumber < instances[j].instanceNumber
	})

	positions := make([]float64, len(instances))
	for i, inst := range instances {
		positions[i] = distance(inst)
	}
	return positions
}

// sliceSpacing derives the Z spacing: mean gap between positions, then
// SpacingBetweenSlices, SliceThickness and finally the configured gap
func (r *Reconstructor) sliceSpacing(first *instance, positions []float64) float64 {
	if len(positions) > 1 {
		total := positions[len(positions)-1] - positions[0]
		if gap := math.Abs(total) / float64(len(positions)-1); gap > 0 {
			return gap
		}
	}
	switch {
	case first.spacingBetweenSlices > 0:
		return first.spacingBetweenSlices
	case first.sliceThickness > 0:
		return first.sliceThickness
	case r.params.SliceGap > 0:
		return r.params.SliceGap
	default:
		return 1
	}
}

// assembleSeries stacks decoded instances into a volume
func (r *Reconstructor) assembleSeries(instances []*instance) (*models.Volume, error) {
	positions := sortInstances(instances)
	first := instances[0]

	for _, inst := range instances[1:] {
		if inst.rows != first.rows || inst.cols != first.cols {
			return nil, fmt.Errorf("instance %s is %dx%d, expected %dx%d", inst.path, inst.cols, inst.rows, first.cols, first.rows)
		}
	}

	spacing := models.Vec3{
		X: first.colSpacing,
		Y: first.rowSpacing,
		Z: r.sliceSpacing(first, positions),
	}
	if spacing.X <= 0 || spacing.Y <= 0 {
		fallback := r.params.PixelSpacing
		if fallback <= 0 {
			fallback = 1
		}
		spacing.X, spacing.Y = fallback, fallback
	}

	sliceSize := first.rows * first.cols
	voxels := make([]float64, 0, sliceSize*len(instances))
	for _, inst := range instances {
		voxels = append(voxels, inst.pixels...)
	}

	opts := []models.VolumeOption{models.WithRescale(first.slope, first.intercept)}
	if first.position != nil {
		opts = append(opts, models.WithOrigin(models.Vec3{X: first.position[0], Y: first.position[1], Z: first.position[2]}))
	}
	for _, inst := range instances {
		if inst.hasWindow {
			opts = append(opts, models.WithWindow(inst.windowCenter, inst.windowWidth))
			break
		}
	}

	v, err := models.NewVolume(voxels, first.cols, first.rows, len(instances), spacing, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build volume: %w", err)
	}

	if r.params.Verbose {
		fmt.Printf("Loaded %d instances with dimensions %dx%d\n", len(instances), first.cols, first.rows)
		fmt.Printf("Spacing: %.3f x %.3f x %.3f mm\n", spacing.X, spacing.Y, spacing.Z)
	}
	return v, nil
}

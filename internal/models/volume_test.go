package models

import (
	"errors"
	"math"
	"testing"
)

// newGradientVolume builds a volume where voxel(x,y,z) = z*W*H + y*W + x
func newGradientVolume(t *testing.T, width, height, depth int) *Volume {
	t.Helper()
	data := make([]float64, width*height*depth)
	for i := range data {
		data[i] = float64(i)
	}
	v, err := NewVolume(data, width, height, depth, Vec3{1, 1, 1})
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	return v
}

func TestVoxelValue(t *testing.T) {
	width, height, depth := 4, 3, 2
	v := newGradientVolume(t, width, height, depth)

	for z := 0; z < depth; z++ {
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				got, ok := v.VoxelValue(x, y, z)
				if !ok {
					t.Fatalf("Expected voxel at (%d,%d,%d)", x, y, z)
				}
				expected := float64(z*width*height + y*width + x)
				if got != expected {
					t.Errorf("Expected voxel (%d,%d,%d) = %f, got %f", x, y, z, expected, got)
				}
			}
		}
	}

	outside := [][3]int{
		{-1, 0, 0}, {0, -1, 0}, {0, 0, -1},
		{width, 0, 0}, {0, height, 0}, {0, 0, depth},
	}
	for _, c := range outside {
		if _, ok := v.VoxelValue(c[0], c[1], c[2]); ok {
			t.Errorf("Expected no voxel at %v", c)
		}
	}
}

func TestNewVolumeValidation(t *testing.T) {
	cases := []struct {
		name    string
		voxels  []float64
		w, h, d int
		spacing Vec3
	}{
		{"zero width", nil, 0, 1, 1, Vec3{1, 1, 1}},
		{"short buffer", make([]float64, 5), 2, 2, 2, Vec3{1, 1, 1}},
		{"zero spacing", make([]float64, 8), 2, 2, 2, Vec3{1, 0, 1}},
		{"negative spacing", make([]float64, 8), 2, 2, 2, Vec3{1, 1, -2}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewVolume(tc.voxels, tc.w, tc.h, tc.d, tc.spacing)
			if !errors.Is(err, ErrInvalidVolume) {
				t.Errorf("Expected ErrInvalidVolume, got %v", err)
			}
		})
	}
}

func TestVolumeDefaultsAndOptions(t *testing.T) {
	data := make([]float64, 8)
	v, err := NewVolume(data, 2, 2, 2, Vec3{1, 1, 1})
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	if c, w := v.Window(); c != 40 || w != 400 {
		t.Errorf("Expected default window 40/400, got %f/%f", c, w)
	}
	if slope, intercept := v.Rescale(); slope != 1 || intercept != 0 {
		t.Errorf("Expected identity rescale, got %f/%f", slope, intercept)
	}
	if v.Origin() != (Vec3{}) {
		t.Errorf("Expected zero origin, got %+v", v.Origin())
	}

	v, err = NewVolume(data, 2, 2, 2, Vec3{1, 1, 1},
		WithOrigin(Vec3{-100, -50, 10}),
		WithRescale(2, -1024),
		WithWindow(-600, 1500))
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	if c, w := v.Window(); c != -600 || w != 1500 {
		t.Errorf("Expected window -600/1500, got %f/%f", c, w)
	}
	if slope, intercept := v.Rescale(); slope != 2 || intercept != -1024 {
		t.Errorf("Expected rescale 2/-1024, got %f/%f", slope, intercept)
	}
	pos := v.WorldPosition(1, 1, 1)
	if pos != (Vec3{-99, -49, 11}) {
		t.Errorf("Expected world position (-99,-49,11), got %+v", pos)
	}
}

func TestPhysicalSize(t *testing.T) {
	v, err := NewVolume(make([]float64, 5*4*3), 5, 4, 3, Vec3{0.5, 0.75, 2.0})
	if err != nil {
		t.Fatalf("Failed to create volume: %v", err)
	}
	size := v.PhysicalSize()
	expected := Vec3{2.5, 3.0, 6.0}
	if math.Abs(size.X-expected.X) > 1e-9 || math.Abs(size.Y-expected.Y) > 1e-9 || math.Abs(size.Z-expected.Z) > 1e-9 {
		t.Errorf("Expected physical size %+v, got %+v", expected, size)
	}
	if v.VoxelCount() != 60 {
		t.Errorf("Expected 60 voxels, got %d", v.VoxelCount())
	}
}

func TestVolumeIsolation(t *testing.T) {
	data := []float64{1, 2, 3, 4, 5, 6, 7, 8}
	a, _ := NewVolume(data, 2, 2, 2, Vec3{1, 1, 1})
	b, _ := NewVolume(data, 2, 2, 2, Vec3{1, 1, 1})

	if a.ID() == b.ID() {
		t.Errorf("Expected distinct IDs for distinct volumes, both got %d", a.ID())
	}

	data[0] = 100
	if got, _ := a.VoxelValue(0, 0, 0); got != 1 {
		t.Errorf("Expected volume to be unaffected by caller mutation, got %f", got)
	}

	copied := a.Voxels()
	copied[1] = 200
	if got, _ := a.VoxelValue(1, 0, 0); got != 2 {
		t.Errorf("Expected volume to be unaffected by mutation of Voxels(), got %f", got)
	}
}

func TestZeroVolumeIsEmpty(t *testing.T) {
	var v Volume
	if !v.IsEmpty() {
		t.Error("Expected zero-value volume to be empty")
	}
	if _, ok := v.VoxelValue(0, 0, 0); ok {
		t.Error("Expected no voxel in zero-value volume")
	}
	var nilVolume *Volume
	if !nilVolume.IsEmpty() {
		t.Error("Expected nil volume to be empty")
	}
}

func TestParsePlane(t *testing.T) {
	cases := map[string]Plane{
		"axial": Axial, "Z": Axial,
		"sagittal": Sagittal, "x": Sagittal,
		"coronal": Coronal, " y ": Coronal,
	}
	for name, expected := range cases {
		got, err := ParsePlane(name)
		if err != nil {
			t.Errorf("ParsePlane(%q) failed: %v", name, err)
			continue
		}
		if got != expected {
			t.Errorf("ParsePlane(%q): expected %v, got %v", name, expected, got)
		}
	}
	if _, err := ParsePlane("oblique"); err == nil {
		t.Error("Expected error for invalid plane, got nil")
	}
	if Coronal.String() != "coronal" {
		t.Errorf("Expected coronal, got %s", Coronal.String())
	}
}

func TestSlicePixelAt(t *testing.T) {
	s := &Slice{Width: 2, Height: 2, PixelData: []float64{1, 2, 3, 4}, PixelSpacingX: 0.5, PixelSpacingY: 2}
	if v, ok := s.PixelAt(1, 1); !ok || v != 4 {
		t.Errorf("Expected pixel (1,1) = 4, got %f (%v)", v, ok)
	}
	if _, ok := s.PixelAt(2, 0); ok {
		t.Error("Expected no pixel outside slice")
	}
	w, h := s.PhysicalSize()
	if w != 1 || h != 4 {
		t.Errorf("Expected physical size 1x4, got %fx%f", w, h)
	}
}

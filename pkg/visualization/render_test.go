package visualization

import (
	"math"
	"testing"

	"dicomreformat/internal/models"
)

func TestApplyLinearVOI(t *testing.T) {
	center, width := 40.0, 400.0
	lower, upper := Window{Center: center, Width: width}.Bounds()

	cases := []struct {
		x        float64
		expected float64
	}{
		{-1000, 0},
		{lower, 0},
		{upper, 255},
		{upper + 0.001, 255},
		{3000, 255},
		{center - 0.5, 127.5},
	}
	for _, tc := range cases {
		got := ApplyLinearVOI(tc.x, center, width, 0, 255)
		if math.Abs(got-tc.expected) > 1e-9 {
			t.Errorf("ApplyLinearVOI(%f): expected %f, got %f", tc.x, tc.expected, got)
		}
	}

	// Monotonic across the window
	prev := -1.0
	for x := lower; x <= upper; x += 7 {
		got := ApplyLinearVOI(x, center, width, 0, 255)
		if got < prev {
			t.Errorf("Expected monotonic mapping, %f < %f at %f", got, prev, x)
		}
		prev = got
	}
}

func TestApplyLinearVOIThreshold(t *testing.T) {
	for _, width := range []float64{1, 0.5, 0, -10} {
		if got := ApplyLinearVOI(99.4, 100, width, 0, 255); got != 0 {
			t.Errorf("Width %f: expected 0 below threshold, got %f", width, got)
		}
		if got := ApplyLinearVOI(99.6, 100, width, 0, 255); got != 255 {
			t.Errorf("Width %f: expected 255 above threshold, got %f", width, got)
		}
	}
}

func TestRenderSlice(t *testing.T) {
	s := &models.Slice{
		Width:     3,
		Height:    2,
		PixelData: []float64{-1000, 40, 1000, -160.5, 239.5, 39.5},
	}
	img := RenderSlice(s, 40, 400)
	if img == nil {
		t.Fatal("Expected rendered image")
	}
	if img.Bounds().Dx() != 3 || img.Bounds().Dy() != 2 {
		t.Fatalf("Expected 3x2 image, got %dx%d", img.Bounds().Dx(), img.Bounds().Dy())
	}

	expected := [][]uint8{{0, 128, 255}, {0, 255, 128}}
	for y := range expected {
		for x := range expected[y] {
			if got := img.GrayAt(x, y).Y; got != expected[y][x] {
				t.Errorf("Expected pixel (%d,%d) = %d, got %d", x, y, expected[y][x], got)
			}
		}
	}

	img16 := RenderSlice16(s, 40, 400)
	if img16 == nil {
		t.Fatal("Expected 16-bit rendered image")
	}
	if got := img16.Gray16At(2, 0).Y; got != 65535 {
		t.Errorf("Expected 65535 above window, got %d", got)
	}
	if got := img16.Gray16At(0, 0).Y; got != 0 {
		t.Errorf("Expected 0 below window, got %d", got)
	}
}

func TestRenderSliceInvalidShape(t *testing.T) {
	mismatch := &models.Slice{Width: 2, Height: 2, PixelData: []float64{1, 2, 3}}
	if RenderSlice(mismatch, 40, 400) != nil {
		t.Error("Expected nil for pixel count mismatch")
	}
	if RenderSlice16(mismatch, 40, 400) != nil {
		t.Error("Expected nil 16-bit image for pixel count mismatch")
	}

	empty := &models.Slice{Width: 0, Height: 3}
	if RenderSlice(empty, 40, 400) != nil {
		t.Error("Expected nil for empty slice")
	}
	if RenderSlice(nil, 40, 400) != nil {
		t.Error("Expected nil for nil slice")
	}
}

func TestLookupPreset(t *testing.T) {
	w, err := LookupPreset("Lung")
	if err != nil {
		t.Fatalf("Failed to look up preset: %v", err)
	}
	if w.Center != -600 || w.Width != 1500 {
		t.Errorf("Expected lung window -600/1500, got %f/%f", w.Center, w.Width)
	}
	if _, err := LookupPreset("unknown"); err == nil {
		t.Error("Expected error for unknown preset")
	}
	if DefaultWindow.Center != 40 || DefaultWindow.Width != 400 {
		t.Errorf("Expected default window 40/400, got %+v", DefaultWindow)
	}
}

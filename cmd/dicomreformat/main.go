package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"dicomreformat/internal/models"
	"dicomreformat/pkg/analysis"
	"dicomreformat/pkg/config"
	"dicomreformat/pkg/reconstruction"
	"dicomreformat/pkg/reformation"
	"dicomreformat/pkg/visualization"
)

func main() {
	// Parse command line arguments
	inputDir := flag.String("input", "", "Directory containing one DICOM series (or a numbered JPEG/PNG stack)")
	configPath := flag.String("config", "", "YAML configuration file")
	initConfig := flag.String("init-config", "", "Write a default configuration file to this path and exit")
	planeName := flag.String("plane", "axial", "Reformation plane: axial, sagittal or coronal")
	index := flag.Int("index", -1, "Slice index along the plane (-1 exports every index)")
	modeName := flag.String("mode", "", "Output mode: slice, mip, minip or aip")
	slab := flag.Int("slab", 0, "Projection slab thickness in samples (0 uses the full extent)")
	windowCenter := flag.Float64("wc", 0, "Window center")
	windowWidth := flag.Float64("ww", 0, "Window width (0 keeps the configured or series window)")
	preset := flag.String("preset", "", "Named window preset (e.g. lung, bone, brain)")
	autoWindow := flag.Bool("auto-window", false, "Derive the window from the 1st and 99th intensity percentiles")
	outputDir := flag.String("output", "", "Output directory")
	format := flag.String("format", "", "Image format: jpg or png")
	numCores := flag.Int("cores", 0, "Number of CPU cores to use (default: all available)")
	annotate := flag.Bool("annotate", false, "Draw plane and index labels on exported images")
	physicalAspect := flag.Bool("physical-aspect", false, "Resample anisotropic slices to square physical pixels")
	flag.Parse()

	if *initConfig != "" {
		if err := config.CreateDefaultConfigFile(*initConfig); err != nil {
			log.Fatalf("Failed to write config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *initConfig)
		return
	}

	// Validate inputs
	if *inputDir == "" {
		flag.Usage()
		os.Exit(1)
	}

	cfg := config.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}

	// Explicit flags override the configuration file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "mode":
			cfg.Projection.Mode = *modeName
		case "slab":
			cfg.Projection.SlabThickness = *slab
		case "wc":
			cfg.Viewer.WindowCenter = *windowCenter
		case "ww":
			cfg.Viewer.WindowWidth = *windowWidth
		case "preset":
			cfg.Viewer.Preset = *preset
		case "auto-window":
			cfg.Viewer.AutoWindow = *autoWindow
		case "output":
			cfg.Export.OutputDir = *outputDir
		case "format":
			cfg.Export.Format = *format
		case "cores":
			cfg.Processing.NumCores = *numCores
		case "annotate":
			cfg.Export.Annotate = *annotate
		case "physical-aspect":
			cfg.Export.PhysicalAspect = *physicalAspect
		}
	})
	if strings.EqualFold(cfg.Projection.Mode, "volume") {
		log.Fatalf("Volume rendering is not supported; use slice, mip, minip or aip")
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	plane, err := models.ParsePlane(*planeName)
	if err != nil {
		log.Fatalf("Invalid plane: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("================================")
	fmt.Println("MULTIPLANAR REFORMATION OF DICOM SERIES")
	fmt.Println("================================")

	reconstructor := reconstruction.NewReconstructor(&reconstruction.Params{
		InputDir:     *inputDir,
		NumCores:     cfg.Processing.NumCores,
		SliceGap:     cfg.Processing.SliceGap,
		PixelSpacing: cfg.Processing.PixelSpacing,
		Verbose:      true,
	})

	startTime := time.Now()
	volume, err := reconstructor.Load(ctx)
	if err != nil {
		log.Fatalf("Failed to load series: %v", err)
	}
	fmt.Printf("\nSeries loaded in %.2f seconds\n", time.Since(startTime).Seconds())

	printSummary(volume)

	window := chooseWindow(cfg, volume)
	fmt.Printf("Display window: center %.1f, width %.1f\n", window.Center, window.Width)

	viewer := visualization.NewViewer(volume, window, visualization.ExportOptions{
		Format:         strings.ToLower(cfg.Export.Format),
		JPEGQuality:    cfg.Export.JPEGQuality,
		Annotate:       cfg.Export.Annotate,
		PhysicalAspect: cfg.Export.PhysicalAspect,
		Workers:        cfg.Processing.NumCores,
	})

	if err := os.MkdirAll(cfg.Export.OutputDir, 0755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	startTime = time.Now()
	switch {
	case !cfg.SliceMode():
		projection, err := reformation.ParseProjectionMode(cfg.Projection.Mode)
		if err != nil {
			log.Fatalf("Invalid mode: %v", err)
		}
		filename := filepath.Join(cfg.Export.OutputDir,
			fmt.Sprintf("%s_%s.%s", projection, plane, strings.ToLower(cfg.Export.Format)))
		if err := viewer.SaveProjection(plane, projection, cfg.Projection.SlabThickness, filename); err != nil {
			log.Fatalf("Failed to save projection: %v", err)
		}
		fmt.Printf("Saved %s %s projection (slab %d of %d) to %s\n", plane, projection,
			reformation.SlabLength(reformation.SliceCount(plane, volume), cfg.Projection.SlabThickness),
			reformation.SliceCount(plane, volume), filename)

	case *index >= 0:
		filename := filepath.Join(cfg.Export.OutputDir, viewer.SliceFilename(plane, *index))
		if err := viewer.SaveSlice(plane, *index, filename); err != nil {
			log.Fatalf("Failed to save slice %d (valid range 0-%d): %v", *index, reformation.MaxSliceIndex(plane, volume), err)
		}
		fmt.Printf("Saved %s slice %d to %s\n", plane, *index, filename)

	default:
		axisDir := filepath.Join(cfg.Export.OutputDir, plane.String())
		fmt.Printf("Saving %s slices to: %s\n", plane, axisDir)
		paths, err := viewer.SaveSliceSequence(ctx, plane, axisDir)
		if err != nil {
			log.Fatalf("Failed to save %s slices: %v", plane, err)
		}
		fmt.Printf("Saved %d slices\n", len(paths))
	}
	fmt.Printf("Export completed in %.2f seconds\n", time.Since(startTime).Seconds())
}

// printSummary prints the geometry and intensity statistics of the volume
func printSummary(v *models.Volume) {
	w, h, d := v.Dimensions()
	spacing := v.Spacing()
	size := v.PhysicalSize()

	fmt.Println("\nVolume summary:")
	fmt.Println("=======================================")
	fmt.Printf("Dimensions: %d x %d x %d voxels\n", w, h, d)
	fmt.Printf("Spacing: %.3f x %.3f x %.3f mm\n", spacing.X, spacing.Y, spacing.Z)
	fmt.Printf("Physical size: %.1f x %.1f x %.1f mm\n", size.X, size.Y, size.Z)
	for _, plane := range models.Planes {
		fmt.Printf("- %s: %d slices\n", plane, reformation.SliceCount(plane, v))
	}

	if stats, ok := analysis.ComputeStatistics(v.Voxels()); ok {
		fmt.Printf("Intensity range: %.1f to %.1f\n", stats.Min, stats.Max)
		fmt.Printf("Mean: %.2f, standard deviation: %.2f\n", stats.Mean, stats.StdDev)
		fmt.Printf("Entropy: %.3f bits\n", stats.Entropy)
	}
}

// chooseWindow picks the display window: preset, then auto window, then an
// explicit width, then the window stored with the series
func chooseWindow(cfg *config.Config, v *models.Volume) visualization.Window {
	if cfg.Viewer.Preset != "" {
		w, err := visualization.LookupPreset(cfg.Viewer.Preset)
		if err == nil {
			return w
		}
		log.Printf("Warning: %v; ignoring preset", err)
	}
	if cfg.Viewer.AutoWindow {
		if center, width, ok := analysis.AutoWindow(v.Voxels(), 0.01, 0.99); ok {
			return visualization.Window{Center: center, Width: width}
		}
		log.Printf("Warning: could not derive a window from the volume")
	}
	if cfg.Viewer.WindowWidth > 0 {
		return visualization.Window{Center: cfg.Viewer.WindowCenter, Width: cfg.Viewer.WindowWidth}
	}
	return visualization.VolumeWindow(v)
}

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/cwbudde/rotatebatch/internal/imageio"
	"github.com/cwbudde/rotatebatch/internal/rotate"
	"github.com/cwbudde/rotatebatch/internal/rotate/device"
	"github.com/spf13/cobra"
)

var (
	inputDir   string
	outputDir  string
	angle      float64
	extension  string
	backend    string
	interpMode string
	writeTrace bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Rotate every matching image in a directory",
	Long: `Scans the input directory recursively for images with the given
extension, rotates each by the requested angle on the selected backend, and
writes the results plus a processing log to the output directory.

The exit code is zero only when every image was processed successfully.`,
	RunE:         runBatch,
	SilenceUsage: true,
}

func init() {
	runCmd.Flags().StringVar(&inputDir, "input-dir", "data", "Input directory (scanned recursively)")
	runCmd.Flags().StringVar(&outputDir, "output-dir", "output", "Output directory")
	runCmd.Flags().Float64Var(&angle, "angle", 45, "Rotation angle in degrees (counter-clockwise)")
	runCmd.Flags().StringVar(&extension, "extension", ".tiff", "File extension filter")
	runCmd.Flags().StringVar(&backend, "backend", "cpu", "Device backend: cpu, opencl")
	runCmd.Flags().StringVar(&interpMode, "interp", "linear", "Interpolation mode: linear, nearest")
	runCmd.Flags().BoolVar(&writeTrace, "trace", false, "Write a per-image JSONL trace to the output directory")
	rootCmd.AddCommand(runCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	interp, err := rotate.ParseInterp(interpMode)
	if err != nil {
		return err
	}

	dev, cleanup, err := device.Open(backend)
	if err != nil {
		return fmt.Errorf("%w: %v", rotate.ErrDeviceUnavailable, err)
	}
	defer cleanup()

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	slog.Info("Scanning input directory", "dir", inputDir, "extension", extension)
	files, usedExt, err := rotate.FindImagesWithFallback(inputDir, extension)
	if err != nil {
		return fmt.Errorf("failed to scan input directory: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("%w: %s with extension %s", rotate.ErrNoInputFiles, inputDir, extension)
	}

	slog.Info("Starting batch",
		"images", len(files),
		"angle", angle,
		"backend", dev.Name(),
		"interp", interp.String(),
	)

	pipeline := rotate.NewPipeline(dev, imageio.FileCodec{})
	pipeline.Interp = interp
	runner := &rotate.Runner{Pipeline: pipeline}

	stats, err := runner.Run(files, outputDir, angle)
	if err != nil {
		return err
	}

	cfg := rotate.RunConfig{
		InputDir:  inputDir,
		OutputDir: outputDir,
		Angle:     angle,
		Extension: usedExt,
		Backend:   dev.Name(),
	}

	if writeTrace {
		if err := writeBatchTrace(stats); err != nil {
			slog.Warn("Failed to write trace", "err", err)
		}
	}

	logPath, err := rotate.WriteLog(cfg, stats, files)
	if err != nil {
		slog.Warn("Failed to write processing log", "err", err)
	} else {
		slog.Info("Log file saved", "path", logPath)
	}

	rotate.PrintSummary(os.Stdout, cfg, stats)

	if stats.Failed > 0 {
		return fmt.Errorf("%d of %d image(s) failed", stats.Failed, stats.Total)
	}
	return nil
}

func writeBatchTrace(stats *rotate.BatchStats) error {
	tw, err := rotate.NewTraceWriter(outputDir)
	if err != nil {
		return err
	}
	defer tw.Close()

	for _, res := range stats.Results {
		if err := tw.WriteResult(res); err != nil {
			return err
		}
	}
	return nil
}

package rotate

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"
)

// ImageResult records one image attempt within a batch.
type ImageResult struct {
	Input   string
	Output  string
	Elapsed time.Duration
	Err     error
}

// BatchStats aggregates the outcome of a batch run. It is mutated only by
// the Runner, once per completed image attempt.
type BatchStats struct {
	Total     int
	Succeeded int
	Failed    int
	Elapsed   time.Duration
	Results   []ImageResult
}

// Average returns the cumulative time divided by the image count, truncated
// to the duration unit, or 0 for an empty batch.
func (s *BatchStats) Average() time.Duration {
	if s.Total == 0 {
		return 0
	}
	return s.Elapsed / time.Duration(s.Total)
}

// Runner drives a pipeline over a list of discovered files. One file's
// failure never stops the remaining files from being attempted.
type Runner struct {
	Pipeline *Pipeline
}

// OutputName derives the batch output filename for an input path:
// <stem>_rotated<ext>.
func OutputName(inputPath string) string {
	base := filepath.Base(inputPath)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return stem + "_rotated" + ext
}

// Run processes every file in order, timing each attempt and accumulating
// stats regardless of outcome. An empty file list is batch-fatal and returns
// ErrNoInputFiles before anything is written.
func (r *Runner) Run(files []string, outDir string, angle float64) (*BatchStats, error) {
	if len(files) == 0 {
		return nil, ErrNoInputFiles
	}

	stats := &BatchStats{Results: make([]ImageResult, 0, len(files))}
	batchStart := time.Now()

	for i, inputPath := range files {
		outputPath := filepath.Join(outDir, OutputName(inputPath))
		slog.Info("Processing image",
			"index", fmt.Sprintf("%d/%d", i+1, len(files)),
			"input", inputPath,
		)

		start := time.Now()
		err := r.Pipeline.Process(inputPath, outputPath, angle)
		elapsed := time.Since(start)

		stats.Total++
		if err != nil {
			stats.Failed++
			slog.Error("Image failed",
				"input", inputPath,
				"stage", Stage(err),
				"elapsed", elapsed.Round(time.Millisecond),
				"err", err,
			)
		} else {
			stats.Succeeded++
			slog.Info("Image done",
				"output", outputPath,
				"elapsed", elapsed.Round(time.Millisecond),
			)
		}

		stats.Results = append(stats.Results, ImageResult{
			Input:   inputPath,
			Output:  outputPath,
			Elapsed: elapsed,
			Err:     err,
		})
	}

	stats.Elapsed = time.Since(batchStart)
	return stats, nil
}

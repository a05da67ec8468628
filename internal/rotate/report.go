package rotate

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// RunConfig is the configuration echoed into the summary and log artifact.
type RunConfig struct {
	InputDir  string
	OutputDir string
	Angle     float64
	Extension string
	Backend   string
}

// LogFileName is the plain-text log artifact written under the output dir.
const LogFileName = "processing_log.txt"

// WriteLog writes the processing log for a completed batch to
// <outDir>/processing_log.txt. The file is written to a temp path and
// renamed into place so readers never observe a partial log.
func WriteLog(cfg RunConfig, stats *BatchStats, files []string) (string, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "Image Rotation Processing Log\n")
	fmt.Fprintf(&b, "==================================\n\n")
	fmt.Fprintf(&b, "Date: %s\n", time.Now().Format(time.RFC1123))
	fmt.Fprintf(&b, "Input directory: %s\n", cfg.InputDir)
	fmt.Fprintf(&b, "Output directory: %s\n", cfg.OutputDir)
	fmt.Fprintf(&b, "Rotation angle: %g degrees\n", cfg.Angle)
	fmt.Fprintf(&b, "Extension filter: %s\n", cfg.Extension)
	fmt.Fprintf(&b, "Backend: %s\n\n", cfg.Backend)
	fmt.Fprintf(&b, "Results:\n")
	fmt.Fprintf(&b, "  Total images: %d\n", stats.Total)
	fmt.Fprintf(&b, "  Successful: %d\n", stats.Succeeded)
	fmt.Fprintf(&b, "  Failed: %d\n", stats.Failed)
	fmt.Fprintf(&b, "  Total time: %d ms\n", stats.Elapsed.Milliseconds())
	fmt.Fprintf(&b, "  Average time: %d ms\n\n", stats.Average().Milliseconds())
	fmt.Fprintf(&b, "Processed files:\n")
	for _, file := range files {
		fmt.Fprintf(&b, "  - %s\n", file)
	}

	path := filepath.Join(cfg.OutputDir, LogFileName)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, []byte(b.String()), 0644); err != nil {
		return "", fmt.Errorf("failed to write temp log file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to rename log file: %w", err)
	}
	return path, nil
}

// PrintSummary writes the human-readable end-of-run block to w.
func PrintSummary(w io.Writer, cfg RunConfig, stats *BatchStats) {
	ruler := strings.Repeat("=", 50)
	fmt.Fprintln(w)
	fmt.Fprintln(w, ruler)
	fmt.Fprintln(w, "PROCESSING SUMMARY")
	fmt.Fprintln(w, ruler)
	fmt.Fprintf(w, "Total images processed: %d\n", stats.Total)
	fmt.Fprintf(w, "Successful: %d\n", stats.Succeeded)
	fmt.Fprintf(w, "Failed: %d\n", stats.Failed)
	fmt.Fprintf(w, "Total time: %d ms\n", stats.Elapsed.Milliseconds())
	fmt.Fprintf(w, "Average time per image: %d ms\n", stats.Average().Milliseconds())
	fmt.Fprintf(w, "Output directory: %s\n", cfg.OutputDir)
	fmt.Fprintln(w, ruler)
}

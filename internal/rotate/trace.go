package rotate

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// TraceEntry is one per-image record in the JSONL trace.
type TraceEntry struct {
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	ElapsedMS int64     `json:"elapsedMs"`
	OK        bool      `json:"ok"`
	Stage     string    `json:"stage,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TraceFileName is the per-image trace artifact written under the output dir.
const TraceFileName = "processing_trace.jsonl"

// TraceWriter appends per-image records to <outDir>/processing_trace.jsonl,
// one JSON object per line, through a buffered writer.
type TraceWriter struct {
	file   *os.File
	writer *bufio.Writer
	path   string
}

// NewTraceWriter creates (or truncates) the trace file under outDir.
func NewTraceWriter(outDir string) (*TraceWriter, error) {
	path := filepath.Join(outDir, TraceFileName)
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace file: %w", err)
	}
	return &TraceWriter{
		file:   file,
		writer: bufio.NewWriterSize(file, 64*1024),
		path:   path,
	}, nil
}

// WriteResult records one batch result as a trace entry.
func (tw *TraceWriter) WriteResult(res ImageResult) error {
	entry := TraceEntry{
		Input:     res.Input,
		Output:    res.Output,
		ElapsedMS: res.Elapsed.Milliseconds(),
		OK:        res.Err == nil,
		Timestamp: time.Now(),
	}
	if res.Err != nil {
		entry.Stage = Stage(res.Err)
		entry.Error = res.Err.Error()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal trace entry: %w", err)
	}
	if _, err := tw.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write trace entry: %w", err)
	}
	if err := tw.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}
	return nil
}

// Path returns the filesystem path of the trace file.
func (tw *TraceWriter) Path() string {
	return tw.path
}

// Close flushes buffered entries and closes the trace file.
func (tw *TraceWriter) Close() error {
	if err := tw.writer.Flush(); err != nil {
		tw.file.Close()
		return fmt.Errorf("failed to flush trace file: %w", err)
	}
	if err := tw.file.Close(); err != nil {
		return fmt.Errorf("failed to close trace file: %w", err)
	}
	return nil
}

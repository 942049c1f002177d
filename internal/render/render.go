// Package render converts composed HTML documents to PDF with wkhtmltopdf.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"
)

// ErrRendererUnavailable indicates no usable wkhtmltopdf binary was found.
var ErrRendererUnavailable = errors.New("wkhtmltopdf introuvable")

// Converter transforms HTML content to a binary output format.
type Converter interface {
	// Convert transforms HTML content and writes the result to w.
	Convert(ctx context.Context, html []byte, w io.Writer) error
}

// =============================================================================
// wkhtmltopdf Converter (HTML → PDF)
// =============================================================================

// pdfArgs fixes the page geometry of every generated document: A4, 10mm
// margins all around, UTF-8 input, local file access for inline assets.
var pdfArgs = []string{
	"--encoding", "UTF-8",
	"--page-size", "A4",
	"--margin-top", "10mm",
	"--margin-right", "10mm",
	"--margin-bottom", "10mm",
	"--margin-left", "10mm",
	"--enable-local-file-access",
	"--no-outline",
	"-q",
}

// WKHTMLToPDFConverter converts HTML to PDF by shelling out to wkhtmltopdf.
type WKHTMLToPDFConverter struct {
	// Command is the resolved wkhtmltopdf path.
	Command string

	logger *slog.Logger
}

// NewWKHTMLToPDFConverter locates the wkhtmltopdf binary and returns a
// converter bound to it. The explicit path wins when set; otherwise PATH is
// consulted, then the usual install locations. Returns
// ErrRendererUnavailable when nothing is found.
func NewWKHTMLToPDFConverter(explicitPath string, logger *slog.Logger) (*WKHTMLToPDFConverter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	path, err := locateBinary(explicitPath)
	if err != nil {
		return nil, err
	}

	logger.Info("pdf renderer configured", "command", path)
	return &WKHTMLToPDFConverter{Command: path, logger: logger}, nil
}

// locateBinary resolves the wkhtmltopdf executable.
func locateBinary(explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("%w: configured path %q: %v", ErrRendererUnavailable, explicitPath, err)
		}
		return explicitPath, nil
	}

	if path, err := exec.LookPath("wkhtmltopdf"); err == nil {
		return path, nil
	}

	for _, candidate := range wellKnownPaths() {
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", ErrRendererUnavailable
}

func wellKnownPaths() []string {
	if runtime.GOOS == "windows" {
		return []string{
			`C:\Program Files\wkhtmltopdf\bin\wkhtmltopdf.exe`,
			`C:\Program Files (x86)\wkhtmltopdf\bin\wkhtmltopdf.exe`,
		}
	}
	return []string{
		"/usr/bin/wkhtmltopdf",
		"/usr/local/bin/wkhtmltopdf",
		"/opt/homebrew/bin/wkhtmltopdf",
	}
}

// Convert transforms HTML to PDF. The document goes through temp files, not
// pipes: wkhtmltopdf resolves relative assets against the input path.
func (c *WKHTMLToPDFConverter) Convert(ctx context.Context, html []byte, w io.Writer) error {
	tmpDir, err := os.MkdirTemp("", "fiche-pdf-*")
	if err != nil {
		return fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	inputPath := filepath.Join(tmpDir, "input.html")
	outputPath := filepath.Join(tmpDir, "output.pdf")

	if err := os.WriteFile(inputPath, html, 0644); err != nil {
		return fmt.Errorf("write input file: %w", err)
	}

	args := append(append([]string{}, pdfArgs...), inputPath, outputPath)
	cmd := exec.CommandContext(ctx, c.Command, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("wkhtmltopdf failed: %w, stderr: %s", err, stderr.String())
	}

	pdfData, err := os.ReadFile(outputPath)
	if err != nil {
		return fmt.Errorf("read output file: %w", err)
	}

	c.logger.Debug("pdf rendered",
		"duration", time.Since(start),
		"html_size", len(html),
		"pdf_size", len(pdfData),
	)

	if _, err := w.Write(pdfData); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

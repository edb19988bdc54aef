// Package export renders the lead collection into files: CSV, PDF and TXT
// reports, an HTML table, and backup archives that can be restored.
package export

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	apperrors "github.com/kimhsiao/leadbook/internal/errors"
	"github.com/kimhsiao/leadbook/internal/logging"
	"github.com/kimhsiao/leadbook/internal/models"
)

// Format identifies an output encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatPDF     Format = "pdf"
	FormatTXT     Format = "txt"
	FormatHTML    Format = "html"
	FormatArchive Format = "archive"
)

// Formats lists every supported format.
var Formats = []Format{FormatCSV, FormatPDF, FormatTXT, FormatHTML, FormatArchive}

// Extension returns the file extension written for f, including the dot.
func (f Format) Extension() string {
	if f == FormatArchive {
		return ".tar.gz"
	}
	return "." + string(f)
}

// ParseFormat accepts a format name or a file name whose extension
// identifies the format.
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	switch {
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".tgz"):
		return FormatArchive, nil
	case strings.HasSuffix(name, ".htm"):
		return FormatHTML, nil
	case strings.HasSuffix(name, ".text"):
		return FormatTXT, nil
	}
	if ext := filepath.Ext(name); ext != "" {
		name = strings.TrimPrefix(ext, ".")
	}
	switch Format(name) {
	case FormatCSV, FormatPDF, FormatTXT, FormatHTML, FormatArchive:
		return Format(name), nil
	case "backup", "tar.gz", "tgz":
		return FormatArchive, nil
	}
	return "", apperrors.Newf(apperrors.ErrUnsupportedFormat, "unsupported export format %q", s)
}

// Result represents the result of an export operation.
type Result struct {
	Path      string        `json:"path"`
	Format    Format        `json:"format"`
	Count     int           `json:"count"`
	SizeBytes int64         `json:"size_bytes"`
	Duration  time.Duration `json:"duration"`
	Checksum  string        `json:"checksum,omitempty"` // archives only
}

// Options configures a Service.
type Options struct {
	// LogoPath is an optional image drawn above the PDF table.
	LogoPath string
	// Title names the PDF document and heads the HTML report.
	Title string
}

// Service renders leads to files. Every exporter iterates the leads once in
// the given order and replaces the destination file.
type Service struct {
	opts Options
	log  *logging.Logger
	now  func() time.Time
}

// DefaultTitle heads reports when Options.Title is empty.
const DefaultTitle = "Leads"

// NewService creates a Service. A nil logger uses the global one.
func NewService(opts Options, log *logging.Logger) *Service {
	if log == nil {
		log = logging.Get()
	}
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	return &Service{
		opts: opts,
		log:  log.With(map[string]any{"component": "export"}),
		now:  time.Now,
	}
}

// Export writes leads to path in the given format. Archives written through
// Export are not encrypted; use ExportArchive for a password.
func (s *Service) Export(ctx context.Context, format Format, leads []models.Lead, path string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Wrap(apperrors.ErrExportFailed, "export cancelled", err)
	}

	var (
		res *Result
		err error
	)
	switch format {
	case FormatCSV:
		res, err = s.ExportCSV(leads, path)
	case FormatPDF:
		res, err = s.ExportPDF(leads, path)
	case FormatTXT:
		res, err = s.ExportTXT(leads, path)
	case FormatHTML:
		res, err = s.ExportHTML(leads, path)
	case FormatArchive:
		res, err = s.ExportArchive(leads, path, "")
	default:
		return nil, apperrors.Newf(apperrors.ErrUnsupportedFormat, "unsupported export format %q", format)
	}
	if err != nil {
		s.log.Error("export failed", err, map[string]any{"format": string(format), "path": path})
		return nil, err
	}
	s.log.Info("export completed", map[string]any{
		"format":     string(res.Format),
		"path":       res.Path,
		"count":      res.Count,
		"size_bytes": res.SizeBytes,
		"duration":   res.Duration.String(),
	})
	return res, nil
}

// writeFile streams render's output to a temporary file beside path and
// renames it into place. Any failure is a DESTINATION_WRITE_FAILED and
// leaves no temporary file behind.
func writeFile(path string, render func(w io.Writer) error) (int64, error) {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrDestinationWrite, "create "+path, err)
	}

	bw := bufio.NewWriter(f)
	if err := render(bw); err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, apperrors.Wrap(apperrors.ErrDestinationWrite, "write "+path, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		os.Remove(tmp)
		return 0, apperrors.Wrap(apperrors.ErrDestinationWrite, "write "+path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return 0, apperrors.Wrap(apperrors.ErrDestinationWrite, "close "+path, err)
	}

	info, err := os.Stat(tmp)
	if err != nil {
		os.Remove(tmp)
		return 0, apperrors.Wrap(apperrors.ErrDestinationWrite, "stat "+path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return 0, apperrors.Wrap(apperrors.ErrDestinationWrite, "replace "+path, err)
	}
	return info.Size(), nil
}

func (s *Service) result(format Format, path string, count int, size int64, start time.Time) *Result {
	return &Result{
		Path:      path,
		Format:    format,
		Count:     count,
		SizeBytes: size,
		Duration:  s.now().Sub(start),
	}
}

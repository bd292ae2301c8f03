package export

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/unicode"

	"github.com/maltedev/ecommerce-scraper/internal/models"
	"github.com/maltedev/ecommerce-scraper/internal/storage"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

const sheetName = "Results"

var ErrEmptyFilename = errors.New("export filename is empty")

// Batch is the final result set of one job.
type Batch struct {
	JobID    string
	Platform string
	Flow     models.Flow
	Format   Format
	Filename string
	Columns  []string
	Items    []*models.Item
}

// Recorder archives a batch after its artifact has been written.
type Recorder interface {
	Record(ctx context.Context, b Batch) error
}

// Sink writes result batches into the artifact store.
type Sink struct {
	store     *storage.ArtifactStore
	recorders []Recorder
	logger    *slog.Logger
}

func NewSink(store *storage.ArtifactStore, logger *slog.Logger, recorders ...Recorder) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		store:     store,
		recorders: recorders,
		logger:    logger.With("component", "export"),
	}
}

// Export writes b and returns the artifact name. Recorder failures are logged
// and never fail the export.
func (s *Sink) Export(ctx context.Context, b Batch) (string, error) {
	if b.Filename == "" {
		return "", ErrEmptyFilename
	}

	var fill func(io.Writer) error
	switch b.Format {
	case FormatXLSX:
		fill = func(w io.Writer) error { return writeXLSX(w, b) }
	default:
		fill = func(w io.Writer) error { return writeCSV(w, b) }
	}

	if err := s.store.Write(b.Filename, fill); err != nil {
		return "", fmt.Errorf("write %s: %w", b.Filename, err)
	}

	s.logger.Info("artifact written",
		"job_id", b.JobID,
		"filename", b.Filename,
		"items", len(b.Items),
	)

	for _, r := range s.recorders {
		if err := r.Record(ctx, b); err != nil {
			s.logger.Warn("failed to archive batch", "job_id", b.JobID, "error", err)
		}
	}

	return b.Filename, nil
}

// writeCSV emits UTF-8 with a byte order mark so spreadsheet tools detect the
// encoding of the rupee sign.
func writeCSV(w io.Writer, b Batch) error {
	bom := unicode.UTF8BOM.NewEncoder().Writer(w)
	cw := csv.NewWriter(bom)

	if err := cw.Write(b.Columns); err != nil {
		return err
	}
	for _, item := range b.Items {
		if err := cw.Write(item.Row(b.Columns)); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}

	if c, ok := bom.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func writeXLSX(w io.Writer, b Batch) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return err
	}

	header := make([]interface{}, len(b.Columns))
	for i, c := range b.Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return err
	}

	for i, item := range b.Items {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := item.Row(b.Columns)
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheetName, cell, &values); err != nil {
			return err
		}
	}

	if len(b.Columns) > 0 {
		last, err := excelize.ColumnNumberToName(len(b.Columns))
		if err != nil {
			return err
		}

		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(sheetName, "A1", last+"1", style); err != nil {
			return err
		}
		if err := f.SetColWidth(sheetName, "A", last, 22); err != nil {
			return err
		}
		if err := f.SetPanes(sheetName, &excelize.Panes{
			Freeze:      true,
			YSplit:      1,
			TopLeftCell: "A2",
			ActivePane:  "bottomLeft",
		}); err != nil {
			return err
		}
		ref := fmt.Sprintf("A1:%s%d", last, len(b.Items)+1)
		if err := f.AutoFilter(sheetName, ref, nil); err != nil {
			return err
		}
	}

	return f.Write(w)
}

var (
	unsafeChars   = regexp.MustCompile(`[^a-zA-Z0-9]`)
	unsafeIDChars = regexp.MustCompile(`[^a-zA-Z0-9-]`)
)

// Sanitize replaces every non-alphanumeric character with an underscore.
func Sanitize(s string) string {
	return unsafeChars.ReplaceAllString(strings.TrimSpace(s), "_")
}

// sanitizeID is Sanitize that keeps hyphens, so UUID job ids survive intact.
func sanitizeID(id string) string {
	return unsafeIDChars.ReplaceAllString(strings.TrimSpace(id), "_")
}

// SearchFilename names a search export after its query, or the job id when the
// query is empty.
func SearchFilename(platform, query, jobID string) string {
	name := Sanitize(query)
	if strings.Trim(name, "_") == "" {
		name = sanitizeID(jobID)
	}
	return fmt.Sprintf("%s_search_%s.csv", platform, name)
}

func BulkFilename(platform, jobID string) string {
	return fmt.Sprintf("%s_bulk_%s.xlsx", platform, sanitizeID(jobID))
}

func ReviewsFilename(platform, productID string) string {
	return fmt.Sprintf("%s_reviews_%s.csv", platform, Sanitize(productID))
}

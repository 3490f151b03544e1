package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
)

// ExportFormat names a printable timetable encoding.
type ExportFormat string

const (
	ExportFormatPDF ExportFormat = "pdf"
	ExportFormatCSV ExportFormat = "csv"
)

// ExportFile is a rendered timetable ready to stream.
type ExportFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

type weekComposer interface {
	Week(ctx context.Context, groupID string, opts GridOptions) (*models.WeeklyGrid, bool, error)
}

type csvRenderer interface {
	RenderTimetable(grid models.WeeklyGrid) ([]byte, error)
}

type pdfRenderer interface {
	RenderTimetable(grid models.WeeklyGrid, title string) ([]byte, error)
}

// ExportService renders a group's weekly grid as a printable file.
type ExportService struct {
	grids  weekComposer
	csv    csvRenderer
	pdf    pdfRenderer
	logger *zap.Logger
	now    func() time.Time
}

// NewExportService constructs an ExportService; nil renderers use the defaults.
func NewExportService(grids weekComposer, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{grids: grids, csv: csv, pdf: pdf, logger: logger, now: time.Now}
}

// Export renders the group's timetable in the requested format.
func (s *ExportService) Export(ctx context.Context, groupID string, format ExportFormat, locale string) (*ExportFile, error) {
	format = ExportFormat(strings.ToLower(string(format)))
	if format == "" {
		format = ExportFormatPDF
	}
	if format != ExportFormatPDF && format != ExportFormatCSV {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be pdf or csv")
	}

	grid, _, err := s.grids.Week(ctx, groupID, GridOptions{Locale: locale})
	if err != nil {
		return nil, err
	}

	stamp := s.now().UTC().Format("20060102")
	file := &ExportFile{Filename: fmt.Sprintf("timetable_%s_%s.%s", groupID, stamp, format)}
	switch format {
	case ExportFormatCSV:
		file.ContentType = "text/csv"
		file.Data, err = s.csv.RenderTimetable(*grid)
	default:
		file.ContentType = "application/pdf"
		file.Data, err = s.pdf.RenderTimetable(*grid, fmt.Sprintf("Timetable %s", groupID))
	}
	if err != nil {
		s.logger.Error("failed to render timetable", zap.String("group_id", groupID), zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable")
	}
	if grid.DegradedCount > 0 {
		s.logger.Warn("timetable exported with degraded blocks", zap.String("group_id", groupID), zap.Int("degraded", grid.DegradedCount))
	}
	return file, nil
}

package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/timegrid"
)

// Page geometry in millimetres for a landscape A4 sheet.
const (
	pageMargin     = 10.0
	titleHeight    = 12.0
	headerHeight   = 8.0
	timeAxisWidth  = 16.0
	landscapeWidth = 297.0
	landscapeTall  = 210.0
)

// PDFExporter renders weekly grids into a printable timetable.
type PDFExporter struct{}

// NewPDFExporter constructs a PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{}
}

// RenderTimetable draws one column per weekday and places every block at its
// computed offset and height, scaled from pixels to the printable area.
func (e *PDFExporter) RenderTimetable(grid models.WeeklyGrid, title string) ([]byte, error) {
	if len(grid.Columns) == 0 {
		return nil, fmt.Errorf("pdf requires at least one weekday column")
	}
	if grid.GridHeightPx <= 0 {
		return nil, fmt.Errorf("pdf requires a positive grid height")
	}

	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, titleHeight, strings.ToUpper(title), "", 1, "C", false, 0, "")
	}

	top := pageMargin + titleHeight + headerHeight
	bodyHeight := landscapeTall - top - pageMargin
	scale := bodyHeight / grid.GridHeightPx
	columnWidth := (landscapeWidth - 2*pageMargin - timeAxisWidth) / float64(len(grid.Columns))
	left := pageMargin + timeAxisWidth

	pdf.SetFont("Arial", "B", 10)
	for i, column := range grid.Columns {
		pdf.SetXY(left+float64(i)*columnWidth, top-headerHeight)
		pdf.CellFormat(columnWidth, headerHeight, pdf.UnicodeTranslatorFromDescriptor("")(column.Label), "1", 0, "C", false, 0, "")
	}

	drawHourLines(pdf, grid.Config, top, scale, left, columnWidth*float64(len(grid.Columns)))
	pdf.Rect(left, top, columnWidth*float64(len(grid.Columns)), bodyHeight, "D")

	pdf.SetFont("Arial", "", 8)
	for i, column := range grid.Columns {
		x := left + float64(i)*columnWidth
		for _, block := range column.Blocks {
			drawBlock(pdf, block, x, top, columnWidth, bodyHeight, scale)
		}
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}

func drawHourLines(pdf *gofpdf.Fpdf, cfg models.TimeGridConfig, top, scale, left, width float64) {
	span, err := timegrid.ParseInterval(cfg.FirstSlotStart, cfg.LastSlotEnd)
	if err != nil {
		return
	}
	pixelsPerMinute := cfg.PixelsPerHour / 60
	pdf.SetFont("Arial", "", 7)
	pdf.SetDrawColor(200, 200, 200)
	for minute := span.Start - span.Start%60; minute <= span.End; minute += 60 {
		if minute < span.Start {
			continue
		}
		y := top + float64(minute-span.Start)*pixelsPerMinute*scale
		pdf.Line(left, y, left+width, y)
		pdf.SetXY(pageMargin, y-2)
		pdf.CellFormat(timeAxisWidth-1, 4, timegrid.FormatMinutes(minute), "", 0, "R", false, 0, "")
	}
	pdf.SetDrawColor(0, 0, 0)
}

func drawBlock(pdf *gofpdf.Fpdf, block models.GridBlock, x, top, width, bodyHeight, scale float64) {
	y := top + block.Layout.TopOffsetPx*scale
	h := block.Layout.HeightPx * scale
	if y >= top+bodyHeight {
		return
	}
	if y+h > top+bodyHeight {
		h = top + bodyHeight - y
	}

	if block.Layout.Degraded {
		pdf.SetFillColor(255, 228, 225)
		pdf.SetDashPattern([]float64{1, 1}, 0)
	} else {
		pdf.SetFillColor(222, 235, 247)
	}
	pdf.Rect(x+0.5, y, width-1, h, "FD")
	pdf.SetDashPattern([]float64{}, 0)

	if h < 3 {
		return
	}
	label := fmt.Sprintf("%s %s-%s", block.Entry.SubjectID, block.Entry.StartTime, block.Entry.EndTime)
	if block.Entry.RoomID != nil && *block.Entry.RoomID != "" {
		label += " @" + *block.Entry.RoomID
	}
	pdf.SetXY(x+1, y+0.5)
	pdf.CellFormat(width-2, minFloat(h-1, 4), pdf.UnicodeTranslatorFromDescriptor("")(label), "", 0, "L", false, 0, "")
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

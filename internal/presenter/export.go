package presenter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const exportSheet = "Sheet1"

// Built-in Excel number formats.
const (
	numFmtInteger  = 3  // #,##0
	numFmtDecimal  = 4  // #,##0.00
	numFmtPercent  = 10 // 0.00%
	numFmtGeneral  = 0
	keyColumnCount = 4
)

// WriteXLSX writes the table as a single-sheet workbook: one row per visible
// Group with its SuperGroup key columns, raw numeric values with Excel number
// formats, and conditional formatting colors baked in.
func WriteXLSX(w io.Writer, t *Table) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck

	styles := newStyleCache(f)

	headers := []any{"Game", "Country", "Platform", "Source"}
	for _, h := range t.Columns {
		headers = append(headers, h.Label)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &headers); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	headerStyle, err := styles.header()
	if err != nil {
		return err
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	if err := f.SetCellStyle(exportSheet, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	kinds := make(map[string]Kind, len(t.Columns))
	for _, h := range t.Columns {
		c, _ := ColumnByID(h.ID)
		kinds[h.ID] = c.Kind
	}

	rowIdx := 2
	for _, sec := range t.Sections {
		for _, row := range sec.Rows {
			values := []any{sec.Game, sec.Country, sec.Platform, row.Source}
			for _, cell := range row.Cells {
				values = append(values, cell.Raw)
			}
			start, _ := excelize.CoordinatesToCellName(1, rowIdx)
			if err := f.SetSheetRow(exportSheet, start, &values); err != nil {
				return fmt.Errorf("failed to write row %d: %w", rowIdx, err)
			}

			for i, cell := range row.Cells {
				styleID, err := styles.cell(kinds[cell.Column], cell.Style)
				if err != nil {
					return err
				}
				ref, _ := excelize.CoordinatesToCellName(keyColumnCount+i+1, rowIdx)
				if err := f.SetCellStyle(exportSheet, ref, ref, styleID); err != nil {
					return fmt.Errorf("failed to style cell %s: %w", ref, err)
				}
			}
			rowIdx++
		}
	}

	lastCol, _ := excelize.ColumnNumberToName(len(headers))
	if err := f.SetColWidth(exportSheet, "A", lastCol, 16); err != nil {
		return fmt.Errorf("failed to set column width: %w", err)
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// styleCache creates one excelize style per (kind, colors) combination.
type styleCache struct {
	f     *excelize.File
	cache map[string]int
}

func newStyleCache(f *excelize.File) *styleCache {
	return &styleCache{f: f, cache: make(map[string]int)}
}

func (s *styleCache) header() (int, error) {
	id, err := s.f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E0EBF5"}, Pattern: 1},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to create header style: %w", err)
	}
	return id, nil
}

func (s *styleCache) cell(kind Kind, cs *CellStyle) (int, error) {
	var bg, fg string
	if cs != nil {
		bg, fg = cs.Background, cs.Text
	}
	key := fmt.Sprintf("%d|%s|%s", kind, bg, fg)
	if id, ok := s.cache[key]; ok {
		return id, nil
	}

	style := &excelize.Style{NumFmt: numFmtFor(kind)}
	if bg != "" {
		style.Fill = excelize.Fill{Type: "pattern", Color: []string{bg}, Pattern: 1}
	}
	if fg != "" {
		style.Font = &excelize.Font{Color: fg}
	}
	id, err := s.f.NewStyle(style)
	if err != nil {
		return 0, fmt.Errorf("failed to create cell style: %w", err)
	}
	s.cache[key] = id
	return id, nil
}

func numFmtFor(kind Kind) int {
	switch kind {
	case KindCount:
		return numFmtInteger
	case KindCurrency:
		return numFmtDecimal
	case KindPercent, KindTrendPercent:
		return numFmtPercent
	}
	return numFmtGeneral
}

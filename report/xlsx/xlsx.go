// Package xlsx renders report documents as Excel workbooks with excelize.
//
// Batch documents keep the first-row-only labeling of the formatter and
// additionally merge the number/date/unit/sector cells of a ROL across its
// item rows, so spreadsheet filters still see one block per ROL.
package xlsx

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/warp/laundry-ledger/report"
)

// ErrUnsupportedDocument is returned for a Document with neither body set.
var ErrUnsupportedDocument = errors.New("xlsx: unsupported document")

const sheet = "ROL"

var batchColumns = []string{"Number", "Date", "Unit", "Sector", "Clothing type", "Quantity", "Weight (kg)"}

type Renderer struct{}

func NewRenderer() *Renderer { return &Renderer{} }

// Render returns the .xlsx bytes of doc.
func (r *Renderer) Render(doc report.Document) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("xlsx: rename sheet: %w", err)
	}
	st, err := newStyles(f)
	if err != nil {
		return nil, err
	}

	w := &writer{f: f, st: st}
	switch {
	case doc.Type == report.TypeSingle && doc.Single != nil:
		w.single(doc.Title, doc.Single)
	case doc.Type == report.TypeBatch && doc.Batch != nil:
		w.batch(doc.Title, doc.Batch)
	default:
		return nil, fmt.Errorf("%w: type %q", ErrUnsupportedDocument, doc.Type)
	}
	if w.err != nil {
		return nil, fmt.Errorf("xlsx: write cells: %w", w.err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx: write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

type styles struct {
	title, bold, weight int
}

func newStyles(f *excelize.File) (styles, error) {
	var st styles
	var err error
	if st.title, err = f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true, Size: 14}}); err != nil {
		return st, fmt.Errorf("xlsx: title style: %w", err)
	}
	if st.bold, err = f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true},
		Alignment: &excelize.Alignment{Vertical: "top"},
	}); err != nil {
		return st, fmt.Errorf("xlsx: bold style: %w", err)
	}
	fmtCode := "0.00"
	if st.weight, err = f.NewStyle(&excelize.Style{CustomNumFmt: &fmtCode}); err != nil {
		return st, fmt.Errorf("xlsx: weight style: %w", err)
	}
	return st, nil
}

// writer keeps the first error so cell calls can be chained.
type writer struct {
	f   *excelize.File
	st  styles
	err error
}

func cell(col, row int) string {
	name, _ := excelize.CoordinatesToCellName(col, row)
	return name
}

func (w *writer) set(col, row int, v any) {
	if w.err != nil {
		return
	}
	w.err = w.f.SetCellValue(sheet, cell(col, row), v)
}

func (w *writer) style(col, row, style int) {
	if w.err != nil {
		return
	}
	c := cell(col, row)
	w.err = w.f.SetCellStyle(sheet, c, c, style)
}

func (w *writer) weight(col, row int, d decimal.Decimal) {
	w.set(col, row, d.InexactFloat64())
	w.style(col, row, w.st.weight)
}

func (w *writer) merge(col, fromRow, toRow int) {
	if w.err != nil || toRow <= fromRow {
		return
	}
	w.err = w.f.MergeCell(sheet, cell(col, fromRow), cell(col, toRow))
}

// =============================================================================
// SINGLE
// =============================================================================

func (w *writer) single(title string, body *report.SingleBody) {
	w.set(1, 1, title)
	w.style(1, 1, w.st.title)

	h := body.Header
	header := [][2]string{
		{"Number", h.Number},
		{"Kind", h.Kind},
		{"Date", h.Date},
		{"Unit", h.Unit},
		{"Sector", h.Sector},
		{"Weighing time", h.WeighingTime},
	}
	row := 3
	for _, kv := range header {
		w.set(1, row, kv[0])
		w.style(1, row, w.st.bold)
		w.set(2, row, kv[1])
		row++
	}

	row++
	for i, label := range []string{"Clothing type", "Quantity", "Weight (kg)"} {
		w.set(i+1, row, label)
		w.style(i+1, row, w.st.bold)
	}
	for _, it := range body.Items {
		row++
		w.set(1, row, it.ClothingType)
		w.set(2, row, it.Quantity)
		w.weight(3, row, it.Weight)
	}
	row++
	w.set(1, row, "TOTAL")
	w.style(1, row, w.st.bold)
	w.set(2, row, body.Totals.Quantity)
	w.weight(3, row, body.Totals.Weight)

	row += 2
	for _, s := range body.Signatures {
		w.set(1, row, string(s.Party)+" signature")
		w.style(1, row, w.st.bold)
		w.set(2, row, s.Text())
		if img, format, err := s.Decode(); err == nil && w.err == nil {
			w.err = w.f.AddPictureFromBytes(sheet, cell(3, row), &excelize.Picture{
				Extension: "." + string(format),
				File:      img,
				Format:    &excelize.GraphicOptions{AutoFit: true},
			})
		}
		row++
	}
}

// =============================================================================
// BATCH
// =============================================================================

func (w *writer) batch(title string, body *report.BatchBody) {
	s := body.Summary
	w.set(1, 1, title)
	w.style(1, 1, w.st.title)
	w.set(1, 2, "Records")
	w.set(2, 2, s.Records)
	w.set(3, 2, "Quantity")
	w.set(4, 2, s.Totals.Quantity)
	w.set(5, 2, "Weight (kg)")
	w.weight(6, 2, s.Totals.Weight)

	const headerRow = 4
	for i, label := range batchColumns {
		w.set(i+1, headerRow, label)
		w.style(i+1, headerRow, w.st.bold)
	}

	row := headerRow
	groupStart := 0
	closeGroup := func(last int) {
		if groupStart == 0 {
			return
		}
		for col := 1; col <= 4; col++ {
			w.merge(col, groupStart, last)
		}
	}
	for _, br := range body.Rows {
		row++
		if br.First {
			closeGroup(row - 1)
			groupStart = row
			w.set(1, row, br.Number)
			w.style(1, row, w.st.bold)
			w.set(2, row, br.Date)
			w.set(3, row, br.Unit)
			w.set(4, row, br.Sector)
		}
		w.set(5, row, br.ClothingType)
		w.set(6, row, br.Quantity)
		w.weight(7, row, br.Weight)
	}
	closeGroup(row)
}

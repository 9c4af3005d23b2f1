// Package pdf renders report documents to PDF with Maroto v2.
//
// Page layout (A4):
//
//	+---------------------------------------------------------+
//	|  TITLE                               generated / period |
//	|  -----------------------------------------------------  |
//	|  HEADER  number | kind | date | unit | sector | weigh   |   single
//	|  SUMMARY records | quantity | weight                    |   batch
//	|  -----------------------------------------------------  |
//	|  TABLE   clothing type | quantity | weight              |
//	|  -----------------------------------------------------  |
//	|  TOTALS                                                 |
//	|  SIGNATURES client | laundry                            |   single
//	+---------------------------------------------------------+
package pdf

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/image"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/extension"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"

	"github.com/warp/laundry-ledger/linen"
	"github.com/warp/laundry-ledger/report"
)

// -- Palette ------------------------------------------------------------------

var (
	colorPrimary = &props.Color{Red: 0, Green: 92, Blue: 120}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
)

// ErrUnsupportedDocument is returned for a Document with neither body set.
var ErrUnsupportedDocument = errors.New("pdf: unsupported document")

// -- Renderer -----------------------------------------------------------------

type Renderer struct {
	// Author is written into the PDF metadata.
	Author string
}

func NewRenderer(author string) *Renderer { return &Renderer{Author: author} }

// Render returns the PDF bytes of doc.
func (r *Renderer) Render(doc report.Document) ([]byte, error) {
	b := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle(doc.Title, true)
	if r.Author != "" {
		b = b.WithAuthor(r.Author, true)
	}
	m := maroto.New(b.Build())

	m.AddRows(titleRow(doc.Title))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))

	switch {
	case doc.Type == report.TypeSingle && doc.Single != nil:
		m.AddRows(singleRows(doc.Single)...)
	case doc.Type == report.TypeBatch && doc.Batch != nil:
		m.AddRows(batchRows(doc.Batch)...)
	default:
		return nil, fmt.Errorf("%w: type %q", ErrUnsupportedDocument, doc.Type)
	}

	out, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generate document: %w", err)
	}
	return out.GetBytes(), nil
}

// -- Sections -----------------------------------------------------------------

func titleRow(title string) core.Row {
	return row.New(12).Add(
		col.New(12).Add(text.New(title, props.Text{
			Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 2,
		})),
	)
}

func field(label, value string, size int) core.Col {
	return col.New(size).Add(
		text.New(label, props.Text{Size: 7, Color: colorGray, Top: 1}),
		text.New(nonEmpty(value, "-"), props.Text{Style: fontstyle.Bold, Size: 9, Top: 5}),
	)
}

func singleRows(body *report.SingleBody) []core.Row {
	h := body.Header
	rows := []core.Row{
		row.New(12).Add(
			field("Number", h.Number, 2),
			field("Kind", h.Kind, 2),
			field("Date", h.Date, 3),
			field("Unit", h.Unit, 3),
			field("Sector", h.Sector, 2),
		),
		row.New(12).Add(field("Weighing time", h.WeighingTime, 12)),
		line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}),
		itemHeaderRow(),
	}
	for _, it := range body.Items {
		rows = append(rows, itemRow(it.ClothingType, it.Quantity, it.Weight))
	}
	rows = append(rows,
		line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}),
		totalsRow(body.Totals),
		line.NewRow(6),
		signatureRow(body.Signatures),
	)
	return rows
}

func itemHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a, Color: colorPrimary, Top: 2,
		}))
	}
	return row.New(8).Add(
		h("Clothing type", 6, align.Left),
		h("Quantity", 3, align.Right),
		h("Weight (kg)", 3, align.Right),
	)
}

func itemRow(name string, qty int, weight decimal.Decimal) core.Row {
	return row.New(7).Add(
		col.New(6).Add(text.New(name, props.Text{Size: 8, Top: 1})),
		col.New(3).Add(text.New(strconv.Itoa(qty), props.Text{Size: 8, Align: align.Right, Top: 1})),
		col.New(3).Add(text.New(weight.StringFixed(2), props.Text{Size: 8, Align: align.Right, Top: 1})),
	)
}

func totalsRow(t linen.Totals) core.Row {
	return row.New(8).Add(
		col.New(6).Add(text.New("TOTAL", props.Text{Style: fontstyle.Bold, Size: 9, Top: 2})),
		col.New(3).Add(text.New(strconv.Itoa(t.Quantity), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Top: 2})),
		col.New(3).Add(text.New(t.Weight.StringFixed(2), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Top: 2})),
	)
}

func signatureRow(sigs [2]report.Signature) core.Row {
	r := row.New(30)
	for _, s := range sigs {
		label := "Client signature"
		if s.Party == report.PartyLaundry {
			label = "Laundry signature"
		}
		c := col.New(6).Add(text.New(label, props.Text{Size: 7, Color: colorGray, Top: 1}))
		if img, format, err := s.Decode(); err == nil {
			c.Add(image.NewFromBytes(img, imageExtension(format), props.Rect{Top: 5, Percent: 80, Center: true}))
		} else {
			c.Add(text.New(s.Text(), props.Text{Style: fontstyle.Italic, Size: 9, Top: 14, Align: align.Center}))
		}
		r.Add(c)
	}
	return r
}

func batchRows(body *report.BatchBody) []core.Row {
	s := body.Summary
	rows := []core.Row{
		row.New(12).Add(
			field("Period", s.PeriodLabel, 3),
			field("Records", strconv.Itoa(s.Records), 3),
			field("Quantity", strconv.Itoa(s.Totals.Quantity), 3),
			field("Weight (kg)", s.Totals.Weight.StringFixed(2), 3),
		),
		line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}),
	}

	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 7, Align: a, Color: colorPrimary, Top: 2,
		}))
	}
	rows = append(rows, row.New(8).Add(
		h("Number", 1, align.Left),
		h("Date", 2, align.Left),
		h("Unit", 2, align.Left),
		h("Sector", 1, align.Left),
		h("Clothing type", 3, align.Left),
		h("Qty", 1, align.Right),
		h("Weight", 2, align.Right),
	))

	cell := func(v string, size int, a align.Type, bold bool) core.Col {
		p := props.Text{Size: 7, Align: a, Top: 1}
		if bold {
			p.Style = fontstyle.Bold
		}
		return col.New(size).Add(text.New(v, p))
	}
	for _, br := range body.Rows {
		if br.First {
			rows = append(rows, line.NewRow(1, props.Line{Color: colorGray, Thickness: 0.1}))
		}
		rows = append(rows, row.New(6).Add(
			cell(br.Number, 1, align.Left, true),
			cell(br.Date, 2, align.Left, false),
			cell(br.Unit, 2, align.Left, false),
			cell(br.Sector, 1, align.Left, false),
			cell(br.ClothingType, 3, align.Left, false),
			cell(strconv.Itoa(br.Quantity), 1, align.Right, false),
			cell(br.Weight.StringFixed(2), 2, align.Right, false),
		))
	}
	rows = append(rows,
		line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}),
		totalsRow(s.Totals),
	)
	return rows
}

// -- Helpers ------------------------------------------------------------------

// imageExtension maps a signature format to Maroto's extension type.
func imageExtension(f report.ImageFormat) extension.Type {
	if f == report.FormatJPEG {
		return extension.Jpg
	}
	return extension.Png
}

func nonEmpty(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

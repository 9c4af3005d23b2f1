package report

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/warp/laundry-ledger/linen"
)

func kindLabel(k linen.Kind) string {
	if k == linen.KindCollection {
		return "Collection"
	}
	return "Delivery"
}

// FormatSingle builds the printable form of one ROL.
func FormatSingle(rec linen.ROL, res Resolver) Document {
	items := make([]ItemLine, len(rec.Items))
	for i, it := range rec.Items {
		items[i] = ItemLine{
			ClothingType: res.ClothingType(it.ClothingTypeID),
			Quantity:     it.Quantity,
			Weight:       it.Weight,
		}
	}

	return Document{
		Type:  TypeSingle,
		Title: fmt.Sprintf("ROL %s - %s", rec.Number, kindLabel(rec.Kind())),
		Single: &SingleBody{
			Header: Header{
				Number:       rec.Number,
				Kind:         kindLabel(rec.Kind()),
				Date:         res.Time(rec.Date),
				Unit:         res.Unit(rec.UnitID),
				Sector:       string(rec.Sector),
				WeighingTime: res.Time(rec.WeighingTime),
			},
			Items:  items,
			Totals: rec.Totals(),
			Signatures: [2]Signature{
				signature(PartyClient, rec.ClientSignature),
				signature(PartyLaundry, rec.LaundrySignature),
			},
		},
	}
}

func signature(party SignatureParty, image string) Signature {
	return Signature{Party: party, Signed: image != "", Image: image}
}

// FormatBatch flattens records into item rows, labeling only the first row
// of each ROL.
func FormatBatch(records []linen.ROL, res Resolver, periodLabel string) Document {
	body := &BatchBody{
		Summary: Summary{
			PeriodLabel: periodLabel,
			Records:     len(records),
			Totals:      linen.Totals{Weight: decimal.Zero},
		},
		Rows: []BatchRow{},
	}

	for _, rec := range records {
		body.Summary.Totals = body.Summary.Totals.Add(rec.Totals())
		for i, it := range rec.Items {
			row := BatchRow{
				ClothingType: res.ClothingType(it.ClothingTypeID),
				Quantity:     it.Quantity,
				Weight:       it.Weight,
			}
			if i == 0 {
				row.First = true
				row.Number = rec.Number
				row.Date = res.Time(rec.Date)
				row.Unit = res.Unit(rec.UnitID)
				row.Sector = string(rec.Sector)
			}
			body.Rows = append(body.Rows, row)
		}
	}

	return Document{
		Type:  TypeBatch,
		Title: "ROL report - " + periodLabel,
		Batch: body,
	}
}

package documents

import (
	"fmt"
	"strings"
	"time"

	"invoicing-backend/models"
	"invoicing-backend/utils"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// RenderInvoicePDF renders a single invoice into a PDF document.
func RenderInvoicePDF(invoice *models.Invoice) ([]byte, error) {
	symbol := utils.CurrencySymbol(invoice.Currency)

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(12, "Invoice", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
	)

	m.AddRow(18,
		col.New(6).Add(
			text.New("Invoice number: "+invoice.InvoiceNumber, props.Text{Top: 0}),
			text.New("Date of issue: "+formatDate(invoice.DateOfIssue), props.Text{Top: 4}),
			text.New("Date due: "+formatDate(invoice.DateDue), props.Text{Top: 8}),
		),
		col.New(6),
	)

	m.AddRow(40,
		col.New(6).Add(
			text.New(invoice.BillFrom, props.Text{Style: fontstyle.Bold}),
			text.New(addressBlock(
				invoice.BillFromAddressLine1, invoice.BillFromAddressLine2,
				invoice.BillFromCity, invoice.BillFromState,
				invoice.BillFromPostalCode, invoice.BillFromCountry), props.Text{Top: 5}),
			text.New(invoice.BillFromEmail, props.Text{Top: 20}),
		),
		col.New(6).Add(
			text.New("Bill to", props.Text{Style: fontstyle.Bold}),
			text.New(invoice.BillTo, props.Text{Top: 5}),
			text.New(addressBlock(
				invoice.BillToAddressLine1, invoice.BillToAddressLine2,
				invoice.BillToCity, invoice.BillToState,
				invoice.BillToPostalCode, invoice.BillToCountry), props.Text{Top: 9}),
			text.New(invoice.BillToEmail, props.Text{Top: 25}),
		),
	)

	m.AddRow(15,
		text.NewCol(12, fmt.Sprintf("%s%s due %s", symbol, invoice.AmountDue.StringFixed(2), formatDate(invoice.DateDue)), props.Text{
			Size:  14,
			Style: fontstyle.Bold,
			Top:   5,
		}),
	)

	m.AddRow(10,
		text.NewCol(6, "Description", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, "Qty", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Unit price", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
		text.NewCol(2, "Amount", props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	for _, item := range invoice.Items {
		m.AddRow(12,
			text.NewCol(6, item.Description, props.Text{Size: 9}),
			text.NewCol(2, fmt.Sprintf("%d", item.Quantity), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, symbol+item.UnitPrice.StringFixed(2), props.Text{Size: 9, Align: align.Right}),
			text.NewCol(2, symbol+item.Subtotal.StringFixed(2), props.Text{Size: 9, Align: align.Right}),
		)
	}

	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Total", props.Text{Size: 9}),
		text.NewCol(2, symbol+invoice.Total.StringFixed(2), props.Text{Size: 9, Align: align.Right}),
	)
	m.AddRow(10,
		col.New(8),
		text.NewCol(2, "Amount due", props.Text{Style: fontstyle.Bold, Size: 9}),
		text.NewCol(2, symbol+invoice.AmountDue.StringFixed(2), props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right}),
	)

	if invoice.ThankYouNote != "" {
		m.AddRow(15,
			text.NewCol(12, invoice.ThankYouNote, props.Text{Size: 9, Top: 6}),
		)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("generate invoice pdf: %w", err)
	}
	return doc.GetBytes(), nil
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("January 2, 2006")
}

func addressBlock(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

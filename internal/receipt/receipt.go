// Package receipt renders payment receipts as PDF documents.
package receipt

import (
	"bytes"
	"fmt"
	"time"

	"github.com/phpdave11/gofpdf"

	"github.com/pkordes/carpool/backend/internal/domain"
)

// Renderer produces A4 receipts. The zero value is ready to use.
type Renderer struct {
	// Location is the time zone dates are printed in. Nil means UTC.
	Location *time.Location
}

// Render returns the PDF bytes of a receipt for p.
func (r Renderer) Render(p domain.Payment, trip domain.Trip, payer domain.User) ([]byte, error) {
	loc := r.Location
	if loc == nil {
		loc = time.UTC
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle("Recibo "+p.ID.String(), true)
	pdf.SetCreator("carpool", true)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 10, "RECIBO DE PAGAMENTO")
	pdf.Ln(14)

	pdf.SetFont("Helvetica", "", 12)
	line := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 12)
		pdf.Cell(50, 7, tr(label))
		pdf.SetFont("Helvetica", "", 12)
		pdf.Cell(0, 7, tr(value))
		pdf.Ln(7)
	}
	line("Recibo:", p.ID.String())
	line("Data:", p.PaymentDate.In(loc).Format("02/01/2006 15:04"))
	line("Status:", string(p.Status))
	if p.TransactionID != "" {
		line("Transação:", p.TransactionID)
	}
	pdf.Ln(4)

	line("Pagador:", payer.Name)
	line("E-mail:", payer.Email)
	pdf.Ln(4)

	line("Viagem:", trip.ID.String())
	line("Partida:", trip.DepartureAt.In(loc).Format("02/01/2006 15:04"))
	line("Forma:", paymentMethod(p))
	pdf.Ln(6)

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(50, 10, "Valor:")
	pdf.Cell(0, 10, formatBRL(p.Value))
	pdf.Ln(14)

	pdf.SetFont("Helvetica", "I", 9)
	pdf.MultiCell(0, 5, tr("Documento gerado automaticamente. Não possui valor fiscal."), "", "", false)

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("receipt.Renderer.Render: %w", err)
	}
	return buf.Bytes(), nil
}

func paymentMethod(p domain.Payment) string {
	if p.CreditCardID != nil {
		return "Cartão de crédito"
	}
	return "PIX"
}

// formatBRL prints v as Brazilian reais, e.g. 1234.5 -> "R$ 1.234,50".
func formatBRL(v float64) string {
	cents := int64(v*100 + 0.5)
	if v < 0 {
		cents = int64(v*100 - 0.5)
	}
	neg := cents < 0
	if neg {
		cents = -cents
	}
	whole := fmt.Sprintf("%d", cents/100)
	var grouped []byte
	for i, c := range []byte(whole) {
		if i > 0 && (len(whole)-i)%3 == 0 {
			grouped = append(grouped, '.')
		}
		grouped = append(grouped, c)
	}
	s := fmt.Sprintf("R$ %s,%02d", grouped, cents%100)
	if neg {
		s = "-" + s
	}
	return s
}

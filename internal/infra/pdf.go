package infra

import (
	"bytes"
	"fmt"
	"sort"

	"comandapos/internal/model"

	"github.com/go-pdf/fpdf"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var brl = message.NewPrinter(language.BrazilianPortuguese)

// ReportIdentity is printed in the report header.
type ReportIdentity struct {
	Business     string
	Collaborator string
}

var paymentLabels = map[string]string{
	model.PaymentCash:        "Dinheiro",
	model.PaymentPix:         "PIX",
	model.PaymentCreditCard:  "Cartão de Crédito",
	model.PaymentDebitCard:   "Cartão de Débito",
	model.PaymentUnspecified: "Não informado",
}

// PaymentLabel returns the display name of a payment method bucket.
func PaymentLabel(method string) string {
	if l, ok := paymentLabels[method]; ok {
		return l
	}
	return method
}

// RenderReconciliationPDF renders the closing report of a cash session:
// a totals block, the finalized sales and the drawer movements.
// Amounts are rounded to cents here and nowhere else.
func RenderReconciliationPDF(s *model.ReconciliationSummary, id ReportIdentity) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("pdf: nil summary")
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetMargins(12, 12, 12)
	pdf.AddPage()
	pageW, _ := pdf.GetPageSize()
	contentW := pageW - 24

	business := id.Business
	if business == "" {
		business = "Comanda POS"
	}
	pdf.SetFont("Helvetica", "B", 15)
	pdf.CellFormat(contentW, 8, tr(business), "", 1, "C", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(contentW, 6, tr("Relatório de Fechamento de Caixa"), "", 1, "C", false, 0, "")
	pdf.Ln(3)

	pdf.SetFont("Helvetica", "", 9)
	if id.Collaborator != "" {
		pdf.CellFormat(contentW, 5, tr("Operador: "+id.Collaborator), "", 1, "L", false, 0, "")
	}
	pdf.CellFormat(contentW, 5, "Abertura: "+s.OpenedAt.Format("02/01/2006 15:04"), "", 1, "L", false, 0, "")
	pdf.CellFormat(contentW, 5, tr("Até: ")+s.AsOf.Format("02/01/2006 15:04"), "", 1, "L", false, 0, "")
	pdf.Ln(3)

	half := contentW / 2
	row := func(label string, v decimal.Decimal, bold bool) {
		style := ""
		if bold {
			style = "B"
		}
		pdf.SetFont("Helvetica", style, 10)
		pdf.CellFormat(half, 6, tr(label), "", 0, "L", false, 0, "")
		pdf.CellFormat(half, 6, money(v), "", 1, "R", false, 0, "")
	}

	section(pdf, contentW, "Resumo")
	row("Fundo de troco", s.OpeningFloat, false)
	for _, m := range sortedMethods(s.ByPaymentMethod) {
		row("Vendas "+PaymentLabel(m), s.ByPaymentMethod[m], false)
	}
	row("Suprimentos", s.TotalIn, false)
	row("Sangrias", s.TotalOut, false)
	row(fmt.Sprintf("Total de vendas (%d)", s.OrderCount), s.GrandTotal, true)
	row("Dinheiro esperado na gaveta", s.NetCash, true)
	pdf.Ln(4)

	section(pdf, contentW, "Vendas")
	cols := []float64{contentW * 0.22, contentW * 0.38, contentW * 0.2, contentW * 0.2}
	header(pdf, cols, tr, "Hora", "Comanda", "Pagamento", "Total")
	pdf.SetFont("Helvetica", "", 9)
	for _, o := range s.Orders {
		tab := ""
		if o.TabNumber != nil {
			tab = *o.TabNumber
		}
		if o.CustomerName != nil && *o.CustomerName != "" {
			tab = fmt.Sprintf("%s %s", tab, *o.CustomerName)
		}
		method := model.PaymentUnspecified
		if o.PaymentMethod != nil {
			method = *o.PaymentMethod
		}
		pdf.CellFormat(cols[0], 5, o.UpdatedAt.Format("15:04"), "", 0, "L", false, 0, "")
		pdf.CellFormat(cols[1], 5, tr(truncate(tab, 40)), "", 0, "L", false, 0, "")
		pdf.CellFormat(cols[2], 5, tr(PaymentLabel(method)), "", 0, "L", false, 0, "")
		pdf.CellFormat(cols[3], 5, money(o.Total), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	section(pdf, contentW, "Movimentações")
	header(pdf, cols, tr, "Hora", "Descrição", "Tipo", "Valor")
	pdf.SetFont("Helvetica", "", 9)
	for _, m := range s.Movements {
		pdf.CellFormat(cols[0], 5, m.CreatedAt.Format("15:04"), "", 0, "L", false, 0, "")
		pdf.CellFormat(cols[1], 5, tr(truncate(m.Description, 40)), "", 0, "L", false, 0, "")
		pdf.CellFormat(cols[2], 5, m.Type, "", 0, "L", false, 0, "")
		pdf.CellFormat(cols[3], 5, money(m.Amount), "", 1, "R", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("pdf: render: %w", err)
	}
	return buf.Bytes(), nil
}

func section(pdf *fpdf.Fpdf, w float64, title string) {
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(w, 7, tr(title), "B", 1, "L", false, 0, "")
	pdf.Ln(1)
}

func header(pdf *fpdf.Fpdf, cols []float64, tr func(string) string, titles ...string) {
	pdf.SetFont("Helvetica", "B", 9)
	for i, t := range titles {
		ln, align := 0, "L"
		if i == len(titles)-1 {
			ln, align = 1, "R"
		}
		pdf.CellFormat(cols[i], 6, tr(t), "B", ln, align, false, 0, "")
	}
}

func money(v decimal.Decimal) string { return FormatBRL(v) }

// FormatBRL renders an amount the way Brazilian receipts do: "R$ 1.234,50".
func FormatBRL(v decimal.Decimal) string {
	return "R$ " + brl.Sprint(number.Decimal(v.Round(2).InexactFloat64(), number.Scale(2)))
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "..."
}

func sortedMethods(m map[string]decimal.Decimal) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

package handlers

import (
	"fmt"
	"net/http"

	"dinetab-order-services/pkg/response"

	"github.com/phpdave11/gofpdf"
)

// TransactionReceiptPDF renders a printable receipt for one transaction.
func (h *Handler) TransactionReceiptPDF(w http.ResponseWriter, r *http.Request) {
	txnID, err := readPathInt64(r, "txnId")
	if err != nil {
		response.Error(w, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid transaction id")
		return
	}
	txn, err := h.loadTransaction(r.Context(), txnID)
	if err != nil {
		h.writeError(w, err)
		return
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(fmt.Sprintf("Receipt #%d", txn.ID), false)
	pdf.AddPage()

	pdf.SetFont("Courier", "B", 14)
	pdf.CellFormat(0, 8, fmt.Sprintf("Receipt #%d", txn.ID), "", 1, "C", false, 0, "")
	pdf.SetFont("Courier", "", 10)
	pdf.CellFormat(0, 6, fmt.Sprintf("Table %d", txn.TableNo), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, txn.PaidAt.Format("2006-01-02 15:04"), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont("Courier", "B", 10)
	pdf.CellFormat(90, 6, "Item", "B", 0, "L", false, 0, "")
	pdf.CellFormat(25, 6, "Qty", "B", 0, "R", false, 0, "")
	pdf.CellFormat(35, 6, "Price", "B", 0, "R", false, 0, "")
	pdf.CellFormat(40, 6, "Line", "B", 1, "R", false, 0, "")

	pdf.SetFont("Courier", "", 10)
	for _, line := range txn.Items {
		pdf.CellFormat(90, 6, line.Name, "", 0, "L", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%d", line.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(35, 6, fmt.Sprintf("%.2f", line.Price), "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("%.2f", float64(line.Quantity)*line.Price), "", 1, "R", false, 0, "")
	}

	pdf.Ln(4)
	if txn.Discount > 0 {
		pdf.CellFormat(150, 6, "Discount", "", 0, "R", false, 0, "")
		pdf.CellFormat(40, 6, fmt.Sprintf("-%.2f", txn.Discount), "", 1, "R", false, 0, "")
	}
	pdf.SetFont("Courier", "B", 12)
	pdf.CellFormat(150, 8, "Total", "T", 0, "R", false, 0, "")
	pdf.CellFormat(40, 8, fmt.Sprintf("%.2f", txn.Total), "T", 1, "R", false, 0, "")
	pdf.SetFont("Courier", "", 10)
	pdf.CellFormat(0, 6, "Paid by "+txn.PaymentMethod, "", 1, "R", false, 0, "")

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`inline; filename="receipt-%d.pdf"`, txn.ID))
	if err := pdf.Output(w); err != nil {
		h.Logger.Error("receipt render failed", zapError(err))
	}
}

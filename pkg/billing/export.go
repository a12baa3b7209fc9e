package billing

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// HistorySheet is the worksheet name used by WriteHistory.
const HistorySheet = "Sheet1"

// WriteHistory renders a vendor's transaction history as an xlsx workbook.
func WriteHistory(w io.Writer, views []View) error {
	f := excelize.NewFile()
	defer f.Close()

	sw, err := f.NewStreamWriter(HistorySheet)
	if err != nil {
		return err
	}
	header := []interface{}{"bill_id", "date", "customer", "total_amount", "carbon_saved_kg", "mosscoins", "status"}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}
	for i, v := range views {
		row := []interface{}{
			v.ID,
			v.CreatedAt.Format("2006-01-02 15:04"),
			v.CustomerName,
			v.TotalAmount.StringFixed(2),
			v.TotalCarbonSaved.StringFixed(2),
			v.MossCoinsToAward,
			v.Status,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("write bill %d: %w", v.ID, err)
		}
	}
	if err := sw.Flush(); err != nil {
		return err
	}
	_, err = f.WriteTo(w)
	return err
}

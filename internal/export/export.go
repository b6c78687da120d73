// Package export renders service requests as spreadsheets.
package export

import (
	"fmt"
	"io"

	"translink/internal/models"

	"github.com/xuri/excelize/v2"
)

const sheetName = "Service requests"

// ContentType is the MIME type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

var headers = []string{
	"ID", "Booking date", "Start", "End", "Duration (h)", "Client", "Translator",
	"Location", "Request status", "Booking status", "Service fee", "System fee",
	"Discount", "Total", "Created at",
}

// statusColors fills the booking status cell.
var statusColors = map[models.BookingStatus]string{
	models.BookingNotStarted: "#FFFFFF",
	models.BookingUnpaid:     "#FFEB9C",
	models.BookingInProgress: "#DDEBF7",
	models.BookingCompleted:  "#C6EFCE",
	models.BookingCancelled:  "#FFC7CE",
}

// Filename is the download name of a range export.
func Filename(from, to string) string {
	return fmt.Sprintf("service_requests_%s_%s.xlsx", from, to)
}

// WriteServiceRequests writes one row per request booked between from and
// to. Rows should carry their user and translator projections.
func WriteServiceRequests(w io.Writer, from, to string, rows []*models.ServiceRequest) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	_ = f.DeleteSheet("Sheet1")

	lastCol, _ := excelize.ColumnNumberToName(len(headers))

	// Заголовок с периодом
	_ = f.SetCellValue(sheetName, "A1", fmt.Sprintf("Period: %s - %s", from, to))
	_ = f.MergeCell(sheetName, "A1", lastCol+"1")
	titleStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 14},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	_ = f.SetCellStyle(sheetName, "A1", "A1", titleStyle)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E2EFDA"}, Pattern: 1},
		Font: &excelize.Font{Bold: true},
	})
	if err := f.SetSheetRow(sheetName, "A2", &headers); err != nil {
		return fmt.Errorf("write headers: %w", err)
	}
	_ = f.SetCellStyle(sheetName, "A2", lastCol+"2", headerStyle)
	_ = f.SetColWidth(sheetName, "A", lastCol, 16)
	_ = f.SetColWidth(sheetName, "F", "H", 24)

	styles := map[models.BookingStatus]int{}
	for status, color := range statusColors {
		id, err := f.NewStyle(&excelize.Style{
			Fill: excelize.Fill{Type: "pattern", Color: []string{color}, Pattern: 1},
		})
		if err != nil {
			return fmt.Errorf("create style: %w", err)
		}
		styles[status] = id
	}

	for i, r := range rows {
		row := i + 3
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheetName, cell, &[]any{
			r.ID, r.BookingDate, r.StartAt, r.EndAt, r.Duration.InexactFloat64(),
			clientName(r), translatorName(r), r.Location,
			string(r.RequestStatus), string(r.BookingStatus),
			r.ServiceFee.InexactFloat64(), r.SystemFee.InexactFloat64(), discount(r),
			r.TotalPrice.InexactFloat64(), r.CreatedAt.UTC().Format("2006-01-02 15:04"),
		}); err != nil {
			return fmt.Errorf("write row %d: %w", r.ID, err)
		}
		if style, ok := styles[r.BookingStatus]; ok {
			statusCell, _ := excelize.CoordinatesToCellName(10, row)
			_ = f.SetCellStyle(sheetName, statusCell, statusCell, style)
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func clientName(r *models.ServiceRequest) string {
	if r.User == nil {
		return ""
	}
	return r.User.FullName
}

func translatorName(r *models.ServiceRequest) string {
	if r.Translator == nil {
		return ""
	}
	return r.Translator.FullName
}

func discount(r *models.ServiceRequest) any {
	if !r.DiscountAmount.Valid {
		return ""
	}
	return r.DiscountAmount.Decimal.InexactFloat64()
}

package export

import (
	"bytes"
	"testing"
	"time"

	"translink/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteServiceRequests(t *testing.T) {
	rows := []*models.ServiceRequest{
		{
			ID: 1, BookingDate: "2030-01-05", StartAt: "09:00", EndAt: "10:30",
			Duration:   decimal.RequireFromString("1.5"),
			ServiceFee: decimal.NewFromInt(225000), SystemFee: decimal.NewFromInt(22500),
			DiscountAmount: decimal.NewNullDecimal(decimal.NewFromInt(24750)),
			TotalPrice:     decimal.NewFromInt(222750),
			RequestStatus:  models.RequestApproved, BookingStatus: models.BookingCompleted,
			Location:  "Hanoi",
			CreatedAt: time.Date(2030, 1, 1, 8, 0, 0, 0, time.UTC),
			User:       &models.UserSummary{FullName: "Lan"},
			Translator: &models.TranslatorSummary{FullName: "Minh"},
		},
		{
			ID: 2, BookingDate: "2030-01-06", StartAt: "13:00", EndAt: "14:00",
			Duration:      decimal.NewFromInt(1),
			TotalPrice:    decimal.NewFromInt(1100),
			RequestStatus: models.RequestPending, BookingStatus: models.BookingNotStarted,
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteServiceRequests(&buf, "2030-01-01", "2030-01-31", rows))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{sheetName}, f.GetSheetList())

	title, _ := f.GetCellValue(sheetName, "A1")
	assert.Equal(t, "Period: 2030-01-01 - 2030-01-31", title)

	got, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, headers, got[1])

	assert.Equal(t, "1", got[2][0])
	assert.Equal(t, "1.5", got[2][4])
	assert.Equal(t, "Lan", got[2][5])
	assert.Equal(t, "Minh", got[2][6])
	assert.Equal(t, "COMPLETED", got[2][9])
	assert.Equal(t, "24750", got[2][12])
	assert.Equal(t, "222750", got[2][13])

	assert.Equal(t, "", got[3][5])
	assert.Equal(t, "", got[3][12])
	assert.Equal(t, "NOT_STARTED", got[3][9])
}

func TestWriteServiceRequests_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteServiceRequests(&buf, "2030-01-01", "2030-01-01", nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	got, err := f.GetRows(sheetName)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "service_requests_2030-01-01_2030-01-31.xlsx", Filename("2030-01-01", "2030-01-31"))
}

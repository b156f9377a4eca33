package bars

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func validBar(date time.Time) Bar {
	return Bar{
		Date:          date,
		Open:          dec(10),
		High:          dec(12),
		Low:           dec(9),
		Close:         dec(11),
		AdjustedClose: dec(11),
		Volume:        1000,
	}
}

func TestBar_ValidateAcceptsWellFormedBar(t *testing.T) {
	b := validBar(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	assert.NoError(t, b.Validate())
}

func TestBar_ValidateRejectsOpenOutsideRange(t *testing.T) {
	b := validBar(time.Now())
	b.Open = dec(100)
	assert.Error(t, b.Validate())
}

func TestBar_ValidateRejectsCloseOutsideRange(t *testing.T) {
	b := validBar(time.Now())
	b.Close = dec(0)
	assert.Error(t, b.Validate())
}

func TestBar_ValidateRejectsNonPositiveAdjustedClose(t *testing.T) {
	b := validBar(time.Now())
	b.AdjustedClose = decimal.Zero
	assert.Error(t, b.Validate())
}

func TestBar_DecisionPrice(t *testing.T) {
	b := validBar(time.Now())
	b.Close = dec(11)
	b.AdjustedClose = dec(10.5)

	assert.True(t, b.DecisionPrice(false).Equal(dec(11)))
	assert.True(t, b.DecisionPrice(true).Equal(dec(10.5)))
}

func TestSeries_ValidateRejectsOutOfOrderDates(t *testing.T) {
	day1 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) // before day1

	s := Series{Symbol: "TEST", Bars: []Bar{validBar(day1), validBar(day2)}}
	require.Error(t, s.Validate())
}

func TestSeries_ValidateRejectsDuplicateDates(t *testing.T) {
	day := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	s := Series{Symbol: "TEST", Bars: []Bar{validBar(day), validBar(day)}}
	require.Error(t, s.Validate())
}

func TestSeries_ValidateAcceptsAscendingDates(t *testing.T) {
	day1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	s := Series{Symbol: "TEST", Bars: []Bar{validBar(day1), validBar(day2)}}
	assert.NoError(t, s.Validate())
}

func TestSeries_Dates(t *testing.T) {
	day1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	day2 := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	s := Series{Symbol: "TEST", Bars: []Bar{validBar(day1), validBar(day2)}}
	dates := s.Dates()
	require.Len(t, dates, 2)
	assert.Equal(t, day1, dates[0])
	assert.Equal(t, day2, dates[1])
}

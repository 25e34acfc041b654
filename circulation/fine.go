package circulation

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const day = 24 * time.Hour

// OverdueDays counts started days past due; one second late is one day.
func OverdueDays(due, at time.Time) int {
	late := at.Sub(due)
	if late <= 0 {
		return 0
	}
	days := late / day
	if late%day != 0 {
		days++
	}
	return int(days)
}

// ComputeFine is OverdueDays(due, at) times the daily rate.
func ComputeFine(due, at time.Time, ratePerDay decimal.Decimal) decimal.Decimal {
	return ratePerDay.Mul(decimal.NewFromInt(int64(OverdueDays(due, at))))
}

// AverageRating is the mean rating rounded to one decimal, 0 when there are none.
func AverageRating(ratings []int) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return math.Round(float64(sum)/float64(len(ratings))*10) / 10
}

package features

import "math"

// #region layout
// Feature positions within a Vector. The order is part of the contract with any
// trained model: appending is safe, reordering is not.
const (
	Days = iota
	Miles
	Receipts
	MilesPerDay
	ReceiptsPerDay
	ReceiptsPerMile
	LogDays
	LogMiles
	LogReceipts
	SqrtDays
	SqrtMiles
	SqrtReceipts
	DaysSquared
	MilesSquared
	ReceiptsSquared
	DaysMiles
	DaysReceipts
	MilesReceipts
	DaysMilesReceipts
	IsOneDay
	IsFiveDay
	IsWeekPlus
	IsTenPlus
	ReceiptsUnder50
	ReceiptsOver1500
	ReceiptsOver2000
	MilesUnder100
	MilesOver500
	MilesOver800
	MPDUnder30
	MPDSweetSpot
	MPDOver300
	DaysCapped
	MilesBin
	ReceiptsBin
	ReceiptsOverAllowance
	MilesOverAllowance

	Count
)

// Vector is the fixed-shape derived feature vector for one input triple.
type Vector [Count]float64

var names = [Count]string{
	"days", "miles", "receipts",
	"miles_per_day", "receipts_per_day", "receipts_per_mile",
	"log1p_days", "log1p_miles", "log1p_receipts",
	"sqrt_days", "sqrt_miles", "sqrt_receipts",
	"days_sq", "miles_sq", "receipts_sq",
	"days_x_miles", "days_x_receipts", "miles_x_receipts",
	"days_miles_receipts",
	"is_1_day", "is_5_day", "is_7_plus", "is_10_plus",
	"receipts_lt_50", "receipts_gt_1500", "receipts_gt_2000",
	"miles_lt_100", "miles_gt_500", "miles_gt_800",
	"mpd_lt_30", "mpd_80_200", "mpd_gt_300",
	"days_cap_14", "miles_bin_100", "receipts_bin_200",
	"receipts_over_allowance", "miles_over_allowance",
}

// Names returns the feature names in vector order.
func Names() []string {
	out := make([]string, Count)
	copy(out, names[:])
	return out
}

// #endregion layout

// #region thresholds
const (
	tripleProductScale = 10000.0

	daysCap       = 14
	milesBinWidth = 100.0
	milesBinCap   = 15
	receiptsBin   = 200.0
	receiptsCap   = 12

	dailyReceiptAllowance = 150.0
	dailyMileAllowance    = 200.0
)

// #endregion thresholds

// #region derive
// Derive computes the feature vector for a raw input triple. A zero divisor in
// any ratio yields 0 rather than Inf or NaN.
func Derive(days int, miles, receipts float64) Vector {
	d := float64(days)
	mpd := ratio(miles, d)

	var v Vector
	v[Days] = d
	v[Miles] = miles
	v[Receipts] = receipts
	v[MilesPerDay] = mpd
	v[ReceiptsPerDay] = ratio(receipts, d)
	v[ReceiptsPerMile] = ratio(receipts, miles)

	v[LogDays] = math.Log1p(d)
	v[LogMiles] = math.Log1p(miles)
	v[LogReceipts] = math.Log1p(receipts)
	v[SqrtDays] = math.Sqrt(d)
	v[SqrtMiles] = math.Sqrt(miles)
	v[SqrtReceipts] = math.Sqrt(receipts)

	v[DaysSquared] = d * d
	v[MilesSquared] = miles * miles
	v[ReceiptsSquared] = receipts * receipts
	v[DaysMiles] = d * miles
	v[DaysReceipts] = d * receipts
	v[MilesReceipts] = miles * receipts
	v[DaysMilesReceipts] = d * miles * receipts / tripleProductScale

	v[IsOneDay] = indicator(days == 1)
	v[IsFiveDay] = indicator(days == 5)
	v[IsWeekPlus] = indicator(days >= 7)
	v[IsTenPlus] = indicator(days >= 10)
	v[ReceiptsUnder50] = indicator(receipts < 50)
	v[ReceiptsOver1500] = indicator(receipts > 1500)
	v[ReceiptsOver2000] = indicator(receipts > 2000)
	v[MilesUnder100] = indicator(miles < 100)
	v[MilesOver500] = indicator(miles > 500)
	v[MilesOver800] = indicator(miles > 800)
	v[MPDUnder30] = indicator(mpd < 30)
	v[MPDSweetSpot] = indicator(mpd >= 80 && mpd <= 200)
	v[MPDOver300] = indicator(mpd > 300)

	v[DaysCapped] = math.Min(d, daysCap)
	v[MilesBin] = math.Min(math.Floor(miles/milesBinWidth), milesBinCap)
	v[ReceiptsBin] = math.Min(math.Floor(receipts/receiptsBin), receiptsCap)

	v[ReceiptsOverAllowance] = math.Max(0, receipts-d*dailyReceiptAllowance)
	v[MilesOverAllowance] = math.Max(0, miles-d*dailyMileAllowance)

	return v
}

// Slice returns the vector as a freshly allocated slice.
func (v Vector) Slice() []float64 {
	out := make([]float64, Count)
	copy(out, v[:])
	return out
}

// #endregion derive

// #region helpers
func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// #endregion helpers

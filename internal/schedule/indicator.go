package schedule

import "time"

// Indicator is the position of the live "now" marker in an hour grid.
type Indicator struct {
	// Fraction of the visible window, clamped to [0, 1].
	Fraction float64 `json:"fraction"`
	// PixelOffset from the top of the first visible hour row. Header height
	// is added by the caller.
	PixelOffset float64 `json:"pixel_offset"`
	// Visible is false when now lies outside the window and the marker is
	// pinned to an edge.
	Visible bool `json:"visible"`
}

// PositionIndicator converts now into an offset within a grid showing
// hourCount rows starting at startHour, each pxPerHour tall. Outside the
// window the marker pins to the top or bottom edge.
func PositionIndicator(now time.Time, startHour, hourCount int, pxPerHour float64) Indicator {
	if hourCount <= 0 {
		return Indicator{}
	}
	elapsed := float64(now.Hour()-startHour) + float64(now.Minute())/60
	raw := elapsed / float64(hourCount)

	ind := Indicator{Fraction: raw, Visible: raw >= 0 && raw < 1}
	switch {
	case raw < 0:
		ind.Fraction = 0
	case raw > 1:
		ind.Fraction = 1
	}
	ind.PixelOffset = ind.Fraction * float64(hourCount) * pxPerHour
	return ind
}

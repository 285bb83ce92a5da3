package routing

import (
	"fmt"
	"math"
)

// FormatDistance renders meters as "{m} m" below one kilometre, otherwise "{km} km" with one decimal
func FormatDistance(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%d m", int(math.Round(meters)))
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

// FormatDuration renders seconds as "{s} sec", "{m} min" or "{h} hr {m} min"
func FormatDuration(seconds float64) string {
	switch {
	case seconds < 60:
		return fmt.Sprintf("%d sec", int(math.Round(seconds)))
	case seconds < 3600:
		return fmt.Sprintf("%d min", int(math.Floor(seconds/60)))
	default:
		hours := int(math.Floor(seconds / 3600))
		minutes := int(math.Floor(math.Mod(seconds, 3600) / 60))
		return fmt.Sprintf("%d hr %d min", hours, minutes)
	}
}

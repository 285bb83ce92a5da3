package routing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatDistance(t *testing.T) {
	cases := map[float64]string{
		0:       "0 m",
		500:     "500 m",
		999.4:   "999 m",
		1000:    "1.0 km",
		1500:    "1.5 km",
		12345.6: "12.3 km",
	}
	for meters, want := range cases {
		assert.Equal(t, want, FormatDistance(meters), "meters %v", meters)
	}
}

func TestFormatDuration(t *testing.T) {
	cases := map[float64]string{
		0:    "0 sec",
		45:   "45 sec",
		59:   "59 sec",
		60:   "1 min",
		125:  "2 min",
		3599: "59 min",
		3600: "1 hr 0 min",
		3725: "1 hr 2 min",
		7322: "2 hr 2 min",
	}
	for seconds, want := range cases {
		assert.Equal(t, want, FormatDuration(seconds), "seconds %v", seconds)
	}
}

package gradient

import (
	"math"
	"time"

	"github.com/boilerio/boilerio/internal/model"
)

// TimeToTarget estimates how long heating from reading to target will
// take, using the table row whose delta is closest to the current
// inside/outside difference. Returns nil when the table is empty or the
// matched gradient is unusable.
func TimeToTarget(table []model.GradientRow, reading model.Reading, outside, target float64) *time.Duration {
	if len(table) == 0 {
		return nil
	}

	deltaT := reading.Temp - outside
	best := table[0]
	for _, row := range table[1:] {
		if math.Abs(row.Delta-deltaT) < math.Abs(best.Delta-deltaT) {
			best = row
		}
	}
	if best.Gradient <= 0 {
		return nil
	}

	d := time.Duration((target - reading.Temp) / best.Gradient * float64(time.Hour))
	return &d
}

package analysis

import (
	"encoding/json"
	"fmt"
	"math"
)

// DefaultProminence is the minimum altitude swing, in meters, for a turning
// point to count as a real climb or descent rather than noise
const DefaultProminence = 30.0

// Streams holds the parsed time series of one activity
type Streams struct {
	Time      []float64
	Altitude  []float64
	Heartrate []float64
}

// Result holds heart rate averages derived from an activity's streams.
// A nil value means the input did not support that metric.
type Result struct {
	UphillHeartrate   *float64
	DownhillHeartrate *float64
}

type series struct {
	Data []float64 `json:"data"`
}

// ParseStreams decodes a stored stream payload keyed by stream type
func ParseStreams(data []byte) (*Streams, error) {
	var payload map[string]series
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse streams: %w", err)
	}

	return &Streams{
		Time:      payload["time"].Data,
		Altitude:  payload["altitude"].Data,
		Heartrate: payload["heartrate"].Data,
	}, nil
}

// Analyze computes time-weighted heart rate averages over the uphill and
// downhill portions of an activity. Altitude turning points below the
// prominence threshold are ignored so GPS jitter does not flip segments.
func Analyze(s *Streams, prominence float64) Result {
	if prominence <= 0 {
		prominence = DefaultProminence
	}

	n := len(s.Altitude)
	if n < 2 || len(s.Time) != n || len(s.Heartrate) != n {
		return Result{}
	}

	extrema := findExtrema(s.Altitude, prominence)
	if len(extrema) < 2 {
		return Result{}
	}

	var uphillSum, uphillWeight, downhillSum, downhillWeight float64

	for seg := 0; seg < len(extrema)-1; seg++ {
		i, j := extrema[seg], extrema[seg+1]

		// The bounding samples are not confirmed extrema; a trailing or
		// near-flat segment below the threshold is neither up nor down
		if math.Abs(s.Altitude[j]-s.Altitude[i]) < prominence {
			continue
		}
		uphill := s.Altitude[j] > s.Altitude[i]

		for k := i + 1; k <= j; k++ {
			dt := s.Time[k] - s.Time[k-1]
			if dt <= 0 {
				continue
			}
			hr := (s.Heartrate[k] + s.Heartrate[k-1]) / 2
			if hr <= 0 {
				continue
			}
			if uphill {
				uphillSum += hr * dt
				uphillWeight += dt
			} else {
				downhillSum += hr * dt
				downhillWeight += dt
			}
		}
	}

	var result Result
	if uphillWeight > 0 {
		v := uphillSum / uphillWeight
		result.UphillHeartrate = &v
	}
	if downhillWeight > 0 {
		v := downhillSum / downhillWeight
		result.DownhillHeartrate = &v
	}
	return result
}

// findExtrema returns indices of altitude turning points whose swing from the
// previous confirmed extremum is at least prominence. The first and last
// samples always bound the segments.
func findExtrema(altitude []float64, prominence float64) []int {
	extrema := []int{0}
	candidate := 0
	direction := 0 // 1 climbing, -1 descending

	for i := 1; i < len(altitude); i++ {
		switch direction {
		case 0:
			// Undecided until the first move of prominence size
			if altitude[i]-altitude[candidate] >= prominence {
				direction = 1
				candidate = i
			} else if altitude[candidate]-altitude[i] >= prominence {
				direction = -1
				candidate = i
			}
		case 1:
			if altitude[i] >= altitude[candidate] {
				candidate = i
			} else if altitude[candidate]-altitude[i] >= prominence {
				// Peak confirmed by a prominence-sized drop after it
				extrema = append(extrema, candidate)
				direction = -1
				candidate = i
			}
		case -1:
			if altitude[i] <= altitude[candidate] {
				candidate = i
			} else if altitude[i]-altitude[candidate] >= prominence {
				extrema = append(extrema, candidate)
				direction = 1
				candidate = i
			}
		}
	}

	last := len(altitude) - 1
	if extrema[len(extrema)-1] != last {
		extrema = append(extrema, last)
	}
	return extrema
}

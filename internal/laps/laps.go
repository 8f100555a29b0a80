// Package laps derives per-lap index ranges and lap times.
package laps

import "github.com/banshee-data/kart-power-curve/internal/csvdecode"

// Lap is a half-open index range into the common sample index, a lap time,
// and the out-/in-lap flags.
type Lap struct {
	Start     int
	End       int // exclusive
	TimeS     float64
	IsOutLap  bool
	IsInLap   bool
}

const inLapThresholdS = 90

// Extract derives the lap list from, in priority order: a lap-marker
// channel, beacon/segment metadata, or (failing both) a single lap spanning
// the whole session.
func Extract(timeS []float64, lapChannel []float64, md csvdecode.Metadata) []Lap {
	switch {
	case len(lapChannel) > 0:
		return fromLapChannel(timeS, lapChannel)
	case len(md.BeaconMarkers) > 0:
		return fromCumulativeBoundaries(timeS, md.BeaconMarkers, nil)
	case len(md.SegmentTimesCumulative) > 0:
		return fromCumulativeBoundaries(timeS, md.SegmentTimesCumulative, md.SegmentTimesPerLap)
	default:
		return singleLap(timeS)
	}
}

func fromLapChannel(timeS, lapChannel []float64) []Lap {
	n := len(lapChannel)
	if n == 0 {
		return nil
	}
	var laps []Lap
	start := 0
	for i := 1; i < n; i++ {
		if lapChannel[i] != lapChannel[i-1] {
			laps = append(laps, makeLap(timeS, start, i))
			start = i
		}
	}
	laps = append(laps, makeLap(timeS, start, n))
	markOutInLaps(laps)
	return laps
}

func makeLap(timeS []float64, start, end int) Lap {
	t0 := timeS[start]
	t1 := timeS[end-1]
	if end < len(timeS) {
		t1 = timeS[end]
	}
	return Lap{Start: start, End: end, TimeS: t1 - t0}
}

func markOutInLaps(laps []Lap) {
	if len(laps) == 0 {
		return
	}
	laps[0].IsOutLap = true
	last := len(laps) - 1
	laps[last].IsInLap = laps[last].TimeS > inLapThresholdS
}

// fromCumulativeBoundaries walks the time channel counting indices until
// time reaches each cumulative boundary. When perLap is non-empty it
// supplies the explicit lap times; otherwise lap times are the successive
// differences of the cumulative boundaries.
func fromCumulativeBoundaries(timeS []float64, cumulative []float64, perLap []float64) []Lap {
	if len(timeS) == 0 {
		return nil
	}
	laps := make([]Lap, 0, len(cumulative))
	start := 0
	prevBoundary := 0.0
	for i, boundary := range cumulative {
		end := start
		for end < len(timeS) && timeS[end] < boundary {
			end++
		}
		if end <= start {
			end = start + 1
			if end > len(timeS) {
				end = len(timeS)
			}
		}
		lapTime := boundary - prevBoundary
		if i < len(perLap) {
			lapTime = perLap[i]
		}
		laps = append(laps, Lap{Start: start, End: end, TimeS: lapTime})
		start = end
		prevBoundary = boundary
	}
	markOutInLaps(laps)
	return laps
}

func singleLap(timeS []float64) []Lap {
	if len(timeS) == 0 {
		return nil
	}
	return []Lap{{
		Start: 0,
		End:   len(timeS),
		TimeS: timeS[len(timeS)-1] - timeS[0],
	}}
}

// Package pipeline wires the channel resolver, CSV decoder, lap extractor,
// environment model, gear detector, and the two power engines into the two
// analysis entry points: one function per external entry point, each a
// straight-line sequence of calls with no retained state between
// invocations.
package pipeline

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/banshee-data/kart-power-curve/internal/binning"
	"github.com/banshee-data/kart-power-curve/internal/calibration"
	"github.com/banshee-data/kart-power-curve/internal/config"
	"github.com/banshee-data/kart-power-curve/internal/csvdecode"
	"github.com/banshee-data/kart-power-curve/internal/environment"
	"github.com/banshee-data/kart-power-curve/internal/gearbox"
	"github.com/banshee-data/kart-power-curve/internal/kerrors"
	"github.com/banshee-data/kart-power-curve/internal/laps"
	"github.com/banshee-data/kart-power-curve/internal/powerengine"
	"github.com/banshee-data/kart-power-curve/internal/resolver"
	"github.com/banshee-data/kart-power-curve/internal/sensorpower"
	"github.com/banshee-data/kart-power-curve/internal/units"
)

// LapTelemetry is one lap's rebased-time trace plus a coarse power estimate.
type LapTelemetry struct {
	LapIndex      int       `json:"lapIndex"`
	IsOutLap      bool      `json:"isOutLap"`
	IsInLap       bool      `json:"isInLap"`
	LapTimeS      float64   `json:"lapTimeS"`
	TimeS         []float64 `json:"timeS"` // rebased to lap start
	SpeedKmh      []float64 `json:"speedKmh"`
	Gear          []int     `json:"gear"`
	CoarsePowerCV []float64 `json:"coarsePowerCv"`
}

// LoggerAnalysis is the logger-path analysis document.
type LoggerAnalysis struct {
	Bins           []binning.Bin  `json:"bins"`
	AcceptedCount  int            `json:"acceptedCount"`
	Laps           []LapTelemetry `json:"laps"`
	PeakPowerCV    float64        `json:"peakPowerCv"`
	PeakPowerRPM   float64        `json:"peakPowerRpm"`
	PeakTorqueNm   float64        `json:"peakTorqueNm"`
	PeakTorqueRPM  float64        `json:"peakTorqueRpm"`
	MeanPowerCV    float64        `json:"meanPowerCv"`
	MeanTorqueNm   float64        `json:"meanTorqueNm"`
	MinRPM         float64        `json:"minRpm"`
	MaxRPM         float64        `json:"maxRpm"`
	AirDensityKgM3 float64        `json:"airDensityKgM3"`
	Vehicle        config.Vehicle `json:"vehicle"`
	GeneratedAt    time.Time      `json:"generatedAt"`
}

// AnalyzeLogger decodes a logger CSV, resolves channels, extracts laps,
// runs the power engine over the selected lap ranges, bins and smooths, and
// assembles the analysis document. No state is retained across calls.
func AnalyzeLogger(csv []byte, vehicle config.Vehicle, selectedLaps []int, generatedAt time.Time) (LoggerAnalysis, error) {
	decoded, err := csvdecode.Decode(csv)
	if err != nil {
		return LoggerAnalysis{}, err
	}

	mapping := resolver.Resolve(decoded.Headers)
	channels, err := materialize(decoded, mapping)
	if err != nil {
		return LoggerAnalysis{}, err
	}

	density := environment.AirDensity(vehicle.Run.PressureMbar, vehicle.Run.TemperatureC, vehicle.Run.HumidityPct)

	allLaps := laps.Extract(channels.time, channels.lapIndex, decoded.Metadata)
	selected := selectLaps(allLaps, selectedLaps)

	samples := buildSamples(channels, selected)
	accepted := powerengine.Run(samples, vehicle, density)
	curve := binning.Build(accepted, vehicle.FilterLevel)

	lapTelemetry := buildLapTelemetry(channels, allLaps, selected, vehicle)

	return LoggerAnalysis{
		Bins:           curve.Bins,
		AcceptedCount:  len(accepted),
		Laps:           lapTelemetry,
		PeakPowerCV:    curve.PeakPowerCV,
		PeakPowerRPM:   curve.PeakPowerRPM,
		PeakTorqueNm:   curve.PeakTorqueNm,
		PeakTorqueRPM:  curve.PeakTorqueRPM,
		MeanPowerCV:    curve.MeanPowerCV,
		MeanTorqueNm:   curve.MeanTorqueNm,
		MinRPM:         curve.MinRPM,
		MaxRPM:         curve.MaxRPM,
		AirDensityKgM3: density,
		Vehicle:        vehicle,
		GeneratedAt:    generatedAt,
	}, nil
}

// SensorAnalysis is the sensor-path analysis document.
type SensorAnalysis struct {
	Bins              []sensorpower.SpeedBin `json:"bins"`
	PeakPowerCV       float64                `json:"peakPowerCv"`
	PeakSpeedKmh      float64                `json:"peakSpeedKmh"`
	MaxSpeedKmh       float64                `json:"maxSpeedKmh"`
	MaxAccelG         float64                `json:"maxAccelG"`
	MaxDecelG         float64                `json:"maxDecelG"`
	TotalSamples      int                    `json:"totalSamples"`
	ValidSpeedSamples int                    `json:"validSpeedSamples"`
	Calibration       calibration.Result     `json:"calibration"`
	GeneratedAt       time.Time              `json:"generatedAt"`
}

// AnalyzeSensor runs the sensor power engine against an already-completed
// calibration and assembles the speed-binned analysis document.
func AnalyzeSensor(samples []sensorpower.Sample, cal calibration.Result, vehicle config.Vehicle, generatedAt time.Time) SensorAnalysis {
	density := environment.AirDensity(vehicle.Run.PressureMbar, vehicle.Run.TemperatureC, vehicle.Run.HumidityPct)
	curve := sensorpower.Run(samples, cal, vehicle, density, vehicle.FilterLevel)

	return SensorAnalysis{
		Bins:              curve.Bins,
		PeakPowerCV:       curve.PeakPowerCV,
		PeakSpeedKmh:      curve.PeakSpeedKmh,
		MaxSpeedKmh:        curve.MaxSpeedKmh,
		MaxAccelG:          curve.MaxAccelG,
		MaxDecelG:          curve.MaxDecelG,
		TotalSamples:       curve.TotalSamples,
		ValidSpeedSamples:  curve.ValidSpeedSamples,
		Calibration:        cal,
		GeneratedAt:        generatedAt,
	}
}

// channelSet holds the materialised numeric arrays for one decoded session.
type channelSet struct {
	time       []float64
	rpm        []float64
	gpsSpeed   []float64
	lonAcc     []float64
	headTemp   []float64
	coolant    []float64
	exhaust    []float64
	lambda     []float64
	lapIndex   []float64
}

const materializeComponent = "pipeline.materialize"

func materialize(decoded csvdecode.Decoded, mapping map[resolver.Channel]resolver.Mapping) (channelSet, error) {
	colIndex := make(map[string]int, len(decoded.Headers))
	for i, h := range decoded.Headers {
		colIndex[strings.ToLower(strings.TrimSpace(h))] = i
	}

	extract := func(ch resolver.Channel) []float64 {
		m := mapping[ch]
		if m.Status == resolver.StatusUnmatched {
			return nil
		}
		idx, ok := colIndex[strings.ToLower(strings.TrimSpace(m.Header))]
		if !ok {
			return nil
		}
		out := make([]float64, 0, len(decoded.Rows))
		for _, row := range decoded.Rows {
			if idx >= len(row) {
				out = append(out, 0)
				continue
			}
			v, err := strconv.ParseFloat(strings.TrimSpace(row[idx]), 64)
			if err != nil {
				out = append(out, 0)
				continue
			}
			out = append(out, v*m.Multiplier)
		}
		return out
	}

	cs := channelSet{
		time:     extract(resolver.ChannelTime),
		rpm:      extract(resolver.ChannelEngineRPM),
		gpsSpeed: extract(resolver.ChannelGPSSpeed),
		lonAcc:   extract(resolver.ChannelLonAcc),
		headTemp: extract(resolver.ChannelHeadTemp),
		coolant:  extract(resolver.ChannelCoolantTemp),
		exhaust:  extract(resolver.ChannelExhaustTemp),
		lambda:   extract(resolver.ChannelLambda),
		lapIndex: extract(resolver.ChannelLapIndex),
	}
	if len(cs.time) == 0 {
		return channelSet{}, kerrors.New(kerrors.KindMalformedInput, materializeComponent, "no time channel resolved")
	}
	return cs, nil
}

func selectLaps(allLaps []laps.Lap, selected []int) []laps.Lap {
	if len(selected) == 0 {
		return allLaps
	}
	want := make(map[int]bool, len(selected))
	for _, i := range selected {
		want[i] = true
	}
	var out []laps.Lap
	for i, l := range allLaps {
		if want[i] {
			out = append(out, l)
		}
	}
	return out
}

func buildSamples(cs channelSet, selected []laps.Lap) []powerengine.Sample {
	var out []powerengine.Sample
	for lapIdx, l := range selected {
		for i := l.Start; i < l.End && i < len(cs.time); i++ {
			s := powerengine.Sample{
				SpeedKmh: at(cs.gpsSpeed, i),
				LonAccG:  at(cs.lonAcc, i),
				RPM:      at(cs.rpm, i),
				Lap:      lapIdx,
				LapIndex: i - l.Start,
			}
			if len(cs.headTemp) > i {
				s.HeadTempC = cs.headTemp[i]
			}
			if len(cs.coolant) > i {
				s.CoolantC = cs.coolant[i]
			}
			if len(cs.exhaust) > i {
				s.ExhaustC = cs.exhaust[i]
			}
			if len(cs.lambda) > i {
				s.Lambda = cs.lambda[i]
			}
			out = append(out, s)
		}
	}
	return out
}

func at(xs []float64, i int) float64 {
	if i < 0 || i >= len(xs) {
		return 0
	}
	return xs[i]
}

func buildLapTelemetry(cs channelSet, allLaps []laps.Lap, selected []laps.Lap, vehicle config.Vehicle) []LapTelemetry {
	selectedStarts := make(map[int]bool, len(selected))
	for _, l := range selected {
		selectedStarts[l.Start] = true
	}

	out := make([]LapTelemetry, 0, len(allLaps))
	for idx, l := range allLaps {
		if len(selected) > 0 && !selectedStarts[l.Start] {
			continue
		}
		lt := LapTelemetry{
			LapIndex: idx,
			IsOutLap: l.IsOutLap,
			IsInLap:  l.IsInLap,
			LapTimeS: l.TimeS,
		}
		t0 := at(cs.time, l.Start)
		for i := l.Start; i < l.End && i < len(cs.time); i++ {
			v := at(cs.gpsSpeed, i) / units.KmhPerMps
			a := units.GToMps2(at(cs.lonAcc, i))
			rpm := at(cs.rpm, i)
			gear := gearbox.Detect(rpm, v, vehicle)

			lt.TimeS = append(lt.TimeS, cs.time[i]-t0)
			lt.SpeedKmh = append(lt.SpeedKmh, at(cs.gpsSpeed, i))
			lt.Gear = append(lt.Gear, gear)

			power := 0.0
			if v > 1 && gear > 0 && a > 0 {
				power = units.WattsToCV(vehicle.Kart.MassKg * a * v)
			}
			lt.CoarsePowerCV = append(lt.CoarsePowerCV, power)
		}
		out = append(out, lt)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].LapIndex < out[j].LapIndex })
	return out
}

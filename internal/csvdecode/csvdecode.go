// Package csvdecode tokenizes a logger CSV, separates the metadata block
// from the header row, and parses the numeric data rows.
package csvdecode

import (
	"bytes"
	"encoding/csv"
	"math"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/banshee-data/kart-power-curve/internal/kerrors"
	"github.com/banshee-data/kart-power-curve/internal/resolver"
)

const component = "csvdecode.Decode"

const maxHeaderScanRows = 30

// Metadata is the typed struct the reserved metadata keys populate.
type Metadata struct {
	Format     string
	Venue      string
	Vehicle    string
	Driver     string
	Date       string
	Time       string
	DataSource string
	Comment    string
	Session    string

	SampleRateHz float64
	DurationS    float64

	// BeaconMarkers are cumulative lap-boundary seconds, present only when
	// the metadata block carried a "Beacon Markers" row.
	BeaconMarkers []float64

	// SegmentTimesCumulative is always cumulative once normalized: if the
	// raw row was already monotone-increasing it is used as-is, otherwise
	// it is the prefix sum of the raw per-lap values.
	SegmentTimesCumulative []float64

	// SegmentTimesPerLap holds the original per-lap values, but only when
	// the raw row was NOT already monotone-increasing (i.e. it already was
	// an explicit per-lap list, not something derived by differencing).
	SegmentTimesPerLap []float64
}

// Decoded is the decoder's output: the metadata block, the header row, and
// the parsed data rows (still string fields; callers materialise per
// channel mapping).
type Decoded struct {
	Metadata Metadata
	Headers  []string
	Rows     [][]string
}

var reservedMetadataKeys = map[string]bool{
	"format":         true,
	"venue":          true,
	"vehicle":        true,
	"user":           true,
	"driver":         true,
	"data source":    true,
	"comment":        true,
	"date":           true,
	"sample rate":    true,
	"duration":       true,
	"segment":        true,
	"beacon markers": true,
	"segment times":  true,
	"session":        true,
}

var unitCells = map[string]bool{
	"sec": true, "km": true, "km/h": true, "rpm": true, "g": true,
	"m/s": true, "m": true, "%": true, "°c": true,
}

// Decode parses raw logger CSV bytes into metadata, headers, and data rows.
func Decode(data []byte) (Decoded, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return Decoded{}, kerrors.Wrap(kerrors.KindMalformedInput, component, "failed to tokenize CSV", err)
	}

	headerIdx, headers, ok := findHeaderRow(records)
	if !ok {
		return Decoded{}, kerrors.New(kerrors.KindMalformedInput, component, "no header row found in first 30 rows")
	}

	md := parseMetadata(records[:headerIdx])

	dataStart := skipNonDataRows(records, headerIdx+1, headers)
	var rows [][]string
	minLen := len(headers)
	if minLen > 3 {
		minLen = 3
	}
	for _, rec := range records[dataStart:] {
		if len(rec) < minLen {
			continue
		}
		if !isFiniteNumber(rec[0]) {
			continue
		}
		rows = append(rows, rec)
	}
	if len(rows) == 0 {
		return Decoded{}, kerrors.New(kerrors.KindMalformedInput, component, "no data rows found after header row")
	}

	return Decoded{Metadata: md, Headers: headers, Rows: rows}, nil
}

// findHeaderRow scans the first maxHeaderScanRows rows for the header row.
func findHeaderRow(records [][]string) (int, []string, bool) {
	limit := len(records)
	if limit > maxHeaderScanRows {
		limit = maxHeaderScanRows
	}
	aliases := resolver.AllAliases()

	for i := 0; i < limit; i++ {
		row := records[i]
		nonEmpty := lo.CountBy(row, func(c string) bool { return strings.TrimSpace(c) != "" })
		if nonEmpty < 3 {
			continue
		}
		first := normalizeCell(row[0])
		if reservedMetadataKeys[first] {
			continue
		}
		if first == "time" || first == "distance" {
			return i, row, true
		}
		aliasMatches := lo.CountBy(row, func(c string) bool {
			cell := normalizeCell(c)
			return cell != "" && lo.SomeBy(aliases, func(a string) bool {
				return cell == a || strings.Contains(cell, a)
			})
		})
		if aliasMatches >= 3 {
			return i, row, true
		}
	}
	return 0, nil, false
}

func normalizeCell(s string) string {
	return strings.ToLower(strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `"'`)))
}

// skipNonDataRows advances past duplicate header rows, unit rows, and
// channel-index rows directly following the header.
func skipNonDataRows(records [][]string, start int, headers []string) int {
	i := start
	for i < len(records) {
		row := records[i]
		if isDuplicateHeaderRow(row, headers) || isUnitRow(row) || isChannelIndexRow(row) {
			i++
			continue
		}
		break
	}
	return i
}

func isDuplicateHeaderRow(row, headers []string) bool {
	if len(row) != len(headers) {
		return false
	}
	for i := range row {
		if normalizeCell(row[i]) != normalizeCell(headers[i]) {
			return false
		}
	}
	return true
}

func isUnitRow(row []string) bool {
	for _, c := range row {
		if unitCells[normalizeCell(c)] {
			return true
		}
	}
	return false
}

func isChannelIndexRow(row []string) bool {
	any := false
	for _, c := range row {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		n, err := strconv.Atoi(c)
		if err != nil || n < 0 || n > 20 {
			return false
		}
		any = true
	}
	return any
}

func isFiniteNumber(s string) bool {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return false
	}
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// parseMetadata reads "key, value, ..." rows above the header row into the
// typed Metadata struct.
func parseMetadata(records [][]string) Metadata {
	var md Metadata
	var rawBeacon, rawSegment []float64

	for _, row := range records {
		if len(row) < 1 {
			continue
		}
		key := normalizeCell(row[0])
		values := row[1:]

		switch key {
		case "format":
			md.Format = firstValue(values)
		case "venue":
			md.Venue = firstValue(values)
		case "vehicle":
			md.Vehicle = firstValue(values)
		case "user", "driver":
			md.Driver = firstValue(values)
		case "data source":
			md.DataSource = firstValue(values)
		case "comment":
			md.Comment = firstValue(values)
		case "date":
			md.Date = firstValue(values)
		case "sample rate":
			md.SampleRateHz = parseFloatOr(firstValue(values), 0)
		case "duration":
			md.DurationS = parseFloatOr(firstValue(values), 0)
		case "beacon markers":
			rawBeacon = parseFloats(values)
		case "segment times":
			rawSegment = parseSegmentTimes(values)
		}
	}

	if len(rawBeacon) > 0 {
		md.BeaconMarkers = rawBeacon
	}
	if len(rawSegment) > 0 {
		if isMonotoneIncreasing(rawSegment) {
			md.SegmentTimesCumulative = rawSegment
		} else {
			md.SegmentTimesCumulative = prefixSum(rawSegment)
			md.SegmentTimesPerLap = rawSegment
		}
	}
	return md
}

func firstValue(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func parseFloatOr(s string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseFloats(values []string) []float64 {
	var out []float64
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			continue
		}
		out = append(out, f)
	}
	return out
}

// parseSegmentTimes parses either cumulative-seconds or "mm:ss.xxx" per-lap
// values into seconds.
func parseSegmentTimes(values []string) []float64 {
	var out []float64
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if strings.Contains(v, ":") {
			parts := strings.SplitN(v, ":", 2)
			mins := parseFloatOr(parts[0], 0)
			secs := parseFloatOr(parts[1], 0)
			out = append(out, mins*60+secs)
			continue
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			out = append(out, f)
		}
	}
	return out
}

func isMonotoneIncreasing(xs []float64) bool {
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			return false
		}
	}
	return len(xs) > 0
}

func prefixSum(xs []float64) []float64 {
	out := make([]float64, len(xs))
	var sum float64
	for i, v := range xs {
		sum += v
		out[i] = sum
	}
	return out
}

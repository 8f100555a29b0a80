// Package resolver maps ambiguous logger column headers to the fixed set of
// semantic telemetry channels.
package resolver

import (
	"regexp"
	"strings"

	"github.com/samber/lo"
)

// Channel names the 13 semantic channels a logger header can resolve to.
type Channel string

const (
	ChannelTime         Channel = "time"
	ChannelEngineRPM    Channel = "engineRpm"
	ChannelGPSSpeed     Channel = "gpsSpeed"
	ChannelLonAcc       Channel = "longitudinalAcc"
	ChannelLatAcc       Channel = "lateralAcc"
	ChannelDistance     Channel = "distance"
	ChannelSlope        Channel = "slope"
	ChannelHeadTemp     Channel = "headTemp"
	ChannelCoolantTemp  Channel = "coolantTemp"
	ChannelExhaustTemp  Channel = "exhaustTemp"
	ChannelLambda       Channel = "lambda"
	ChannelThrottle     Channel = "throttle"
	ChannelLapIndex     Channel = "lapIndex"
)

// canonicalOrder is the discovery order used for tie-breaking: when a
// header could match more than one channel, the channel earliest in this
// list wins.
var canonicalOrder = []Channel{
	ChannelTime,
	ChannelEngineRPM,
	ChannelGPSSpeed,
	ChannelLonAcc,
	ChannelLatAcc,
	ChannelDistance,
	ChannelSlope,
	ChannelHeadTemp,
	ChannelCoolantTemp,
	ChannelExhaustTemp,
	ChannelLambda,
	ChannelThrottle,
	ChannelLapIndex,
}

// aliases holds, per channel, the canonical alias list tested in order.
var aliases = map[Channel][]string{
	ChannelTime:        {"time", "timestamp"},
	ChannelEngineRPM:    {"rpm", "engine speed", "engine_rpm", "enginerpm"},
	ChannelGPSSpeed:     {"gps_speed", "gps speed", "speed", "vehicle speed"},
	ChannelLonAcc:       {"gps_lonacc", "lonacc", "longitudinal", "accel_x", "g_long"},
	ChannelLatAcc:       {"gps_latacc", "latacc", "lateral", "accel_y", "g_lat"},
	ChannelDistance:     {"distance", "dist"},
	ChannelSlope:        {"slope", "gradient", "incline"},
	ChannelHeadTemp:     {"head temp", "head_temp", "cylinder head"},
	ChannelCoolantTemp:  {"coolant", "water temp", "coolant_temp"},
	ChannelExhaustTemp:  {"exhaust", "egt", "exhaust_temp"},
	ChannelLambda:       {"lambda", "afr", "air fuel ratio"},
	ChannelThrottle:     {"throttle", "tps"},
	ChannelLapIndex:     {"lap", "lap_index", "lap number"},
}

// Status describes how a channel mapping was produced.
type Status string

const (
	StatusAutoMatched Status = "auto-matched"
	StatusManuallySet Status = "manually-set"
	StatusUnmatched   Status = "unmatched"
)

// Mapping binds a semantic channel to a header (or none), a status, and a
// multiplier applied during materialisation.
type Mapping struct {
	Header     string
	Status     Status
	Multiplier float64
}

var timeLikePattern = regexp.MustCompile(`\d+:\d+`)

// normalize trims surrounding quotes/whitespace and lowercases a header.
func normalize(header string) string {
	h := strings.TrimSpace(header)
	h = strings.Trim(h, `"'`)
	return strings.ToLower(strings.TrimSpace(h))
}

// Resolve maps raw header strings to the 13 semantic channels. Headers that
// match no channel are reported with status unmatched; Resolve never fails,
// only ever produces unmatched mappings.
func Resolve(headers []string) map[Channel]Mapping {
	result := make(map[Channel]Mapping, len(canonicalOrder))
	for _, ch := range canonicalOrder {
		result[ch] = Mapping{Status: StatusUnmatched, Multiplier: 1}
	}

	matchedHeaders := make(map[int]bool)

	for _, ch := range canonicalOrder {
		aliasList := aliases[ch]
		idx, ok := firstMatchingHeader(headers, matchedHeaders, aliasList)
		if !ok {
			continue
		}
		matchedHeaders[idx] = true
		result[ch] = Mapping{Header: headers[idx], Status: StatusAutoMatched, Multiplier: 1}
	}

	return result
}

// firstMatchingHeader finds the first still-unmatched header that equals or
// contains one of the channel's aliases (case-insensitive), in header
// discovery order, rejecting time-like headers ("12:34").
func firstMatchingHeader(headers []string, used map[int]bool, aliasList []string) (int, bool) {
	for i, raw := range headers {
		if used[i] {
			continue
		}
		h := normalize(raw)
		if h == "" || timeLikePattern.MatchString(h) {
			continue
		}
		if lo.SomeBy(aliasList, func(alias string) bool {
			return h == alias || strings.Contains(h, alias)
		}) {
			return i, true
		}
	}
	return 0, false
}

// AllAliases flattens the canonical alias tables, for callers (the CSV
// Decoder's header-row detection) that need to test "does this cell look
// like a known channel name" without caring which channel.
func AllAliases() []string {
	var out []string
	for _, ch := range canonicalOrder {
		out = append(out, aliases[ch]...)
	}
	return out
}

// SetManual overrides a channel's mapping to a user-chosen header, status
// manually-set.
func SetManual(mappings map[Channel]Mapping, ch Channel, header string, multiplier float64) {
	if multiplier == 0 {
		multiplier = 1
	}
	mappings[ch] = Mapping{Header: header, Status: StatusManuallySet, Multiplier: multiplier}
}

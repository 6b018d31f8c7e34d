package analysis

import (
	"math"
	"sort"

	"iot_query_agent/pkg"
)

// Trend classifies the direction of a numeric series.
type Trend string

const (
	TrendIncreasing   Trend = "increasing"
	TrendDecreasing   Trend = "decreasing"
	TrendStable       Trend = "stable"
	TrendInsufficient Trend = "insufficient_data"
)

// slopeThreshold separates a real trend from noise around flat.
const slopeThreshold = 0.1

// Anomaly is a reading outside the expected statistical range for its series.
type Anomaly struct {
	DeviceID      string  `json:"device_id"`
	SensorType    string  `json:"sensor_type"`
	Value         float64 `json:"value"`
	ExpectedMin   float64 `json:"expected_min"`
	ExpectedMax   float64 `json:"expected_max"`
	Severity      string  `json:"severity"` // medium or high
	TimestampUnix int64   `json:"timestamp"`
}

// SeriesStats holds aggregate statistics for one sensor type.
type SeriesStats struct {
	Count int     `json:"count"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
	Avg   float64 `json:"avg"`
}

// Summary aggregates the whole data set.
type Summary struct {
	TotalReadings int                    `json:"total_readings"`
	SensorTypes   []string               `json:"sensor_types"`
	DeviceCount   int                    `json:"device_count"`
	BySensorType  map[string]SeriesStats `json:"by_sensor_type"`
}

// Report is the full analysis output for one batch of readings.
type Report struct {
	NoData          bool             `json:"no_data"`
	Summary         Summary          `json:"summary"`
	Trends          map[string]Trend `json:"trends"`
	Anomalies       []Anomaly        `json:"anomalies"`
	Recommendations []string         `json:"recommendations,omitempty"`
}

// Analyze derives trend, anomaly and summary information from a batch of
// readings. It is a pure function: malformed values (NaN/Inf) are excluded
// from aggregates and an empty input produces an explicit no-data report,
// never an error.
func Analyze(readings []pkg.SensorReading) *Report {
	readings = filterFinite(readings)

	if len(readings) == 0 {
		return &Report{
			NoData: true,
			Summary: Summary{
				BySensorType: map[string]SeriesStats{},
			},
			Trends: map[string]Trend{},
		}
	}

	report := &Report{
		Summary:   summarize(readings),
		Trends:    map[string]Trend{},
		Anomalies: detectAnomalies(readings),
	}

	for sensorType, values := range seriesBySensorType(readings) {
		report.Trends[sensorType] = ClassifyTrend(values)
	}

	report.Recommendations = recommendations(report)
	return report
}

// ClassifyTrend classifies a numeric series as increasing, decreasing or
// stable using slope ~ corr(x,y) * std(y)/std(x), where x is the index
// sequence. This is a cheap linear-trend heuristic, not a full regression
// fit; it matches a least-squares slope only up to the correlation sign and
// is intentionally approximate.
func ClassifyTrend(values []float64) Trend {
	if len(values) < 2 {
		return TrendInsufficient
	}

	n := float64(len(values))
	meanX := (n - 1) / 2
	var meanY float64
	for _, v := range values {
		meanY += v
	}
	meanY /= n

	var covXY, varX, varY float64
	for i, v := range values {
		dx := float64(i) - meanX
		dy := v - meanY
		covXY += dx * dy
		varX += dx * dx
		varY += dy * dy
	}

	if varY == 0 {
		// Perfectly flat series.
		return TrendStable
	}

	stdX := math.Sqrt(varX / n)
	stdY := math.Sqrt(varY / n)
	corr := covXY / math.Sqrt(varX*varY)
	slope := corr * stdY / stdX

	switch {
	case slope > slopeThreshold:
		return TrendIncreasing
	case slope < -slopeThreshold:
		return TrendDecreasing
	default:
		return TrendStable
	}
}

// detectAnomalies flags readings outside mean +/- 2 sigma per sensor type.
// Severity is high beyond 3 sigma, medium otherwise. A series with zero
// deviation reports no anomalies.
func detectAnomalies(readings []pkg.SensorReading) []Anomaly {
	grouped := map[string][]pkg.SensorReading{}
	for _, r := range readings {
		grouped[r.SensorType] = append(grouped[r.SensorType], r)
	}

	var anomalies []Anomaly
	for _, sensorType := range sortedKeys(grouped) {
		group := grouped[sensorType]

		var mean float64
		for _, r := range group {
			mean += r.Value
		}
		mean /= float64(len(group))

		var variance float64
		for _, r := range group {
			d := r.Value - mean
			variance += d * d
		}
		std := math.Sqrt(variance / float64(len(group)))
		if std == 0 {
			// Degenerate series, avoids division issues downstream.
			continue
		}

		lower := mean - 2*std
		upper := mean + 2*std
		for _, r := range group {
			if r.Value >= lower && r.Value <= upper {
				continue
			}
			severity := "medium"
			if math.Abs(r.Value-mean) > 3*std {
				severity = "high"
			}
			anomalies = append(anomalies, Anomaly{
				DeviceID:      r.DeviceID,
				SensorType:    r.SensorType,
				Value:         r.Value,
				ExpectedMin:   lower,
				ExpectedMax:   upper,
				Severity:      severity,
				TimestampUnix: r.Timestamp.Unix(),
			})
		}
	}

	return anomalies
}

func summarize(readings []pkg.SensorReading) Summary {
	byType := map[string]SeriesStats{}
	devices := map[string]struct{}{}
	sums := map[string]float64{}

	for _, r := range readings {
		devices[r.DeviceID] = struct{}{}

		stats, seen := byType[r.SensorType]
		if !seen {
			stats = SeriesStats{Min: r.Value, Max: r.Value}
		}
		stats.Count++
		stats.Min = math.Min(stats.Min, r.Value)
		stats.Max = math.Max(stats.Max, r.Value)
		sums[r.SensorType] += r.Value
		byType[r.SensorType] = stats
	}

	for sensorType, stats := range byType {
		stats.Avg = sums[sensorType] / float64(stats.Count)
		byType[sensorType] = stats
	}

	return Summary{
		TotalReadings: len(readings),
		SensorTypes:   sortedKeys(byType),
		DeviceCount:   len(devices),
		BySensorType:  byType,
	}
}

func recommendations(report *Report) []string {
	var recs []string
	for _, sensorType := range sortedKeys(report.Trends) {
		switch report.Trends[sensorType] {
		case TrendIncreasing:
			recs = append(recs, "Readings for "+sensorType+" are trending upward; consider setting an upper alert threshold.")
		case TrendDecreasing:
			recs = append(recs, "Readings for "+sensorType+" are trending downward; consider setting a lower alert threshold.")
		}
	}
	if len(report.Anomalies) > 0 {
		recs = append(recs, "Anomalous readings detected; review the affected devices.")
	}
	return recs
}

func seriesBySensorType(readings []pkg.SensorReading) map[string][]float64 {
	series := map[string][]float64{}
	for _, r := range readings {
		series[r.SensorType] = append(series[r.SensorType], r.Value)
	}
	return series
}

func filterFinite(readings []pkg.SensorReading) []pkg.SensorReading {
	filtered := readings[:0:0]
	for _, r := range readings {
		if math.IsNaN(r.Value) || math.IsInf(r.Value, 0) {
			continue
		}
		filtered = append(filtered, r)
	}
	return filtered
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

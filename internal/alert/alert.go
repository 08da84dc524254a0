// Package alert evaluates metric readings against configured thresholds
// and delivers breach notifications over the Telegram Bot API. Delivery
// is best-effort and at-most-once per invocation; the scheduler's next
// run is the retry mechanism.
package alert

import (
	"context"
	"fmt"

	"codeberg.org/mutker/powerlog/internal/logger"
)

// Reading holds the per-invocation values checked against thresholds.
type Reading struct {
	CPULoad        float64
	Temperature    float64
	HasTemperature bool
	RAMUsage       float64
	DiskUsage      float64
	Watts          float64
}

// Breach is one metric above its threshold, with a formatted message.
type Breach struct {
	Metric  string
	Value   float64
	Message string
}

type check struct {
	metric string
	value  func(Reading) float64
	skip   func(Reading) bool
	format string
}

// Evaluation order is fixed so multiple breaches dispatch
// deterministically.
var checks = []check{
	{
		metric: "cpu_load",
		value:  func(r Reading) float64 { return r.CPULoad },
		format: "⚠️ High CPU Load: %.2f%%",
	},
	{
		metric: "temperature",
		value:  func(r Reading) float64 { return r.Temperature },
		skip:   func(r Reading) bool { return !r.HasTemperature },
		format: "🔥 High Temperature: %.2f°C",
	},
	{
		metric: "power",
		value:  func(r Reading) float64 { return r.Watts },
		format: "⚡ High Power Consumption: %.2f W",
	},
	{
		metric: "ram_usage",
		value:  func(r Reading) float64 { return r.RAMUsage },
		format: "⚠️ High RAM Usage: %.2f%%",
	},
	{
		metric: "disk_usage",
		value:  func(r Reading) float64 { return r.DiskUsage },
		format: "⚠️ High Disk Usage: %.2f%%",
	},
}

// Evaluate returns one Breach per metric strictly above its threshold.
// Metrics without a configured threshold are skipped, as is temperature
// when the host has no sensor.
func Evaluate(r Reading, thresholds map[string]float64) []Breach {
	var breaches []Breach
	for _, c := range checks {
		limit, ok := thresholds[c.metric]
		if !ok {
			continue
		}
		if c.skip != nil && c.skip(r) {
			continue
		}
		v := c.value(r)
		if v > limit {
			breaches = append(breaches, Breach{
				Metric:  c.metric,
				Value:   v,
				Message: fmt.Sprintf(c.format, v),
			})
		}
	}

	return breaches
}

// Dispatch sends each breach as an independent message. A transport
// failure is logged and does not stop the remaining sends. Returns the
// number of messages delivered.
func Dispatch(ctx context.Context, m *Messenger, breaches []Breach) int {
	sent := 0
	for _, b := range breaches {
		if err := m.SendMessage(ctx, b.Message); err != nil {
			logger.Error().
				Err(err).
				Str("metric", b.Metric).
				Msg("Failed to send alert")
			continue
		}
		sent++
	}

	return sent
}

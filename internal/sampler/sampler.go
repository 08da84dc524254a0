package sampler

import (
	"context"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/disk"
	"github.com/shirou/gopsutil/v4/mem"
	"github.com/shirou/gopsutil/v4/net"
	"github.com/shirou/gopsutil/v4/sensors"

	"codeberg.org/mutker/powerlog/internal/logger"
)

const (
	// CPU utilization is sampled over a short blocking window rather than
	// read instantaneously.
	defaultCPUInterval = time.Second

	thermalZonePath = "/sys/class/thermal/thermal_zone0/temp"
)

type Config struct {
	DiskPath    string
	CPUInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		DiskPath:    "/",
		CPUInterval: defaultCPUInterval,
	}
}

// Snapshot is one point-in-time reading of all monitored metrics.
// HasTemperature is false when the host exposes no usable sensor.
type Snapshot struct {
	Timestamp      time.Time
	CPULoad        float64
	Temperature    float64
	HasTemperature bool
	RAMUsage       float64
	DiskUsage      float64
	BytesSent      uint64
	BytesRecv      uint64
}

// Collect gathers one Snapshot. Individual metric failures degrade that
// metric to zero (or absent, for temperature) with a warning; they never
// fail the snapshot as a whole.
func Collect(ctx context.Context, cfg Config) Snapshot {
	snap := Snapshot{Timestamp: time.Now()}

	interval := cfg.CPUInterval
	if interval <= 0 {
		interval = defaultCPUInterval
	}
	if percents, err := cpu.PercentWithContext(ctx, interval, false); err != nil || len(percents) == 0 {
		logger.Warn().Err(err).Msg("Failed to sample CPU load")
	} else {
		snap.CPULoad = percents[0]
	}

	if temp, ok := readTemperature(ctx); ok {
		snap.Temperature = temp
		snap.HasTemperature = true
	}

	if vm, err := mem.VirtualMemoryWithContext(ctx); err != nil {
		logger.Warn().Err(err).Msg("Failed to read memory usage")
	} else {
		snap.RAMUsage = vm.UsedPercent
	}

	diskPath := cfg.DiskPath
	if diskPath == "" {
		diskPath = "/"
	}
	if usage, err := disk.UsageWithContext(ctx, diskPath); err != nil {
		logger.Warn().Err(err).Str("path", diskPath).Msg("Failed to read disk usage")
	} else {
		snap.DiskUsage = usage.UsedPercent
	}

	if counters, err := net.IOCountersWithContext(ctx, false); err != nil || len(counters) == 0 {
		logger.Warn().Err(err).Msg("Failed to read network counters")
	} else {
		snap.BytesSent = counters[0].BytesSent
		snap.BytesRecv = counters[0].BytesRecv
	}

	return snap
}

// readTemperature tries gopsutil sensors first and falls back to the
// thermal zone sysfs file common on SBCs. Returns ok=false when neither
// source yields a reading.
func readTemperature(ctx context.Context) (float64, bool) {
	if temps, err := sensors.TemperaturesWithContext(ctx); err == nil {
		if temp, ok := pickCPUSensor(temps); ok {
			return temp, true
		}
	}

	return readThermalZone(thermalZonePath)
}

func pickCPUSensor(temps []sensors.TemperatureStat) (float64, bool) {
	cpuKeys := []string{"cpu_thermal", "cpu-thermal", "coretemp", "k10temp", "soc_thermal"}
	for _, stat := range temps {
		key := strings.ToLower(stat.SensorKey)
		for _, want := range cpuKeys {
			if strings.Contains(key, want) && stat.Temperature > 0 {
				return stat.Temperature, true
			}
		}
	}
	for _, stat := range temps {
		if stat.Temperature > 0 {
			return stat.Temperature, true
		}
	}

	return 0, false
}

// readThermalZone parses a sysfs thermal zone file, which reports
// millidegrees Celsius.
func readThermalZone(path string) (float64, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		logger.Debug().Err(err).Msg("No thermal zone sensor")
		return 0, false
	}

	milli, err := strconv.ParseInt(strings.TrimSpace(string(raw)), 10, 64)
	if err != nil {
		logger.Warn().Err(err).Str("path", path).Msg("Unparseable thermal zone reading")
		return 0, false
	}

	return float64(milli) / 1000, true
}

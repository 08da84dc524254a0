package sampler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shirou/gopsutil/v4/sensors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadThermalZone(t *testing.T) {
	path := filepath.Join(t.TempDir(), "temp")
	require.NoError(t, os.WriteFile(path, []byte("48256\n"), 0o600))

	temp, ok := readThermalZone(path)
	require.True(t, ok)
	assert.InDelta(t, 48.256, temp, 0.001)
}

func TestReadThermalZoneMissing(t *testing.T) {
	_, ok := readThermalZone(filepath.Join(t.TempDir(), "nope"))
	assert.False(t, ok)
}

func TestReadThermalZoneGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "temp")
	require.NoError(t, os.WriteFile(path, []byte("not a number"), 0o600))

	_, ok := readThermalZone(path)
	assert.False(t, ok)
}

func TestPickCPUSensorPrefersCPUKeys(t *testing.T) {
	temps := []sensors.TemperatureStat{
		{SensorKey: "nvme_composite", Temperature: 35.0},
		{SensorKey: "cpu_thermal", Temperature: 52.5},
	}

	temp, ok := pickCPUSensor(temps)
	require.True(t, ok)
	assert.InDelta(t, 52.5, temp, 0.001)
}

func TestPickCPUSensorFallsBackToAnyReading(t *testing.T) {
	temps := []sensors.TemperatureStat{
		{SensorKey: "acpitz", Temperature: 41.0},
	}

	temp, ok := pickCPUSensor(temps)
	require.True(t, ok)
	assert.InDelta(t, 41.0, temp, 0.001)
}

func TestPickCPUSensorEmpty(t *testing.T) {
	_, ok := pickCPUSensor(nil)
	assert.False(t, ok)
}

package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConvertTemperature(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		from, to TemperatureUnit
		expected float64
	}{
		{"celsius to fahrenheit", 100, Celsius, Fahrenheit, 212},
		{"fahrenheit to celsius", 32, Fahrenheit, Celsius, 0},
		{"celsius to kelvin", 0, Celsius, Kelvin, 273.15},
		{"kelvin to celsius", 373.15, Kelvin, Celsius, 100},
		{"fahrenheit to kelvin", 212, Fahrenheit, Kelvin, 373.15},
		{"identity", 36.6, Celsius, Celsius, 36.6},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ConvertTemperature(tt.value, tt.from, tt.to)
			require.NoError(t, err)
			assert.InDelta(t, tt.expected, got, 1e-9)
		})
	}
}

func TestConvertTemperatureUnknownUnit(t *testing.T) {
	_, err := ConvertTemperature(0, "rankine", Celsius)
	assert.Error(t, err)
	_, err = ConvertTemperature(0, Celsius, "rankine")
	assert.Error(t, err)
}

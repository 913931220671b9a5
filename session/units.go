package session

import "fmt"

// TemperatureUnit identifies a temperature scale.
type TemperatureUnit string

// Temperature units.
const (
	Celsius    TemperatureUnit = "celsius"
	Fahrenheit TemperatureUnit = "fahrenheit"
	Kelvin     TemperatureUnit = "kelvin"
)

// ConvertTemperature converts a value between temperature scales.
func ConvertTemperature(value float64, from, to TemperatureUnit) (float64, error) {
	var celsius float64
	switch from {
	case Celsius:
		celsius = value
	case Fahrenheit:
		celsius = (value - 32) * 5 / 9
	case Kelvin:
		celsius = value - 273.15
	default:
		return 0, fmt.Errorf("ConvertTemperature: unknown source unit %q", from)
	}

	switch to {
	case Celsius:
		return celsius, nil
	case Fahrenheit:
		return celsius*9/5 + 32, nil
	case Kelvin:
		return celsius + 273.15, nil
	default:
		return 0, fmt.Errorf("ConvertTemperature: unknown target unit %q", to)
	}
}

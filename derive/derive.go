// Package derive computes comfort metrics from raw temperature and
// humidity readings.
package derive

import "math"

// Magnus-form constants for dew point over water.
const (
	magnusB = 17.368
	magnusC = 238.88
	magnusD = 234.5
)

// DewPoint approximates the dew point in °C for a temperature in °C
// and a relative humidity fraction in (0,1]. Out-of-domain inputs
// yield NaN, which propagates to the caller.
func DewPoint(tempC, rh float64) float64 {
	gamma := math.Log(rh * math.Exp((magnusB-tempC/magnusD)*(tempC/(magnusC+tempC))))
	return magnusC * gamma / (magnusB - gamma)
}

// Humidex returns the humidex comfort index for a temperature in °C
// and a relative humidity fraction in (0,1].
func Humidex(tempC, rh float64) float64 {
	const ftoc = 5.0 / 9.0

	tdew := DewPoint(tempC, rh)
	x := 5417.7530 * (1/273.16 - 1/(273.15+tdew))

	return tempC + ftoc*(6.11*math.Exp(x)-10.0)
}

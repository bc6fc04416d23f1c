package feed

// Unit conversions for upstream feeds that do not report SI units.
const (
	MetresPerSecondPerKnot = 1852.0 / 3600.0
	MetresPerFoot          = 0.3048
	MetresPerKilometre     = 1000.0
)

// KnotsToMps converts knots to metres per second.
func KnotsToMps(knots float64) float64 { return knots * MetresPerSecondPerKnot }

// KmpsToMps converts kilometres per second to metres per second.
func KmpsToMps(kmps float64) float64 { return kmps * MetresPerKilometre }

// FeetToMetres converts feet to metres.
func FeetToMetres(ft float64) float64 { return ft * MetresPerFoot }

package geo

import "math"

// EarthRadiusMeters is the mean Earth radius used for great-circle distances.
const EarthRadiusMeters = 6371000.0

// Distance returns the great-circle distance in meters between two
// coordinates given in degrees, using the haversine formula. Non-finite
// input propagates as NaN; callers validate coordinates beforehand.
func Distance(lat1, lng1, lat2, lng2 float64) float64 {
	phi1 := radians(lat1)
	phi2 := radians(lat2)
	deltaPhi := radians(lat2 - lat1)
	deltaLambda := radians(lng2 - lng1)

	a := math.Sin(deltaPhi/2)*math.Sin(deltaPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(deltaLambda/2)*math.Sin(deltaLambda/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return EarthRadiusMeters * c
}

func radians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

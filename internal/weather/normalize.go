package weather

// NormalizeReading applies n to r.City, passing r.Coordinates along.
// r is returned as is when the name does not change; otherwise the copy
// carries the provider's name in OriginalCity.
func NormalizeReading(n CityNormalizer, r Reading) Reading {
	city := n.Normalize(r.City, r.Coordinates)
	if city == r.City {
		return r
	}
	r.OriginalCity = r.City
	r.City = city
	return r
}

// NormalizeForecast is NormalizeReading for forecasts.
func NormalizeForecast(n CityNormalizer, f Forecast) Forecast {
	city := n.Normalize(f.City, f.Coordinates)
	if city == f.City {
		return f
	}
	f.OriginalCity = f.City
	f.City = city
	return f
}

package weather

import (
	"math"
	"time"
)

// Sample is one sub-daily forecast step, such as a 3-hour slot.
// LocalTime must already be shifted to the location's timezone.
type Sample struct {
	LocalTime       time.Time
	Temp            float64
	TempMin         float64
	TempMax         float64
	HumidityPct     float64
	WindSpeedKph    float64
	ChanceOfRainPct float64
	Description     string
	Icon            string
	Condition       Condition
}

// AggregateDays groups samples by calendar date and reduces each day.
// Days keep the order in which their first sample appears; at most limit
// days are returned (limit <= 0 means all).
func AggregateDays(samples []Sample, limit int) []DailyForecast {
	var (
		order   []string
		buckets = make(map[string][]Sample)
	)
	for _, s := range samples {
		date := s.LocalTime.Format(time.DateOnly)
		if _, ok := buckets[date]; !ok {
			order = append(order, date)
		}
		buckets[date] = append(buckets[date], s)
	}

	if limit > 0 && len(order) > limit {
		order = order[:limit]
	}

	days := make([]DailyForecast, 0, len(order))
	for _, date := range order {
		days = append(days, AggregateDay(date, buckets[date]))
	}
	return days
}

// AggregateDay reduces one day's samples: min/max/avg temperature, mean
// humidity and wind, peak rain chance, and plurality description, icon and
// condition (ties go to the value seen first).
func AggregateDay(date string, samples []Sample) DailyForecast {
	day := DailyForecast{Date: date, Condition: ConditionUnknown}
	if len(samples) == 0 {
		return day
	}

	var (
		sumTemp     float64
		sumHumidity float64
		sumWind     float64
		maxRain     float64
		minTemp     = math.Inf(1)
		maxTemp     = math.Inf(-1)
	)

	descriptions := make([]string, 0, len(samples))
	icons := make([]string, 0, len(samples))
	conditions := make([]Condition, 0, len(samples))

	for _, s := range samples {
		sumTemp += s.Temp
		sumHumidity += s.HumidityPct
		sumWind += s.WindSpeedKph
		minTemp = math.Min(minTemp, math.Min(s.TempMin, s.Temp))
		maxTemp = math.Max(maxTemp, math.Max(s.TempMax, s.Temp))
		maxRain = math.Max(maxRain, s.ChanceOfRainPct)

		descriptions = append(descriptions, s.Description)
		icons = append(icons, s.Icon)
		conditions = append(conditions, s.Condition)
	}

	n := float64(len(samples))

	day.MinTemp = minTemp
	day.MaxTemp = maxTemp
	day.AvgTemp = round1(sumTemp / n)
	day.HumidityPct = round1(sumHumidity / n)
	day.WindSpeedKph = round1(sumWind / n)
	day.ChanceOfRainPct = Float(maxRain)
	day.Description = plurality(descriptions)
	day.Icon = plurality(icons)
	day.Condition = plurality(conditions)
	return day
}

// plurality returns the most frequent value; ties keep the earliest.
func plurality[T comparable](values []T) T {
	var best T
	if len(values) == 0 {
		return best
	}

	counts := make(map[T]int, len(values))
	var order []T
	for _, v := range values {
		if counts[v] == 0 {
			order = append(order, v)
		}
		counts[v]++
	}

	bestCount := 0
	for _, v := range order {
		if counts[v] > bestCount {
			best, bestCount = v, counts[v]
		}
	}
	return best
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

package providers

import (
	"strings"

	"github.com/joanabot/joana-weather/internal/common"
	"github.com/joanabot/joana-weather/internal/weather"
)

// mapOpenWeatherCondition maps the "main" group, which OpenWeatherMap
// always returns in English regardless of lang.
func mapOpenWeatherCondition(main string) weather.Condition {
	switch main {
	case "Clear":
		return weather.ConditionClear
	case "Clouds":
		return weather.ConditionCloudy
	case "Rain", "Drizzle":
		return weather.ConditionRain
	case "Snow":
		return weather.ConditionSnow
	case "Thunderstorm", "Squall", "Tornado":
		return weather.ConditionStorm
	case "Mist", "Fog", "Haze", "Smoke", "Dust", "Sand", "Ash":
		return weather.ConditionMist
	default:
		return mapConditionText(main)
	}
}

// mapWeatherAPICondition maps WeatherAPI.com condition codes. The text is
// localized, so it is only consulted for codes this table does not know.
func mapWeatherAPICondition(code int, text string) weather.Condition {
	switch code {
	case 1000:
		return weather.ConditionClear
	case 1003, 1006, 1009:
		return weather.ConditionCloudy
	case 1030, 1135, 1147:
		return weather.ConditionMist
	case 1087, 1273, 1276, 1279, 1282:
		return weather.ConditionStorm
	case 1066, 1069, 1072, 1114, 1117, 1204, 1207, 1210, 1213, 1216, 1219,
		1222, 1225, 1237, 1249, 1252, 1255, 1258, 1261, 1264:
		return weather.ConditionSnow
	case 1063, 1150, 1153, 1168, 1171, 1180, 1183, 1186, 1189, 1192, 1195,
		1198, 1201, 1240, 1243, 1246:
		return weather.ConditionRain
	default:
		return mapConditionText(text)
	}
}

// mapOpenMeteoCondition maps WMO weather interpretation codes.
func mapOpenMeteoCondition(code int) weather.Condition {
	switch {
	case code == 0:
		return weather.ConditionClear
	case code >= 1 && code <= 3:
		return weather.ConditionCloudy
	case code == 45 || code == 48:
		return weather.ConditionMist
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return weather.ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return weather.ConditionSnow
	case code >= 95 && code <= 99:
		return weather.ConditionStorm
	default:
		return weather.ConditionUnknown
	}
}

// mapConditionText is the keyword fallback for English and Portuguese labels.
// Storm is checked before rain so "thundery showers" is a storm.
func mapConditionText(text string) weather.Condition {
	s := strings.ToLower(text)
	switch {
	case s == "":
		return weather.ConditionUnknown
	case common.HasAny(s, "thunder", "storm", "trovoada", "tempestade"):
		return weather.ConditionStorm
	case common.HasAny(s, "snow", "sleet", "blizzard", "neve", "granizo"):
		return weather.ConditionSnow
	case common.HasAny(s, "rain", "shower", "drizzle", "chuva", "chuvisco", "aguaceiro"):
		return weather.ConditionRain
	case common.HasAny(s, "mist", "fog", "haze", "neblina", "névoa", "nevoeiro"):
		return weather.ConditionMist
	case common.HasAny(s, "cloud", "overcast", "nublado", "nuvens", "encoberto"):
		return weather.ConditionCloudy
	case common.HasAny(s, "sunny", "clear", "limpo", "ensolarado", "sol"):
		return weather.ConditionClear
	default:
		return weather.ConditionUnknown
	}
}

var wmoDescriptions = map[int]string{
	0:  "Clear sky",
	1:  "Mainly clear",
	2:  "Partly cloudy",
	3:  "Overcast",
	45: "Fog",
	48: "Depositing rime fog",
	51: "Light drizzle",
	53: "Moderate drizzle",
	55: "Dense drizzle",
	56: "Light freezing drizzle",
	57: "Dense freezing drizzle",
	61: "Slight rain",
	63: "Moderate rain",
	65: "Heavy rain",
	66: "Light freezing rain",
	67: "Heavy freezing rain",
	71: "Slight snow fall",
	73: "Moderate snow fall",
	75: "Heavy snow fall",
	77: "Snow grains",
	80: "Slight rain showers",
	81: "Moderate rain showers",
	82: "Violent rain showers",
	85: "Slight snow showers",
	86: "Heavy snow showers",
	95: "Thunderstorm",
	96: "Thunderstorm with slight hail",
	99: "Thunderstorm with heavy hail",
}

func wmoDescription(code int) string {
	if d, ok := wmoDescriptions[code]; ok {
		return d
	}
	return "Unknown"
}

package weather

import (
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	kelvinOffset     = 273.0
	beaufortConstant = 0.837
	beaufortMax      = 12
	windRoseSector   = 22.5

	// forecastTimeLayout is the provider's dt_txt format.
	forecastTimeLayout = "2006-01-02 15:04:05"
)

// ToCelsius converts Kelvin to Celsius rounded to one decimal.
func ToCelsius(kelvin *float64) *float64 {
	if kelvin == nil {
		return nil
	}
	c := roundTo(*kelvin-kelvinOffset, 1)
	return &c
}

// ToBeaufort converts a wind speed in m/s to the Beaufort scale, clamped to 0..12.
func ToBeaufort(speedMS *float64) *int {
	if speedMS == nil {
		return nil
	}
	b := 0
	if *speedMS > 0 {
		v := math.Round(math.Pow(*speedMS/beaufortConstant, 2.0/3.0))
		if v > beaufortMax {
			v = beaufortMax
		}
		b = int(v)
	}
	return &b
}

// ToWindRose snaps a direction in degrees down to its 22.5° sector and
// returns the sector start in whole degrees (half-to-even, so 22.5 -> 22).
func ToWindRose(deg *float64) *int {
	if deg == nil {
		return nil
	}
	d := math.Mod(*deg, 360)
	if d < 0 {
		d += 360
	}
	sector := math.Floor(d/windRoseSector) * windRoseSector
	v := int(math.RoundToEven(sector))
	return &v
}

// IsDaytime reports whether an hour of day (0-23) falls strictly between 06 and 21.
func IsDaytime(hour int) bool {
	return hour > 6 && hour < 21
}

// Hour12 converts an hour of day to a 12-hour clock label (1-12).
func Hour12(hour int) int {
	if hour > 12 {
		hour -= 12
	}
	if hour == 0 {
		hour = 12
	}
	return hour
}

// DateLabel formats a timestamp as DD/MM.
func DateLabel(t time.Time) string {
	return t.Format("02/01")
}

// RoundRain rounds a rainfall accumulation to two decimals.
func RoundRain(mm *float64) *float64 {
	if mm == nil {
		return nil
	}
	v := roundTo(*mm, 2)
	return &v
}

// DecodeForecastRecord decodes a single forecast slot. It never fails:
// missing or malformed fields are left unset.
func DecodeForecastRecord(rec RawRecord) ForecastEntry {
	var entry ForecastEntry

	if ts, ok := recordTime(rec); ok {
		hour := ts.Hour()
		entry.DateLabel = DateLabel(ts)
		entry.IsDaytime = IsDaytime(hour)
		entry.Hour12 = Hour12(hour)
	}

	if w := rec.First("weather"); w != nil {
		if id, ok := w.Int64("id"); ok {
			code := int(id)
			entry.WeatherCode = &code
		}
	}

	main := rec.Object("main")
	entry.TemperatureC = ToCelsius(main.Float("temp"))
	entry.PressureHPa = truncate(main.Float("pressure"))
	entry.HumidityPct = truncate(main.Float("humidity"))

	wind := rec.Object("wind")
	entry.WindSpeedBeaufort = ToBeaufort(wind.Float("speed"))
	entry.WindDirectionDeg = ToWindRose(wind.Float("deg"))

	entry.RainMm3h = RoundRain(rec.Object("rain").Float("3h"))

	return entry
}

// DecodeObservation decodes a current-weather record.
func DecodeObservation(rec RawRecord) WeatherObservation {
	var obs WeatherObservation

	if w := rec.First("weather"); w != nil {
		if d, ok := w.Text("description"); ok {
			obs.Description = d
		}
	}

	main := rec.Object("main")
	obs.TemperatureC = ToCelsius(main.Float("temp"))
	obs.PressureHPa = main.Float("pressure")
	obs.HumidityPct = main.Float("humidity")

	wind := rec.Object("wind")
	obs.WindSpeedMS = wind.Float("speed")
	obs.WindSpeedBeaufort = ToBeaufort(obs.WindSpeedMS)
	obs.WindDirectionDeg = wind.Float("deg")

	return obs
}

// recordTime reads dt_txt, falling back to the dt unix timestamp.
func recordTime(rec RawRecord) (time.Time, bool) {
	if s, ok := rec.Text("dt_txt"); ok {
		if ts, err := time.Parse(forecastTimeLayout, strings.TrimSpace(s)); err == nil {
			return ts, true
		}
	}
	if s, ok := rec.Text("dt"); ok {
		if sec, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err == nil {
			return time.Unix(sec, 0).UTC(), true
		}
	}
	return time.Time{}, false
}

func roundTo(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

func truncate(v *float64) *int {
	if v == nil {
		return nil
	}
	n := int(math.Trunc(*v))
	return &n
}

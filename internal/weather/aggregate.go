package weather

// AggregateForecast decodes every raw entry in upstream order into a ForecastBundle.
// The bundle's base pressure comes from the first entry only.
func AggregateForecast(raw RawForecast) ForecastBundle {
	bundle := ForecastBundle{
		CityName:    raw.CityName,
		CountryCode: raw.CountryCode,
		Entries:     make([]ForecastEntry, 0, len(raw.Entries)),
	}

	for i, rec := range raw.Entries {
		entry := DecodeForecastRecord(rec)
		if i == 0 && entry.PressureHPa != nil {
			p := *entry.PressureHPa
			bundle.BasePressureHPa = &p
		}
		bundle.Entries = append(bundle.Entries, entry)
	}

	return bundle
}

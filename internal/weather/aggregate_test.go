package weather

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateForecast(t *testing.T) {
	raw := RawForecast{
		CityName:    "Barcelona",
		CountryCode: "ES",
		Entries: []RawRecord{
			mustRecord(t, `{"dt_txt":"2024-05-01 09:00:00","main":{"pressure":1015.6}}`),
			mustRecord(t, `{"dt_txt":"2024-05-01 06:00:00","main":{"pressure":990}}`),
			mustRecord(t, `{"garbage":true}`),
		},
	}

	bundle := AggregateForecast(raw)

	assert.Equal(t, "Barcelona", bundle.CityName)
	assert.Equal(t, "ES", bundle.CountryCode)
	require.NotNil(t, bundle.BasePressureHPa)
	assert.Equal(t, 1015, *bundle.BasePressureHPa)
	require.Len(t, bundle.Entries, 3)
	// upstream order is kept, not re-sorted by time
	assert.Equal(t, 9, bundle.Entries[0].Hour12)
	assert.Equal(t, 6, bundle.Entries[1].Hour12)
	assert.Equal(t, ForecastEntry{}, bundle.Entries[2])
}

func TestAggregateForecast_BasePressureOnlyFromFirstEntry(t *testing.T) {
	raw := RawForecast{Entries: []RawRecord{
		mustRecord(t, `{"main":{}}`),
		mustRecord(t, `{"main":{"pressure":1000}}`),
	}}

	bundle := AggregateForecast(raw)

	assert.Nil(t, bundle.BasePressureHPa)
	assert.Equal(t, 1000, *bundle.Entries[1].PressureHPa)
}

func TestAggregateForecast_Empty(t *testing.T) {
	bundle := AggregateForecast(RawForecast{})

	assert.NotNil(t, bundle.Entries)
	assert.Empty(t, bundle.Entries)
	assert.Nil(t, bundle.BasePressureHPa)
}

package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversine_KnownDistances(t *testing.T) {
	// MG Road to Koramangala, Bengaluru: roughly 5.4 km.
	d := Haversine(12.9758, 77.6045, 12.9352, 77.6245)
	assert.InDelta(t, 5.0, d, 1.0)

	// Bengaluru to Chennai: roughly 290 km.
	d = Haversine(12.9716, 77.5946, 13.0827, 80.2707)
	assert.InDelta(t, 290, d, 10)

	// Same point.
	assert.Zero(t, Haversine(12.97, 77.59, 12.97, 77.59))
}

func TestHaversine_IsSymmetric(t *testing.T) {
	a := Haversine(12.97, 77.59, 12.93, 77.62)
	b := Haversine(12.93, 77.62, 12.97, 77.59)
	assert.InDelta(t, a, b, 1e-9)
}

func TestValidLatitudeLongitude(t *testing.T) {
	assert.True(t, ValidLatitude(0))
	assert.True(t, ValidLatitude(-90))
	assert.True(t, ValidLatitude(90))
	assert.False(t, ValidLatitude(90.01))
	assert.False(t, ValidLatitude(-120))

	assert.True(t, ValidLongitude(180))
	assert.True(t, ValidLongitude(-180))
	assert.False(t, ValidLongitude(181))
}

func TestStaticResolver_TagsFor(t *testing.T) {
	resolver := NewStaticResolver([]Zone{
		{Tag: "zone:center", Lat: 12.97, Lng: 77.59, RadiusKm: 5},
		{Tag: "zone:airport", Lat: 13.19, Lng: 77.70, RadiusKm: 8},
	})

	// Inside the center zone only.
	assert.Equal(t, []string{"zone:center"}, resolver.TagsFor(12.97, 77.60))

	// Outside every zone.
	assert.Empty(t, resolver.TagsFor(12.30, 76.60))
}

func TestStaticResolver_OverlappingZones(t *testing.T) {
	resolver := NewStaticResolver([]Zone{
		{Tag: "zone:a", Lat: 12.97, Lng: 77.59, RadiusKm: 10},
		{Tag: "zone:b", Lat: 12.98, Lng: 77.60, RadiusKm: 10},
	})

	tags := resolver.TagsFor(12.975, 77.595)
	assert.ElementsMatch(t, []string{"zone:a", "zone:b"}, tags)
}

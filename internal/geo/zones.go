package geo

// Zone is a circular pricing zone with a service-area tag. Drivers
// declare tags; sessions derive tags from the zones enclosing their
// origin and destination. Matching tags push a driver to the front of
// its discovery wave.
type Zone struct {
	Tag      string
	Lat      float64
	Lng      float64
	RadiusKm float64
}

// ZoneResolver maps a coordinate to the tags of its enclosing zones.
type ZoneResolver interface {
	TagsFor(lat, lng float64) []string
}

// StaticResolver resolves tags against a fixed zone list. Zones are
// loaded once at startup; the set is small enough that a linear scan
// beats maintaining an index.
type StaticResolver struct {
	zones []Zone
}

// NewStaticResolver creates a resolver over the given zones.
func NewStaticResolver(zones []Zone) *StaticResolver {
	return &StaticResolver{zones: zones}
}

// TagsFor returns the tags of every zone containing the point.
func (r *StaticResolver) TagsFor(lat, lng float64) []string {
	var tags []string
	for _, z := range r.zones {
		if Haversine(lat, lng, z.Lat, z.Lng) <= z.RadiusKm {
			tags = append(tags, z.Tag)
		}
	}
	return tags
}

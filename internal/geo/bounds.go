package geo

// BoundingBox is an axis-aligned lat/lon rectangle. Bounds are inclusive.
type BoundingBox struct {
	MinLat float64 `json:"min_lat" yaml:"min_lat"`
	MaxLat float64 `json:"max_lat" yaml:"max_lat"`
	MinLon float64 `json:"min_lon" yaml:"min_lon"`
	MaxLon float64 `json:"max_lon" yaml:"max_lon"`
}

// MozambiqueBounds covers mainland Mozambique.
var MozambiqueBounds = BoundingBox{
	MinLat: -26.87,
	MaxLat: -10.47,
	MinLon: 30.22,
	MaxLon: 40.84,
}

// Contains reports whether p falls inside the box.
func (b BoundingBox) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat &&
		p.Lon >= b.MinLon && p.Lon <= b.MaxLon
}

// IsZero reports whether the box has not been set.
func (b BoundingBox) IsZero() bool {
	return b == BoundingBox{}
}

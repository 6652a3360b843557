package geo

// Bounds is an inclusive lat/lng rectangle.
type Bounds struct {
	MinLat float64
	MaxLat float64
	MinLng float64
	MaxLng float64
}

// DefaultBounds is the operating municipality. It is a coarse rectangle:
// points near its corners may be misclassified.
var DefaultBounds = Bounds{
	MinLat: 32.6800,
	MaxLat: 32.7400,
	MinLng: 35.2700,
	MaxLng: 35.3400,
}

func (b Bounds) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat <= b.MaxLat && lng >= b.MinLng && lng <= b.MaxLng
}

// IsInCoverageArea checks a point against DefaultBounds.
func IsInCoverageArea(lat, lng float64) bool {
	return DefaultBounds.Contains(lat, lng)
}

// Vertex is a polygon corner in decimal degrees.
type Vertex struct {
	Lat float64
	Lng float64
}

// Polygon is a closed ring; the last vertex connects back to the first.
type Polygon []Vertex

// Contains runs an even-odd ray cast along the longitude axis.
func (p Polygon) Contains(lat, lng float64) bool {
	if len(p) < 3 {
		return false
	}
	inside := false
	j := len(p) - 1
	for i := 0; i < len(p); i++ {
		vi, vj := p[i], p[j]
		if (vi.Lat > lat) != (vj.Lat > lat) {
			crossLng := (vj.Lng-vi.Lng)*(lat-vi.Lat)/(vj.Lat-vi.Lat) + vi.Lng
			if lng < crossLng {
				inside = !inside
			}
		}
		j = i
	}
	return inside
}

// BoundsOf returns the smallest rectangle enclosing the polygon.
func (p Polygon) BoundsOf() Bounds {
	if len(p) == 0 {
		return Bounds{}
	}
	b := Bounds{MinLat: p[0].Lat, MaxLat: p[0].Lat, MinLng: p[0].Lng, MaxLng: p[0].Lng}
	for _, v := range p[1:] {
		if v.Lat < b.MinLat {
			b.MinLat = v.Lat
		}
		if v.Lat > b.MaxLat {
			b.MaxLat = v.Lat
		}
		if v.Lng < b.MinLng {
			b.MinLng = v.Lng
		}
		if v.Lng > b.MaxLng {
			b.MaxLng = v.Lng
		}
	}
	return b
}

// Area is the service area. Bounds is always checked first; Polygon, when
// set, refines the answer.
type Area struct {
	Bounds  Bounds
	Polygon Polygon
}

func NewArea(bounds Bounds, polygon Polygon) Area {
	return Area{Bounds: bounds, Polygon: polygon}
}

func (a Area) Contains(lat, lng float64) bool {
	if !a.Bounds.Contains(lat, lng) {
		return false
	}
	if len(a.Polygon) == 0 {
		return true
	}
	return a.Polygon.Contains(lat, lng)
}

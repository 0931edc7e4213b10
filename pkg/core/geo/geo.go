package geo

import (
	"math"

	"github.com/voisinsolidaire/voisin/pkg/db"
)

// EarthRadiusKm is the mean Earth radius used by the haversine formula
const EarthRadiusKm = 6371.0

// Point is a WGS84 coordinate in degrees
type Point struct {
	Lat float64
	Lon float64
}

// DistanceKm returns the great-circle distance between a and b in km,
// rounded to one decimal
func DistanceKm(a, b Point) float64 {
	return round1(haversine(a, b))
}

// Between returns the distance between two optional coordinates, or nil
// if any of the four values is missing
func Between(aLat, aLon, bLat, bLon *float64) *float64 {
	if aLat == nil || aLon == nil || bLat == nil || bLon == nil {
		return nil
	}
	d := DistanceKm(Point{*aLat, *aLon}, Point{*bLat, *bLon})
	return &d
}

// PointOf returns the profile's coordinate, or nil if it has none
func PointOf(p *db.Profile) *Point {
	if p == nil || p.Latitude == nil || p.Longitude == nil {
		return nil
	}
	return &Point{Lat: *p.Latitude, Lon: *p.Longitude}
}

// Annotate returns copies of missions with Distance set relative to ref.
// Missions without coordinates, or a nil ref, get a nil Distance.
func Annotate(missions []db.Mission, ref *Point) []db.Mission {
	out := make([]db.Mission, len(missions))
	for i, m := range missions {
		m.Distance = nil
		if ref != nil && m.Latitude != nil && m.Longitude != nil {
			d := DistanceKm(*ref, Point{*m.Latitude, *m.Longitude})
			m.Distance = &d
		}
		out[i] = m
	}
	return out
}

// BoundingBox returns the lat/lon box that contains every point within radiusKm of p.
// Used to prefilter rows before the exact haversine check.
func BoundingBox(p Point, radiusKm float64) (minLat, maxLat, minLon, maxLon float64) {
	dLat := radiusKm / EarthRadiusKm * 180 / math.Pi
	minLat = math.Max(p.Lat-dLat, -90)
	maxLat = math.Min(p.Lat+dLat, 90)

	cosLat := math.Cos(p.Lat * math.Pi / 180)
	if cosLat < 1e-6 || maxLat >= 90 || minLat <= -90 {
		return minLat, maxLat, -180, 180
	}
	dLon := dLat / cosLat
	minLon, maxLon = p.Lon-dLon, p.Lon+dLon
	if minLon < -180 || maxLon > 180 {
		// box crosses the antimeridian
		return minLat, maxLat, -180, 180
	}
	return minLat, maxLat, minLon, maxLon
}

func haversine(a, b Point) float64 {
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	// rounding can push h just above 1 for antipodal points
	h = math.Min(1, h)
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}

func round1(km float64) float64 {
	return math.Round(km*10) / 10
}

package core

import (
	"math"

	"github.com/wroge/wgs84"
	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// EarthRadiusNM is the mean earth radius in nautical miles
	EarthRadiusNM = 3440.065
	// FeetPerNM converts altitude to the horizontal unit
	FeetPerNM = 6076.12
	// RadarEarthFactor is the 4/3 effective earth radius used for radar horizons
	RadarEarthFactor = 4.0 / 3.0
)

// Point is a geodetic position
type Point struct {
	Lat float64 `yaml:"latitude"`  // degrees
	Lon float64 `yaml:"longitude"` // degrees
	Alt float64 `yaml:"altitude"`  // feet
}

// Geodesy provides the distance and projection primitives used by the
// engagement code. Distances are nautical miles, angles degrees true.
type Geodesy interface {
	Distance(p1, p2 Point) float64
	DistanceSquared(p1, p2 Point) float64
	Azimuth(p1, p2 Point) float64
	Elevation(p1, p2 Point, earthFactor float64) float64
	Project(p Point, distance, azimuth float64) Point
	Interpolate(p1, p2 Point, distance float64) Point
}

// Spherical is a spherical-earth Geodesy
type Spherical struct{}

func toRad(d float64) float64 { return d * math.Pi / 180 }
func toDeg(r float64) float64 { return r * 180 / math.Pi }

func ecef(p Point) r3.Vec {
	r := EarthRadiusNM + p.Alt/FeetPerNM
	lat, lon := toRad(p.Lat), toRad(p.Lon)
	return r3.Vec{
		X: r * math.Cos(lat) * math.Cos(lon),
		Y: r * math.Cos(lat) * math.Sin(lon),
		Z: r * math.Sin(lat),
	}
}

// DistanceSquared is the squared slant range
func (Spherical) DistanceSquared(p1, p2 Point) float64 {
	return r3.Norm2(r3.Sub(ecef(p1), ecef(p2)))
}

// Distance is the straight-line slant range
func (s Spherical) Distance(p1, p2 Point) float64 {
	return math.Sqrt(s.DistanceSquared(p1, p2))
}

// groundAngle is the central angle between two points (haversine)
func groundAngle(p1, p2 Point) float64 {
	lat1, lat2 := toRad(p1.Lat), toRad(p2.Lat)
	dLat := lat2 - lat1
	dLon := toRad(p2.Lon - p1.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * math.Asin(math.Min(1, math.Sqrt(h)))
}

// Azimuth is the initial great-circle bearing from p1 to p2 in [0, 360)
func (Spherical) Azimuth(p1, p2 Point) float64 {
	lat1, lat2 := toRad(p1.Lat), toRad(p2.Lat)
	dLon := toRad(p2.Lon - p1.Lon)
	y := math.Sin(dLon) * math.Cos(lat2)
	x := math.Cos(lat1)*math.Sin(lat2) - math.Sin(lat1)*math.Cos(lat2)*math.Cos(dLon)
	return NormalizeHeading(toDeg(math.Atan2(y, x)))
}

// Elevation is the look angle from p1 to p2 over an earth whose radius is
// scaled by earthFactor.
func (Spherical) Elevation(p1, p2 Point, earthFactor float64) float64 {
	if earthFactor <= 0 {
		earthFactor = 1
	}
	re := EarthRadiusNM * earthFactor
	ground := groundAngle(p1, p2) * EarthRadiusNM
	dh := (p2.Alt - p1.Alt) / FeetPerNM
	if ground == 0 {
		switch {
		case dh > 0:
			return 90
		case dh < 0:
			return -90
		}
		return 0
	}
	return toDeg(math.Atan2(dh-ground*ground/(2*re), ground))
}

// Project moves p along the great circle at azimuth by distance, keeping
// altitude.
func (Spherical) Project(p Point, distance, azimuth float64) Point {
	d := distance / (EarthRadiusNM + p.Alt/FeetPerNM)
	lat1, lon1 := toRad(p.Lat), toRad(p.Lon)
	brg := toRad(azimuth)
	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(brg))
	lon2 := lon1 + math.Atan2(math.Sin(brg)*math.Sin(d)*math.Cos(lat1), math.Cos(d)-math.Sin(lat1)*math.Sin(lat2))
	return Point{
		Lat: toDeg(lat2),
		Lon: normalizeLon(toDeg(lon2)),
		Alt: p.Alt,
	}
}

// Interpolate returns the point distance along the line from p1 to p2.
// Altitude is interpolated linearly; distances past p2 clamp to p2.
func (s Spherical) Interpolate(p1, p2 Point, distance float64) Point {
	total := s.Distance(p1, p2)
	if total == 0 || distance >= total {
		return p2
	}
	if distance <= 0 {
		return p1
	}
	f := distance / total
	ground := groundAngle(p1, p2) * EarthRadiusNM
	out := s.Project(p1, ground*f, s.Azimuth(p1, p2))
	out.Alt = p1.Alt + (p2.Alt-p1.Alt)*f
	return out
}

// NormalizeHeading maps an angle into [0, 360)
func NormalizeHeading(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// HeadingError maps an angle difference into (-180, 180]
func HeadingError(deg float64) float64 {
	deg = NormalizeHeading(deg)
	if deg > 180 {
		deg -= 360
	}
	return deg
}

func normalizeLon(deg float64) float64 {
	for deg > 180 {
		deg -= 360
	}
	for deg < -180 {
		deg += 360
	}
	return deg
}

var mercator = wgs84.EPSG().Transform(4326, 3857)

// WebMercator converts a point to EPSG:3857 metres for map overlays
func WebMercator(p Point) (x, y float64) {
	x, y, _ = mercator(p.Lon, p.Lat, 0)
	return x, y
}

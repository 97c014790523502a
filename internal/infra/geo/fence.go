package geo

import (
	"errors"

	"github.com/golang/geo/s2"
)

// Fence описывает замкнутый полигон региона на сфере.
type Fence struct {
	loop *s2.Loop
}

// NewFence строит полигон из пар [широта, долгота]. Порядок обхода не важен.
func NewFence(points [][2]float64) (*Fence, error) {
	if len(points) < 3 {
		return nil, errors.New("geofence: нужно минимум три точки")
	}
	pts := make([]s2.Point, 0, len(points))
	for _, p := range points {
		pts = append(pts, s2.PointFromLatLng(s2.LatLngFromDegrees(p[0], p[1])))
	}
	loop := s2.LoopFromPoints(pts)
	loop.Normalize()
	return &Fence{loop: loop}, nil
}

// Contains сообщает, лежит ли точка внутри полигона.
func (f *Fence) Contains(lat, lon float64) bool {
	if f == nil || f.loop == nil {
		return false
	}
	return f.loop.ContainsPoint(s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon)))
}

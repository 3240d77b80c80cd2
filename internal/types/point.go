// README: Geographic coordinate pair shared by all modules.
package types

import "errors"

var ErrInvalidCoordinates = errors.New("invalid coordinates")

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate checks the point lies within valid WGS84 ranges.
func (p Point) Validate() error {
	if p.Lat < -90 || p.Lat > 90 || p.Lng < -180 || p.Lng > 180 {
		return ErrInvalidCoordinates
	}
	return nil
}

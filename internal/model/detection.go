package model

// BoundingBox is a detection rectangle in pixel coordinates.
type BoundingBox struct {
	X1 int `json:"x1"`
	Y1 int `json:"y1"`
	X2 int `json:"x2"`
	Y2 int `json:"y2"`
}

// Detection represents one object found by the detector in a frame.
type Detection struct {
	Box        BoundingBox `json:"box"`
	Label      string      `json:"label"`
	Confidence float64     `json:"confidence"`
}

// Midpoint returns the horizontal center of the detection, truncated to a pixel.
func (d Detection) Midpoint() int {
	return (d.Box.X1 + d.Box.X2) / 2
}

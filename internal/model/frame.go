package model

import "time"

// Frame is the most recent encoded image received from a device.
// Data must not be modified once the frame is cached.
type Frame struct {
	Device     string
	Data       []byte
	Width      int
	Height     int
	ReceivedAt time.Time
}

// Image is a decoded frame. It belongs to the caller of the decoder and
// must be closed once detection is done.
type Image interface {
	Size() (width, height int)
	Close() error
}

package storage

import (
	"sort"
	"sync"

	"trafficserver/internal/model"
)

// FrameCache keeps the most recent frame of each device. A new frame
// replaces the previous one; stale frames are never queued.
type FrameCache struct {
	mu     sync.RWMutex
	frames map[string]model.Frame
}

// NewFrameCache creates an empty cache.
func NewFrameCache() *FrameCache {
	return &FrameCache{frames: make(map[string]model.Frame)}
}

// Put stores frame as the current view of frame.Device. The cache takes
// ownership of frame.Data.
func (c *FrameCache) Put(frame model.Frame) {
	c.mu.Lock()
	c.frames[frame.Device] = frame
	c.mu.Unlock()
}

// Get returns the current frame of device.
func (c *FrameCache) Get(device string) (model.Frame, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	frame, ok := c.frames[device]
	return frame, ok
}

// Devices lists the devices that have a cached frame, sorted.
func (c *FrameCache) Devices() []string {
	c.mu.RLock()
	devices := make([]string, 0, len(c.frames))
	for device := range c.frames {
		devices = append(devices, device)
	}
	c.mu.RUnlock()

	sort.Strings(devices)
	return devices
}

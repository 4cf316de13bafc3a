package memory

import (
	"sync/atomic"
)

// Caps tracks how many bytes of term-arena storage each session is
// allowed to hold live at once, plus a node-wide ceiling shared by every
// session. internal/pool registers and unregisters each session here;
// nothing in the repository charges term bytes through TryAllocate, so
// usage stays at zero.
type Caps struct {
	globalCapacity  uint64
	perSessionLimit map[uint64]uint64
	perSessionUsage map[uint64]*uint64
	globalUsage     uint64
}

func NewCaps(globalCapacityMB uint64, perSessionLimitMB uint64) *Caps {
	return &Caps{
		globalCapacity:  globalCapacityMB * 1024 * 1024,
		perSessionLimit: make(map[uint64]uint64),
		perSessionUsage: make(map[uint64]*uint64),
	}
}

func (c *Caps) RegisterSession(sessionID uint64, limitMB uint64) {
	if _, exists := c.perSessionLimit[sessionID]; exists {
		return
	}

	limit := limitMB * 1024 * 1024
	if limitMB == 0 {
		limit = c.globalCapacity / 10
	}

	c.perSessionLimit[sessionID] = limit
	usage := uint64(0)
	c.perSessionUsage[sessionID] = &usage
}

func (c *Caps) UnregisterSession(sessionID uint64) {
	delete(c.perSessionLimit, sessionID)
	delete(c.perSessionUsage, sessionID)
}

func (c *Caps) TryAllocate(sessionID uint64, size uint64) bool {
	currentUsage := atomic.LoadUint64(&c.globalUsage)
	if currentUsage+size > c.globalCapacity {
		return false
	}

	if usagePtr, exists := c.perSessionUsage[sessionID]; exists {
		usage := atomic.LoadUint64(usagePtr)
		if usage+size > c.perSessionLimit[sessionID] {
			return false
		}
		atomic.AddUint64(usagePtr, size)
	}

	atomic.AddUint64(&c.globalUsage, size)
	return true
}

func (c *Caps) Free(sessionID uint64, size uint64) {
	if size > atomic.LoadUint64(&c.globalUsage) {
		size = atomic.LoadUint64(&c.globalUsage)
	}
	atomic.AddUint64(&c.globalUsage, ^uint64(size-1))

	if usagePtr, exists := c.perSessionUsage[sessionID]; exists {
		usage := atomic.LoadUint64(usagePtr)
		if size > usage {
			size = usage
		}
		atomic.AddUint64(usagePtr, ^uint64(size-1))
	}
}

func (c *Caps) GlobalUsage() uint64 {
	return atomic.LoadUint64(&c.globalUsage)
}

func (c *Caps) GlobalCapacity() uint64 {
	return c.globalCapacity
}

func (c *Caps) SessionUsage(sessionID uint64) uint64 {
	if usagePtr, exists := c.perSessionUsage[sessionID]; exists {
		return atomic.LoadUint64(usagePtr)
	}
	return 0
}

func (c *Caps) SessionLimit(sessionID uint64) uint64 {
	return c.perSessionLimit[sessionID]
}

func (c *Caps) CanAllocate(sessionID uint64, size uint64) bool {
	currentUsage := atomic.LoadUint64(&c.globalUsage)
	if currentUsage+size > c.globalCapacity {
		return false
	}

	if usagePtr, exists := c.perSessionUsage[sessionID]; exists {
		usage := atomic.LoadUint64(usagePtr)
		if usage+size > c.perSessionLimit[sessionID] {
			return false
		}
	}

	return true
}

package system

import (
	"image"
	"sync"
)

// FramePool recycles *image.RGBA frames of equal size between the preview
// renderer and the encoder. One pool exists per frame rectangle.
type FramePool struct {
	pools map[image.Rectangle]*sync.Pool
	mu    sync.RWMutex
}

func NewFramePool() *FramePool {
	return &FramePool{pools: make(map[image.Rectangle]*sync.Pool)}
}

var defaultPool = NewFramePool()

// GetFrame returns a frame from the shared pool. Its pixels are not cleared.
func GetFrame(rect image.Rectangle) *image.RGBA {
	return defaultPool.Get(rect)
}

// PutFrame returns a frame to the shared pool.
func PutFrame(img *image.RGBA) {
	defaultPool.Put(img)
}

func (p *FramePool) Get(rect image.Rectangle) *image.RGBA {
	p.mu.RLock()
	pool, exists := p.pools[rect]
	p.mu.RUnlock()

	if !exists {
		p.mu.Lock()
		// Re-check under the write lock.
		pool, exists = p.pools[rect]
		if !exists {
			pool = &sync.Pool{
				New: func() any {
					return image.NewRGBA(rect)
				},
			}
			p.pools[rect] = pool
		}
		p.mu.Unlock()
	}

	return pool.Get().(*image.RGBA)
}

// Put accepts only frames of a size the pool has handed out before.
func (p *FramePool) Put(img *image.RGBA) {
	if img == nil {
		return
	}
	p.mu.RLock()
	pool, exists := p.pools[img.Rect]
	p.mu.RUnlock()

	if exists {
		pool.Put(img)
	}
}

package gpu

import (
	"encoding/binary"
	"errors"
	"hash"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// ErrPipelineCacheNilDescriptor is returned when a pipeline is requested
// without a key.
var ErrPipelineCacheNilDescriptor = errors.New("gpu: pipeline key is nil")

// PipelineKey identifies a render pipeline variant. Two keys with equal
// hashes share one compiled pipeline.
type PipelineKey struct {
	Label       string
	ShaderHash  uint64
	ColorFormat gputypes.TextureFormat
	DepthFormat gputypes.TextureFormat
	SampleCount uint32
	Multiview   bool
	SPIRV       bool
}

// CachedPipeline is a render pipeline with the objects it was built from.
type CachedPipeline struct {
	Pipeline hal.RenderPipeline
	Layout   hal.PipelineLayout
	Shader   hal.ShaderModule
}

func (p *CachedPipeline) destroy(device hal.Device) {
	if p.Pipeline != nil {
		device.DestroyRenderPipeline(p.Pipeline)
		p.Pipeline = nil
	}
	if p.Layout != nil {
		device.DestroyPipelineLayout(p.Layout)
		p.Layout = nil
	}
	if p.Shader != nil {
		device.DestroyShaderModule(p.Shader)
		p.Shader = nil
	}
}

// PipelineCache caches compiled render pipelines by key hash.
//
// Pipeline creation involves shader compilation and validation, so every
// eye and every render target set with the same formats shares one pipeline.
//
// PipelineCache is safe for concurrent use. It uses RWMutex with
// double-check locking for efficient reads and safe writes.
type PipelineCache struct {
	mu sync.RWMutex

	pipelines map[uint64]*CachedPipeline

	// hits and misses are updated atomically.
	hits   uint64
	misses uint64
}

// NewPipelineCache creates an empty cache.
func NewPipelineCache() *PipelineCache {
	return &PipelineCache{
		pipelines: make(map[uint64]*CachedPipeline),
	}
}

// GetOrCreate returns the cached pipeline for key or calls create to build
// it. create runs under the write lock and at most once per key.
func (c *PipelineCache) GetOrCreate(key *PipelineKey, create func() (*CachedPipeline, error)) (*CachedPipeline, error) {
	if key == nil {
		return nil, ErrPipelineCacheNilDescriptor
	}
	keyHash := HashPipelineKey(key)

	// Fast path: read lock
	c.mu.RLock()
	if p, ok := c.pipelines[keyHash]; ok {
		c.mu.RUnlock()
		atomic.AddUint64(&c.hits, 1)
		return p, nil
	}
	c.mu.RUnlock()

	// Slow path: write lock with double-check
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, ok := c.pipelines[keyHash]; ok {
		atomic.AddUint64(&c.hits, 1)
		return p, nil
	}

	p, err := create()
	if err != nil {
		return nil, err
	}
	c.pipelines[keyHash] = p
	atomic.AddUint64(&c.misses, 1)
	return p, nil
}

// Stats returns the number of cache hits and misses.
func (c *PipelineCache) Stats() (hits, misses uint64) {
	return atomic.LoadUint64(&c.hits), atomic.LoadUint64(&c.misses)
}

// Size returns the number of cached pipelines.
func (c *PipelineCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pipelines)
}

// DestroyAll destroys every cached pipeline and empties the cache.
func (c *PipelineCache) DestroyAll(device hal.Device) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range c.pipelines {
		p.destroy(device)
	}
	c.pipelines = make(map[uint64]*CachedPipeline)
}

// HashPipelineKey computes an FNV-1a hash of key.
func HashPipelineKey(key *PipelineKey) uint64 {
	h := fnv.New64a()
	hashWriteString(h, key.Label)
	hashWriteUint64(h, key.ShaderHash)
	hashWriteUint32(h, uint32(key.ColorFormat))
	hashWriteUint32(h, uint32(key.DepthFormat))
	hashWriteUint32(h, key.SampleCount)
	hashWriteBool(h, key.Multiview)
	hashWriteBool(h, key.SPIRV)
	return h.Sum64()
}

// hashString computes an FNV-1a hash of a string, used for shader sources.
func hashString(s string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	return h.Sum64()
}

func hashWriteUint32(h hash.Hash64, v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	_, _ = h.Write(buf[:])
}

func hashWriteUint64(h hash.Hash64, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	_, _ = h.Write(buf[:])
}

//nolint:gosec // G115: pipeline labels are short
func hashWriteString(h hash.Hash64, s string) {
	hashWriteUint32(h, uint32(len(s)))
	_, _ = h.Write([]byte(s))
}

func hashWriteBool(h hash.Hash64, v bool) {
	if v {
		_, _ = h.Write([]byte{1})
	} else {
		_, _ = h.Write([]byte{0})
	}
}

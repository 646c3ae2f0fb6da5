package hsync

import (
	"sync"
	"time"
)

// Block is one unit of transfer work travelling from the reader to the
// writer. Offsets within a file are monotonically increasing and the final
// block carries IsLast together with the whole-file digest.
type Block struct {
	SourcePath string
	DestPath   string
	Offset     int64
	Data       []byte
	IsLast     bool

	// Hash is the lowercase hex digest of the entire file. Only set on the
	// last block.
	Hash string

	// Mtime and Atime are the source timestamps captured at read time.
	// Only meaningful on the last block.
	Mtime time.Time
	Atime time.Time
}

// BufferPool recycles block payload buffers so steady-state allocation is
// bounded by queue capacity rather than file count. The writer returns each
// buffer after the block is flushed.
type BufferPool struct {
	size int
	pool sync.Pool
}

// NewBufferPool returns a pool of fixed-size buffers.
func NewBufferPool(size int) *BufferPool {
	p := &BufferPool{size: size}
	p.pool.New = func() any {
		b := make([]byte, size)
		return &b
	}
	return p
}

// Get returns a buffer of the pool's block size.
func (p *BufferPool) Get() []byte {
	return *(p.pool.Get().(*[]byte))
}

// Put returns a buffer to the pool. Buffers of the wrong size are dropped.
func (p *BufferPool) Put(b []byte) {
	if cap(b) != p.size {
		return
	}
	b = b[:p.size]
	p.pool.Put(&b)
}

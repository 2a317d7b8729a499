// Package pool reuses the fixed-size buffers that content detection reads
// object prefixes into, so parallel copies do not allocate one per object.
package pool

import (
	"io"
	"sync"
)

// SniffSize is how many leading bytes of an object are read to detect its
// content type.
const SniffSize = 3072

// BufferPool hands out buffers of one fixed length.
type BufferPool struct {
	size int
	pool sync.Pool
}

// NewBufferPool creates a pool of size-byte buffers.
func NewBufferPool(size int) *BufferPool {
	bp := &BufferPool{size: size}
	bp.pool.New = func() any {
		buf := make([]byte, size)
		return &buf
	}
	return bp
}

// Get returns a buffer of the pool's full length.
// The caller is responsible for calling Put once done with it.
func (bp *BufferPool) Get() *[]byte {
	bufPtr := bp.pool.Get().(*[]byte)
	*bufPtr = (*bufPtr)[:bp.size]
	return bufPtr
}

// Put returns a buffer to the pool. Buffers of another capacity are dropped.
func (bp *BufferPool) Put(bufPtr *[]byte) {
	if bufPtr == nil || cap(*bufPtr) != bp.size {
		return
	}
	bp.pool.Put(bufPtr)
}

// ReadPrefix fills buf from r and returns the filled part. A reader shorter
// than buf is not an error.
func ReadPrefix(r io.Reader, buf []byte) ([]byte, error) {
	n, err := io.ReadFull(r, buf)
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		err = nil
	}
	return buf[:n], err
}

var sniffBuffers = NewBufferPool(SniffSize)

// GetSniffBuffer returns a SniffSize buffer from the shared pool.
func GetSniffBuffer() *[]byte {
	return sniffBuffers.Get()
}

// PutSniffBuffer returns a buffer to the shared pool.
func PutSniffBuffer(bufPtr *[]byte) {
	sniffBuffers.Put(bufPtr)
}

// Package perf holds the object pools shared by the request and render paths.
package perf

import (
	"bytes"
	"strings"
	"sync"
)

const maxPooledBuffer = 1 << 20

var byteBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 4096))
	},
}

// AcquireByteBuffer gets an empty bytes.Buffer from the pool.
func AcquireByteBuffer() *bytes.Buffer {
	return byteBufferPool.Get().(*bytes.Buffer)
}

// ReleaseByteBuffer resets b and returns it to the pool. Oversized buffers
// are dropped so one large page does not pin memory.
func ReleaseByteBuffer(b *bytes.Buffer) {
	if b == nil || b.Cap() > maxPooledBuffer {
		return
	}
	b.Reset()
	byteBufferPool.Put(b)
}

var stringBuilderPool = sync.Pool{
	New: func() interface{} {
		return &strings.Builder{}
	},
}

// AcquireStringBuilder gets an empty strings.Builder from the pool.
func AcquireStringBuilder() *strings.Builder {
	return stringBuilderPool.Get().(*strings.Builder)
}

func ReleaseStringBuilder(sb *strings.Builder) {
	if sb == nil || sb.Cap() > maxPooledBuffer {
		return
	}
	sb.Reset()
	stringBuilderPool.Put(sb)
}

package utils

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

// ErrTooLarge is returned by LimitedReader once Max bytes have been read.
var ErrTooLarge = errors.New("input exceeds size limit")

// bufPool reuses byte buffers to reduce GC pressure.
var bufPool = sync.Pool{
	New: func() interface{} { return new(bytes.Buffer) },
}

// AcquireBuffer returns a reset buffer from the pool.
func AcquireBuffer() *bytes.Buffer {
	b := bufPool.Get().(*bytes.Buffer)
	b.Reset()
	return b
}

// ReleaseBuffer returns b to the pool.  Callers must not use b after this call.
func ReleaseBuffer(b *bytes.Buffer) {
	// Cap large buffers to avoid pinning excessive memory.
	if b.Cap() > 8*1024*1024 {
		return
	}
	bufPool.Put(b)
}

// DrainReader reads all bytes from r into a pooled buffer and returns them.
// The caller owns the returned slice; pass the buffer back with ReleaseBuffer.
func DrainReader(ctx context.Context, r io.Reader, chunkSize int) (*bytes.Buffer, error) {
	if chunkSize <= 0 {
		chunkSize = 32 * 1024
	}
	buf := AcquireBuffer()
	chunk := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			ReleaseBuffer(buf)
			return nil, err
		}
		n, err := r.Read(chunk)
		if n > 0 {
			buf.Write(chunk[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			ReleaseBuffer(buf)
			return nil, err
		}
	}
	return buf, nil
}

// ReadAll drains r (bounded by max when max > 0) and returns a private copy.
func ReadAll(ctx context.Context, r io.Reader, max int64, chunkSize int) ([]byte, error) {
	if max > 0 {
		r = &LimitedReader{R: r, Max: max}
	}
	buf, err := DrainReader(ctx, r, chunkSize)
	if err != nil {
		return nil, err
	}
	defer ReleaseBuffer(buf)
	return CloneBytes(buf.Bytes()), nil
}

// LimitedReader wraps r and returns ErrTooLarge when more than Max bytes are read.
type LimitedReader struct {
	R   io.Reader
	Max int64
	n   int64
}

func (l *LimitedReader) Read(p []byte) (int, error) {
	if l.Max > 0 && l.n >= l.Max {
		// Probe for one more byte: hitting EOF exactly at Max is fine.
		var one [1]byte
		n, err := l.R.Read(one[:])
		if n > 0 {
			return 0, ErrTooLarge
		}
		return 0, err
	}
	if l.Max > 0 {
		remain := l.Max - l.n
		if int64(len(p)) > remain {
			p = p[:remain]
		}
	}
	n, err := l.R.Read(p)
	l.n += int64(n)
	return n, err
}

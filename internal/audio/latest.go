package audio

import "sync"

// LatestBuffer keeps the most recent window of capture bytes. Writers are
// device callbacks; readers poll without blocking the writer for long.
type LatestBuffer struct {
	mu     sync.Mutex
	buffer []byte
	size   int
	filled int
}

// NewLatestBuffer creates a buffer holding the last size bytes
func NewLatestBuffer(size int) *LatestBuffer {
	if size <= 0 {
		size = 1
	}
	return &LatestBuffer{
		buffer: make([]byte, size),
		size:   size,
	}
}

// Write appends data, discarding the oldest bytes once the window is full.
func (lb *LatestBuffer) Write(data []byte) {
	lb.mu.Lock()
	defer lb.mu.Unlock()

	if len(data) >= lb.size {
		copy(lb.buffer, data[len(data)-lb.size:])
		lb.filled = lb.size
		return
	}

	keep := lb.size - len(data)
	if keep > lb.filled {
		keep = lb.filled
	}
	// Shift the newest kept bytes to the front, then append.
	copy(lb.buffer, lb.buffer[lb.filled-keep:lb.filled])
	copy(lb.buffer[keep:], data)
	lb.filled = keep + len(data)
}

// Snapshot copies the window into dst and returns the bytes written.
func (lb *LatestBuffer) Snapshot(dst []byte) int {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return copy(dst, lb.buffer[:lb.filled])
}

// Len returns the number of buffered bytes
func (lb *LatestBuffer) Len() int {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	return lb.filled
}

// Reset discards buffered data
func (lb *LatestBuffer) Reset() {
	lb.mu.Lock()
	defer lb.mu.Unlock()
	lb.filled = 0
}

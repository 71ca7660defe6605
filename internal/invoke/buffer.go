package invoke

import (
	"bytes"
)

// boundedBuffer keeps at most capBytes of a stream and silently drops the
// rest. Write never fails so that a chatty compiler cannot make Wait
// report a copy error.
type boundedBuffer struct {
	buf       bytes.Buffer
	capBytes  int
	truncated bool
}

func newBoundedBuffer(maxKiB int) *boundedBuffer {
	if maxKiB <= 0 {
		maxKiB = 64
	}
	return &boundedBuffer{capBytes: maxKiB * 1024}
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	remaining := b.capBytes - b.buf.Len()
	if remaining <= 0 {
		b.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		b.buf.Write(p[:remaining])
		b.truncated = true
		return len(p), nil
	}
	b.buf.Write(p)
	return len(p), nil
}

func (b *boundedBuffer) Bytes() []byte { return b.buf.Bytes() }

func (b *boundedBuffer) Truncated() bool { return b.truncated }

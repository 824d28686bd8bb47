package request

import "sync"

const readBufferSize = 4096

// readBufferPool holds the scratch buffers ReadFrame reads into. Frames are
// always copied out, so a pooled buffer never escapes a call.
var readBufferPool = sync.Pool{
	New: func() interface{} {
		buf := make([]byte, readBufferSize)
		return &buf
	},
}

func getReadBuffer() []byte {
	return *readBufferPool.Get().(*[]byte)
}

func putReadBuffer(buf []byte) {
	if cap(buf) != readBufferSize {
		return
	}
	buf = buf[:readBufferSize]
	readBufferPool.Put(&buf)
}

package pool

import (
	"bytes"
	"sync"

	"github.com/klauspost/compress/gzip"
)

// ---------------------------------------------------------------
// journal 인코딩 시 gzip 결과 버퍼와 gzip.Writer 를 재사용한다.
// ---------------------------------------------------------------

var (
	// BufferPool:
	//   - gzip 인코딩 결과를 담는 임시 버퍼
	//   - 초기 용량 64KB
	BufferPool = sync.Pool{
		New: func() any {
			return bytes.NewBuffer(make([]byte, 0, 64*1024))
		},
	}

	// GzipPool:
	//   - gzip.Writer 재사용 (BestSpeed)
	GzipPool = sync.Pool{
		New: func() any {
			w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
			return w
		},
	}
)

// MaxBufferCap 보다 큰 버퍼는 풀에 돌려주지 않는다.
const MaxBufferCap = 1 * 1024 * 1024 // 1MB

// GetBuffer 는 비워진 버퍼를 꺼낸다.
func GetBuffer() *bytes.Buffer {
	buf := BufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer:
//   - 1MB 이하이면 풀에 재사용
//   - 초대형 버퍼는 GC 에 맡긴다
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() <= MaxBufferCap {
		buf.Reset()
		BufferPool.Put(buf)
	}
}

package archive

import (
	"fireworks-assets/internal/model"
	"fireworks-assets/internal/pool"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
)

// Encoder 는 기록 배치를 JSONL → gzip 으로 직렬화한다.
// 결과는 새 []byte 로 복사해서 돌려준다 (pool 버퍼는 재사용되므로).
type Encoder struct{}

func NewEncoder() *Encoder {
	return &Encoder{}
}

// EncodeBatchJSONLGZ 는 records 를 한 줄씩 JSON 인코딩한 뒤 gzip 압축한다.
func (e *Encoder) EncodeBatchJSONLGZ(records []model.Record) ([]byte, error) {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	gz := pool.GzipPool.Get().(*gzip.Writer)
	defer pool.GzipPool.Put(gz)
	gz.Reset(buf)

	enc := json.NewEncoder(gz)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			_ = gz.Close()
			return nil, err
		}
	}

	// Close 시점에 gzip footer 가 써진다.
	if err := gz.Close(); err != nil {
		return nil, err
	}

	raw := buf.Bytes()
	data := make([]byte, len(raw))
	copy(data, raw)
	return data, nil
}

// internal/archive/file_util.go
package archive

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// 파일명 규칙:
//
//	<unix>_<instance>_<counter>.jsonl.gz
//
// 문자열 정렬 = 시간 정렬이므로 spool 에서 가장 오래된 파일을 고를 때 그대로 쓴다.
var globalCounter uint64

// NextCounter 는 1,000,000 에서 0 으로 돌아가는 순차 번호.
func NextCounter() uint64 {
	return atomic.AddUint64(&globalCounter, 1) % 1_000_000
}

// NewFilename 은 새 journal 파일명을 만든다.
// instance 에 '_' 나 '/' 가 있으면 '-' 로 바꿔 파일명 파싱이 깨지지 않게 한다.
func NewFilename(instanceID string) string {
	inst := strings.NewReplacer("_", "-", "/", "-", "\\", "-").Replace(instanceID)
	return fmt.Sprintf("%d_%s_%06d.jsonl.gz", Unix(), inst, NextCounter())
}

// BuildS3Key
//
//	<prefix>/dt=<YYYY-MM-DD>/hr=<HH>/<filename>
func BuildS3Key(prefix, filename string) string {
	s := now()
	return fmt.Sprintf("%s/dt=%s/hr=%s/%s", strings.TrimSuffix(prefix, "/"), s.dt, s.hr, filename)
}

package archive

import (
	"sync/atomic"
	"time"
)

// stamp 은 한 초 동안 재사용되는 UTC 시각 스냅샷이다.
// unix / dt / hr 이 같은 초에서 나오므로 파일명과 파티션이 어긋나지 않는다.
type stamp struct {
	unix int64
	dt   string // "YYYY-MM-DD"
	hr   string // "HH"
}

var current atomic.Pointer[stamp]

// now 는 초가 바뀌었을 때만 포맷을 다시 만든다.
// 동시에 여러 goroutine 이 갱신해도 같은 초의 같은 값이라 상관없다.
func now() *stamp {
	sec := time.Now().Unix()
	if s := current.Load(); s != nil && s.unix == sec {
		return s
	}

	t := time.Unix(sec, 0).UTC()
	s := &stamp{
		unix: sec,
		dt:   t.Format("2006-01-02"),
		hr:   t.Format("15"),
	}
	current.Store(s)
	return s
}

// Unix returns current UTC epoch seconds (1-second precision).
func Unix() int64 { return now().unix }

// DT returns "YYYY-MM-DD" (UTC).
func DT() string { return now().dt }

// HR returns "HH" (UTC).
func HR() string { return now().hr }

// internal/model/record.go
package model

// Record 종류.
const (
	KindSaved = "saved" // ingest handler 가 이미지를 저장함
	KindMoved = "moved" // mover 가 파일을 이동함
)

// Record
// ------------------------------------------------------------
// 활동 journal 의 단일 기록.
// ingest handler / mover → archive.Manager → Encoder → S3 업로드까지 그대로 전달된다.
type Record struct {
	Ts     int64  `json:"ts"`     // 기록 시각 (UTC epoch seconds)
	Kind   string `json:"kind"`   // saved / moved
	Name   string `json:"name"`   // 파일명
	Path   string `json:"path"`   // 쓰여진 최종 경로
	Size   int64  `json:"size"`   // 바이트 수
	Origin string `json:"origin"` // ws 연결 id 또는 이동 전 경로
}

// UploadJob 은 Manager 내부에서 인코딩/업로드 단위로 쓰는 배치.
type UploadJob struct {
	Records []Record
}

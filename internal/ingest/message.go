package ingest

import (
	"strings"
	"unicode/utf8"

	json "github.com/goccy/go-json"
)

const (
	TypeSaveImage = "saveImage"
	TypeSaved     = "saved"

	// pngDataURLPrefix 가 붙어 오면 첫 ',' 까지 잘라낸다.
	pngDataURLPrefix = "data:image/png;base64,"

	parsePreviewLen = 100
	shapePreviewLen = 50
)

// Frame 은 transport 에서 받은 메시지 한 건.
// Text 가 false 면 binary frame 이다.
type Frame struct {
	Text    bool
	Payload []byte
}

// Ack 는 저장 성공 시 보낸 쪽 연결에만 돌려주는 응답.
type Ack struct {
	Type     string `json:"type"`
	Filename string `json:"filename"`
}

// Marshal 은 {"type":"saved","filename":...} 형태로 인코딩한다.
func (a Ack) Marshal() ([]byte, error) {
	return json.Marshal(a)
}

// envelope 은 필드별 raw 값. type 이 없는 것과 문자열이 아닌 것을 구분하기 위해
// 구조체 대신 map 으로 받는다.
type envelope map[string]json.RawMessage

func parseEnvelope(text string) (envelope, error) {
	var env envelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return nil, err
	}
	return env, nil
}

func (e envelope) has(key string) bool {
	_, ok := e[key]
	return ok
}

// str 은 key 의 문자열 값. 없거나 문자열이 아니면 "".
func (e envelope) str(key string) string {
	raw, ok := e[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

// looksLikeObject 는 full parse 전의 값싼 모양 검사.
func looksLikeObject(s string) bool {
	return strings.HasPrefix(s, "{") && strings.HasSuffix(s, "}")
}

// stripDataURL 은 PNG data URL 접두사를 떼어낸다.
func stripDataURL(image string) string {
	if !strings.HasPrefix(image, pngDataURLPrefix) {
		return image
	}
	return image[strings.IndexByte(image, ',')+1:]
}

// preview 는 로그용으로 앞쪽 n 글자만 남긴다.
func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

package pool

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetBufferIsEmpty(t *testing.T) {
	buf := GetBuffer()
	buf.WriteString("leftover")
	PutBuffer(buf)

	assert.Zero(t, GetBuffer().Len())
}

func TestPutBufferDropsOversized(t *testing.T) {
	big := bytes.NewBuffer(make([]byte, 0, MaxBufferCap+1))
	big.WriteString("x")
	PutBuffer(big)

	// 풀에 돌아가지 않았으므로 내용이 그대로 남아 있다.
	assert.Equal(t, "x", big.String())
}

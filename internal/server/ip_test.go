package server

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientAddr(t *testing.T) {
	tests := []struct {
		name   string
		xff    string
		remote string
		want   string
	}{
		{"remote addr", "", "127.0.0.1:51234", "127.0.0.1"},
		{"ipv6 remote", "", "[::1]:51234", "::1"},
		{"forwarded first valid", "junk, 10.0.0.7, 203.0.113.1", "127.0.0.1:1", "10.0.0.7"},
		{"forwarded all junk", "junk", "192.168.0.2:80", "192.168.0.2"},
		{"no port", "", "pipe", "pipe"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/", nil)
			r.RemoteAddr = tt.remote
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, clientAddr(r))
		})
	}
}

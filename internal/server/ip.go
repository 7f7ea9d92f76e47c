package server

import (
	"net"
	"net/http"
	"strings"
)

// safeParseIP:
//   - 공백/빈 값 대응
//   - 잘못된 값이 들어오면 nil 반환
func safeParseIP(s string) net.IP {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return net.ParseIP(s)
}

// ------------------------------------------------------------
// clientAddr:
//
// 로그에 남길 클라이언트 주소.
// 로컬 개발 서버라 private / loopback 도 그대로 쓴다.
// 우선순위:
//  1. X-Forwarded-For → 첫 번째로 파싱되는 IP (dev proxy 뒤에 있을 때)
//  2. RemoteAddr 의 host
//  3. RemoteAddr 원문
// ------------------------------------------------------------
func clientAddr(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		// 예: "203.0.113.1, 10.0.1.24"
		for _, part := range strings.Split(xff, ",") {
			if ip := safeParseIP(part); ip != nil {
				return ip.String()
			}
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if ip := safeParseIP(host); ip != nil {
			return ip.String()
		}
		return host
	}
	return r.RemoteAddr
}

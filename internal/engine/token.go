package engine

import (
	"net/url"
	"regexp"
	"strings"
)

// bareTokenPattern matches a credential token scanned directly off a badge:
// opaque, URL-safe, 16-64 characters. Anything else decoded by the camera
// (stray QR codes, wifi configs, vCards) is noise, not an error.
var bareTokenPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{16,64}$`)

// ExtractToken pulls a credential token out of a scanned payload.
//
// Two shapes are recognized:
//   - a check-in URL printed on the badge, with the token in the "token"
//     query parameter or as the final path segment
//   - a bare token
//
// Returns ("", false) for anything else; the scanner silently ignores
// unrecognized payloads and keeps running.
func ExtractToken(payload string) (string, bool) {
	payload = strings.TrimSpace(payload)
	if payload == "" {
		return "", false
	}

	if strings.HasPrefix(payload, "http://") || strings.HasPrefix(payload, "https://") {
		u, err := url.Parse(payload)
		if err != nil {
			return "", false
		}
		if tok := u.Query().Get("token"); bareTokenPattern.MatchString(tok) {
			return tok, true
		}
		if idx := strings.LastIndex(u.Path, "/"); idx >= 0 {
			if tok := u.Path[idx+1:]; bareTokenPattern.MatchString(tok) {
				return tok, true
			}
		}
		return "", false
	}

	if bareTokenPattern.MatchString(payload) {
		return payload, true
	}
	return "", false
}

// Package device derives a coarse, stable device fingerprint from the User-Agent.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/mssola/useragent"

	"proctor/pkg/requestcontext"
)

// Info is the human-readable device summary stored with a submission.
type Info struct {
	Fingerprint string `json:"fingerprint"`
	Display     string `json:"display"`
	Mobile      bool   `json:"mobile"`
}

// Fingerprint hashes browser family, major version, OS and form factor. The
// client IP is not part of it.
func Fingerprint(userAgent string) string {
	if userAgent == "" {
		return ""
	}
	ua := useragent.New(userAgent)
	browser, version := ua.Browser()
	major, _, _ := strings.Cut(version, ".")
	if major == "" {
		major = "unknown"
	}
	platform := "desktop"
	if ua.Mobile() {
		platform = "mobile"
	}
	data := fmt.Sprintf("%s|%s|%s|%s", normalize(browser), major, normalize(ua.OS()), platform)
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// Describe returns e.g. "Chrome on Windows 10".
func Describe(userAgent string) Info {
	if userAgent == "" {
		return Info{Display: "Unknown Device"}
	}
	ua := useragent.New(userAgent)
	browser, _ := ua.Browser()
	os := ua.OS()
	if browser == "" {
		browser = "Unknown Browser"
	}
	if os == "" {
		os = "Unknown OS"
	}
	return Info{
		Fingerprint: Fingerprint(userAgent),
		Display:     strings.TrimSpace(browser + " on " + os),
		Mobile:      ua.Mobile(),
	}
}

// FromContext describes the device of the current request.
func FromContext(r *http.Request) Info {
	info := Describe(requestcontext.UserAgent(r.Context()))
	if fp := requestcontext.DeviceFingerprint(r.Context()); fp != "" {
		info.Fingerprint = fp
	}
	return info
}

// Middleware pre-computes the fingerprint. Register after the metadata middleware.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if fp := Fingerprint(requestcontext.UserAgent(ctx)); fp != "" {
			ctx = requestcontext.WithDeviceFingerprint(ctx, fp)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "unknown"
	}
	return s
}

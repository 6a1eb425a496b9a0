// Package device derives a stable device fingerprint from the User-Agent.
package device

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/mssola/useragent"
)

// Service computes fingerprints. A disabled service returns empty fingerprints
// so the device collector treats the device as unknown.
type Service struct {
	enabled bool
}

func NewService(enabled bool) *Service {
	return &Service{enabled: enabled}
}

// ComputeFingerprint hashes browser family, browser major version and OS.
// Minor browser updates keep the same fingerprint.
func (s *Service) ComputeFingerprint(userAgent string) string {
	if s == nil || !s.enabled || strings.TrimSpace(userAgent) == "" {
		return ""
	}
	ua := useragent.New(userAgent)
	name, version := ua.Browser()
	sum := sha256.Sum256([]byte(name + "|" + majorVersion(version) + "|" + ua.OS()))
	return hex.EncodeToString(sum[:])
}

// CompareFingerprints reports whether two fingerprints match and whether the
// device drifted.
func (s *Service) CompareFingerprints(stored, current string) (matched bool, drift bool) {
	matched = stored == current
	return matched, !matched
}

// IsBot reports whether the User-Agent self-identifies as automation.
func IsBot(userAgent string) bool {
	if strings.TrimSpace(userAgent) == "" {
		return false
	}
	if useragent.New(userAgent).Bot() {
		return true
	}
	lower := strings.ToLower(userAgent)
	for _, marker := range []string{"headless", "phantomjs", "selenium", "puppeteer", "playwright", "curl/", "python-requests", "go-http-client"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// ParseUserAgent renders a display name such as "Chrome on macOS".
func ParseUserAgent(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return "Unknown Device"
	}
	ua := useragent.New(userAgent)
	name, _ := ua.Browser()
	if name == "" {
		name = "Unknown Browser"
	}
	os := ua.OS()
	if os == "" {
		os = "Unknown OS"
	}
	return strings.TrimSpace(name + " on " + os)
}

func majorVersion(version string) string {
	if i := strings.IndexByte(version, '.'); i >= 0 {
		return version[:i]
	}
	return version
}

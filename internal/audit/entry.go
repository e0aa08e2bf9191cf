// Package audit builds and stores the append-only log entries describing
// guarded operations. Network-identifying fields are redacted before an
// entry ever leaves this package; callers never persist raw values.
package audit

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

const (
	maxUserAgentLength = 256
	ellipsisMarker     = "..."

	maskedIPv4Octet  = "xxx"
	maskedIPv6Suffix = "xxxx:xxxx:xxxx:xxxx"
	maskedIPUnknown  = "xxx.xxx.xxx.xxx"

	ipv6KeptGroups = 4
)

// Entry is one immutable audit record. IPAddress and UserAgent are always
// pre-redacted.
type Entry struct {
	ID           string
	Timestamp    time.Time
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	IPAddress    string
	UserAgent    string
	Metadata     map[string]any
	Success      bool
	ErrorMessage string
}

// Params carries the raw inputs for a new entry. IPAddress and UserAgent
// may be raw here; NewEntry redacts them.
type Params struct {
	UserID       string
	Action       string
	ResourceType string
	ResourceID   string
	IPAddress    string
	UserAgent    string
	Metadata     map[string]any
	Success      bool
	ErrorMessage string
}

// NewEntry stamps the entry with an ID and the current time and applies the
// redaction transforms.
func NewEntry(p Params) Entry {
	entry := Entry{
		ID:           uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		UserID:       p.UserID,
		Action:       p.Action,
		ResourceType: p.ResourceType,
		ResourceID:   p.ResourceID,
		Metadata:     p.Metadata,
		Success:      p.Success,
		ErrorMessage: p.ErrorMessage,
	}
	if p.IPAddress != "" {
		entry.IPAddress = MaskIPAddress(p.IPAddress)
	}
	if p.UserAgent != "" {
		entry.UserAgent = TruncateUserAgent(p.UserAgent)
	}
	return entry
}

// MaskIPAddress irreversibly reduces an IP's precision: the last IPv4 octet
// is zeroed out, an IPv6 address keeps only its first four groups, and
// anything unrecognized becomes a fully masked placeholder.
func MaskIPAddress(ip string) string {
	ip = strings.TrimSpace(ip)
	if octets := strings.Split(ip, "."); len(octets) == 4 && !strings.Contains(ip, ":") {
		for _, octet := range octets[:3] {
			if !isDigits(octet) {
				return maskedIPUnknown
			}
		}
		return strings.Join(octets[:3], ".") + "." + maskedIPv4Octet
	}
	if strings.Contains(ip, ":") {
		groups := strings.Split(ip, ":")
		if len(groups) >= ipv6KeptGroups {
			return strings.Join(groups[:ipv6KeptGroups], ":") + ":" + maskedIPv6Suffix
		}
	}
	return maskedIPUnknown
}

// TruncateUserAgent caps a user agent at 256 bytes, appending an ellipsis
// marker when it was cut. The cut point backs up to a rune boundary so the
// stored prefix stays valid UTF-8.
func TruncateUserAgent(ua string) string {
	if len(ua) <= maxUserAgentLength {
		return ua
	}
	cut := maxUserAgentLength - len(ellipsisMarker)
	for cut > 0 && !utf8.RuneStart(ua[cut]) {
		cut--
	}
	return ua[:cut] + ellipsisMarker
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Package model defines core data structures for netlens.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Banner is a single device/service observation as pushed by the query
// service. Banners are schema-free JSON objects, so the type is a plain
// field map with typed accessors for the handful of well-known fields.
type Banner map[string]any

// Timestamp layouts the service is known to emit.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
	time.RFC3339,
}

// Placeholder reports whether the banner was synthesized client-side to pad
// a filtered port. Placeholder banners must never be persisted.
func (b Banner) Placeholder() bool {
	v, ok := b["placeholder"]
	if !ok {
		return false
	}
	p, _ := v.(bool)
	return p
}

// Port returns the service port, or 0 if absent.
func (b Banner) Port() int {
	switch v := b["port"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}

// Transport returns the transport protocol ("tcp"/"udp"), or "".
func (b Banner) Transport() string {
	s, _ := b["transport"].(string)
	return s
}

// Hostnames returns the banner's hostname list, if any.
func (b Banner) Hostnames() []string {
	raw, ok := b["hostnames"].([]any)
	if !ok {
		return nil
	}
	names := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			names = append(names, s)
		}
	}
	return names
}

// Identity derives the session-scoped dedup key (host, port). The second
// return is false when the banner carries neither "ip" nor "ipv6" and is
// therefore unidentifiable.
func (b Banner) Identity() (string, bool) {
	addr, ok := b.addr()
	if !ok {
		return "", false
	}
	return fmt.Sprintf("%s:%d", addr, b.Port()), true
}

// HostIP returns the best printable address for the banner: the service's
// pre-formatted "ip_str" when present, otherwise "ipv6", otherwise the raw
// "ip" value.
func (b Banner) HostIP() string {
	if s, ok := b["ip_str"].(string); ok && s != "" {
		return s
	}
	if s, ok := b["ipv6"].(string); ok && s != "" {
		return s
	}
	addr, _ := b.addr()
	return addr
}

func (b Banner) addr() (string, bool) {
	for _, field := range []string{"ip", "ipv6"} {
		switch v := b[field].(type) {
		case string:
			if v != "" {
				return v, true
			}
		case float64:
			return fmt.Sprintf("%.0f", v), true
		case int:
			return fmt.Sprintf("%d", v), true
		case int64:
			return fmt.Sprintf("%d", v), true
		}
	}
	return "", false
}

// Timestamp parses the banner's own timestamp field.
func (b Banner) Timestamp() (time.Time, bool) {
	s, ok := b["timestamp"].(string)
	if !ok || s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Field resolves a collapsed dotted path ("ssl.cert.expired") against the
// banner's nested structure. Returns false if any segment is missing.
func (b Banner) Field(path string) (any, bool) {
	var cur any = map[string]any(b)
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	if cur == nil {
		return nil, false
	}
	return cur, true
}

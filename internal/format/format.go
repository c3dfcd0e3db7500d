// Package format renders banner records as delimited terminal rows.
package format

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/user/netlens/internal/model"
)

// DefaultFields are the properties shown when the user doesn't pick any.
var DefaultFields = []string{"ip_str", "port", "hostnames", "data"}

// fieldColors maps well-known fields to their display color.
var fieldColors = map[string]lipgloss.Style{
	"ip_str":    lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	"port":      lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	"hostnames": lipgloss.NewStyle().Foreground(lipgloss.Color("13")),
	"org":       lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
	"vulns":     lipgloss.NewStyle().Foreground(lipgloss.Color("9")),
	"data":      lipgloss.NewStyle().Foreground(lipgloss.Color("15")),
}

var defaultColor = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))

// ParseFields splits a comma-separated field list, trimming whitespace.
func ParseFields(s string) []string {
	parts := strings.Split(s, ",")
	fields := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			fields = append(fields, p)
		}
	}
	return fields
}

// Escape flattens control characters so one record stays on one row.
func Escape(s string) string {
	r := strings.NewReplacer("\n", "\\n", "\r", "\\r", "\t", "\\t")
	return r.Replace(s)
}

// ValueString renders a banner field value: sequences join with ";",
// numbers print without an exponent, strings get escaped.
func ValueString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return Escape(val)
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, ValueString(item))
		}
		return strings.Join(parts, ";")
	case []string:
		return Escape(strings.Join(val, ";"))
	default:
		return ""
	}
}

// Row renders one banner as a separator-delimited row of the requested
// fields. Missing fields leave their column empty.
func Row(b model.Banner, fields []string, separator string, color bool) string {
	var row strings.Builder
	for _, field := range fields {
		if v, ok := b.Field(field); ok {
			cell := ValueString(v)
			if color && cell != "" {
				style, ok := fieldColors[field]
				if !ok {
					style = defaultColor
				}
				cell = style.Render(cell)
			}
			row.WriteString(cell)
		}
		row.WriteString(separator)
	}
	return row.String()
}

// MatchesFilters checks a banner against "field:value" filter pairs. All
// filters must match; a missing field fails the record.
func MatchesFilters(b model.Banner, filters []string) bool {
	for _, f := range filters {
		field, check, found := strings.Cut(f, ":")
		if !found {
			return false
		}

		v, ok := b.Field(field)
		if !ok {
			return false
		}

		switch val := v.(type) {
		case string:
			if !strings.Contains(val, check) {
				return false
			}
		case []any:
			if !strings.Contains(ValueString(val), check) {
				return false
			}
		case float64:
			want, err := strconv.ParseFloat(check, 64)
			if err != nil || want != val {
				return false
			}
		case int:
			want, err := strconv.Atoi(check)
			if err != nil || want != val {
				return false
			}
		}
	}
	return true
}

package staticredirect

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"strings"
)

// DefaultCode is the status used by rules that don't carry a usable type.
const DefaultCode = http.StatusMovedPermanently

// Rule is a single entry of a redirect manifest. From is a wildcard pattern
// matched against the scope-relative path and To is the target, resolved
// against the scope URL. A zero Type means DefaultCode.
type Rule struct {
	From     string
	To       string
	Type     int
	Disabled bool
}

// Code returns the status code the rule redirects with.
func (r Rule) Code() int {
	if r.Type == 0 {
		return DefaultCode
	}
	return r.Type
}

// Inert reports whether the rule can never match because its pattern or its
// target is blank.
func (r Rule) Inert() bool {
	return strings.TrimSpace(r.From) == "" || strings.TrimSpace(r.To) == ""
}

// decodeRule coerces a raw manifest entry into a Rule. Entries that aren't
// JSON objects come back as the zero Rule, which is inert.
func decodeRule(raw json.RawMessage) Rule {
	var fields map[string]interface{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Rule{}
	}
	disabled, _ := fields["disabled"].(bool)
	return Rule{
		From:     coerceString(fields["from"]),
		To:       coerceString(fields["to"]),
		Type:     coerceCode(fields["type"]),
		Disabled: disabled,
	}
}

// coerceString follows string coercion of a field that falls back to "" when
// falsy: false, null, 0 and absent give "", arrays join their elements with
// commas and objects become "[object Object]".
func coerceString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case float64:
		if t == 0 {
			return ""
		}
	case bool:
		if !t {
			return ""
		}
	}
	return jsString(v)
}

func jsString(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []interface{}:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = jsString(e)
		}
		return strings.Join(parts, ",")
	}
	return "[object Object]"
}

// coerceCode follows numeric coercion of the type field. Falsy values (0,
// "", false, null, absent) and non-numeric strings fall back to the default.
// Anything else numeric is truncated to an integer, and a value that doesn't
// make a usable integer comes back as -1. Whether the result is a redirect
// status is decided when the redirect is emitted.
func coerceCode(v interface{}) int {
	switch t := v.(type) {
	case float64:
		if t == 0 {
			return 0
		}
		return truncCode(t)
	case string:
		if t == "" {
			return 0
		}
		s := strings.TrimSpace(t)
		if s == "" {
			return -1
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0
		}
		return truncCode(f)
	case bool:
		if t {
			return 1
		}
	}
	return 0
}

func truncCode(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return -1
	}
	f = math.Trunc(f)
	if f == 0 || f > math.MaxInt32 || f < math.MinInt32 {
		return -1
	}
	return int(f)
}

// cleanTarget strips a target the way URL parsers in browsers do: leading
// and trailing C0 controls and spaces are trimmed, and tabs and newlines are
// removed wherever they appear.
func cleanTarget(to string) string {
	to = strings.TrimFunc(to, func(r rune) bool {
		return r <= 0x20
	})
	return strings.Map(func(r rune) rune {
		switch r {
		case '\t', '\r', '\n':
			return -1
		}
		return r
	}, to)
}

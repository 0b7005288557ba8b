package staticredirect

import (
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/armon/go-radix"
)

// Severity grades a lint Finding.
type Severity string

const (
	// SeverityError marks rules that will never redirect.
	SeverityError Severity = "error"
	// SeverityWarning marks rules that are probably not what was meant.
	SeverityWarning Severity = "warning"
	// SeverityInfo marks rules that are off on purpose.
	SeverityInfo Severity = "info"
)

// Finding is a problem with one manifest entry.
type Finding struct {
	Index    int
	Severity Severity
	Message  string
}

func (f Finding) String() string {
	return fmt.Sprintf("rule %d: %v: %v", f.Index, f.Severity, f.Message)
}

// Lint checks a manifest and reports entries that can't take effect. It only
// returns an error when the document as a whole would be rejected, in which
// case no path would be redirected at all.
func Lint(data []byte) ([]Finding, error) {
	entries, err := decodeEntries(data)
	if err != nil {
		return nil, err
	}

	var findings []Finding
	add := func(i int, sev Severity, format string, args ...interface{}) {
		findings = append(findings, Finding{Index: i, Severity: sev, Message: fmt.Sprintf(format, args...)})
	}

	// Catch-all patterns seen so far, keyed by their literal prefix, and
	// literal patterns seen so far.
	catchAll := radix.New()
	literals := make(map[string]int)

	for i, raw := range entries {
		var fields map[string]interface{}
		if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
			add(i, SeverityError, "entry is not an object")
			continue
		}
		r := decodeRule(raw)
		if r.Inert() {
			add(i, SeverityError, "rule needs both from and to")
			continue
		}
		if r.Disabled {
			add(i, SeverityInfo, "rule is disabled")
			continue
		}
		if !isRedirectStatus(r.Code()) {
			add(i, SeverityError, "type %d is not a redirect status", r.Code())
		}
		if _, err := url.Parse(cleanTarget(r.To)); err != nil {
			add(i, SeverityError, "target %q is not a valid URL: %v", r.To, err)
		}

		prefix, wildcard := literalPrefix(r.From)
		shadowedBy := -1
		catchAll.WalkPath(prefix, func(_ string, v interface{}) bool {
			shadowedBy = v.(int)
			return true
		})
		if earlier, ok := literals[r.From]; ok && !wildcard && shadowedBy < 0 {
			shadowedBy = earlier
		}
		if shadowedBy >= 0 {
			add(i, SeverityWarning, "pattern %q is shadowed by rule %d", r.From, shadowedBy)
		}

		if !wildcard {
			if _, seen := literals[r.From]; !seen {
				literals[r.From] = i
			}
		} else if prefix+"*" == r.From {
			if _, seen := catchAll.Get(prefix); !seen {
				catchAll.Insert(prefix, i)
			}
		}
	}
	return findings, nil
}

package staticredirect

import (
	"regexp"
)

// RuleSet is an immutable, ordered list of redirect rules. Earlier rules take
// precedence over later ones. A nil *RuleSet is valid and matches nothing.
type RuleSet struct {
	rules []*rule
}

// A rule keeps the compiled pattern next to the source rule. from is nil for
// inert rules.
type rule struct {
	Rule
	from *regexp.Regexp
}

// Match is the outcome of resolving a path against a RuleSet.
type Match struct {
	// To is the rule's target, not yet resolved against the scope.
	To   string
	Code int
	// Index is the position of the matching rule in the manifest.
	Index int
}

// NewRuleSet compiles rules into a RuleSet. The slice is copied.
func NewRuleSet(rules []Rule) *RuleSet {
	rs := &RuleSet{rules: make([]*rule, 0, len(rules))}
	for _, r := range rules {
		compiled := &rule{Rule: r}
		if !r.Inert() {
			compiled.from = compilePattern(r.From)
		}
		rs.rules = append(rs.rules, compiled)
	}
	return rs
}

// Len returns the number of rules, including disabled and inert ones.
func (rs *RuleSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.rules)
}

// Rules returns a copy of the rules in manifest order.
func (rs *RuleSet) Rules() []Rule {
	if rs == nil {
		return nil
	}
	out := make([]Rule, len(rs.rules))
	for i, r := range rs.rules {
		out[i] = r.Rule
	}
	return out
}

// Resolve returns the first enabled rule whose pattern matches relPath in
// full. Later rules are never consulted once one matches.
func (rs *RuleSet) Resolve(relPath string) (Match, bool) {
	if rs == nil {
		return Match{}, false
	}
	for i, r := range rs.rules {
		if r.Disabled || r.from == nil {
			continue
		}
		if r.from.MatchString(relPath) {
			log.Debugf("Path %v matched rule %d (%v)", relPath, i, r.From)
			return Match{To: r.To, Code: r.Code(), Index: i}, true
		}
	}
	return Match{}, false
}

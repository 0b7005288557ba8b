package staticredirect

import (
	"regexp"
	"strings"
)

// compilePattern turns a wildcard pattern into a regular expression that must
// match the whole candidate. Every character other than '*' is literal; each
// '*' matches any run of characters, including none.
func compilePattern(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteByte('^')
	for i, literal := range strings.Split(pattern, "*") {
		if i > 0 {
			b.WriteString(".*")
		}
		b.WriteString(regexp.QuoteMeta(literal))
	}
	b.WriteByte('$')
	// Everything but the wildcards is quoted, so this can't fail.
	return regexp.MustCompile(b.String())
}

// literalPrefix returns the text of pattern before its first wildcard and
// whether the pattern contains a wildcard at all.
func literalPrefix(pattern string) (string, bool) {
	i := strings.IndexByte(pattern, '*')
	if i < 0 {
		return pattern, false
	}
	return pattern[:i], true
}

package match

import "strings"

// NormalizeContext rewrites a rule context so it can be evaluated from the
// document root: every relative branch of a top-level union gets a //
// prefix, absolute branches pass through. A context of "item | /root/unit"
// becomes "//item | /root/unit". Parenthesized branches are left as
// written.
func NormalizeContext(context string) string {
	context = strings.TrimSpace(context)
	if context == "" {
		return ""
	}

	branches := splitUnion(context)
	for i, branch := range branches {
		if branch == "" || branch[0] == '/' || branch[0] == '(' {
			continue
		}
		branches[i] = "//" + branch
	}
	return strings.Join(branches, " | ")
}

// splitUnion splits on | at nesting depth zero, outside string literals.
func splitUnion(s string) []string {
	var (
		branches []string
		depth    int
		quote    byte
		start    int
	)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == '[' || ch == '(':
			depth++
		case ch == ']' || ch == ')':
			depth--
		case ch == '|' && depth == 0:
			branches = append(branches, strings.TrimSpace(s[start:i]))
			start = i + 1
		}
	}
	branches = append(branches, strings.TrimSpace(s[start:]))
	return branches
}

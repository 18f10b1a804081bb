package builds

import "strings"

// MatchPublisher matches verified token claims against the configured
// publishers. A publisher matches when every non-empty constraint list is
// satisfied. Among all matches, the one constraining the most fields wins;
// ties break by lexicographically smallest name. Returns "" when nothing
// matches.
func MatchPublisher(claims map[string]any, publishers []Publisher) string {
	bestName := ""
	bestSpecificity := -1
	for _, p := range publishers {
		if !publisherMatches(claims, p) {
			continue
		}
		specificity := p.specificity()
		if specificity > bestSpecificity ||
			(specificity == bestSpecificity && (bestName == "" || p.Name < bestName)) {
			bestName = p.Name
			bestSpecificity = specificity
		}
	}
	return bestName
}

func (p Publisher) specificity() int {
	n := 0
	for _, list := range [][]string{p.Issuers, p.Audiences, p.AuthorizedParty, p.Subjects, p.SubjectPrefixes, p.Emails} {
		if len(list) > 0 {
			n++
		}
	}
	return n
}

func publisherMatches(claims map[string]any, p Publisher) bool {
	if !constraintSatisfied(p.Issuers, claimStrings(claims, "iss")) {
		return false
	}
	// aud may be a single value or a list; matching is set intersection.
	if !constraintSatisfied(p.Audiences, claimStrings(claims, "aud")) {
		return false
	}
	if !constraintSatisfied(p.AuthorizedParty, claimStrings(claims, "azp")) {
		return false
	}
	if !constraintSatisfied(p.Subjects, claimStrings(claims, "sub")) {
		return false
	}
	if !constraintSatisfied(p.Emails, claimStrings(claims, "email")) {
		return false
	}
	if len(p.SubjectPrefixes) > 0 {
		sub := claimString(claims, "sub")
		if sub == "" || !hasAnyPrefix(sub, p.SubjectPrefixes) {
			return false
		}
	}
	return true
}

func constraintSatisfied(allowed, actual []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range actual {
		for _, want := range allowed {
			if a == want {
				return true
			}
		}
	}
	return false
}

func hasAnyPrefix(value string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(value, p) {
			return true
		}
	}
	return false
}

func claimString(claims map[string]any, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}

func claimStrings(claims map[string]any, key string) []string {
	switch v := claims[key].(type) {
	case string:
		if v == "" {
			return nil
		}
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

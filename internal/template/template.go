// Package template implements positional matching of chat text against
// command templates.
//
// A template is a space-separated sequence of tokens:
//
//	literal      must equal the input token at the same position (case-insensitive)
//	<name>       matches any single input token
//	<...name>    matches any single token; by caller convention it consumes
//	             the rest of the line and is only meaningful as the last token
//	[anything]   optional tail: matching stops here, and any further input
//	             satisfies it
//
// The matcher is purely positional and stateless. Splitting the remainder of
// the line into parameters is the extractor's job, not the matcher's.
package template

import "strings"

// Matches reports whether text structurally matches template.
//
// Input may be longer than the template: trailing tokens are the variadic
// payload and are ignored here. Input shorter than the template's required
// prefix never matches. Tokens are compared case-insensitively, so callers
// do not need to fold text before routing.
func Matches(template, text string) bool {
	tmplTokens := strings.Split(template, " ")
	textTokens := strings.Split(text, " ")

	for i, tok := range tmplTokens {
		if strings.HasPrefix(tok, "[") {
			// Optional tail: the existence of any further input is
			// sufficient. The bracketed token's content is not checked
			// against a specific position.
			return len(textTokens) > i
		}
		if i >= len(textTokens) {
			return false
		}
		if strings.HasPrefix(tok, "<") {
			// Parameter marker matches any single token.
			continue
		}
		if !strings.EqualFold(tok, textTokens[i]) {
			return false
		}
	}

	return len(textTokens) >= len(tmplTokens)
}

// MatchesAny reports whether text matches at least one of the templates.
func MatchesAny(templates []string, text string) bool {
	for _, tmpl := range templates {
		if Matches(tmpl, text) {
			return true
		}
	}
	return false
}

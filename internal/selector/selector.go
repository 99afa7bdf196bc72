// Package selector decides which documents a language feature provider
// applies to.
//
// A selector is written as a language id string, a filter object or an array
// of either. Both sides use it: the main side to decide for which languages a
// forwarding hook is installed, the extension side to pick the adapter that
// best matches a document.
package selector

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

const (
	scoreExact    = 10
	scoreWildcard = 5
	wildcard      = "*"
)

// Filter is the object form of a selector. Every non-empty criterion must
// match.
type Filter struct {
	Language             string `json:"language,omitempty"`
	Scheme               string `json:"scheme,omitempty"`
	Pattern              string `json:"pattern,omitempty"`
	HasAccessToAllModels bool   `json:"hasAccessToAllModels,omitempty"`

	// plain marks a filter written as a bare language string.
	plain bool
}

// Selector is a list of alternatives. A document matches the selector when
// it matches any member.
type Selector []Filter

// Language returns the selector for one or more language ids.
func Language(ids ...string) Selector {
	sel := make(Selector, len(ids))
	for i, id := range ids {
		sel[i] = Filter{Language: id, plain: true}
	}
	return sel
}

// Of returns a selector built from filters.
func Of(filters ...Filter) Selector {
	return Selector(filters)
}

// MarshalJSON writes plain members back as strings.
func (f Filter) MarshalJSON() ([]byte, error) {
	if f.plain {
		return json.Marshal(f.Language)
	}
	type filter Filter
	return json.Marshal(filter(f))
}

// UnmarshalJSON accepts a string or an object.
func (f *Filter) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var lang string
		if err := json.Unmarshal(data, &lang); err != nil {
			return err
		}
		*f = Filter{Language: lang, plain: true}
		return nil
	}
	type filter Filter
	var v filter
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("selector filter: %w", err)
	}
	*f = Filter(v)
	return nil
}

// UnmarshalJSON accepts a string, an object or an array of either.
func (s *Selector) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var members []Filter
		if err := json.Unmarshal(data, &members); err != nil {
			return err
		}
		*s = members
		return nil
	}
	var f Filter
	if err := f.UnmarshalJSON(data); err != nil {
		return err
	}
	*s = Selector{f}
	return nil
}

// Score rates how well sel matches the document at uri in language. Zero
// means no match, 10 is a perfect match. synchronized reports whether the
// document is mirrored on the extension side; filters that do not declare
// blanket access never match documents that are not.
func Score(sel Selector, uri, language string, synchronized bool) int {
	best := 0
	for _, f := range sel {
		score := f.score(uri, language, synchronized)
		if score == scoreExact {
			return score
		}
		if score > best {
			best = score
		}
	}
	return best
}

func (f Filter) score(uri, language string, synchronized bool) int {
	if !synchronized && !f.HasAccessToAllModels {
		return 0
	}

	if f.plain {
		return matchLanguage(f.Language, language)
	}

	score := 0
	if f.Scheme != "" {
		scheme, _ := splitURI(uri)
		switch {
		case f.Scheme == scheme:
			score = scoreExact
		case f.Scheme == wildcard:
			score = scoreWildcard
		default:
			return 0
		}
	}

	if f.Language != "" {
		lang := matchLanguage(f.Language, language)
		if lang == 0 {
			return 0
		}
		score = max(score, lang)
	}

	if f.Pattern != "" {
		_, path := splitURI(uri)
		if !matchPattern(f.Pattern, path) {
			return 0
		}
		score = scoreExact
	}

	return score
}

func matchLanguage(selector, candidate string) int {
	switch {
	case selector == wildcard || candidate == wildcard:
		return scoreWildcard
	case selector == candidate:
		return scoreExact
	default:
		return 0
	}
}

func matchPattern(pattern, path string) bool {
	if ok, err := doublestar.Match(pattern, path); err == nil && ok {
		return true
	}
	if trimmed := strings.TrimPrefix(path, "/"); trimmed != path {
		ok, err := doublestar.Match(pattern, trimmed)
		return err == nil && ok
	}
	return false
}

func splitURI(raw string) (scheme, path string) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", raw
	}
	if u.Opaque != "" {
		return u.Scheme, u.Opaque
	}
	return u.Scheme, u.Path
}

// MatchesLanguage reports whether sel can apply to documents in language.
// Only the language criterion is checked; scheme and pattern depend on the
// document and are evaluated by Score when a provider is invoked.
func MatchesLanguage(sel Selector, language string) bool {
	for _, f := range sel {
		if f.Language == "" || f.Language == wildcard || f.Language == language {
			return true
		}
	}
	return false
}

// String renders the selector in its JSON form for logs.
func (s Selector) String() string {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Sprintf("%#v", []Filter(s))
	}
	return string(b)
}

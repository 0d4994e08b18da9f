package endpoint

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// Template is a reusable request shape. URL and query values may contain
// {name} placeholders that Build fills from case parameters.
type Template struct {
	Name     string
	Method   string
	URL      string
	// Literal marks URL as final: braces in it are sent as-is and never
	// read as placeholders.
	Literal  bool
	Query    map[string]string
	Headers  map[string]string
	Defaults map[string]string
	Timeout  time.Duration
}

// Placeholders lists placeholder names in the order they first appear,
// URL first, then query values in key order.
func (t *Template) Placeholders() []string {
	seen := make(map[string]bool)
	var names []string
	add := func(s string) {
		segs, err := parse(s)
		if err != nil {
			return
		}
		for _, seg := range segs {
			if seg.placeholder && !seen[seg.text] {
				seen[seg.text] = true
				names = append(names, seg.text)
			}
		}
	}
	if !t.Literal {
		add(t.URL)
	}
	for _, k := range sortedKeys(t.Query) {
		add(t.Query[k])
	}
	return names
}

func (t *Template) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("endpoint template has no name")
	}
	if strings.TrimSpace(t.Method) == "" {
		return fmt.Errorf("endpoint %q: method is required", t.Name)
	}
	if !t.Literal {
		if _, err := parse(t.URL); err != nil {
			return fmt.Errorf("endpoint %q: url: %w", t.Name, err)
		}
	}
	for k, v := range t.Query {
		if _, err := parse(v); err != nil {
			return fmt.Errorf("endpoint %q: query %q: %w", t.Name, k, err)
		}
	}

	// Placeholders are replaced by a harmless value so the rest of the
	// URL can be checked for a scheme and host.
	filled, _ := t.expandURL(t.URL, func(string) (string, error) { return "x", nil }, nil)
	u, err := url.Parse(filled)
	if err != nil {
		return fmt.Errorf("endpoint %q: invalid url: %w", t.Name, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("endpoint %q: unsupported url scheme %q (only http and https are allowed)", t.Name, u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint %q: url must have a host", t.Name)
	}
	return nil
}

type segment struct {
	text        string
	placeholder bool
}

func parse(s string) ([]segment, error) {
	var segs []segment
	for {
		open := strings.IndexByte(s, '{')
		closing := strings.IndexByte(s, '}')
		if open < 0 {
			if closing >= 0 {
				return nil, fmt.Errorf("unbalanced '}' in %q", s)
			}
			if s != "" {
				segs = append(segs, segment{text: s})
			}
			return segs, nil
		}
		if closing >= 0 && closing < open {
			return nil, fmt.Errorf("unbalanced '}' in %q", s)
		}
		end := strings.IndexByte(s[open:], '}')
		if end < 0 {
			return nil, fmt.Errorf("unterminated placeholder in %q", s)
		}
		name := s[open+1 : open+end]
		if !validName(name) {
			return nil, fmt.Errorf("invalid placeholder name %q", name)
		}
		if open > 0 {
			segs = append(segs, segment{text: s[:open]})
		}
		segs = append(segs, segment{text: name, placeholder: true})
		s = s[open+end+1:]
	}
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

// expandURL is expand for parts of t.URL, which a literal template
// keeps verbatim.
func (t *Template) expandURL(s string, lookup func(string) (string, error), escape func(string) string) (string, error) {
	if t.Literal {
		return s, nil
	}
	return expand(s, lookup, escape)
}

// expand substitutes every placeholder in s. escape is applied to
// substituted values only.
func expand(s string, lookup func(string) (string, error), escape func(string) string) (string, error) {
	segs, err := parse(s)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	for _, seg := range segs {
		if !seg.placeholder {
			b.WriteString(seg.text)
			continue
		}
		v, err := lookup(seg.text)
		if err != nil {
			return "", err
		}
		if escape != nil {
			v = escape(v)
		}
		b.WriteString(v)
	}
	return b.String(), nil
}

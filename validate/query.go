package validate

import (
	"encoding/json"
	"io"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"
)

// QueryParam accepts only a non-empty plain string of at most maxLen characters.
// Everything else, including operator-shaped values such as {"$ne": "x"}, fails
// with ErrInvalidInput and no detail.
func QueryParam(v any, maxLen int) (string, error) {
	s, ok := v.(string)
	if !ok || s == "" || !utf8.ValidString(s) {
		return "", ErrInvalidInput
	}
	if utf8.RuneCountInString(s) > maxLen || strings.HasPrefix(s, "$") {
		return "", ErrInvalidInput
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return "", ErrInvalidInput
		}
	}
	return s, nil
}

// FromValues converts form or query values into Input without losing their shape:
// repeated keys become lists and bracketed keys such as "email[$ne]" become nested
// maps, so both are later rejected as non-strings.
func FromValues(vals url.Values) Input {
	in := make(Input, len(vals))
	for key, vs := range vals {
		if i := strings.IndexByte(key, '['); i > 0 {
			base := key[:i]
			sub := strings.TrimSuffix(key[i+1:], "]")
			nested, ok := in[base].(map[string]any)
			if !ok {
				nested = make(map[string]any)
				in[base] = nested
			}
			nested[sub] = flatten(vs)
			continue
		}
		if _, taken := in[key].(map[string]any); taken {
			continue
		}
		in[key] = flatten(vs)
	}
	return in
}

func flatten(vs []string) any {
	if len(vs) == 1 {
		return vs[0]
	}
	list := make([]any, len(vs))
	for i, v := range vs {
		list[i] = v
	}
	return list
}

// FromJSON decodes a JSON object. Numbers stay json.Number so they fail string checks.
func FromJSON(r io.Reader) (Input, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var in Input
	if err := dec.Decode(&in); err != nil {
		return nil, ErrInvalidInput
	}
	if in == nil {
		return nil, ErrInvalidInput
	}
	return in, nil
}

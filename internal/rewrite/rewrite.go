// Package rewrite replaces a site URL inside database cell values, including
// values that hold PHP-serialized data whose string lengths must be kept
// consistent.
package rewrite

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/ALT-F4-LLC/jmigrate/internal/phpserial"
)

var validate = validator.New()

// Pair maps the permanent URL of a site to the temporary URL it should carry
// inside an export.
type Pair struct {
	From string
	To   string
}

// NormalizeURL trims raw, removes trailing slashes and checks that the result
// is an absolute http or https URL with a host.
func NormalizeURL(raw string) (string, error) {
	u := strings.TrimRight(strings.TrimSpace(raw), `/\`)
	if u == "" {
		return "", errors.New("URL is empty")
	}

	parsed, err := url.Parse(u)
	if err != nil {
		return "", fmt.Errorf("parsing URL %q: %w", raw, err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return "", fmt.Errorf("URL %q must include an http or https scheme", raw)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("URL %q has no host", raw)
	}
	if err := validate.Var(u, "required,http_url"); err != nil {
		return "", fmt.Errorf("URL %q is not valid", raw)
	}

	return u, nil
}

// NewPair validates both URLs and returns the pair. The URLs must differ
// after normalization.
func NewPair(permanent, temporary string) (Pair, error) {
	from, err := NormalizeURL(permanent)
	if err != nil {
		return Pair{}, fmt.Errorf("permanent URL: %w", err)
	}
	to, err := NormalizeURL(temporary)
	if err != nil {
		return Pair{}, fmt.Errorf("temporary URL: %w", err)
	}
	if from == to {
		return Pair{}, errors.New("permanent and temporary URLs must differ")
	}
	return Pair{From: from, To: to}, nil
}

// Apply returns value with every occurrence of p.From replaced by p.To.
// Serialized values are decoded, rewritten leaf by leaf and encoded again in
// the same format. Input that looks serialized but does not decode is
// treated as plain text.
func (p Pair) Apply(value string) string {
	if p.From == "" || !strings.Contains(value, p.From) {
		return value
	}
	if phpserial.Looks(value) {
		body := strings.TrimSpace(value)
		if v, err := phpserial.Decode(body); err == nil {
			lead := len(value) - len(strings.TrimLeftFunc(value, unicode.IsSpace))
			return value[:lead] + phpserial.Encode(p.Rewrite(v)) + value[lead+len(body):]
		}
	}
	return strings.ReplaceAll(value, p.From, p.To)
}

// Rewrite walks v and applies p to every string leaf. Keys, class names and
// opaque payloads are left alone.
func (p Pair) Rewrite(v phpserial.Value) phpserial.Value {
	switch t := v.(type) {
	case phpserial.String:
		return phpserial.String(p.Apply(string(t)))
	case phpserial.List:
		out := make(phpserial.List, len(t))
		for i, item := range t {
			out[i] = p.Rewrite(item)
		}
		return out
	case phpserial.Map:
		return phpserial.Map(p.rewriteEntries(t))
	case phpserial.Object:
		return phpserial.Object{Class: t.Class, Fields: p.rewriteEntries(t.Fields)}
	}
	return v
}

func (p Pair) rewriteEntries(entries []phpserial.Entry) []phpserial.Entry {
	out := make([]phpserial.Entry, len(entries))
	for i, e := range entries {
		out[i] = phpserial.Entry{Key: e.Key, Value: p.Rewrite(e.Value)}
	}
	return out
}

package rewrite

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/ALT-F4-LLC/jmigrate/internal/phpserial"
)

const (
	permanent = "https://example.com"
	temporary = "https://staging.example.com"
)

func mustPair(t *testing.T) Pair {
	t.Helper()
	p, err := NewPair(permanent, temporary)
	if err != nil {
		t.Fatalf("NewPair failed: %v", err)
	}
	return p
}

func TestNewPairValidation(t *testing.T) {
	tests := []struct {
		permanent string
		temporary string
		wantErr   bool
	}{
		{"https://example.com", "https://staging.example.com", false},
		{"  https://example.com/ ", "http://localhost:8080", false},
		{"example.com", "https://staging.example.com", true},
		{"https://example.com", "ftp://staging.example.com", true},
		{"https://", "https://staging.example.com", true},
		{"", "https://staging.example.com", true},
		{"https://example.com", "https://example.com/", true},
	}
	for _, tt := range tests {
		_, err := NewPair(tt.permanent, tt.temporary)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewPair(%q, %q) error = %v, wantErr %v", tt.permanent, tt.temporary, err, tt.wantErr)
		}
	}
}

func TestNormalizeURLStripsTrailingSlash(t *testing.T) {
	got, err := NormalizeURL(" https://example.com/// ")
	if err != nil {
		t.Fatalf("NormalizeURL failed: %v", err)
	}
	if got != "https://example.com" {
		t.Errorf("NormalizeURL = %q, want %q", got, "https://example.com")
	}
}

func TestApplyPlainString(t *testing.T) {
	p := mustPair(t)
	in := `<a href="https://example.com/about">About</a> https://example.com`
	want := `<a href="https://staging.example.com/about">About</a> https://staging.example.com`
	if got := p.Apply(in); got != want {
		t.Errorf("Apply = %q, want %q", got, want)
	}
}

func TestApplyLeavesUnrelatedValuesIdentical(t *testing.T) {
	p := mustPair(t)
	for _, in := range []string{"", "hello", `a:1:{s:1:"a";d:0.30000000000000004;}`, `s:5:"broken`} {
		if got := p.Apply(in); got != in {
			t.Errorf("Apply(%q) = %q, want unchanged", in, got)
		}
	}
}

func TestApplyJSONOptionValue(t *testing.T) {
	p := mustPair(t)
	got := p.Apply(`{"home":"https://example.com"}`)
	if got != `{"home":"https://staging.example.com"}` {
		t.Errorf("Apply = %q", got)
	}
}

func TestApplySerializedFixesLengths(t *testing.T) {
	p := mustPair(t)
	in := `a:2:{s:4:"home";s:19:"https://example.com";s:7:"siteurl";s:25:"https://example.com/blog/";}`
	want := `a:2:{s:4:"home";s:27:"https://staging.example.com";s:7:"siteurl";s:33:"https://staging.example.com/blog/";}`
	if got := p.Apply(in); got != want {
		t.Errorf("Apply =\n%s\nwant\n%s", got, want)
	}
}

func TestApplySerializedKeepsSurroundingWhitespace(t *testing.T) {
	p := mustPair(t)
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "trailing newline",
			in:   "a:1:{s:4:\"home\";s:19:\"https://example.com\";}\n",
			want: "a:1:{s:4:\"home\";s:27:\"https://staging.example.com\";}\n",
		},
		{
			name: "leading space",
			in:   " s:19:\"https://example.com\";",
			want: " s:27:\"https://staging.example.com\";",
		},
		{
			name: "both sides",
			in:   "\t a:1:{i:0;s:19:\"https://example.com\";} \r\n",
			want: "\t a:1:{i:0;s:27:\"https://staging.example.com\";} \r\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := p.Apply(tt.in)
			if got != tt.want {
				t.Errorf("Apply(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if _, err := phpserial.Decode(strings.TrimSpace(got)); err != nil {
				t.Errorf("rewritten value does not decode: %v", err)
			}
		})
	}
}

func TestApplyDoesNotRewriteKeys(t *testing.T) {
	p := mustPair(t)
	in := `a:1:{s:19:"https://example.com";s:19:"https://example.com";}`
	want := `a:1:{s:19:"https://example.com";s:27:"https://staging.example.com";}`
	if got := p.Apply(in); got != want {
		t.Errorf("Apply = %q, want %q", got, want)
	}
}

func TestApplyObjectAndNestedSerializedString(t *testing.T) {
	p := mustPair(t)
	inner := `a:1:{i:0;s:19:"https://example.com";}`
	in := fmt.Sprintf(`O:8:"stdClass":2:{s:3:"url";s:19:"https://example.com";s:5:"inner";s:%d:"%s";}`, len(inner), inner)

	got := p.Apply(in)
	v, err := phpserial.Decode(got)
	if err != nil {
		t.Fatalf("output does not decode: %v\n%s", err, got)
	}
	obj, ok := v.(phpserial.Object)
	if !ok || obj.Class != "stdClass" {
		t.Fatalf("decoded = %#v", v)
	}
	url, _ := phpserial.Lookup(v, "url")
	if url != phpserial.String(temporary) {
		t.Errorf("url = %v", url)
	}
	nested, _ := phpserial.Lookup(v, "inner")
	innerV, err := phpserial.Decode(string(nested.(phpserial.String)))
	if err != nil {
		t.Fatalf("inner does not decode: %v", err)
	}
	if !reflect.DeepEqual(innerV, phpserial.List{phpserial.String(temporary)}) {
		t.Errorf("inner = %#v", innerV)
	}
}

func TestApplyMalformedSerializedFallsBackToPlain(t *testing.T) {
	p := mustPair(t)
	in := `a:1:{s:3:"url";s:99:"https://example.com";}`
	want := `a:1:{s:3:"url";s:99:"https://staging.example.com";}`
	if got := p.Apply(in); got != want {
		t.Errorf("Apply = %q, want %q", got, want)
	}
}

// nest wraps leaf in depth alternating containers and returns the tree.
func nest(leaf phpserial.Value, depth int) phpserial.Value {
	v := leaf
	for i := 0; i < depth; i++ {
		switch i % 3 {
		case 0:
			v = phpserial.List{phpserial.Int("7"), v, phpserial.String("keep")}
		case 1:
			v = phpserial.Map{
				{Key: phpserial.String("n"), Value: phpserial.Null{}},
				{Key: phpserial.String("child"), Value: v},
			}
		default:
			v = phpserial.Object{Class: "WP_Post", Fields: []phpserial.Entry{
				{Key: phpserial.String("flag"), Value: phpserial.Bool(true)},
				{Key: phpserial.String("child"), Value: v},
			}}
		}
	}
	return v
}

func TestApplyArbitraryDepth(t *testing.T) {
	p := mustPair(t)
	for depth := 1; depth <= 30; depth++ {
		in := phpserial.Encode(nest(phpserial.String(permanent+"/path"), depth))
		want := nest(phpserial.String(temporary+"/path"), depth)

		got, err := phpserial.Decode(p.Apply(in))
		if err != nil {
			t.Fatalf("depth %d: output does not decode: %v", depth, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("depth %d: tree mismatch", depth)
		}
	}
}

func TestApplyMultipleOccurrencesInLeaf(t *testing.T) {
	p := mustPair(t)
	leaf := strings.Repeat(permanent+" ", 3)
	in := phpserial.Encode(phpserial.List{phpserial.String(leaf)})
	got, err := phpserial.Decode(p.Apply(in))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := phpserial.List{phpserial.String(strings.Repeat(temporary+" ", 3))}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("got %#v", got)
	}
}

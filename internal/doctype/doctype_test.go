package doctype

import "testing"

func TestExtractParsed(t *testing.T) {
	cases := []struct{ raw, want string }{
		{"Deed - Warranty", "DEED"},
		{"easement", "EASEMENT"},
		{"  ", ""},
		{"Right of Way - Pipeline", "RIGHT OF WAY"},
	}
	for _, c := range cases {
		if got := ExtractParsed(c.raw); got != c.want {
			t.Errorf("ExtractParsed(%q) = %q, want %q", c.raw, got, c.want)
		}
	}
}

func TestResolveExact(t *testing.T) {
	r := NewResolver(0)
	name, code := r.Resolve("DEED OF TRUST")
	if name != "DEED OF TRUST" || code != "02" {
		t.Errorf("got (%q,%q)", name, code)
	}
}

func TestResolveTruncated(t *testing.T) {
	r := NewResolver(0)
	name, code := r.Resolve("ASSIGNMENT OF DEED O")
	if name != "ASSIGNMENT OF DEED OF TRUST" || code != "03" {
		t.Errorf("got (%q,%q)", name, code)
	}
}

func TestResolveEmptyDefaultsToDeed(t *testing.T) {
	r := NewResolver(0)
	name, code := r.Resolve("")
	if name != "DEED" || code != "01" {
		t.Errorf("got (%q,%q)", name, code)
	}
}

func TestResolveFuzzy(t *testing.T) {
	r := NewResolver(0.6)
	name, _ := r.Resolve("DEED OF TRUS")
	if name != "DEED OF TRUST" {
		t.Errorf("expected fuzzy match to DEED OF TRUST, got %q", name)
	}
}

func TestIsWillOrTestament(t *testing.T) {
	if !IsWillOrTestament("LAST WILL AND TESTAMENT") {
		t.Error("expected true")
	}
	if IsWillOrTestament("DEED") {
		t.Error("expected false")
	}
}

func TestDocumentTypeEmptyRawIsUnknown(t *testing.T) {
	r := NewResolver(0)
	if got := r.DocumentType(""); got != Unknown {
		t.Errorf("DocumentType(\"\") = %q, want %q", got, Unknown)
	}
}

func TestDocumentTypeKebabCases(t *testing.T) {
	r := NewResolver(0)
	if got := r.DocumentType("Deed Of Trust"); got != "deed-of-trust" {
		t.Errorf("DocumentType(%q) = %q, want %q", "Deed Of Trust", got, "deed-of-trust")
	}
}

package cfdi

import (
	"errors"
	"strings"
	"testing"
)

func TestElementRender(t *testing.T) {
	root := newElement("a:Root", newAttrs("Root").
		req("Id", "1").
		opt("Empty", "").
		when(false, "Skipped", "x").
		when(true, "Kept", "y"))
	root.add(nil, newElement("a:Leaf", nil))

	var b strings.Builder
	if err := root.render(&b); err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}

	want := `<a:Root Id="1" Kept="y"><a:Leaf/></a:Root>`
	if b.String() != want {
		t.Errorf("got %s, want %s", b.String(), want)
	}
	if m := root.missing(); len(m) != 0 {
		t.Errorf("expected nothing missing, got %v", m)
	}
}

func TestElementMissingIsRecursive(t *testing.T) {
	root := newElement("Root", newAttrs("Root").req("A", ""))
	root.add(newElement("Child", newAttrs("Root/Child").req("B", "")))

	got := root.missing()
	want := []string{"Root@A", "Root/Child@B"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestEscapeAttr(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"plain", "plain"},
		{`a&b<c>d"e'f`, "a&amp;b&lt;c&gt;d&quot;e&apos;f"},
		{"line\nbreak\ttab\r", "line&#xA;break&#x9;tab&#xD;"},
		{"ÑANDÚ Sí", "ÑANDÚ Sí"},
		{"&amp;", "&amp;amp;"},
	}
	for _, tt := range tests {
		if got := escapeAttr(tt.in); got != tt.want {
			t.Errorf("escapeAttr(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestElementRender_RejectsIllegalCharacters(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"control character", "Transporte\x01de granel"},
		{"nul", "a\x00b"},
		{"invalid utf-8", "Transporte \xff de granel"},
		{"noncharacter", "fin\uFFFE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := newElement("Root", nil)
			root.add(newElement("Leaf", newAttrs("Root/Leaf").req("Descripcion", tt.value)))

			var b strings.Builder
			err := root.render(&b)
			if !errors.Is(err, ErrEncoding) {
				t.Fatalf("expected ErrEncoding, got %v", err)
			}
			if !strings.Contains(err.Error(), "Root/Leaf@Descripcion") {
				t.Errorf("expected error to name the attribute, got %q", err.Error())
			}
		})
	}
}

func TestCheckText(t *testing.T) {
	tests := []struct {
		in    string
		valid bool
	}{
		{"ÑANDÚ Sí", true},
		{"línea\nnueva\ttab\r", true},
		{"emoji \U0001F69A", true},
		{"", true},
		{"\x1f", false},
		{"\x7f", true},
		{"\xc3", false},
		{"\uFFFF", false},
	}
	for _, tt := range tests {
		if err := CheckText(tt.in); (err == nil) != tt.valid {
			t.Errorf("CheckText(%q) = %v, want valid=%v", tt.in, err, tt.valid)
		}
	}
}

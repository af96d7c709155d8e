package cfdi

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// attr is a single attribute; an empty value means "absent" and is never written.
type attr struct {
	name  string
	value string
}

// attrs is an ordered attribute list with omit-if-absent semantics. Every
// conditional attribute rule of the schema goes through opt or req so the
// presence logic stays in one place.
type attrs struct {
	list    []attr
	path    string
	missing []string
}

func newAttrs(path string) *attrs {
	return &attrs{path: path}
}

// opt appends name only when value is non-empty.
func (a *attrs) opt(name, value string) *attrs {
	if value != "" {
		a.list = append(a.list, attr{name: name, value: value})
	}
	return a
}

// req appends name and records it as missing when value is empty.
func (a *attrs) req(name, value string) *attrs {
	if value == "" {
		a.missing = append(a.missing, a.path+"@"+name)
		return a
	}
	a.list = append(a.list, attr{name: name, value: value})
	return a
}

// when appends name only if cond holds, still honoring omit-if-absent.
func (a *attrs) when(cond bool, name, value string) *attrs {
	if cond {
		return a.opt(name, value)
	}
	return a
}

type element struct {
	name     string
	attrs    *attrs
	children []*element
}

func newElement(name string, a *attrs) *element {
	if a == nil {
		a = newAttrs(name)
	}
	return &element{name: name, attrs: a}
}

func (e *element) add(children ...*element) *element {
	for _, c := range children {
		if c != nil {
			e.children = append(e.children, c)
		}
	}
	return e
}

// missing collects every required attribute that was absent in the tree.
func (e *element) missing() []string {
	out := append([]string(nil), e.attrs.missing...)
	for _, c := range e.children {
		out = append(out, c.missing()...)
	}
	return out
}

// render writes e and its children. Values outside the XML 1.0 character
// set fail with ErrEncoding instead of being written or replaced.
func (e *element) render(b *strings.Builder) error {
	b.WriteByte('<')
	b.WriteString(e.name)
	for _, a := range e.attrs.list {
		if err := CheckText(a.value); err != nil {
			return fmt.Errorf("%w: %s@%s: %v", ErrEncoding, e.attrs.path, a.name, err)
		}
		b.WriteByte(' ')
		b.WriteString(a.name)
		b.WriteString(`="`)
		b.WriteString(escapeAttr(a.value))
		b.WriteByte('"')
	}
	if len(e.children) == 0 {
		b.WriteString("/>")
		return nil
	}
	b.WriteByte('>')
	for _, c := range e.children {
		if err := c.render(b); err != nil {
			return err
		}
	}
	b.WriteString("</")
	b.WriteString(e.name)
	b.WriteByte('>')
	return nil
}

var attrEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
	"\n", "&#xA;",
	"\r", "&#xD;",
	"\t", "&#x9;",
)

// escapeAttr escapes a value for a double-quoted attribute. Whitespace
// control characters become character references so parsers do not
// normalize them to spaces.
func escapeAttr(s string) string {
	return attrEscaper.Replace(s)
}

// CheckText reports the first reason s cannot appear in an XML 1.0 document:
// invalid UTF-8 or a character outside the Char production.
func CheckText(s string) error {
	if !utf8.ValidString(s) {
		return errors.New("invalid UTF-8")
	}
	for i, r := range s {
		if !isXMLChar(r) {
			return fmt.Errorf("character %U at byte %d is not allowed in XML", r, i)
		}
	}
	return nil
}

func isXMLChar(r rune) bool {
	switch {
	case r == '\t', r == '\n', r == '\r':
		return true
	case r >= 0x20 && r <= 0xD7FF:
		return true
	case r >= 0xE000 && r <= 0xFFFD:
		return true
	case r >= 0x10000 && r <= utf8.MaxRune:
		return true
	}
	return false
}

// Package xmltree is a small ordered element tree for the wiki's XML
// documents. It keeps element order and attributes so a parsed file can be
// edited and written back.
package xmltree

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Header is written before the root element by Encode.
const Header = `<?xml version="1.1" encoding="UTF-8"?>` + "\n\n"

// Element is an XML element holding either text or child elements.
type Element struct {
	Name     xml.Name
	Attrs    []xml.Attr
	Text     string
	Elements []*Element
}

// New returns an element with the given local name.
func New(name string) *Element {
	return &Element{Name: xml.Name{Local: name}}
}

// Parse decodes data into a tree and returns its root element.
func Parse(data []byte) (*Element, error) {
	d := xml.NewDecoder(bytes.NewReader(stripDeclaration(data)))

	var root *Element
	var stack []*Element
	for {
		tok, err := d.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse xml: %w", err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			el := &Element{Name: t.Name, Attrs: append([]xml.Attr(nil), t.Attr...)}
			if len(stack) == 0 {
				if root != nil {
					return nil, errors.New("parse xml: more than one root element")
				}
				root = el
			} else {
				parent := stack[len(stack)-1]
				parent.Elements = append(parent.Elements, el)
			}
			stack = append(stack, el)
		case xml.EndElement:
			if len(stack) == 0 || stack[len(stack)-1].Name != t.Name {
				return nil, fmt.Errorf("parse xml: unexpected </%s>", qualified(t.Name))
			}
			el := stack[len(stack)-1]
			if len(el.Elements) > 0 && strings.TrimSpace(el.Text) == "" {
				el.Text = ""
			}
			stack = stack[:len(stack)-1]
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		}
	}

	if root == nil {
		return nil, errors.New("parse xml: no root element")
	}
	if len(stack) != 0 {
		return nil, fmt.Errorf("parse xml: unclosed <%s>", qualified(stack[len(stack)-1].Name))
	}
	return root, nil
}

// stripDeclaration drops the XML declaration. encoding/xml refuses
// version="1.1", which the wiki writes on every exported page.
func stripDeclaration(data []byte) []byte {
	trimmed := bytes.TrimLeft(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")), " \t\r\n")
	if !bytes.HasPrefix(trimmed, []byte("<?xml")) {
		return data
	}
	end := bytes.Index(trimmed, []byte("?>"))
	if end < 0 {
		return data
	}
	return trimmed[end+2:]
}

// Child returns the first direct child with the given local name.
func (e *Element) Child(name string) *Element {
	if e == nil {
		return nil
	}
	for _, c := range e.Elements {
		if c.Name.Local == name {
			return c
		}
	}
	return nil
}

// All returns every direct child with the given local name.
func (e *Element) All(name string) []*Element {
	if e == nil {
		return nil
	}
	var out []*Element
	for _, c := range e.Elements {
		if c.Name.Local == name {
			out = append(out, c)
		}
	}
	return out
}

// ChildText returns the text of the first child named name.
func (e *Element) ChildText(name string) (string, bool) {
	c := e.Child(name)
	if c == nil {
		return "", false
	}
	return c.Text, true
}

// Attr returns the value of the attribute with the given local name.
func (e *Element) Attr(name string) (string, bool) {
	if e == nil {
		return "", false
	}
	for _, a := range e.Attrs {
		if a.Name.Local == name && a.Name.Space != "xmlns" {
			return a.Value, true
		}
	}
	return "", false
}

// SetAttr sets or adds an attribute.
func (e *Element) SetAttr(name, value string) {
	for i, a := range e.Attrs {
		if a.Name.Local == name && a.Name.Space == "" {
			e.Attrs[i].Value = value
			return
		}
	}
	e.Attrs = append(e.Attrs, xml.Attr{Name: xml.Name{Local: name}, Value: value})
}

// Add appends a new child element and returns it.
func (e *Element) Add(name string) *Element {
	c := New(name)
	e.Elements = append(e.Elements, c)
	return c
}

// AddText appends a child element holding text.
func (e *Element) AddText(name, text string) *Element {
	c := e.Add(name)
	c.Text = text
	return c
}

// Ensure returns the first child named name, adding it when absent.
func (e *Element) Ensure(name string) *Element {
	if c := e.Child(name); c != nil {
		return c
	}
	return e.Add(name)
}

// Encode writes e and its subtree in compact form. Empty elements are
// written as <name/>.
func (e *Element) Encode(w io.Writer) error {
	var b strings.Builder
	e.encode(&b)
	_, err := io.WriteString(w, b.String())
	return err
}

// Bytes returns the document with Header followed by the compact encoding of e.
func (e *Element) Bytes() []byte {
	var b strings.Builder
	b.WriteString(Header)
	e.encode(&b)
	b.WriteByte('\n')
	return []byte(b.String())
}

func (e *Element) encode(b *strings.Builder) {
	b.WriteByte('<')
	b.WriteString(qualified(e.Name))
	for _, a := range e.Attrs {
		b.WriteByte(' ')
		b.WriteString(qualified(a.Name))
		b.WriteString(`="`)
		b.WriteString(attrEscaper.Replace(a.Value))
		b.WriteByte('"')
	}
	if len(e.Elements) == 0 && e.Text == "" {
		b.WriteString("/>")
		return
	}
	b.WriteByte('>')
	if len(e.Elements) > 0 {
		for _, c := range e.Elements {
			c.encode(b)
		}
	} else {
		b.WriteString(textEscaper.Replace(e.Text))
	}
	b.WriteString("</")
	b.WriteString(qualified(e.Name))
	b.WriteByte('>')
}

func qualified(n xml.Name) string {
	if n.Space == "" {
		return n.Local
	}
	return n.Space + ":" + n.Local
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", "\r", "&#13;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;",
		"\r", "&#13;", "\n", "&#10;", "\t", "&#9;")
)

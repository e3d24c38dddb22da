package xmltree

import (
	"bytes"
	"strings"
	"testing"
)

const sample = `<?xml version="1.1" encoding="UTF-8"?>

<xwikidoc version="1.5" reference="Main.WebHome" locale="">
  <web>Main</web>
  <title>Home &amp; away</title>
  <content>line one
line &lt;two&gt;</content>
  <hidden/>
</xwikidoc>
`

func TestParseAcceptsVersion11(t *testing.T) {
	root, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if root.Name.Local != "xwikidoc" {
		t.Errorf("Expected root xwikidoc, got %q", root.Name.Local)
	}
	if ref, _ := root.Attr("reference"); ref != "Main.WebHome" {
		t.Errorf("Expected reference attribute, got %q", ref)
	}
	if title, _ := root.ChildText("title"); title != "Home & away" {
		t.Errorf("Expected unescaped title, got %q", title)
	}
	if content, _ := root.ChildText("content"); content != "line one\nline <two>" {
		t.Errorf("Expected multi-line content, got %q", content)
	}
	if len(root.Elements) != 4 {
		t.Errorf("Expected 4 children, got %d", len(root.Elements))
	}
	if root.Text != "" {
		t.Errorf("Expected indentation to be dropped, got %q", root.Text)
	}
}

func TestEncodeRoundTrip(t *testing.T) {
	root, err := Parse([]byte(sample))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	root.Child("content").Text = "a < b && c"
	root.AddText("extra", "x")

	data := root.Bytes()
	if !bytes.HasPrefix(data, []byte(Header)) {
		t.Errorf("Expected header prefix, got %q", data[:40])
	}
	if !strings.Contains(string(data), "<hidden/>") {
		t.Errorf("Expected empty element to be self-closing: %s", data)
	}

	again, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse of encoded output failed: %v", err)
	}
	if content, _ := again.ChildText("content"); content != "a < b && c" {
		t.Errorf("Expected content to survive, got %q", content)
	}
	if extra, ok := again.ChildText("extra"); !ok || extra != "x" {
		t.Errorf("Expected added element, got %q %v", extra, ok)
	}
}

func TestNamespaceKept(t *testing.T) {
	input := `<page xmlns="http://www.xwiki.org"><content>c</content></page>`
	root, err := Parse([]byte(input))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if _, ok := root.Attr("xmlns"); !ok {
		t.Error("Expected default namespace declaration to be kept as an attribute")
	}

	var b strings.Builder
	if err := root.Encode(&b); err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if b.String() != input {
		t.Errorf("Expected %q, got %q", input, b.String())
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"mismatched", "<a><b></a></b>"},
		{"unclosed", "<a><b>"},
		{"two roots", "<a/><b/>"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.input)); err == nil {
				t.Errorf("Expected error for %q", tt.input)
			}
		})
	}
}

func TestEnsureAndSetAttr(t *testing.T) {
	root := New("object")
	root.Ensure("number").Text = "0"
	root.Ensure("number").Text = "1"
	if len(root.All("number")) != 1 {
		t.Errorf("Expected Ensure to reuse the child")
	}

	root.SetAttr("reference", "A.B")
	root.SetAttr("reference", "A.C")
	if v, _ := root.Attr("reference"); v != "A.C" || len(root.Attrs) != 1 {
		t.Errorf("Expected single updated attribute, got %v", root.Attrs)
	}
}

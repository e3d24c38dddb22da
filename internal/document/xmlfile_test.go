package document

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"wikifs/internal/pageref"
	"wikifs/internal/wikierr"
)

const skinPage = `<?xml version="1.1" encoding="UTF-8"?>

<xwikidoc version="1.5" reference="Main.Skin" locale="">
  <web>Main</web>
  <name>Skin</name>
  <title>Skin</title>
  <content>Hello</content>
  <attachment>
    <filename>logo.txt</filename>
    <filesize>5</filesize>
    <content>aGVsbG8=</content>
  </attachment>
  <object>
    <name>Main.Skin</name>
    <number>0</number>
    <className>XWiki.StyleSheetExtension</className>
    <property>
      <code>body{}</code>
    </property>
    <property>
      <name>main</name>
    </property>
  </object>
  <object>
    <name>Main.Skin</name>
    <number>0</number>
    <className>XWiki.ScriptComponentClass</className>
    <property>
      <script_content>puts 1</script_content>
    </property>
    <property>
      <script_language>ruby</script_language>
    </property>
  </object>
</xwikidoc>
`

func writePage(t *testing.T, dir, rel, content string) string {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(p, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write page: %v", err)
	}
	return p
}

func TestXMLFileRead(t *testing.T) {
	ctx := context.Background()
	dir, err := os.MkdirTemp("", "wikifs-xml-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	doc, err := OpenXMLFile(writePage(t, dir, "Main/Skin.xml", skinPage))
	if err != nil {
		t.Fatalf("OpenXMLFile failed: %v", err)
	}

	ref, err := doc.Reference()
	if err != nil || !ref.Equal(pageref.New([]string{"Main"}, "Skin")) {
		t.Errorf("Expected Main.Skin, got %v (%v)", ref, err)
	}
	if content, _ := doc.Content(ctx); content != "Hello" {
		t.Errorf("Expected content Hello, got %q", content)
	}

	objs, err := doc.Objects(ctx)
	if err != nil {
		t.Fatalf("Objects failed: %v", err)
	}
	if len(objs) != 2 {
		t.Fatalf("Expected 2 objects, got %d", len(objs))
	}
	code, _ := objs[0].Property("code")
	if code.Value != "body{}" || code.Ext != "less" {
		t.Errorf("Expected less code property, got %+v", code)
	}
	if name, _ := objs[0].Property("name"); name.Ext != "" {
		t.Errorf("Expected no extension for name, got %q", name.Ext)
	}
	script, _ := objs[1].Property("script_content")
	if script.Ext != "rb" {
		t.Errorf("Expected rb for ruby script, got %q", script.Ext)
	}

	v, err := doc.Value(ctx, "XWiki.StyleSheetExtension", 0, "code")
	if err != nil || v != "body{}" {
		t.Errorf("Expected body{}, got %q (%v)", v, err)
	}
	if _, err := doc.Value(ctx, "XWiki.StyleSheetExtension", 1, "code"); !errors.Is(err, wikierr.ErrMissingField) {
		t.Errorf("Expected missing field for unknown object, got %v", err)
	}

	atts, _ := doc.Attachments(ctx)
	if len(atts) != 1 || atts[0].Name != "logo.txt" || atts[0].Size != 5 {
		t.Errorf("Unexpected attachments: %+v", atts)
	}
	data, err := doc.Attachment(ctx, "logo.txt")
	if err != nil || string(data) != "hello" {
		t.Errorf("Expected hello, got %q (%v)", data, err)
	}
}

func TestXMLFileWriteAndSave(t *testing.T) {
	ctx := context.Background()
	dir, err := os.MkdirTemp("", "wikifs-xml-test-*")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(dir)

	store := MavenStore{Dir: dir}
	ref := pageref.New([]string{"Main"}, "Skin")
	writePage(t, store.ResourcesDir(), ref.MavenPath(), skinPage)

	doc, err := store.Open(ctx, "xwiki", ref)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := doc.SetContent(ctx, "Changed <b>"); err != nil {
		t.Fatalf("SetContent failed: %v", err)
	}
	if err := doc.SetValue(ctx, "XWiki.StyleSheetExtension", 0, "code", "p{}"); err != nil {
		t.Fatalf("SetValue failed: %v", err)
	}
	if err := doc.SetValue(ctx, "XWiki.StyleSheetExtension", 0, "nope", "x"); !errors.Is(err, wikierr.ErrMissingField) {
		t.Errorf("Expected missing field for unknown property, got %v", err)
	}
	if err := doc.SetAttachment(ctx, "new.bin", []byte{1, 2, 3}); err != nil {
		t.Fatalf("SetAttachment failed: %v", err)
	}
	if err := doc.Save(ctx); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	again, err := store.Open(ctx, "xwiki", ref)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	if content, _ := again.Content(ctx); content != "Changed <b>" {
		t.Errorf("Expected saved content, got %q", content)
	}
	if v, _ := again.Value(ctx, "XWiki.StyleSheetExtension", 0, "code"); v != "p{}" {
		t.Errorf("Expected saved property, got %q", v)
	}
	if data, _ := again.Attachment(ctx, "new.bin"); string(data) != "\x01\x02\x03" {
		t.Errorf("Expected new attachment bytes, got %v", data)
	}
}

func TestXMLFileReferenceFallback(t *testing.T) {
	doc, err := ParseXMLFile("old.xml", []byte(`<xwikidoc><web>A.B</web><name>Page</name></xwikidoc>`))
	if err != nil {
		t.Fatalf("ParseXMLFile failed: %v", err)
	}
	ref, err := doc.Reference()
	if err != nil {
		t.Fatalf("Reference failed: %v", err)
	}
	if !ref.Equal(pageref.New([]string{"A", "B"}, "Page")) {
		t.Errorf("Expected A.B.Page, got %v", ref)
	}

	if _, err := ParseXMLFile("bad.xml", []byte(`<page/>`)); err == nil {
		t.Error("Expected error for non-xwikidoc root")
	}
}

func TestMavenStoreMissingPage(t *testing.T) {
	store := MavenStore{Dir: t.TempDir()}
	_, err := store.Open(context.Background(), "xwiki", pageref.New([]string{"No"}, "Page"))
	if !errors.Is(err, wikierr.ErrDocumentNotFound) {
		t.Errorf("Expected ErrDocumentNotFound, got %v", err)
	}
}

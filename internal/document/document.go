// Package document defines the wiki page model and the Document Store
// abstraction the filesystem adapter and the sync engine push through.
package document

import (
	"context"

	"wikifs/internal/pageref"
)

// Property is one named value of an object. Ext is the scripting extension
// a client tool would expect for the value, or empty.
type Property struct {
	Name  string
	Value string
	Ext   string
}

// ObjectInfo describes one object attached to a page. Numbers are unique
// per class within a page.
type ObjectInfo struct {
	Class      string
	Number     int
	Properties []Property
}

// Property returns the named property.
func (o ObjectInfo) Property(name string) (Property, bool) {
	for _, p := range o.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return Property{}, false
}

// AttachmentInfo describes an attachment without its bytes.
type AttachmentInfo struct {
	Name string
	Size int64
}

// Document is a handle on one page. Setters may buffer until Save.
type Document interface {
	Content(ctx context.Context) (string, error)
	SetContent(ctx context.Context, content string) error
	Title(ctx context.Context) (string, error)
	SetTitle(ctx context.Context, title string) error

	Objects(ctx context.Context) ([]ObjectInfo, error)
	Value(ctx context.Context, class string, number int, property string) (string, error)
	SetValue(ctx context.Context, class string, number int, property, value string) error

	Attachments(ctx context.Context) ([]AttachmentInfo, error)
	Attachment(ctx context.Context, name string) ([]byte, error)
	SetAttachment(ctx context.Context, name string, content []byte) error

	Save(ctx context.Context) error
}

// Store opens documents by wiki and page reference.
type Store interface {
	Open(ctx context.Context, wiki string, ref pageref.Reference) (Document, error)
}

// StoreFunc adapts a function to Store.
type StoreFunc func(ctx context.Context, wiki string, ref pageref.Reference) (Document, error)

// Open calls f.
func (f StoreFunc) Open(ctx context.Context, wiki string, ref pageref.Reference) (Document, error) {
	return f(ctx, wiki, ref)
}

// Well-known classes whose properties hold script code.
const (
	ClassStyleSheet       = "XWiki.StyleSheetExtension"
	ClassJavaScript       = "XWiki.JavaScriptExtension"
	ClassScriptComponent  = "XWiki.ScriptComponentClass"
	ClassSkinFileOverride = "XWiki.XWikiSkinFileOverrideClass"
)

// ScriptingExtension returns the file extension matching the language of
// class.property, looking at sibling properties of the same object where the
// language is stored beside the code. It returns "" for plain properties.
func ScriptingExtension(class, property string, siblings map[string]string) string {
	switch {
	case class == ClassStyleSheet && property == "code":
		return "less"
	case class == ClassJavaScript && property == "code":
		return "js"
	case class == ClassScriptComponent && property == "script_content":
		lang, ok := siblings["script_language"]
		if !ok || lang == "" {
			return ""
		}
		return languageExtension(lang)
	case class == ClassSkinFileOverride && property == "content":
		if _, ok := siblings["path"]; ok {
			return "vm"
		}
	}
	return ""
}

func languageExtension(lang string) string {
	switch lang {
	case "ruby":
		return "rb"
	case "velocity":
		return "vm"
	case "python":
		return "py"
	default:
		return lang
	}
}

// WithExtensions fills in Ext on every property of an object.
func WithExtensions(class string, props []Property) []Property {
	values := make(map[string]string, len(props))
	for _, p := range props {
		values[p.Name] = p.Value
	}
	out := make([]Property, len(props))
	for i, p := range props {
		p.Ext = ScriptingExtension(class, p.Name, values)
		out[i] = p
	}
	return out
}

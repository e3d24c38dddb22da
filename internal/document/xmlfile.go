package document

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"wikifs/internal/logging"
	"wikifs/internal/pageref"
	"wikifs/internal/wikierr"
	"wikifs/internal/xmltree"
)

var xmlLogger = logging.GetLogger().WithPrefix("xmlfile")

// XMLFile is a page stored as an exported <xwikidoc> XML file.
type XMLFile struct {
	path string
	root *xmltree.Element
}

// OpenXMLFile reads and parses the page file at path.
func OpenXMLFile(path string) (*XMLFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", wikierr.ErrDocumentNotFound, path)
		}
		return nil, err
	}
	return ParseXMLFile(path, data)
}

// ParseXMLFile parses data as the content of the page file at path.
func ParseXMLFile(path string, data []byte) (*XMLFile, error) {
	root, err := xmltree.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if root.Name.Local != "xwikidoc" {
		return nil, fmt.Errorf("%s: root element is <%s>, not <xwikidoc>", path, root.Name.Local)
	}
	return &XMLFile{path: path, root: root}, nil
}

// Path returns the file the document is read from and saved to.
func (x *XMLFile) Path() string {
	return x.path
}

// Reference returns the page reference declared by the file. Older exports
// carry no reference attribute and name the page with <web> and <name>.
func (x *XMLFile) Reference() (pageref.Reference, error) {
	if ref, ok := x.root.Attr("reference"); ok && ref != "" {
		return pageref.ParseDotted(ref)
	}

	web, okWeb := x.root.ChildText("web")
	name, okName := x.root.ChildText("name")
	if !okWeb || !okName || name == "" {
		return pageref.Reference{}, wikierr.Missing("reference in %s", x.path)
	}
	return pageref.Reference{Spaces: pageref.SplitDotted(web), Page: name}, nil
}

func (x *XMLFile) text(name string) (string, error) {
	v, ok := x.root.ChildText(name)
	if !ok {
		return "", wikierr.Missing("%s in %s", name, x.path)
	}
	return v, nil
}

// Content returns the page content.
func (x *XMLFile) Content(_ context.Context) (string, error) {
	return x.text("content")
}

// SetContent replaces the page content.
func (x *XMLFile) SetContent(_ context.Context, content string) error {
	x.root.Ensure("content").Text = content
	return nil
}

// Title returns the page title.
func (x *XMLFile) Title(_ context.Context) (string, error) {
	return x.text("title")
}

// SetTitle replaces the page title.
func (x *XMLFile) SetTitle(_ context.Context, title string) error {
	x.root.Ensure("title").Text = title
	return nil
}

func (x *XMLFile) object(class string, number int) *xmltree.Element {
	for _, obj := range x.root.All("object") {
		c, _ := obj.ChildText("className")
		n, _ := obj.ChildText("number")
		if c == class && strings.TrimSpace(n) == strconv.Itoa(number) {
			return obj
		}
	}
	return nil
}

// property returns the element holding the value of name inside obj. In the
// export format each <property> wraps a single element named after it.
func property(obj *xmltree.Element, name string) *xmltree.Element {
	for _, p := range obj.All("property") {
		if v := p.Child(name); v != nil {
			return v
		}
	}
	return nil
}

// Objects returns every object of the page in file order.
func (x *XMLFile) Objects(_ context.Context) ([]ObjectInfo, error) {
	var objects []ObjectInfo
	for _, obj := range x.root.All("object") {
		class, _ := obj.ChildText("className")
		numText, _ := obj.ChildText("number")
		number, err := strconv.Atoi(strings.TrimSpace(numText))
		if err != nil {
			xmlLogger.Warn("Skipping object %s with invalid number %q in %s", class, numText, x.path)
			continue
		}

		var props []Property
		for _, p := range obj.All("property") {
			for _, v := range p.Elements {
				props = append(props, Property{Name: v.Name.Local, Value: v.Text})
			}
		}
		objects = append(objects, ObjectInfo{
			Class:      class,
			Number:     number,
			Properties: WithExtensions(class, props),
		})
	}
	return objects, nil
}

// Value returns a property value of an object.
func (x *XMLFile) Value(_ context.Context, class string, number int, name string) (string, error) {
	obj := x.object(class, number)
	if obj == nil {
		return "", wikierr.Missing("object %s[%d] in %s", class, number, x.path)
	}
	v := property(obj, name)
	if v == nil {
		return "", wikierr.Missing("property %s of %s[%d] in %s", name, class, number, x.path)
	}
	return v.Text, nil
}

// SetValue replaces an existing property value of an object.
func (x *XMLFile) SetValue(_ context.Context, class string, number int, name, value string) error {
	obj := x.object(class, number)
	if obj == nil {
		return wikierr.Missing("object %s[%d] in %s", class, number, x.path)
	}
	v := property(obj, name)
	if v == nil {
		return wikierr.Missing("property %s of %s[%d] in %s", name, class, number, x.path)
	}
	v.Text = value
	return nil
}

func (x *XMLFile) attachment(name string) *xmltree.Element {
	for _, a := range x.root.All("attachment") {
		if n, _ := a.ChildText("filename"); n == name {
			return a
		}
	}
	return nil
}

// Attachments lists the attachments with their declared sizes.
func (x *XMLFile) Attachments(_ context.Context) ([]AttachmentInfo, error) {
	var out []AttachmentInfo
	for _, a := range x.root.All("attachment") {
		name, _ := a.ChildText("filename")
		sizeText, _ := a.ChildText("filesize")
		size, _ := strconv.ParseInt(strings.TrimSpace(sizeText), 10, 64)
		out = append(out, AttachmentInfo{Name: name, Size: size})
	}
	return out, nil
}

// Attachment returns the decoded bytes of an attachment.
func (x *XMLFile) Attachment(_ context.Context, name string) ([]byte, error) {
	a := x.attachment(name)
	if a == nil {
		return nil, wikierr.Missing("attachment %s in %s", name, x.path)
	}
	encoded, ok := a.ChildText("content")
	if !ok {
		return nil, wikierr.Missing("content of attachment %s in %s", name, x.path)
	}
	data, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(encoded), ""))
	if err != nil {
		return nil, fmt.Errorf("decode attachment %s in %s: %w", name, x.path, err)
	}
	return data, nil
}

// SetAttachment replaces or adds an attachment.
func (x *XMLFile) SetAttachment(_ context.Context, name string, content []byte) error {
	a := x.attachment(name)
	if a == nil {
		a = x.root.Add("attachment")
		a.AddText("filename", name)
	}
	a.Ensure("filesize").Text = strconv.Itoa(len(content))
	a.Ensure("content").Text = base64.StdEncoding.EncodeToString(content)
	return nil
}

// Save writes the document back to its file.
func (x *XMLFile) Save(_ context.Context) error {
	if err := os.MkdirAll(filepath.Dir(x.path), 0755); err != nil {
		return err
	}
	tmp := x.path + ".tmp"
	if err := os.WriteFile(tmp, x.root.Bytes(), 0644); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, x.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace %s: %w", x.path, err)
	}
	xmlLogger.Debug("Saved %s", x.path)
	return nil
}

// MavenStore opens page files laid out as a maven project's resources.
type MavenStore struct {
	Dir string
}

// ResourcesDir returns the directory holding the page files.
func (m MavenStore) ResourcesDir() string {
	return filepath.Join(m.Dir, "src", "main", "resources")
}

// FilePath returns the file holding ref.
func (m MavenStore) FilePath(ref pageref.Reference) string {
	return filepath.Join(m.ResourcesDir(), filepath.FromSlash(ref.MavenPath()))
}

// Open opens the page file for ref. The wiki is not part of the layout.
func (m MavenStore) Open(_ context.Context, _ string, ref pageref.Reference) (Document, error) {
	doc, err := OpenXMLFile(m.FilePath(ref))
	if err != nil {
		return nil, err
	}
	return doc, nil
}

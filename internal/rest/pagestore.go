package rest

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"wikifs/internal/document"
	"wikifs/internal/pageref"
	"wikifs/internal/wikierr"
	"wikifs/internal/xmltree"
)

var _ document.Store = (*PageStore)(nil)

// PageStore opens remote pages as documents.
type PageStore struct {
	client *Client
}

// NewPageStore returns a PageStore using client.
func NewPageStore(client *Client) *PageStore {
	return &PageStore{client: client}
}

// Open fetches the page with its objects and attachments.
func (s *PageStore) Open(ctx context.Context, wiki string, ref pageref.Reference) (document.Document, error) {
	url := s.client.PageURL(wiki, ref)
	root, err := s.client.GetXML(ctx, url+"?objects=true&attachments=true")
	if err != nil {
		return nil, err
	}
	return &pageDoc{
		client: s.client,
		wiki:   wiki,
		ref:    ref,
		url:    url,
		root:   root,
		dirty:  make(map[objectKey]map[string]string),
	}, nil
}

type objectKey struct {
	class  string
	number int
}

// pageDoc buffers content, title and property writes until Save.
// Attachments are uploaded as soon as they are set.
type pageDoc struct {
	client *Client
	wiki   string
	ref    pageref.Reference
	url    string
	root   *xmltree.Element

	pageDirty  bool
	dirty      map[objectKey]map[string]string
	dirtyOrder []objectKey
}

func (d *pageDoc) text(name string) (string, error) {
	v, ok := d.root.ChildText(name)
	if !ok {
		return "", wikierr.Missing("%s of %s", name, d.ref)
	}
	return v, nil
}

func (d *pageDoc) Content(context.Context) (string, error) {
	return d.text("content")
}

func (d *pageDoc) SetContent(_ context.Context, content string) error {
	d.root.Ensure("content").Text = content
	d.pageDirty = true
	return nil
}

func (d *pageDoc) Title(context.Context) (string, error) {
	return d.text("title")
}

func (d *pageDoc) SetTitle(_ context.Context, title string) error {
	d.root.Ensure("title").Text = title
	d.pageDirty = true
	return nil
}

// objects returns the object elements of the page. Depending on the server
// version they come as <objectSummary> or <object>.
func (d *pageDoc) objects() []*xmltree.Element {
	container := d.root.Child("objects")
	return append(container.All("objectSummary"), container.All("object")...)
}

func (d *pageDoc) object(class string, number int) *xmltree.Element {
	for _, obj := range d.objects() {
		c, _ := obj.ChildText("className")
		n, _ := obj.ChildText("number")
		if c == class && strings.TrimSpace(n) == strconv.Itoa(number) {
			return obj
		}
	}
	return nil
}

func (d *pageDoc) Objects(context.Context) ([]document.ObjectInfo, error) {
	var out []document.ObjectInfo
	for _, obj := range d.objects() {
		class, _ := obj.ChildText("className")
		numText, _ := obj.ChildText("number")
		n, err := strconv.Atoi(strings.TrimSpace(numText))
		if err != nil {
			continue
		}
		out = append(out, document.ObjectInfo{
			Class:      class,
			Number:     n,
			Properties: document.WithExtensions(class, objectProperties(obj)),
		})
	}
	return out, nil
}

func propertyValue(obj *xmltree.Element, name string) *xmltree.Element {
	for _, p := range obj.All("property") {
		if n, _ := p.Attr("name"); n == name {
			return p.Ensure("value")
		}
	}
	return nil
}

func (d *pageDoc) Value(_ context.Context, class string, number int, property string) (string, error) {
	obj := d.object(class, number)
	if obj == nil {
		return "", wikierr.Missing("object %s[%d] of %s", class, number, d.ref)
	}
	v := propertyValue(obj, property)
	if v == nil {
		return "", wikierr.Missing("property %s of %s[%d] of %s", property, class, number, d.ref)
	}
	return v.Text, nil
}

func (d *pageDoc) SetValue(_ context.Context, class string, number int, property, value string) error {
	obj := d.object(class, number)
	if obj == nil {
		return wikierr.Missing("object %s[%d] of %s", class, number, d.ref)
	}
	v := propertyValue(obj, property)
	if v == nil {
		return wikierr.Missing("property %s of %s[%d] of %s", property, class, number, d.ref)
	}
	v.Text = value

	key := objectKey{class: class, number: number}
	if d.dirty[key] == nil {
		d.dirty[key] = make(map[string]string)
		d.dirtyOrder = append(d.dirtyOrder, key)
	}
	d.dirty[key][property] = value
	return nil
}

func (d *pageDoc) Attachments(context.Context) ([]document.AttachmentInfo, error) {
	var out []document.AttachmentInfo
	for _, el := range d.root.Child("attachments").All("attachment") {
		out = append(out, attachmentInfo(el))
	}
	return out, nil
}

func (d *pageDoc) attachmentURL(name string) string {
	return d.url + "/attachments/" + pageref.EscapeSegment(name)
}

func (d *pageDoc) Attachment(ctx context.Context, name string) ([]byte, error) {
	return d.client.Get(ctx, d.attachmentURL(name))
}

func (d *pageDoc) SetAttachment(ctx context.Context, name string, content []byte) error {
	return d.client.Put(ctx, d.attachmentURL(name), "application/octet-stream", content)
}

// Save pushes modified objects first, then content and title.
func (d *pageDoc) Save(ctx context.Context) error {
	for _, key := range d.dirtyOrder {
		obj := xmltree.New("object")
		obj.SetAttr("xmlns", Namespace)
		obj.AddText("className", key.class)
		obj.AddText("number", strconv.Itoa(key.number))
		props := d.dirty[key]
		names := make([]string, 0, len(props))
		for name := range props {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			p := obj.Add("property")
			p.SetAttr("name", name)
			p.AddText("value", props[name])
		}
		url := d.client.ObjectURL(d.wiki, d.ref, key.class, key.number)
		if err := d.client.PutXML(ctx, url, obj); err != nil {
			return fmt.Errorf("save object %s[%d] of %s: %w", key.class, key.number, d.ref, err)
		}
	}
	d.dirty = make(map[objectKey]map[string]string)
	d.dirtyOrder = nil

	if !d.pageDirty {
		return nil
	}
	page := xmltree.New("page")
	page.SetAttr("xmlns", Namespace)
	if title, ok := d.root.ChildText("title"); ok {
		page.AddText("title", title)
	}
	if content, ok := d.root.ChildText("content"); ok {
		page.AddText("content", content)
	}
	if err := d.client.PutXML(ctx, d.url, page); err != nil {
		return fmt.Errorf("save %s: %w", d.ref, err)
	}
	d.pageDirty = false
	return nil
}

package rest

import (
	"context"
	"strconv"
	"strings"

	"wikifs/internal/document"
	"wikifs/internal/grammar"
	"wikifs/internal/pageref"
	"wikifs/internal/wikierr"
	"wikifs/internal/xmltree"
)

var _ grammar.Lister = (*Lister)(nil)

// Lister enumerates remote resources through the REST API.
type Lister struct {
	client *Client
}

// NewLister returns a Lister using client.
func NewLister(client *Client) *Lister {
	return &Lister{client: client}
}

func childTexts(parent *xmltree.Element, item, field string) []string {
	var out []string
	for _, el := range parent.All(item) {
		if v, ok := el.ChildText(field); ok {
			out = append(out, v)
		}
	}
	return out
}

// Wikis lists wiki identifiers.
func (l *Lister) Wikis(ctx context.Context) ([]string, error) {
	root, err := l.client.GetXML(ctx, l.client.RESTURL()+"/wikis")
	if err != nil {
		return nil, err
	}
	return childTexts(root, "wiki", "id"), nil
}

// Spaces lists the direct children of parent. The REST resource returns
// every space of the wiki, so children are picked by their full identifier.
func (l *Lister) Spaces(ctx context.Context, wiki string, parent []string) ([]string, error) {
	root, err := l.client.GetXML(ctx, l.client.WikiURL(wiki)+"/spaces")
	if err != nil {
		return nil, err
	}

	var names []string
	for _, space := range root.All("space") {
		id, _ := space.ChildText("id")
		name, ok := space.ChildText("name")
		if !ok {
			continue
		}
		chain := append(append([]string(nil), parent...), name)
		if id == wiki+":"+pageref.JoinDotted(chain) {
			names = append(names, name)
		}
	}
	return names, nil
}

// Pages lists the pages of a space.
func (l *Lister) Pages(ctx context.Context, wiki string, spaces []string) ([]string, error) {
	root, err := l.client.GetXML(ctx, l.client.WikiURL(wiki)+pageref.SpacesRESTPath(spaces)+"/pages")
	if err != nil {
		return nil, err
	}
	return childTexts(root, "pageSummary", "name"), nil
}

// Classes lists the class identifiers of a wiki.
func (l *Lister) Classes(ctx context.Context, wiki string) ([]string, error) {
	root, err := l.client.GetXML(ctx, l.client.WikiURL(wiki)+"/classes")
	if err != nil {
		return nil, err
	}
	return childTexts(root, "class", "id"), nil
}

func attachmentInfo(el *xmltree.Element) document.AttachmentInfo {
	name, _ := el.ChildText("name")
	sizeText, ok := el.ChildText("longSize")
	if !ok {
		sizeText, _ = el.ChildText("size")
	}
	size, _ := strconv.ParseInt(strings.TrimSpace(sizeText), 10, 64)
	return document.AttachmentInfo{Name: name, Size: size}
}

// Attachments lists the attachments of a page.
func (l *Lister) Attachments(ctx context.Context, wiki string, page pageref.Reference) ([]document.AttachmentInfo, error) {
	root, err := l.client.GetXML(ctx, l.client.PageURL(wiki, page)+"/attachments")
	if err != nil {
		return nil, err
	}
	var out []document.AttachmentInfo
	for _, el := range root.All("attachment") {
		out = append(out, attachmentInfo(el))
	}
	return out, nil
}

type objectSummary struct {
	class  string
	number int
}

func (l *Lister) objectSummaries(ctx context.Context, wiki string, page pageref.Reference) ([]objectSummary, error) {
	root, err := l.client.GetXML(ctx, l.client.PageURL(wiki, page)+"/objects")
	if err != nil {
		return nil, err
	}
	var out []objectSummary
	for _, el := range root.All("objectSummary") {
		class, _ := el.ChildText("className")
		numText, _ := el.ChildText("number")
		n, err := strconv.Atoi(strings.TrimSpace(numText))
		if err != nil {
			continue
		}
		out = append(out, objectSummary{class: class, number: n})
	}
	return out, nil
}

// ObjectClasses lists the distinct classes of the page's objects in first
// appearance order.
func (l *Lister) ObjectClasses(ctx context.Context, wiki string, page pageref.Reference) ([]string, error) {
	summaries, err := l.objectSummaries(ctx, wiki, page)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, s := range summaries {
		if !seen[s.class] {
			seen[s.class] = true
			out = append(out, s.class)
		}
	}
	return out, nil
}

// ObjectNumbers lists the numbers of the page's objects of class.
func (l *Lister) ObjectNumbers(ctx context.Context, wiki string, page pageref.Reference, class string) ([]int, error) {
	summaries, err := l.objectSummaries(ctx, wiki, page)
	if err != nil {
		return nil, err
	}
	var out []int
	for _, s := range summaries {
		if s.class == class {
			out = append(out, s.number)
		}
	}
	return out, nil
}

// ObjectURL returns the REST URL of one object.
func (c *Client) ObjectURL(wiki string, page pageref.Reference, class string, number int) string {
	return c.PageURL(wiki, page) + "/objects/" + pageref.EscapeSegment(class) + "/" + strconv.Itoa(number)
}

// objectProperties reads name/value pairs from an <object> or <objectSummary>.
func objectProperties(el *xmltree.Element) []document.Property {
	var props []document.Property
	for _, p := range el.All("property") {
		name, ok := p.Attr("name")
		if !ok {
			continue
		}
		value, _ := p.ChildText("value")
		props = append(props, document.Property{Name: name, Value: value})
	}
	return props
}

// ObjectProperties returns the properties of one object with their
// scripting extensions.
func (l *Lister) ObjectProperties(ctx context.Context, wiki string, page pageref.Reference, class string, number int) ([]document.Property, error) {
	root, err := l.client.GetXML(ctx, l.client.ObjectURL(wiki, page, class, number))
	if err != nil {
		return nil, err
	}
	return document.WithExtensions(class, objectProperties(root)), nil
}

func (l *Lister) classDefinition(ctx context.Context, wiki string, class pageref.Reference) (*xmltree.Element, error) {
	return l.client.GetXML(ctx, l.client.WikiURL(wiki)+"/classes/"+pageref.EscapeSegment(class.Dotted()))
}

// ClassProperties lists the property names of the class defined by a page.
func (l *Lister) ClassProperties(ctx context.Context, wiki string, class pageref.Reference) ([]string, error) {
	root, err := l.classDefinition(ctx, wiki, class)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, p := range root.All("property") {
		if name, ok := p.Attr("name"); ok {
			names = append(names, name)
		}
	}
	return names, nil
}

// ClassPropertyAttributes lists the attributes of one class property.
func (l *Lister) ClassPropertyAttributes(ctx context.Context, wiki string, class pageref.Reference, property string) ([]grammar.Attribute, error) {
	root, err := l.classDefinition(ctx, wiki, class)
	if err != nil {
		return nil, err
	}
	for _, p := range root.All("property") {
		if name, _ := p.Attr("name"); name != property {
			continue
		}
		var attrs []grammar.Attribute
		for _, a := range p.All("attribute") {
			name, ok := a.Attr("name")
			if !ok {
				continue
			}
			value, _ := a.Attr("value")
			attrs = append(attrs, grammar.Attribute{Name: name, Value: value})
		}
		return attrs, nil
	}
	return nil, wikierr.Missing("property %s of class %s", property, class)
}

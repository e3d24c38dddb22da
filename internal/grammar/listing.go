package grammar

import (
	"context"
	"fmt"
	"strconv"

	"wikifs/internal/document"
	"wikifs/internal/pageref"
	"wikifs/internal/wikierr"
)

// Attribute is one attribute of a class property definition.
type Attribute struct {
	Name  string
	Value string
}

// Lister enumerates the children of remote resources. Implementations talk
// to the wiki; the grammar only decides which call a directory needs.
type Lister interface {
	Wikis(ctx context.Context) ([]string, error)
	// Spaces lists the direct child spaces of parent; nil lists top-level spaces.
	Spaces(ctx context.Context, wiki string, parent []string) ([]string, error)
	Pages(ctx context.Context, wiki string, spaces []string) ([]string, error)
	Classes(ctx context.Context, wiki string) ([]string, error)
	Attachments(ctx context.Context, wiki string, page pageref.Reference) ([]document.AttachmentInfo, error)
	// ObjectClasses lists the distinct classes of the page's objects.
	ObjectClasses(ctx context.Context, wiki string, page pageref.Reference) ([]string, error)
	ObjectNumbers(ctx context.Context, wiki string, page pageref.Reference, class string) ([]int, error)
	// ObjectProperties returns the properties of one object with Ext filled in.
	ObjectProperties(ctx context.Context, wiki string, page pageref.Reference, class string, number int) ([]document.Property, error)
	ClassProperties(ctx context.Context, wiki string, class pageref.Reference) ([]string, error)
	ClassPropertyAttributes(ctx context.Context, wiki string, class pageref.Reference, property string) ([]Attribute, error)
}

// Fixed children of the shapes that do not depend on remote content.
var (
	rootEntries       = []string{"wikis"}
	wikiEntries       = []string{"spaces", "classes"}
	spaceEntries      = []string{"spaces", "pages"}
	pageEntries       = []string{"attachments", "class", "objects", "content", "content.xwiki", "title"}
	classDefEntries   = []string{"properties"}
	objectEntries     = []string{"properties"}
	customDisplayLink = "customDisplay.xwiki"
)

func fixed(entries []string) []string {
	return append([]string(nil), entries...)
}

// List returns the entry names of a directory shape.
func List(ctx context.Context, v VirtualPath, l Lister) ([]string, error) {
	switch v.Kind {
	case Root:
		return fixed(rootEntries), nil
	case WikiList:
		return l.Wikis(ctx)
	case WikiRoot:
		return fixed(wikiEntries), nil
	case ClassList:
		return l.Classes(ctx, v.Wiki)
	case SpaceList:
		return l.Spaces(ctx, v.Wiki, v.Spaces)
	case SpaceContents:
		return fixed(spaceEntries), nil
	case PageList:
		return l.Pages(ctx, v.Wiki, v.Spaces)
	case SinglePage:
		return fixed(pageEntries), nil
	case Attachments:
		atts, err := l.Attachments(ctx, v.Wiki, v.Reference())
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(atts))
		for _, a := range atts {
			names = append(names, a.Name)
		}
		return names, nil
	case ClassDef:
		return fixed(classDefEntries), nil
	case ClassProperties:
		return l.ClassProperties(ctx, v.Wiki, v.Reference())
	case ClassPropertyAttributes:
		attrs, err := l.ClassPropertyAttributes(ctx, v.Wiki, v.Reference(), v.Name)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(attrs)+1)
		for _, a := range attrs {
			names = append(names, a.Name)
			if a.Name == "customDisplay" {
				names = append(names, customDisplayLink)
			}
		}
		return names, nil
	case ObjectsList:
		return l.ObjectClasses(ctx, v.Wiki, v.Reference())
	case ObjectInstances:
		numbers, err := l.ObjectNumbers(ctx, v.Wiki, v.Reference(), v.Class)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(numbers))
		for _, n := range numbers {
			names = append(names, strconv.Itoa(n))
		}
		return names, nil
	case ObjectContent:
		return fixed(objectEntries), nil
	case PropertiesList:
		props, err := l.ObjectProperties(ctx, v.Wiki, v.Reference(), v.Class, v.Number)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(props))
		for _, p := range props {
			if p.Ext != "" {
				names = append(names, p.Name+"."+p.Ext)
			}
			names = append(names, p.Name)
		}
		return names, nil
	}
	return nil, fmt.Errorf("%w: %s is not a directory", wikierr.ErrUnresolvedPath, v.Kind)
}

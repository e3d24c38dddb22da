// Package grammar decomposes virtual filesystem paths into typed wiki
// resource addresses.
//
// The namespace is:
//
//	/wikis/<wiki>/classes/<Class>                       symlink to the class page
//	/wikis/<wiki>/spaces/<S>[/spaces/<S>]*/pages/<P>/
//	    content, content.xwiki, title
//	    attachments/<name>
//	    class/properties/<prop>/<attribute>[.xwiki]
//	    objects/<Class>/<N>/properties/<name>[.<ext>]
//
// Every shape is an entry in one ordered table of anchored patterns; the
// first entry that matches wins.
package grammar

import (
	"path"
	"regexp"
	"strconv"
	"strings"

	"wikifs/internal/pageref"
	"wikifs/internal/wikierr"
)

// Kind names one path shape.
type Kind int

const (
	Root Kind = iota
	WikiList
	WikiRoot
	ClassList
	ClassLink
	SpaceList
	SpaceContents
	PageList
	SinglePage
	PageContent
	PageTitle
	Attachments
	AttachmentFile
	ClassDef
	ClassProperties
	ClassPropertyAttributes
	ClassPropertyField
	ObjectsList
	ObjectInstances
	ObjectContent
	PropertiesList
	PropertyFile
)

var kindNames = [...]string{
	Root:                    "root",
	WikiList:                "wiki-list",
	WikiRoot:                "wiki-root",
	ClassList:               "class-list",
	ClassLink:               "class-link",
	SpaceList:               "space-list",
	SpaceContents:           "space-contents",
	PageList:                "page-list",
	SinglePage:              "page",
	PageContent:             "page-content",
	PageTitle:               "page-title",
	Attachments:             "attachments",
	AttachmentFile:          "attachment",
	ClassDef:                "class-def",
	ClassProperties:         "class-properties",
	ClassPropertyAttributes: "class-property",
	ClassPropertyField:      "class-property-field",
	ObjectsList:             "objects",
	ObjectInstances:         "object-instances",
	ObjectContent:           "object",
	PropertiesList:          "properties",
	PropertyFile:            "property",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// VirtualPath is a resolved path. Only the fields meaningful for Kind are set.
type VirtualPath struct {
	Kind   Kind
	Wiki   string
	Spaces []string
	Page   string
	Class  string // object class or linked class reference
	Number int    // object number
	Name   string // attachment, property or class property name
	Field  string // class property attribute
	Ext    string // extension of a name.ext link
}

// Reference returns the page the path lives under.
func (v VirtualPath) Reference() pageref.Reference {
	return pageref.New(v.Spaces, v.Page)
}

// IsDir reports whether the shape is listed as a directory.
func (v VirtualPath) IsDir() bool {
	switch v.Kind {
	case Root, WikiList, WikiRoot, ClassList, SpaceList, SpaceContents, PageList,
		SinglePage, Attachments, ClassDef, ClassProperties, ClassPropertyAttributes,
		ObjectsList, ObjectInstances, ObjectContent, PropertiesList:
		return true
	}
	return false
}

// IsSymlink reports whether the shape is a symbolic link.
func (v VirtualPath) IsSymlink() bool {
	switch v.Kind {
	case ClassLink:
		return true
	case PageContent, ClassPropertyField, PropertyFile:
		return v.Ext != ""
	}
	return false
}

type rule struct {
	kind    Kind
	pattern *regexp.Regexp
	build   func(v *VirtualPath, m []string) bool
}

const (
	wikiPrefix  = `^/wikis/([^/]+)`
	spaceChain  = `/spaces((?:/[^/]+/spaces)*/[^/]+)`
	pagePrefix  = wikiPrefix + spaceChain + `/pages/([^/]+)`
	numberGroup = `([0-9]+)`
)

// chainSpaces turns "/A/spaces/B" into [A B].
func chainSpaces(chain string) []string {
	segs := strings.Split(strings.TrimPrefix(chain, "/"), "/")
	if len(segs) == 1 && segs[0] == "" {
		return nil
	}
	spaces := make([]string, 0, (len(segs)+1)/2)
	for i := 0; i < len(segs); i += 2 {
		spaces = append(spaces, segs[i])
	}
	return spaces
}

// splitExt splits "name.ext" at the last dot. A name without a dot, or
// with an empty base or extension, has no extension.
func splitExt(name string) (string, string) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 || i == len(name)-1 {
		return name, ""
	}
	return name[:i], name[i+1:]
}

func setPage(v *VirtualPath, m []string) {
	v.Wiki = m[1]
	v.Spaces = chainSpaces(m[2])
	v.Page = m[3]
}

func setObject(v *VirtualPath, m []string) bool {
	setPage(v, m)
	v.Class = m[4]
	n, err := strconv.Atoi(m[5])
	if err != nil {
		return false
	}
	v.Number = n
	return true
}

var rules = []rule{
	{Root, regexp.MustCompile(`^/$`), func(*VirtualPath, []string) bool { return true }},
	{WikiList, regexp.MustCompile(`^/wikis$`), func(*VirtualPath, []string) bool { return true }},
	{WikiRoot, regexp.MustCompile(wikiPrefix + `$`), func(v *VirtualPath, m []string) bool {
		v.Wiki = m[1]
		return true
	}},
	{ClassList, regexp.MustCompile(wikiPrefix + `/classes$`), func(v *VirtualPath, m []string) bool {
		v.Wiki = m[1]
		return true
	}},
	{ClassLink, regexp.MustCompile(wikiPrefix + `/classes/([^/]+)$`), func(v *VirtualPath, m []string) bool {
		v.Wiki, v.Class = m[1], m[2]
		return true
	}},
	{SpaceList, regexp.MustCompile(wikiPrefix + `/spaces((?:/[^/]+/spaces)*)$`), func(v *VirtualPath, m []string) bool {
		v.Wiki = m[1]
		// "/A/spaces/B/spaces" lists the children of A.B
		v.Spaces = chainSpaces(strings.TrimSuffix(m[2], "/spaces"))
		return true
	}},
	{SpaceContents, regexp.MustCompile(wikiPrefix + spaceChain + `$`), func(v *VirtualPath, m []string) bool {
		v.Wiki = m[1]
		v.Spaces = chainSpaces(m[2])
		return true
	}},
	{PageList, regexp.MustCompile(wikiPrefix + spaceChain + `/pages$`), func(v *VirtualPath, m []string) bool {
		v.Wiki = m[1]
		v.Spaces = chainSpaces(m[2])
		return true
	}},
	{SinglePage, regexp.MustCompile(pagePrefix + `$`), func(v *VirtualPath, m []string) bool {
		setPage(v, m)
		return true
	}},
	{PageContent, regexp.MustCompile(pagePrefix + `/content(?:\.([^/]+))?$`), func(v *VirtualPath, m []string) bool {
		setPage(v, m)
		v.Ext = m[4]
		return true
	}},
	{PageTitle, regexp.MustCompile(pagePrefix + `/title$`), func(v *VirtualPath, m []string) bool {
		setPage(v, m)
		return true
	}},
	{Attachments, regexp.MustCompile(pagePrefix + `/attachments$`), func(v *VirtualPath, m []string) bool {
		setPage(v, m)
		return true
	}},
	{AttachmentFile, regexp.MustCompile(pagePrefix + `/attachments/([^/]+)$`), func(v *VirtualPath, m []string) bool {
		setPage(v, m)
		v.Name = m[4]
		return true
	}},
	{ClassDef, regexp.MustCompile(pagePrefix + `/class$`), func(v *VirtualPath, m []string) bool {
		setPage(v, m)
		return true
	}},
	{ClassProperties, regexp.MustCompile(pagePrefix + `/class/properties$`), func(v *VirtualPath, m []string) bool {
		setPage(v, m)
		return true
	}},
	{ClassPropertyAttributes, regexp.MustCompile(pagePrefix + `/class/properties/([^/]+)$`), func(v *VirtualPath, m []string) bool {
		setPage(v, m)
		v.Name = m[4]
		return true
	}},
	{ClassPropertyField, regexp.MustCompile(pagePrefix + `/class/properties/([^/]+)/([^/]+)$`), func(v *VirtualPath, m []string) bool {
		setPage(v, m)
		v.Name = m[4]
		v.Field, v.Ext = splitExt(m[5])
		return true
	}},
	{ObjectsList, regexp.MustCompile(pagePrefix + `/objects$`), func(v *VirtualPath, m []string) bool {
		setPage(v, m)
		return true
	}},
	{ObjectInstances, regexp.MustCompile(pagePrefix + `/objects/([^/]+)$`), func(v *VirtualPath, m []string) bool {
		setPage(v, m)
		v.Class = m[4]
		return true
	}},
	{ObjectContent, regexp.MustCompile(pagePrefix + `/objects/([^/]+)/` + numberGroup + `$`), setObject},
	{PropertiesList, regexp.MustCompile(pagePrefix + `/objects/([^/]+)/` + numberGroup + `/properties$`), setObject},
	{PropertyFile, regexp.MustCompile(pagePrefix + `/objects/([^/]+)/` + numberGroup + `/properties/([^/]+)$`), func(v *VirtualPath, m []string) bool {
		if !setObject(v, m) {
			return false
		}
		v.Name, v.Ext = splitExt(m[6])
		return true
	}},
}

// Clean normalizes p to an absolute slash path without a trailing slash.
func Clean(p string) string {
	return path.Clean("/" + p)
}

// Resolve maps an absolute virtual path to its shape.
func Resolve(p string) (VirtualPath, error) {
	p = Clean(p)
	for _, r := range rules {
		m := r.pattern.FindStringSubmatch(p)
		if m == nil {
			continue
		}
		v := VirtualPath{Kind: r.kind}
		if r.build(&v, m) {
			return v, nil
		}
	}
	return VirtualPath{}, wikierr.Unresolved(p)
}

// ResolveMirror resolves a path relative to a mirrored directory, such as
// "spaces/Main/pages/WebHome/content", as if it lived under wiki.
func ResolveMirror(wiki, rel string) (VirtualPath, error) {
	rel = strings.TrimPrefix(path.Clean("/"+rel), "/")
	if !strings.HasPrefix(rel, "spaces/") {
		return VirtualPath{}, wikierr.Unresolved(rel)
	}
	return Resolve("/wikis/" + wiki + "/" + rel)
}

// ClassLinkTarget returns the relative target of a class link: the class
// directory of the page defining class, seen from /wikis/<wiki>/classes.
func ClassLinkTarget(class string) (string, error) {
	ref, err := pageref.ParseDotted(class)
	if err != nil {
		return "", err
	}
	return ".." + ref.DirPath() + "/class", nil
}

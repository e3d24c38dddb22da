// Package pageref converts wiki page references between their dotted
// notation and the REST, mirrored-directory and maven-repository paths
// that address the same page.
package pageref

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"strings"
)

// ErrMalformed is returned when a string cannot be decoded into a Reference.
var ErrMalformed = errors.New("malformed page reference")

// Reference identifies a page by the chain of spaces that contain it and
// its own name. Names are stored unescaped.
type Reference struct {
	Spaces []string
	Page   string
}

// New builds a Reference from a space chain and a page name.
func New(spaces []string, page string) Reference {
	return Reference{Spaces: append([]string(nil), spaces...), Page: page}
}

// EscapeName escapes the separator and the escape character of a single name.
func EscapeName(name string) string {
	if !strings.ContainsAny(name, `.\`) {
		return name
	}
	var b strings.Builder
	for _, r := range name {
		if r == '.' || r == '\\' {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// UnescapeName reverses EscapeName.
func UnescapeName(name string) string {
	if !strings.Contains(name, `\`) {
		return name
	}
	var b strings.Builder
	escaped := false
	for _, r := range name {
		if r == '\\' && !escaped {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	if escaped {
		b.WriteByte('\\')
	}
	return b.String()
}

// SplitDotted splits s on dots that are not preceded by a backslash and
// unescapes every part.
func SplitDotted(s string) []string {
	var parts []string
	var b strings.Builder
	escaped := false
	for _, r := range s {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '.':
			parts = append(parts, b.String())
			b.Reset()
		default:
			b.WriteRune(r)
		}
	}
	if escaped {
		b.WriteByte('\\')
	}
	return append(parts, b.String())
}

// ParseDotted decodes "Space.Sub.Page" notation. A literal dot inside a name
// is written as "\.".
func ParseDotted(s string) (Reference, error) {
	if s == "" {
		return Reference{}, fmt.Errorf("%w: empty reference", ErrMalformed)
	}
	parts := SplitDotted(s)
	return Reference{Spaces: parts[:len(parts)-1], Page: parts[len(parts)-1]}, nil
}

// JoinDotted escapes names and joins them with dots.
func JoinDotted(names []string) string {
	escaped := make([]string, len(names))
	for i, name := range names {
		escaped[i] = EscapeName(name)
	}
	return strings.Join(escaped, ".")
}

// Dotted returns the reference in dotted notation.
func (r Reference) Dotted() string {
	return JoinDotted(append(append([]string(nil), r.Spaces...), r.Page))
}

// SpaceDotted returns the dotted notation of the space chain alone.
func (r Reference) SpaceDotted() string {
	return JoinDotted(r.Spaces)
}

func (r Reference) String() string {
	return r.Dotted()
}

// Equal reports whether both references address the same page.
func (r Reference) Equal(o Reference) bool {
	if r.Page != o.Page || len(r.Spaces) != len(o.Spaces) {
		return false
	}
	for i := range r.Spaces {
		if r.Spaces[i] != o.Spaces[i] {
			return false
		}
	}
	return true
}

// EscapeSegment URL-encodes one REST path segment, spaces as %20.
func EscapeSegment(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// SpacesRESTPath returns "/spaces/<enc>/spaces/<enc>..." for a space chain.
func SpacesRESTPath(spaces []string) string {
	var b strings.Builder
	for _, space := range spaces {
		b.WriteString("/spaces/")
		b.WriteString(EscapeSegment(space))
	}
	return b.String()
}

// RESTPath returns the REST resource path of the page, relative to a wiki.
func (r Reference) RESTPath() string {
	return SpacesRESTPath(r.Spaces) + "/pages/" + EscapeSegment(r.Page)
}

// DirPath returns the mirrored-directory path of the page, names unencoded.
func (r Reference) DirPath() string {
	var b strings.Builder
	for _, space := range r.Spaces {
		b.WriteString("/spaces/")
		b.WriteString(space)
	}
	b.WriteString("/pages/")
	b.WriteString(r.Page)
	return b.String()
}

// MavenPath returns the path of the page's XML file inside a maven
// resources directory, using forward slashes.
func (r Reference) MavenPath() string {
	return path.Join(append(append([]string(nil), r.Spaces...), r.Page+".xml")...)
}

// ParseRESTPath decodes a path produced by RESTPath.
func ParseRESTPath(p string) (Reference, error) {
	return parseSpacesPages(p, func(s string) (string, error) {
		return url.PathUnescape(s)
	})
}

// ParseDirPath decodes a path produced by DirPath.
func ParseDirPath(p string) (Reference, error) {
	return parseSpacesPages(p, func(s string) (string, error) { return s, nil })
}

func parseSpacesPages(p string, decode func(string) (string, error)) (Reference, error) {
	segs := strings.Split(strings.Trim(p, "/"), "/")
	if len(segs) < 2 || len(segs)%2 != 0 {
		return Reference{}, fmt.Errorf("%w: %q", ErrMalformed, p)
	}

	var ref Reference
	for i := 0; i < len(segs); i += 2 {
		name, err := decode(segs[i+1])
		if err != nil {
			return Reference{}, fmt.Errorf("%w: %q: %v", ErrMalformed, p, err)
		}
		last := i == len(segs)-2
		switch {
		case !last && segs[i] == "spaces":
			ref.Spaces = append(ref.Spaces, name)
		case last && segs[i] == "pages":
			ref.Page = name
		default:
			return Reference{}, fmt.Errorf("%w: %q", ErrMalformed, p)
		}
	}
	return ref, nil
}

// ParseMavenPath decodes a path produced by MavenPath.
func ParseMavenPath(p string) (Reference, error) {
	p = strings.Trim(path.Clean("/"+p), "/")
	if !strings.HasSuffix(p, ".xml") {
		return Reference{}, fmt.Errorf("%w: %q is not an xml file", ErrMalformed, p)
	}
	segs := strings.Split(strings.TrimSuffix(p, ".xml"), "/")
	page := segs[len(segs)-1]
	if page == "" {
		return Reference{}, fmt.Errorf("%w: %q", ErrMalformed, p)
	}
	return Reference{Spaces: segs[:len(segs)-1], Page: page}, nil
}

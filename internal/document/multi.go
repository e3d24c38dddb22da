package document

import (
	"context"
	"errors"
	"fmt"

	"wikifs/internal/pageref"
	"wikifs/internal/wikierr"
)

// Candidate is one backend's answer to a read.
type Candidate struct {
	Source string
	Value  string
}

// Resolver picks one of several differing candidates for a value. It
// returns the index of the winner.
type Resolver interface {
	Resolve(ctx context.Context, what string, candidates []Candidate) (int, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, what string, candidates []Candidate) (int, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, what string, candidates []Candidate) (int, error) {
	return f(ctx, what, candidates)
}

// Backend is a store taking part in a Multi with its roles.
type Backend struct {
	Name  string
	Store Store
	Read  bool
	Write bool
}

// Multi reads from every Read backend and writes to every Write backend.
// When read backends disagree the Resolver decides; without one the read
// fails with wikierr.ErrSourceConflict.
type Multi struct {
	Backends []Backend
	Resolver Resolver
}

type openedDoc struct {
	name string
	doc  Document
}

// Open opens the page on every backend. Backends where the page is missing
// are left out; the open fails only when no backend has it.
func (m *Multi) Open(ctx context.Context, wiki string, ref pageref.Reference) (Document, error) {
	md := &multiDoc{resolver: m.Resolver}
	var firstErr error
	for _, b := range m.Backends {
		doc, err := b.Store.Open(ctx, wiki, ref)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("%s: %w", b.Name, err)
			}
			continue
		}
		od := openedDoc{name: b.Name, doc: doc}
		if b.Read {
			md.inputs = append(md.inputs, od)
		}
		if b.Write {
			md.outputs = append(md.outputs, od)
		}
	}
	if len(md.inputs) == 0 && len(md.outputs) == 0 {
		if firstErr == nil {
			firstErr = fmt.Errorf("%w: no backend configured for %s", wikierr.ErrDocumentNotFound, ref)
		}
		return nil, firstErr
	}
	return md, nil
}

type multiDoc struct {
	inputs   []openedDoc
	outputs  []openedDoc
	resolver Resolver
}

func (d *multiDoc) read(ctx context.Context, what string, get func(Document) (string, error)) (string, error) {
	var candidates []Candidate
	var firstErr error
	for _, in := range d.inputs {
		v, err := get(in.doc)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		candidates = append(candidates, Candidate{Source: in.name, Value: v})
	}

	switch {
	case len(candidates) == 0 && firstErr != nil:
		return "", firstErr
	case len(candidates) == 0:
		return "", wikierr.Missing("%s: no readable backend", what)
	}

	agreed := true
	for _, c := range candidates[1:] {
		if c.Value != candidates[0].Value {
			agreed = false
			break
		}
	}
	if agreed {
		return candidates[0].Value, nil
	}

	if d.resolver == nil {
		return "", fmt.Errorf("%w: %s", wikierr.ErrSourceConflict, what)
	}
	i, err := d.resolver.Resolve(ctx, what, candidates)
	if err != nil {
		return "", err
	}
	if i < 0 || i >= len(candidates) {
		return "", fmt.Errorf("%w: %s: resolver returned %d", wikierr.ErrSourceConflict, what, i)
	}
	return candidates[i].Value, nil
}

func (d *multiDoc) write(apply func(Document) error) error {
	if len(d.outputs) == 0 {
		return wikierr.ErrReadOnly
	}
	var errs []error
	for _, out := range d.outputs {
		if err := apply(out.doc); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", out.name, err))
		}
	}
	return errors.Join(errs...)
}

func (d *multiDoc) Content(ctx context.Context) (string, error) {
	return d.read(ctx, "content", func(doc Document) (string, error) { return doc.Content(ctx) })
}

func (d *multiDoc) SetContent(ctx context.Context, content string) error {
	return d.write(func(doc Document) error { return doc.SetContent(ctx, content) })
}

func (d *multiDoc) Title(ctx context.Context) (string, error) {
	return d.read(ctx, "title", func(doc Document) (string, error) { return doc.Title(ctx) })
}

func (d *multiDoc) SetTitle(ctx context.Context, title string) error {
	return d.write(func(doc Document) error { return doc.SetTitle(ctx, title) })
}

// Objects comes from the first input that can list them.
func (d *multiDoc) Objects(ctx context.Context) ([]ObjectInfo, error) {
	var firstErr error
	for _, in := range d.inputs {
		objs, err := in.doc.Objects(ctx)
		if err == nil {
			return objs, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = wikierr.Missing("objects: no readable backend")
	}
	return nil, firstErr
}

func (d *multiDoc) Value(ctx context.Context, class string, number int, property string) (string, error) {
	what := fmt.Sprintf("%s[%d].%s", class, number, property)
	return d.read(ctx, what, func(doc Document) (string, error) {
		return doc.Value(ctx, class, number, property)
	})
}

func (d *multiDoc) SetValue(ctx context.Context, class string, number int, property, value string) error {
	return d.write(func(doc Document) error { return doc.SetValue(ctx, class, number, property, value) })
}

func (d *multiDoc) Attachments(ctx context.Context) ([]AttachmentInfo, error) {
	var firstErr error
	for _, in := range d.inputs {
		list, err := in.doc.Attachments(ctx)
		if err == nil {
			return list, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = wikierr.Missing("attachments: no readable backend")
	}
	return nil, firstErr
}

func (d *multiDoc) Attachment(ctx context.Context, name string) ([]byte, error) {
	v, err := d.read(ctx, "attachment "+name, func(doc Document) (string, error) {
		data, err := doc.Attachment(ctx, name)
		return string(data), err
	})
	if err != nil {
		return nil, err
	}
	return []byte(v), nil
}

func (d *multiDoc) SetAttachment(ctx context.Context, name string, content []byte) error {
	return d.write(func(doc Document) error { return doc.SetAttachment(ctx, name, content) })
}

func (d *multiDoc) Save(ctx context.Context) error {
	return d.write(func(doc Document) error { return doc.Save(ctx) })
}

// Package advisory fetches and parses the vulnerability documents that query
// results point at.
//
// Query rows carry an advisory filename which may include a directory-style
// prefix; the fetcher strips it to a bare name before resolving the object.
// Documents follow the OSV shape: `id` and `details` are required, everything
// else is optional.
package advisory

import (
	"context"
	"fmt"
	"io"
	"path"

	"github.com/hupe1980/vulnquery/codec"
	"github.com/hupe1980/vulnquery/objstore"
	"github.com/hupe1980/vulnquery/severity"
)

// Severity is one score entry of a document.
type Severity struct {
	// Type identifies the scoring system, e.g. "CVSS_V3".
	Type string `json:"type"`
	// Score is either a decimal score or a CVSS vector string.
	Score string `json:"score"`
}

// Reference is an external link attached to a document.
type Reference struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// Package identifies an affected package.
type Package struct {
	Ecosystem string `json:"ecosystem"`
	Name      string `json:"name"`
}

// Event is a single version event inside a range.
type Event struct {
	Introduced string `json:"introduced,omitempty"`
	Fixed      string `json:"fixed,omitempty"`
}

// Range describes affected version ranges.
type Range struct {
	Type   string  `json:"type"`
	Events []Event `json:"events,omitempty"`
}

// Affected describes one affected package.
type Affected struct {
	Package  Package  `json:"package"`
	Ranges   []Range  `json:"ranges,omitempty"`
	Versions []string `json:"versions,omitempty"`
}

// Document is a parsed advisory.
type Document struct {
	ID         string      `json:"id"`
	Details    string      `json:"details"`
	Summary    string      `json:"summary,omitempty"`
	Severity   []Severity  `json:"severity,omitempty"`
	Affected   []Affected  `json:"affected,omitempty"`
	References []Reference `json:"references,omitempty"`
	Published  string      `json:"published,omitempty"`
	Modified   string      `json:"modified,omitempty"`
}

// SeverityLabel derives a display bucket from the document's severity
// entries. Vector-form scores take precedence over bare numbers; a document
// without a usable score is Unknown.
func (d *Document) SeverityLabel() severity.Label {
	for _, s := range d.Severity {
		if label := severity.InterpretVector(s.Score); label != severity.Unknown {
			return label
		}
	}
	for _, s := range d.Severity {
		if label := severity.InterpretString(s.Score); label != severity.Unknown {
			return label
		}
	}
	return severity.Unknown
}

// Options configures a Fetcher.
type Options struct {
	// Prefix is prepended to the bare document name, e.g. "advisories/".
	Prefix string

	// Codec decodes documents. Nil uses codec.Default.
	Codec codec.Codec
}

// Fetcher loads advisory documents from an object store.
type Fetcher struct {
	store  objstore.Store
	prefix string
	codec  codec.Codec
}

// NewFetcher creates a Fetcher over the given store.
func NewFetcher(store objstore.Store, optFns ...func(o *Options)) *Fetcher {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	c := opts.Codec
	if c == nil {
		c = codec.Default
	}

	return &Fetcher{
		store:  store,
		prefix: opts.Prefix,
		codec:  c,
	}
}

// Fetch loads and parses the document for filename. Any directory-style
// prefix on filename is stripped to a bare name first.
func (f *Fetcher) Fetch(ctx context.Context, filename string) (*Document, error) {
	name := path.Base(filename)
	if name == "." || name == "/" || name == "" {
		return nil, fmt.Errorf("advisory: invalid filename %q", filename)
	}
	key := path.Join(f.prefix, name)

	rc, err := f.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("advisory: fetch %q: %w", key, err)
	}
	defer func() { _ = rc.Close() }()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("advisory: read %q: %w", key, err)
	}

	var doc Document
	if err := f.codec.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("advisory: parse %q: %w", key, err)
	}

	if doc.ID == "" {
		return nil, fmt.Errorf("advisory: document %q is missing required field \"id\"", name)
	}
	if doc.Details == "" {
		return nil, fmt.Errorf("advisory: document %q is missing required field \"details\"", name)
	}

	return &doc, nil
}

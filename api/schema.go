package api

// Site represents the root configuration of a content site.
// It describes the collections the content store exposes and how
// entries in each collection are addressed.
type Site struct {
	// Version of the site schema.
	Version string `json:"version"`
	// Collections known to the site, in declaration order.
	Collections []Collection `json:"collections,omitempty"`
}

// Collection holds the metadata for one content collection.
type Collection struct {
	// Name of the collection (e.g. "blog", "authors").
	Name string `json:"name"`
	// Pages reports whether entries of this collection get their own page.
	Pages bool `json:"pages"`
	// URLPrefix is the path segment pages are published under.
	// Defaults to the collection name.
	URLPrefix string `json:"url_prefix,omitempty"`
	// TitleField names the data field holding a human-readable title.
	// Defaults to "title".
	TitleField string `json:"title_field,omitempty"`
}

// DefaultTitleField is used when a collection does not name one.
const DefaultTitleField = "title"

// Lookup returns the metadata for the named collection.
// Collections missing from the site get zero-value metadata with the name set,
// so callers always have something to hand to a page policy.
func (s *Site) Lookup(name string) Collection {
	if s != nil {
		for _, c := range s.Collections {
			if c.Name == name {
				return c
			}
		}
	}
	return Collection{Name: name}
}

// Title returns the title field for the collection.
func (c Collection) Title() string {
	if c.TitleField == "" {
		return DefaultTitleField
	}
	return c.TitleField
}

// Prefix returns the URL prefix for the collection.
func (c Collection) Prefix() string {
	if c.URLPrefix == "" {
		return c.Name
	}
	return c.URLPrefix
}

// Package document defines the synchronized data model: a directory of
// software entries grouped into categories, stamped with a modification
// timestamp that drives conflict resolution.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
)

var (
	ErrInvalidDocument = errors.New("invalid document")
	ErrDuplicateID     = errors.New("duplicate id")
)

// SoftwareEntry is a single software item inside a category.
type SoftwareEntry struct {
	ID           string   `json:"id" validate:"required"`
	Name         string   `json:"name" validate:"required"`
	Website      string   `json:"website,omitempty" validate:"omitempty,url"`
	IconURL      string   `json:"iconUrl,omitempty"`
	Description  string   `json:"description,omitempty"`
	DownloadURLs []string `json:"downloadUrls" validate:"dive,url"`
	BlogURLs     []string `json:"blogUrls" validate:"dive,url"`
	Sort         int      `json:"sort"`
}

// Category groups software entries. Sort defines display order; array
// position is arbitrary storage order.
type Category struct {
	ID       string          `json:"id" validate:"required"`
	Name     string          `json:"name" validate:"required"`
	Sort     int             `json:"sort"`
	Software []SoftwareEntry `json:"software" validate:"dive"`
}

// Document is the root synchronized entity. UpdatedAt is milliseconds since
// epoch and is the sole conflict-resolution signal.
type Document struct {
	Categories []Category `json:"categories" validate:"dive"`
	UpdatedAt  int64      `json:"updatedAt,omitempty"`
}

var validate = validator.New()

// Now returns the current time as a document timestamp.
func Now() int64 {
	return time.Now().UnixMilli()
}

// Clone returns a deep copy. Callers mutate clones, never shared state.
func (d *Document) Clone() *Document {
	out := &Document{
		UpdatedAt:  d.UpdatedAt,
		Categories: make([]Category, len(d.Categories)),
	}
	for i, c := range d.Categories {
		cc := c
		cc.Software = make([]SoftwareEntry, len(c.Software))
		for j, s := range c.Software {
			ss := s
			ss.DownloadURLs = append([]string(nil), s.DownloadURLs...)
			ss.BlogURLs = append([]string(nil), s.BlogURLs...)
			cc.Software[j] = ss
		}
		out.Categories[i] = cc
	}
	return out
}

// Validate checks structural constraints and id uniqueness. Category ids and
// software ids live in separate namespaces; each must be unique for the
// lifetime of the document.
func (d *Document) Validate() error {
	if err := validate.Struct(d); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}

	catIDs := make(map[string]bool, len(d.Categories))
	softIDs := make(map[string]bool)
	for _, c := range d.Categories {
		if catIDs[c.ID] {
			return fmt.Errorf("%w: category %q", ErrDuplicateID, c.ID)
		}
		catIDs[c.ID] = true
		for _, s := range c.Software {
			if softIDs[s.ID] {
				return fmt.Errorf("%w: software %q", ErrDuplicateID, s.ID)
			}
			softIDs[s.ID] = true
		}
	}
	return nil
}

// Normalize strips empty link strings left behind by form input so that
// validation sees only real URLs.
func (d *Document) Normalize() {
	for i := range d.Categories {
		for j := range d.Categories[i].Software {
			s := &d.Categories[i].Software[j]
			s.DownloadURLs = dropEmpty(s.DownloadURLs)
			s.BlogURLs = dropEmpty(s.BlogURLs)
		}
	}
}

func dropEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// SortedCategories returns categories ordered by sort value, ties broken by
// stable array order.
func (d *Document) SortedCategories() []Category {
	out := append([]Category(nil), d.Categories...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Sort < out[j].Sort
	})
	return out
}

// SortedSoftware returns a category's entries ordered by sort value.
func (c *Category) SortedSoftware() []SoftwareEntry {
	out := append([]SoftwareEntry(nil), c.Software...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Sort < out[j].Sort
	})
	return out
}

// FindCategory returns the category with the given id, or nil.
func (d *Document) FindCategory(id string) *Category {
	for i := range d.Categories {
		if d.Categories[i].ID == id {
			return &d.Categories[i]
		}
	}
	return nil
}

// EntryCount returns the total number of software entries.
func (d *Document) EntryCount() int {
	n := 0
	for _, c := range d.Categories {
		n += len(c.Software)
	}
	return n
}

// Parse decodes a document from JSON bytes.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidDocument, err)
	}
	return &doc, nil
}

// Encode serializes a document to JSON bytes. The encoding is lossless for
// the full schema including nested software order and sort values.
func (d *Document) Encode() ([]byte, error) {
	return json.Marshal(d)
}

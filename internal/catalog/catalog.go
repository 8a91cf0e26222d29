// Package catalog holds the single LLND content definition shared by the
// standalone quiz, the guest quiz and the enrollment wizard.
package catalog

import (
	_ "embed"
	"fmt"
	"strings"
	"sync"

	"llnd-portal/internal/domain"

	"github.com/goccy/go-json"
	"github.com/hashicorp/go-multierror"
	"github.com/xeipuuv/gojsonschema"
	"github.com/zeebo/xxh3"
)

//go:embed llnd.json
var defaultRaw []byte

//go:embed schema.json
var schemaRaw []byte

var (
	defaultOnce    sync.Once
	defaultCatalog domain.Catalog
	defaultErr     error
)

// Default returns the embedded catalog. It panics if the embedded document is invalid.
func Default() domain.Catalog {
	defaultOnce.Do(func() {
		defaultCatalog, defaultErr = Parse(defaultRaw)
	})
	if defaultErr != nil {
		panic(fmt.Sprintf("embedded catalog: %v", defaultErr))
	}
	return defaultCatalog
}

// Raw returns a copy of the embedded catalog document.
func Raw() []byte {
	out := make([]byte, len(defaultRaw))
	copy(out, defaultRaw)
	return out
}

// Fingerprint identifies a catalog document independently of its declared version.
func Fingerprint(raw []byte) string {
	return fmt.Sprintf("%016x", xxh3.Hash(raw))
}

// Validate checks raw against the catalog JSON schema.
func Validate(raw []byte) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schemaRaw),
		gojsonschema.NewBytesLoader(raw),
	)
	if err != nil {
		return fmt.Errorf("validate catalog: %w", err)
	}
	if result.Valid() {
		return nil
	}
	var merr *multierror.Error
	for _, desc := range result.Errors() {
		merr = multierror.Append(merr, fmt.Errorf("%s", desc.String()))
	}
	return merr.ErrorOrNil()
}

// Parse validates raw and decodes it into a catalog with its fingerprint set.
func Parse(raw []byte) (domain.Catalog, error) {
	if err := Validate(raw); err != nil {
		return domain.Catalog{}, err
	}
	var c domain.Catalog
	if err := json.Unmarshal(raw, &c); err != nil {
		return domain.Catalog{}, fmt.Errorf("unmarshal catalog: %w", err)
	}
	if err := normalize(&c); err != nil {
		return domain.Catalog{}, err
	}
	c.Fingerprint = Fingerprint(raw)
	return c, nil
}

// normalize fills derived correct-answer specs and rejects inconsistent content.
func normalize(c *domain.Catalog) error {
	var merr *multierror.Error
	seenSections := make(map[string]struct{}, len(c.Sections))
	seenQuestions := make(map[string]struct{})
	for si := range c.Sections {
		s := &c.Sections[si]
		if _, dup := seenSections[s.ID]; dup {
			merr = multierror.Append(merr, fmt.Errorf("duplicate section %q", s.ID))
		}
		seenSections[s.ID] = struct{}{}

		for qi := range s.Questions {
			q := &s.Questions[qi]
			if _, dup := seenQuestions[q.ID]; dup {
				merr = multierror.Append(merr, fmt.Errorf("duplicate question %q", q.ID))
			}
			seenQuestions[q.ID] = struct{}{}

			switch {
			case q.Kind == domain.KindDragDrop:
				q.Correct = domain.DragDropCompleted
			case q.MultiPart():
				parts := make([]string, len(q.Parts))
				for i, p := range q.Parts {
					parts[i] = p.Correct
				}
				joined := strings.Join(parts, domain.PartSeparator)
				if q.Correct != "" && q.Correct != joined {
					merr = multierror.Append(merr, fmt.Errorf("question %q: correct spec %q does not match parts %q", q.ID, q.Correct, joined))
				}
				q.Correct = joined
			case q.Kind == domain.KindDropdown:
				merr = multierror.Append(merr, fmt.Errorf("question %q: dropdown question has no parts", q.ID))
			case strings.TrimSpace(q.Correct) == "":
				merr = multierror.Append(merr, fmt.Errorf("question %q: missing correct answer", q.ID))
			}
		}
	}
	return merr.ErrorOrNil()
}

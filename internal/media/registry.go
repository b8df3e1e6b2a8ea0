package media

import (
	"embed"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"gopkg.in/yaml.v3"

	"medialib/internal/domain/models/library"
)

//go:embed config/*.yaml
var configFiles embed.FS

// Registry classifies uploads by declared MIME type, then file extension,
// then content sniffing. It is read-only after construction.
type Registry struct {
	rules []KindRule
	exact map[string]int // mime type -> rule index
	ext   map[string]int // extension -> rule index
}

// NewRegistry creates a registry from the embedded classification table
func NewRegistry() (*Registry, error) {
	data, err := configFiles.ReadFile("config/media_types.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read media_types.yaml: %w", err)
	}
	return NewRegistryFromYAML(data)
}

// NewRegistryFromYAML creates a registry from a classification table
func NewRegistryFromYAML(data []byte) (*Registry, error) {
	var t table
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal media table: %w", err)
	}

	r := &Registry{
		exact: make(map[string]int),
		ext:   make(map[string]int),
	}
	for i, rule := range t.Kinds {
		if rule.Kind == "" {
			return nil, fmt.Errorf("media rule %d: kind is required", i)
		}
		if !rule.Category.Valid() {
			return nil, fmt.Errorf("media rule %q: unknown category %q", rule.Kind, rule.Category)
		}
		for _, m := range rule.MIMETypes {
			m = strings.ToLower(m)
			if _, dup := r.exact[m]; !dup {
				r.exact[m] = i
			}
		}
		for e := range rule.Extensions {
			e = strings.ToLower(e)
			if _, dup := r.ext[e]; !dup {
				r.ext[e] = i
			}
		}
		r.rules = append(r.rules, rule)
	}
	return r, nil
}

// Classify determines the media kind of an upload. head is the first bytes
// of the payload and is only consulted when neither the declared type nor the
// extension is conclusive.
func (r *Registry) Classify(contentType, fileName string, head []byte) library.Classification {
	declared := normalizeMIME(contentType)
	if declared != "" && declared != octetStream {
		if c, ok := r.byMIME(declared); ok {
			return c
		}
	}

	ext := strings.ToLower(filepath.Ext(fileName))
	if idx, ok := r.ext[ext]; ok {
		rule := r.rules[idx]
		return r.classification(rule, rule.Extensions[ext])
	}

	if len(head) > 0 {
		for m := mimetype.Detect(head); m != nil; m = m.Parent() {
			if c, ok := r.byMIME(normalizeMIME(m.String())); ok {
				return c
			}
		}
	}

	if declared == "" {
		declared = octetStream
	}
	return library.Classification{
		Kind:        library.KindOther,
		Category:    library.CategoryRaw,
		ContentType: declared,
	}
}

// Rules returns the loaded rules in match order
func (r *Registry) Rules() []KindRule {
	rules := make([]KindRule, len(r.rules))
	copy(rules, r.rules)
	return rules
}

// byMIME matches an exact type first, then prefixes in rule order
func (r *Registry) byMIME(m string) (library.Classification, bool) {
	if idx, ok := r.exact[m]; ok {
		return r.classification(r.rules[idx], m), true
	}
	for _, rule := range r.rules {
		for _, prefix := range rule.MIMEPrefixes {
			if strings.HasPrefix(m, strings.ToLower(prefix)) {
				return r.classification(rule, m), true
			}
		}
	}
	return library.Classification{}, false
}

func (r *Registry) classification(rule KindRule, contentType string) library.Classification {
	return library.Classification{
		Kind:        rule.Kind,
		Category:    rule.Category,
		ContentType: contentType,
		Thumbnail:   rule.Thumbnail,
	}
}

// normalizeMIME lowercases a MIME type and strips its parameters
func normalizeMIME(contentType string) string {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(contentType); err == nil {
		return strings.ToLower(parsed)
	}
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = contentType[:i]
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

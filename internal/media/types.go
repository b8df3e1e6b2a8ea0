package media

import "medialib/internal/domain/models/library"

// KindRule describes how one media kind is recognized and stored
type KindRule struct {
	Kind         library.MediaKind    `yaml:"kind"`
	Category     library.BlobCategory `yaml:"category"`
	Thumbnail    bool                 `yaml:"thumbnail"`
	MIMETypes    []string             `yaml:"mime_types"`
	MIMEPrefixes []string             `yaml:"mime_prefixes"`
	Extensions   map[string]string    `yaml:"extensions"` // ".png" -> "image/png"
}

// table is the root of media_types.yaml
type table struct {
	Kinds []KindRule `yaml:"kinds"`
}

// Fallback used when nothing matches
const octetStream = "application/octet-stream"

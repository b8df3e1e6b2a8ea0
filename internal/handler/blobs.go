package handler

import (
	"net/http"
	"os"
	"strings"
)

// BlobFileServer serves stored blobs from dir under prefix.
// Directory requests answer 404 instead of a listing.
func BlobFileServer(prefix, dir string) http.Handler {
	fs := http.FileServer(noListingFS{http.Dir(dir)})
	return http.StripPrefix(strings.TrimSuffix(prefix, "/"), fs)
}

type noListingFS struct {
	fs http.FileSystem
}

func (n noListingFS) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if stat.IsDir() {
		_ = f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}

package worker

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
)

// Asset describes the source handed over by the harness.
type Asset struct {
	// Path is a local readable copy of the source.
	Path string `json:"path"`
	// URL is a publicly fetchable reference to the source.
	URL string `json:"url"`
}

type source struct {
	data        []byte
	name        string
	contentType string
}

// loadSource validates the source and, when readBytes is set, reads it fully
// so the file handle is released before any classifier call starts.
func loadSource(asset Asset, readBytes bool) (source, error) {
	if asset.Path == "" {
		if asset.URL == "" {
			return source{}, &SourceCorruptError{Path: "(none)", Err: fmt.Errorf("asset has neither path nor url")}
		}
		if readBytes {
			return source{}, &SourceCorruptError{Path: asset.URL, Err: fmt.Errorf("upload requires a local source path")}
		}
		return source{}, nil
	}

	f, err := os.Open(asset.Path)
	if err != nil {
		return source{}, &SourceCorruptError{Path: asset.Path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return source{}, &SourceCorruptError{Path: asset.Path, Err: err}
	}
	if info.Size() == 0 {
		return source{}, &SourceCorruptError{Path: asset.Path}
	}

	src := source{name: filepath.Base(asset.Path)}
	if !readBytes {
		return src, nil
	}
	src.data, err = io.ReadAll(f)
	if err != nil {
		return source{}, &SourceCorruptError{Path: asset.Path, Err: err}
	}
	if len(src.data) == 0 {
		return source{}, &SourceCorruptError{Path: asset.Path}
	}
	src.contentType = mimetype.Detect(src.data).String()
	return src, nil
}

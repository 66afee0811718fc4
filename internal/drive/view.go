package drive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"

	"github.com/consentlab/takeout-agent/internal/common"
)

// ArchiveView exposes a downloaded archive as a list of entry names plus a
// per-entry byte reader. Each Read opens the entry fresh, so the two
// category extractors never share cursor state.
type ArchiveView struct {
	zr *zip.Reader
}

// OpenArchive wraps the raw archive bytes. Corrupt input yields an error
// wrapping common.ErrArchiveCorrupted.
func OpenArchive(buf []byte) (*ArchiveView, error) {
	zr, err := zip.NewReader(bytes.NewReader(buf), int64(len(buf)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrArchiveCorrupted, err)
	}
	return &ArchiveView{zr: zr}, nil
}

// Names returns all entry names in archive order.
func (v *ArchiveView) Names() []string {
	names := make([]string, 0, len(v.zr.File))
	for _, f := range v.zr.File {
		names = append(names, f.Name)
	}
	return names
}

// Read returns the full content of the named entry.
func (v *ArchiveView) Read(name string) ([]byte, error) {
	for _, f := range v.zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrArchiveCorrupted, err)
		}
		defer rc.Close()

		data, err := io.ReadAll(rc)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", common.ErrArchiveCorrupted, err)
		}
		return data, nil
	}
	return nil, fmt.Errorf("entry %q: %w", name, common.ErrorNotFound)
}

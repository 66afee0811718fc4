package extract

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// Scratch file types tracked by a Session.
const (
	FileSearchRaw      = "search_raw"
	FileSearchRedacted = "search_redacted"
	FileGPSPart        = "gps_part"
	FileGPSProcessed   = "gps_processed"
)

// TmpFile is one scratch file produced while processing a consent.
type TmpFile struct {
	Type string
	Path string
}

// Session owns the scratch files of one consent's processing run. Files
// accumulate under the configured scratch directory and are removed by
// Cleanup regardless of how the run ended.
type Session struct {
	dir   string
	files []TmpFile
}

// NewSession creates the scratch directory for one run. The random suffix
// keeps concurrent or repeated runs of the same consent from clobbering
// each other's files.
func NewSession(tmpDir string, internalID int64) (*Session, error) {
	dir := filepath.Join(tmpDir, fmt.Sprintf("consent_%d_%s", internalID, uuid.NewString()))
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating scratch directory failed: %w", err)
	}
	return &Session{dir: dir}, nil
}

// WriteFile persists content as a scratch file of the given type and
// records it for cleanup.
func (s *Session) WriteFile(fileType, name string, content []byte) (string, error) {
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return "", fmt.Errorf("writing scratch file %s failed: %w", name, err)
	}
	s.files = append(s.files, TmpFile{Type: fileType, Path: path})
	return path, nil
}

// ByType returns the recorded scratch files of one type, in write order.
func (s *Session) ByType(fileType string) []TmpFile {
	var out []TmpFile
	for _, f := range s.files {
		if f.Type == fileType {
			out = append(out, f)
		}
	}
	return out
}

// Cleanup removes the session's scratch directory and everything in it.
func (s *Session) Cleanup() error {
	s.files = nil
	return os.RemoveAll(s.dir)
}

package drive

import (
	"context"
	"fmt"
	"os"
)

// ArchiveSource opens a takeout archive from wherever it lives. The remote
// variant drives the provider API; the local variant reads a file, used by
// the one-shot xtract command.
type ArchiveSource interface {
	Open(ctx context.Context) (*ArchiveView, error)
}

// RemoteSource locates and downloads the newest archive for an authorized
// session. Open propagates common.ErrDriveNotReady when the export is still
// being prepared and common.ErrDownloadFailed on transport problems.
type RemoteSource struct {
	client  *Client
	session *Session
}

func NewRemoteSource(client *Client, session *Session) *RemoteSource {
	return &RemoteSource{client: client, session: session}
}

func (s *RemoteSource) Open(ctx context.Context) (*ArchiveView, error) {
	archiveID, err := s.client.LocateLatestArchive(ctx, s.session)
	if err != nil {
		return nil, err
	}

	buf, err := s.client.Download(ctx, s.session, archiveID)
	if err != nil {
		return nil, err
	}

	return OpenArchive(buf)
}

// LocalSource opens an archive from the local filesystem.
type LocalSource struct {
	Path string
}

func (s *LocalSource) Open(_ context.Context) (*ArchiveView, error) {
	buf, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("loading takeout archive from filesystem failed: %w", err)
	}
	return OpenArchive(buf)
}

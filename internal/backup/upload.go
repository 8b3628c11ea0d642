package backup

import (
	"context"
	"fmt"
	"io"
	"path"

	"smbsync/internal/model"
)

// DefaultChunkSize is the write size used when streaming file content to
// the share.
const DefaultChunkSize = 64 * 1024

// Uploader streams the contents of saved directories to a share session.
// Only the immediate child files of a directory are uploaded; sub-directories
// are not descended into.
type Uploader struct {
	fsmgr     FilesystemManager
	logger    Logger
	chunkSize int
}

// NewUploader creates an Uploader. chunkSize <= 0 selects DefaultChunkSize.
func NewUploader(fsmgr FilesystemManager, logger Logger, chunkSize int) *Uploader {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Uploader{
		fsmgr:     fsmgr,
		logger:    logger,
		chunkSize: chunkSize,
	}
}

// UploadDirectory uploads every immediate child file of dir over the given
// session. The matching remote directory is created if missing.
//
// In incremental mode files are opened create-only, and a file that already
// exists remotely is skipped: its content is presumed already present. In
// backup mode existing remote files are overwritten.
func (u *Uploader) UploadDirectory(ctx context.Context, session ShareSession, dir *model.SavedDirectory, incremental bool) error {
	local, err := u.fsmgr.ResolveDir(dir.LocalPath)
	if err != nil {
		return fmt.Errorf("resolving local directory: %w", err)
	}

	remoteName := remoteDirName(dir, local)
	if err := session.EnsureDirectory(remoteName); err != nil {
		return fmt.Errorf("creating remote directory %s: %w", remoteName, err)
	}

	files, err := u.fsmgr.ListFiles(local)
	if err != nil {
		return fmt.Errorf("listing local files: %w", err)
	}

	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := u.uploadFile(ctx, session, remoteName, f, incremental); err != nil {
			return fmt.Errorf("uploading %s: %w", f.Name(), err)
		}
	}

	u.logger.Info("directory uploaded", "path", dir.LocalPath, "remote", remoteName, "files", len(files))
	return nil
}

// uploadFile streams one file to the share in fixed-size chunks.
func (u *Uploader) uploadFile(ctx context.Context, session ShareSession, remoteDir string, f LocalFile, incremental bool) error {
	mode := CreateOrOverwrite
	if incremental {
		mode = CreateOnly
	}

	remotePath := path.Join(remoteDir, f.Name())
	remote, status, err := session.OpenFile(remotePath, mode)
	if err != nil {
		return err
	}
	if status == StatusAlreadyExists {
		u.logger.Debug("file already on server, skipping", "path", remotePath)
		return nil
	}
	defer remote.Close()

	local, err := f.Open()
	if err != nil {
		return fmt.Errorf("opening local file: %w", err)
	}
	defer local.Close()

	if err := u.copyChunked(ctx, remote, local, f); err != nil {
		return err
	}

	u.logger.Debug("file uploaded", "path", remotePath, "bytes", f.Size())
	return nil
}

// copyChunked copies local content to the remote handle, checking for
// cancellation between chunks and logging progress at 10% steps.
func (u *Uploader) copyChunked(ctx context.Context, dst io.Writer, src io.Reader, f LocalFile) error {
	buf := make([]byte, u.chunkSize)
	var written int64
	lastDecile := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				return fmt.Errorf("writing to share: %w", err)
			}
			written += int64(n)

			if size := f.Size(); size > 0 {
				decile := int(written * 10 / size)
				if decile > lastDecile {
					lastDecile = decile
					u.logger.Debug("upload progress", "file", f.Name(), "percent", decile*10)
				}
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return fmt.Errorf("reading local file: %w", readErr)
		}
	}
}

// remoteDirName picks the name of the remote directory for a saved
// directory: its display name when set, otherwise the local base name.
func remoteDirName(dir *model.SavedDirectory, local *LocalDir) string {
	if dir.DisplayName != nil && *dir.DisplayName != "" {
		return *dir.DisplayName
	}
	return local.Name()
}

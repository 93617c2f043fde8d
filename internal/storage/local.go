package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Yulikepython/drive-cleaner/internal/model"
)

// LocalSource sweeps a directory tree on the local filesystem. File ids are
// slash paths relative to the root; trashed files are moved under the trash
// root, outside the swept tree.
type LocalSource struct {
	validator   *PathValidator
	trashRoot   string
	ownerDomain string
}

func NewLocalSource(root string, trashRoot string, ownerDomain string) (*LocalSource, error) {
	validator, err := NewPathValidator(root)
	if err != nil {
		return nil, err
	}
	if info, err := os.Stat(validator.RootAbs()); err != nil || !info.IsDir() {
		return nil, fmt.Errorf("storage root %q is not a directory", root)
	}

	trashAbs, err := filepath.Abs(trashRoot)
	if err != nil || trashRoot == "" {
		return nil, fmt.Errorf("invalid trash root %q", trashRoot)
	}
	if isWithinRoot(validator.RootAbs(), trashAbs) {
		return nil, fmt.Errorf("trash root %q must be outside the storage root", trashRoot)
	}
	if err := os.MkdirAll(trashAbs, 0o755); err != nil {
		return nil, fmt.Errorf("create trash root: %w", err)
	}

	return &LocalSource{validator: validator, trashRoot: trashAbs, ownerDomain: ownerDomain}, nil
}

func (s *LocalSource) Enumerate(ctx context.Context, folderRef string, opts model.EnumerateOptions) (iter.Seq2[model.FileMetadata, error], error) {
	dir, _, err := s.validator.Resolve(folderRef)
	if err != nil {
		return nil, &model.ReferenceResolutionError{Ref: folderRef, Err: err}
	}

	info, err := os.Stat(dir)
	if err != nil {
		return nil, &model.ReferenceResolutionError{Ref: folderRef, Err: err}
	}
	if !info.IsDir() {
		return nil, &model.ReferenceResolutionError{Ref: folderRef, Err: errors.New("not a directory")}
	}

	if opts.Recursive {
		return s.walk(ctx, dir), nil
	}
	return s.list(ctx, dir), nil
}

func (s *LocalSource) list(ctx context.Context, dir string) iter.Seq2[model.FileMetadata, error] {
	return func(yield func(model.FileMetadata, error) bool) {
		entries, err := os.ReadDir(dir)
		if err != nil {
			yield(model.FileMetadata{}, err)
			return
		}

		for _, entry := range entries {
			if err := ctx.Err(); err != nil {
				yield(model.FileMetadata{}, err)
				return
			}
			if !entry.Type().IsRegular() {
				continue
			}

			file, err := s.metadata(filepath.Join(dir, entry.Name()))
			if errors.Is(err, fs.ErrNotExist) {
				// removed since the listing
				continue
			}
			if !yield(file, err) || err != nil {
				return
			}
		}
	}
}

func (s *LocalSource) walk(ctx context.Context, dir string) iter.Seq2[model.FileMetadata, error] {
	return func(yield func(model.FileMetadata, error) bool) {
		stopped := errors.New("stopped")

		err := filepath.WalkDir(dir, func(current string, entry fs.DirEntry, walkErr error) error {
			if walkErr != nil {
				return walkErr
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if !entry.Type().IsRegular() {
				return nil
			}

			file, err := s.metadata(current)
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			if err != nil {
				return err
			}
			if !yield(file, nil) {
				return stopped
			}
			return nil
		})

		if err != nil && !errors.Is(err, stopped) {
			yield(model.FileMetadata{}, err)
		}
	}
}

func (s *LocalSource) GetByID(_ context.Context, fileID string) (model.FileMetadata, error) {
	resolved, rel, err := s.validator.Resolve(fileID)
	if err != nil {
		return model.FileMetadata{}, err
	}
	if rel == "" {
		return model.FileMetadata{}, fmt.Errorf("%q: %w", fileID, model.ErrFileNotFound)
	}

	file, err := s.metadata(resolved)
	if errors.Is(err, fs.ErrNotExist) {
		return model.FileMetadata{}, fmt.Errorf("%q: %w", fileID, model.ErrFileNotFound)
	}
	return file, err
}

// Trash moves the file to <trash root>/<uuid>_<name>.
func (s *LocalSource) Trash(_ context.Context, fileID string) error {
	resolved, rel, err := s.validator.Resolve(fileID)
	if err != nil {
		return err
	}
	if rel == "" {
		return fmt.Errorf("%q: %w", fileID, model.ErrFileNotFound)
	}

	info, err := os.Lstat(resolved)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%q: %w", fileID, model.ErrFileNotFound)
	}
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%q is not a regular file", fileID)
	}

	destination := filepath.Join(s.trashRoot, uuid.NewString()+"_"+filepath.Base(resolved))
	if err := moveFile(resolved, destination); err != nil {
		return fmt.Errorf("move %q to trash: %w", fileID, err)
	}
	return nil
}

func (s *LocalSource) ViewURL(fileID string) string {
	resolved, _, err := s.validator.Resolve(fileID)
	if err != nil {
		return ""
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(resolved)}).String()
}

func (s *LocalSource) metadata(abs string) (model.FileMetadata, error) {
	info, err := os.Stat(abs)
	if err != nil {
		return model.FileMetadata{}, err
	}

	rel, err := s.validator.Rel(abs)
	if err != nil {
		return model.FileMetadata{}, err
	}

	return model.FileMetadata{
		ID:           rel,
		Name:         info.Name(),
		SizeBytes:    info.Size(),
		LastModified: info.ModTime().Truncate(time.Second),
		Owner:        s.owner(info),
	}, nil
}

func (s *LocalSource) owner(info fs.FileInfo) model.Owner {
	name, ok := fileOwnerName(info)
	if !ok {
		return model.UnresolvedOwner()
	}
	if s.ownerDomain == "" {
		return model.ResolvedOwner(name)
	}
	return model.ResolvedOwner(name + "@" + s.ownerDomain)
}

package storage

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"regexp"
	"time"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/Yulikepython/drive-cleaner/internal/model"
)

const (
	driveFolderMimeType = "application/vnd.google-apps.folder"
	driveFileFields     = "id, name, size, modifiedTime, owners(emailAddress)"
	drivePageSize       = 1000
)

// driveIDPattern matches a Drive id inside a folder URL or a bare id.
var driveIDPattern = regexp.MustCompile(`[-\w]{25,}`)

type DriveConfig struct {
	// CredentialsFile is a service account or authorized-user key; empty
	// uses application default credentials.
	CredentialsFile string
}

// DriveSource sweeps the direct children of a Google Drive folder.
type DriveSource struct {
	files *drive.FilesService
}

func NewDriveSource(ctx context.Context, cfg DriveConfig) (*DriveSource, error) {
	opts := []option.ClientOption{option.WithScopes(drive.DriveScope)}
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("drive: create service: %w", err)
	}
	return &DriveSource{files: svc.Files}, nil
}

// ParseFolderID extracts the folder id from a folder URL or returns a bare id.
func ParseFolderID(folderRef string) (string, error) {
	id := driveIDPattern.FindString(folderRef)
	if id == "" {
		return "", errors.New("no folder id found")
	}
	return id, nil
}

// Enumerate lists the non-folder, non-trashed children of the folder page by
// page. Drive folders are always listed one level deep.
func (s *DriveSource) Enumerate(ctx context.Context, folderRef string, _ model.EnumerateOptions) (iter.Seq2[model.FileMetadata, error], error) {
	folderID, err := ParseFolderID(folderRef)
	if err != nil {
		return nil, &model.ReferenceResolutionError{Ref: folderRef, Err: err}
	}

	folder, err := s.files.Get(folderID).
		Fields("id, mimeType, trashed").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, &model.ReferenceResolutionError{Ref: folderRef, Err: driveError(err)}
	}
	if folder.MimeType != driveFolderMimeType || folder.Trashed {
		return nil, &model.ReferenceResolutionError{Ref: folderRef, Err: errors.New("not an active folder")}
	}

	query := fmt.Sprintf("'%s' in parents and trashed = false and mimeType != '%s'", folderID, driveFolderMimeType)

	return func(yield func(model.FileMetadata, error) bool) {
		pageToken := ""
		for {
			call := s.files.List().
				Q(query).
				Fields(googleapi.Field("nextPageToken, files(" + driveFileFields + ")")).
				PageSize(drivePageSize).
				SupportsAllDrives(true).
				IncludeItemsFromAllDrives(true).
				Context(ctx)
			if pageToken != "" {
				call = call.PageToken(pageToken)
			}

			page, err := call.Do()
			if err != nil {
				yield(model.FileMetadata{}, driveError(err))
				return
			}

			for _, file := range page.Files {
				meta, err := driveMetadata(file)
				if !yield(meta, err) || err != nil {
					return
				}
			}

			if page.NextPageToken == "" {
				return
			}
			pageToken = page.NextPageToken
		}
	}, nil
}

func (s *DriveSource) GetByID(ctx context.Context, fileID string) (model.FileMetadata, error) {
	file, err := s.files.Get(fileID).
		Fields(driveFileFields).
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return model.FileMetadata{}, driveError(err)
	}
	return driveMetadata(file)
}

// Trash moves the file to the Drive trash; it stays restorable there.
func (s *DriveSource) Trash(ctx context.Context, fileID string) error {
	_, err := s.files.Update(fileID, &drive.File{Trashed: true}).
		Fields("id, trashed").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return driveError(err)
	}
	return nil
}

func (s *DriveSource) ViewURL(fileID string) string {
	return "https://drive.google.com/file/d/" + fileID + "/view?usp=sharing"
}

func driveError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%w: %s", model.ErrFileNotFound, apiErr.Message)
	}
	return err
}

// driveMetadata fails on an unreadable modifiedTime; a zero time would fall
// before every cutoff.
func driveMetadata(file *drive.File) (model.FileMetadata, error) {
	modified, err := time.Parse(time.RFC3339, file.ModifiedTime)
	if err != nil {
		return model.FileMetadata{}, fmt.Errorf("drive file %s: modified time %q: %w", file.Id, file.ModifiedTime, err)
	}

	meta := model.FileMetadata{
		ID:           file.Id,
		Name:         file.Name,
		SizeBytes:    file.Size,
		LastModified: modified,
		Owner:        model.UnresolvedOwner(),
	}
	// shared-drive files have no owners
	if len(file.Owners) > 0 && file.Owners[0].EmailAddress != "" {
		meta.Owner = model.ResolvedOwner(file.Owners[0].EmailAddress)
	}
	return meta, nil
}

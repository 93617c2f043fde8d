package storage

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/Yulikepython/drive-cleaner/internal/model"
)

type GCSConfig struct {
	Bucket string

	// CredentialsFile is a service account key; empty uses application
	// default credentials.
	CredentialsFile string

	// TrashPrefix receives trashed objects. Objects under it are never listed.
	TrashPrefix string
}

// GCSSource sweeps objects of one Cloud Storage bucket. File ids are object
// names; a folder is a name prefix.
type GCSSource struct {
	client      *storage.Client
	bucket      *storage.BucketHandle
	name        string
	trashPrefix string
}

func NewGCSSource(ctx context.Context, cfg GCSConfig) (*GCSSource, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("gcs: bucket name is required")
	}

	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("gcs: create client: %w", err)
	}

	trashPrefix := strings.Trim(cfg.TrashPrefix, "/")
	if trashPrefix == "" {
		trashPrefix = ".trash"
	}

	return &GCSSource{
		client:      client,
		bucket:      client.Bucket(cfg.Bucket),
		name:        cfg.Bucket,
		trashPrefix: trashPrefix + "/",
	}, nil
}

func (s *GCSSource) Close() error {
	return s.client.Close()
}

// Enumerate lists objects under folderRef, either "gs://<bucket>/<prefix>"
// for the configured bucket or a bare prefix.
func (s *GCSSource) Enumerate(ctx context.Context, folderRef string, opts model.EnumerateOptions) (iter.Seq2[model.FileMetadata, error], error) {
	prefix, err := bucketPrefix("gs", s.name, folderRef)
	if err != nil {
		return nil, &model.ReferenceResolutionError{Ref: folderRef, Err: err}
	}

	if _, err := s.bucket.Attrs(ctx); err != nil {
		return nil, &model.ReferenceResolutionError{Ref: folderRef, Err: s.wrapError("Bucket", s.name, err)}
	}

	query := &storage.Query{Prefix: prefix, Projection: storage.ProjectionFull}
	if !opts.Recursive {
		query.Delimiter = "/"
	}
	if err := query.SetAttrSelection([]string{"Name", "Size", "Updated", "Owner"}); err != nil {
		return nil, err
	}

	return func(yield func(model.FileMetadata, error) bool) {
		objects := s.bucket.Objects(ctx, query)
		for {
			attrs, err := objects.Next()
			if err == iterator.Done {
				return
			}
			if err != nil {
				yield(model.FileMetadata{}, s.wrapError("List", prefix, err))
				return
			}

			// synthetic prefix entries when a delimiter is set
			if attrs.Name == "" || strings.HasSuffix(attrs.Name, "/") || strings.HasPrefix(attrs.Name, s.trashPrefix) {
				continue
			}
			if !yield(gcsMetadata(attrs), nil) {
				return
			}
		}
	}, nil
}

func (s *GCSSource) GetByID(ctx context.Context, fileID string) (model.FileMetadata, error) {
	attrs, err := s.bucket.Object(fileID).Attrs(ctx)
	if err != nil {
		return model.FileMetadata{}, s.wrapError("Get", fileID, err)
	}
	return gcsMetadata(attrs), nil
}

// Trash copies the object under the trash prefix, then deletes the original.
func (s *GCSSource) Trash(ctx context.Context, fileID string) error {
	if strings.HasPrefix(fileID, s.trashPrefix) {
		return &ObjectError{Op: "Trash", Key: fileID, Err: errors.New("object is already in the trash")}
	}

	src := s.bucket.Object(fileID)
	if _, err := s.bucket.Object(s.trashPrefix+fileID).CopierFrom(src).Run(ctx); err != nil {
		return s.wrapError("Trash", fileID, err)
	}
	if err := src.Delete(ctx); err != nil {
		return s.wrapError("Trash", fileID, err)
	}
	return nil
}

func (s *GCSSource) ViewURL(fileID string) string {
	return "https://storage.cloud.google.com/" + s.name + "/" + fileID
}

func (s *GCSSource) wrapError(op string, key string, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return &ObjectError{Op: op, Key: key, Err: model.ErrFileNotFound}
	}
	return &ObjectError{Op: op, Key: key, Err: err}
}

func gcsMetadata(attrs *storage.ObjectAttrs) model.FileMetadata {
	file := model.FileMetadata{
		ID:           attrs.Name,
		Name:         path.Base(attrs.Name),
		SizeBytes:    attrs.Size,
		LastModified: attrs.Updated,
		Owner:        model.UnresolvedOwner(),
	}
	// Owner is an ACL entity such as "user-someone@example.com".
	if email, ok := strings.CutPrefix(attrs.Owner, "user-"); ok && email != "" {
		file.Owner = model.ResolvedOwner(email)
	}
	return file
}

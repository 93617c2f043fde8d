package storage

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/Yulikepython/drive-cleaner/internal/model"
)

// S3Config configures an S3 or S3-compatible file source.
type S3Config struct {
	Bucket string

	// Region defaults to us-east-1.
	Region string

	// Endpoint overrides the AWS endpoint, e.g. http://localhost:9000 for MinIO.
	Endpoint string

	// Static credentials; empty uses the default credential chain.
	AccessKeyID     string
	SecretAccessKey string

	UsePathStyle bool

	// TrashPrefix receives trashed objects. Keys under it are never listed.
	TrashPrefix string
}

// S3Source sweeps objects of one bucket. File ids are object keys; a folder
// is a key prefix.
type S3Source struct {
	client      *s3.Client
	bucket      string
	trashPrefix string
	endpoint    string
}

func NewS3Source(ctx context.Context, cfg S3Config) (*S3Source, error) {
	if cfg.Bucket == "" {
		return nil, errors.New("s3: bucket name is required")
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(region)}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("s3: load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.DisableLogOutputChecksumValidationSkipped = true
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	})

	trashPrefix := strings.Trim(cfg.TrashPrefix, "/")
	if trashPrefix == "" {
		trashPrefix = ".trash"
	}

	return &S3Source{
		client:      client,
		bucket:      cfg.Bucket,
		trashPrefix: trashPrefix + "/",
		endpoint:    cfg.Endpoint,
	}, nil
}

// Enumerate lists objects under the prefix named by folderRef, which is
// either "s3://<bucket>/<prefix>" for the configured bucket or a bare prefix.
func (s *S3Source) Enumerate(ctx context.Context, folderRef string, opts model.EnumerateOptions) (iter.Seq2[model.FileMetadata, error], error) {
	prefix, err := bucketPrefix("s3", s.bucket, folderRef)
	if err != nil {
		return nil, &model.ReferenceResolutionError{Ref: folderRef, Err: err}
	}

	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return nil, &model.ReferenceResolutionError{Ref: folderRef, Err: s.wrapError("HeadBucket", s.bucket, err)}
	}

	input := &s3.ListObjectsV2Input{
		Bucket:     aws.String(s.bucket),
		Prefix:     aws.String(prefix),
		FetchOwner: aws.Bool(true),
	}
	if !opts.Recursive {
		input.Delimiter = aws.String("/")
	}

	return func(yield func(model.FileMetadata, error) bool) {
		paginator := s3.NewListObjectsV2Paginator(s.client, input)
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				yield(model.FileMetadata{}, s.wrapError("List", prefix, err))
				return
			}

			for _, obj := range page.Contents {
				key := aws.ToString(obj.Key)
				if strings.HasSuffix(key, "/") || strings.HasPrefix(key, s.trashPrefix) {
					continue
				}
				if !yield(objectMetadata(key, aws.ToInt64(obj.Size), obj.LastModified, obj.Owner), nil) {
					return
				}
			}
		}
	}, nil
}

func (s *S3Source) GetByID(ctx context.Context, fileID string) (model.FileMetadata, error) {
	// HeadObject carries no owner; a single-key listing does.
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:     aws.String(s.bucket),
		Prefix:     aws.String(fileID),
		FetchOwner: aws.Bool(true),
		MaxKeys:    aws.Int32(1),
	})
	if err != nil {
		return model.FileMetadata{}, s.wrapError("Get", fileID, err)
	}
	if len(out.Contents) == 0 || aws.ToString(out.Contents[0].Key) != fileID {
		return model.FileMetadata{}, &ObjectError{Op: "Get", Key: fileID, Err: model.ErrFileNotFound}
	}

	obj := out.Contents[0]
	return objectMetadata(fileID, aws.ToInt64(obj.Size), obj.LastModified, obj.Owner), nil
}

// Trash copies the object under the trash prefix, then deletes the original.
func (s *S3Source) Trash(ctx context.Context, fileID string) error {
	if strings.HasPrefix(fileID, s.trashPrefix) {
		return &ObjectError{Op: "Trash", Key: fileID, Err: errors.New("object is already in the trash")}
	}

	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(s.trashPrefix + fileID),
		CopySource: aws.String((&url.URL{Path: s.bucket + "/" + fileID}).EscapedPath()),
	})
	if err != nil {
		return s.wrapError("Trash", fileID, err)
	}

	_, err = s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(fileID),
	})
	if err != nil {
		return s.wrapError("Trash", fileID, err)
	}
	return nil
}

func (s *S3Source) ViewURL(fileID string) string {
	if s.endpoint != "" {
		return strings.TrimSuffix(s.endpoint, "/") + "/" + s.bucket + "/" + fileID
	}
	return "s3://" + s.bucket + "/" + fileID
}

func (s *S3Source) wrapError(op string, key string, err error) error {
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		return &ObjectError{Op: op, Key: key, Err: model.ErrFileNotFound}
	}

	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return &ObjectError{Op: op, Key: key, Err: model.ErrFileNotFound}
	}

	return &ObjectError{Op: op, Key: key, Err: err}
}

func objectMetadata(key string, size int64, modified *time.Time, owner *types.Owner) model.FileMetadata {
	file := model.FileMetadata{
		ID:        key,
		Name:      path.Base(key),
		SizeBytes: size,
		Owner:     model.UnresolvedOwner(),
	}
	if modified != nil {
		file.LastModified = *modified
	}
	if owner != nil && aws.ToString(owner.DisplayName) != "" {
		file.Owner = model.ResolvedOwner(aws.ToString(owner.DisplayName))
	}
	return file
}

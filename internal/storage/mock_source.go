package storage

import (
	"context"
	"iter"

	"github.com/stretchr/testify/mock"

	"github.com/Yulikepython/drive-cleaner/internal/model"
)

// MockSource is a testify mock of a file source. Enumerate expects
// Return(files, streamErr, resolveErr): resolveErr fails the call itself,
// streamErr is yielded after the files.
type MockSource struct {
	mock.Mock
}

func (m *MockSource) Enumerate(ctx context.Context, folderRef string, opts model.EnumerateOptions) (iter.Seq2[model.FileMetadata, error], error) {
	args := m.Called(ctx, folderRef, opts)
	if err := args.Error(2); err != nil {
		return nil, err
	}

	files, _ := args.Get(0).([]model.FileMetadata)
	streamErr := args.Error(1)

	return func(yield func(model.FileMetadata, error) bool) {
		for _, file := range files {
			if !yield(file, nil) {
				return
			}
		}
		if streamErr != nil {
			yield(model.FileMetadata{}, streamErr)
		}
	}, nil
}

func (m *MockSource) GetByID(ctx context.Context, fileID string) (model.FileMetadata, error) {
	args := m.Called(ctx, fileID)
	return args.Get(0).(model.FileMetadata), args.Error(1)
}

func (m *MockSource) Trash(ctx context.Context, fileID string) error {
	args := m.Called(ctx, fileID)
	return args.Error(0)
}

func (m *MockSource) ViewURL(fileID string) string {
	args := m.Called(fileID)
	return args.String(0)
}

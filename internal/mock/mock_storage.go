// Package mock provides mock implementations for testing.
package mock

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"
)

// MockStorage is a mock resource store.
type MockStorage struct {
	mock.Mock
}

// Upload mocks the Upload method. The reader is drained so expectations can
// match on the uploaded content through UploadedContent.
func (m *MockStorage) Upload(ctx context.Context, key string, reader io.Reader) error {
	data, _ := io.ReadAll(reader)
	args := m.Called(ctx, key, string(data))
	return args.Error(0)
}

// Exists mocks the Exists method.
func (m *MockStorage) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

// ExpectAnyUpload sets up an expectation for any Upload call.
func (m *MockStorage) ExpectAnyUpload(err error) *mock.Call {
	return m.On("Upload", mock.Anything, mock.Anything, mock.Anything).Return(err)
}

// ExpectAnyExists sets up an expectation for any Exists call.
func (m *MockStorage) ExpectAnyExists(exists bool, err error) *mock.Call {
	return m.On("Exists", mock.Anything, mock.Anything).Return(exists, err)
}

// UploadedContent returns the content of the first Upload call for key.
func (m *MockStorage) UploadedContent(key string) (string, bool) {
	for _, call := range m.Calls {
		if call.Method == "Upload" && call.Arguments.String(1) == key {
			return call.Arguments.String(2), true
		}
	}
	return "", false
}

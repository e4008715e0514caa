package gcsuploader

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitGCSURI(t *testing.T) {
	bucket, object, err := splitGCSURI("gs://my-bucket/imports/abc-file.csv")
	require.NoError(t, err)
	assert.Equal(t, "my-bucket", bucket)
	assert.Equal(t, "imports/abc-file.csv", object)

	for _, uri := range []string{"http://my-bucket/x", "gs://bucket-only", "gs://bucket/"} {
		_, _, err := splitGCSURI(uri)
		assert.Error(t, err, uri)
	}
}

func TestExtractFilenameFromGCSURI(t *testing.T) {
	assert.Equal(t, "file.csv", ExtractFilenameFromGCSURI("gs://bucket/folder/file.csv"))
	assert.Equal(t, "file.csv", ExtractFilenameFromGCSURI("gs://bucket/file.csv"))
	assert.Equal(t, "bucket-only", ExtractFilenameFromGCSURI("gs://bucket-only"))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "file.csv", sanitizeFilename("file.csv"))
	assert.Equal(t, "file.csv", sanitizeFilename("../../etc/file.csv"))
	assert.Equal(t, "file.csv", sanitizeFilename("C:\\Users\\me\\file.csv"))
	assert.Equal(t, "my_export.csv", sanitizeFilename("my export.csv"))
	assert.Equal(t, "upload.csv", sanitizeFilename("  "))
}

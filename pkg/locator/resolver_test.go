package locator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveURLWithoutPresigner(t *testing.T) {
	ctx := context.Background()
	var r *Resolver

	tests := []struct {
		name string
		loc  Locator
		want string
	}{
		{
			name: "s3 public fallback",
			loc:  S3Locator{Bucket: "media-in", Key: "raw/clip 1.mxf", Region: "eu-west-1"},
			want: "https://media-in.s3.eu-west-1.amazonaws.com/raw/clip%201.mxf",
		},
		{
			name: "s3 defaults region",
			loc:  S3Locator{Bucket: "media-in", Key: "a.mxf"},
			want: "https://media-in.s3.us-east-1.amazonaws.com/a.mxf",
		},
		{
			name: "azure blob",
			loc:  BlobStorageLocator{Account: "acct", Container: "media", Path: "in/clip.mov"},
			want: "https://acct.blob.core.windows.net/media/in/clip.mov",
		},
		{
			name: "google cloud storage",
			loc:  CloudStorageLocator{Bucket: "media-out", Path: "out/clip.mp4"},
			want: "https://storage.googleapis.com/media-out/out/clip.mp4",
		},
		{
			name: "http passthrough",
			loc:  HTTPLocator{URL: "https://cdn.example.com/clip.mp4"},
			want: "https://cdn.example.com/clip.mp4",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.ResolveURL(ctx, tt.loc)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveURLRejectsInvalidLocator(t *testing.T) {
	var r *Resolver
	_, err := r.ResolveURL(context.Background(), S3Locator{Bucket: "only-bucket"})
	assert.ErrorIs(t, err, ErrIncomplete)

	_, err = r.ResolveURL(context.Background(), nil)
	assert.ErrorIs(t, err, ErrIncomplete)
}

func TestNewResolverRequiresKeyPair(t *testing.T) {
	_, err := NewResolver(context.Background(), ResolverConfig{AccessKeyID: "AKID"})
	assert.ErrorIs(t, err, ErrIncomplete)
}

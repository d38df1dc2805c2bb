package service_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/filevault/filevault/internal/blob"
	"github.com/filevault/filevault/internal/entity"
	"github.com/filevault/filevault/internal/queue"
	"github.com/filevault/filevault/internal/service"
	"github.com/filevault/filevault/internal/store"
	"github.com/filevault/filevault/internal/thumb"
)

type env struct {
	meta  *store.Store
	blobs *blob.Store
	jobs  *queue.Queue
	files *service.Files
	gen   *thumb.Generator
}

func newTestEnv(t *testing.T) *env {
	t.Helper()

	dir := t.TempDir()
	meta, err := store.Open(filepath.Join(dir, "meta.db"))
	require.NoError(t, err)
	t.Cleanup(func() { meta.Close() })

	blobs, err := blob.New(filepath.Join(dir, "blobs"))
	require.NoError(t, err)

	jobs, err := queue.New(meta.DB(), queue.Config{
		Workers:      1,
		MaxAttempts:  3,
		PollInterval: 10 * time.Millisecond,
		Backoff:      10 * time.Millisecond,
		Lease:        time.Minute,
	})
	require.NoError(t, err)

	return &env{
		meta:  meta,
		blobs: blobs,
		jobs:  jobs,
		files: service.NewFiles(meta, blobs, jobs),
		gen:   thumb.New(meta, blobs),
	}
}

func encodedPNG(t *testing.T) string {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 600, 400))
	for y := 0; y < 400; y++ {
		for x := 0; x < 600; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x % 256), G: uint8(y % 256), B: 128, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestUploadValidationOrder(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		req     service.UploadRequest
		wantMsg string
	}{
		{
			name:    "missing name wins over missing type",
			req:     service.UploadRequest{},
			wantMsg: "Missing name",
		},
		{
			name:    "invalid type",
			req:     service.UploadRequest{Name: "doc", Kind: "archive"},
			wantMsg: "Missing type",
		},
		{
			name:    "missing data for regular file",
			req:     service.UploadRequest{Name: "doc", Kind: "file"},
			wantMsg: "Missing data",
		},
		{
			name:    "missing data for image",
			req:     service.UploadRequest{Name: "pic", Kind: "image"},
			wantMsg: "Missing data",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.files.Upload(ctx, "owner-1", tt.req)
			var validation *entity.ValidationError
			require.ErrorAs(t, err, &validation)
			assert.Equal(t, tt.wantMsg, validation.Msg)
		})
	}
}

func TestUploadFolderNeedsNoData(t *testing.T) {
	e := newTestEnv(t)

	folder, err := e.files.Upload(context.Background(), "owner-1", service.UploadRequest{
		Name: "docs",
		Kind: "folder",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.KindFolder, folder.Kind)
	assert.Empty(t, folder.LocalPath)
}

func TestUploadParentValidation(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	regular, err := e.files.Upload(ctx, "owner-1", service.UploadRequest{
		Name: "doc.txt",
		Kind: "file",
		Data: base64.StdEncoding.EncodeToString([]byte("hi")),
	})
	require.NoError(t, err)

	before, err := e.meta.CountFiles(ctx)
	require.NoError(t, err)

	_, err = e.files.Upload(ctx, "owner-1", service.UploadRequest{
		Name:   "child",
		Kind:   "folder",
		Parent: "no-such-folder",
	})
	assert.ErrorIs(t, err, entity.ErrParentNotFound)

	_, err = e.files.Upload(ctx, "owner-1", service.UploadRequest{
		Name:   "child",
		Kind:   "folder",
		Parent: regular.ID,
	})
	assert.ErrorIs(t, err, entity.ErrParentNotFolder)

	// no partial entity was created
	after, err := e.meta.CountFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestUploadRoundTrip(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	created, err := e.files.Upload(ctx, "owner-1", service.UploadRequest{
		Name: "doc.txt",
		Kind: "file",
		Data: base64.StdEncoding.EncodeToString([]byte("round trip")),
	})
	require.NoError(t, err)

	fetched, err := e.files.Get(ctx, "owner-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, "doc.txt", fetched.Name)
	assert.Equal(t, entity.KindFile, fetched.Kind)
	assert.True(t, fetched.Parent.IsRoot())

	_, err = e.files.Get(ctx, "owner-2", created.ID)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestListPagination(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	parent, err := e.files.Upload(ctx, "owner-1", service.UploadRequest{Name: "docs", Kind: "folder"})
	require.NoError(t, err)

	for i := 0; i < 45; i++ {
		_, err := e.files.Upload(ctx, "owner-1", service.UploadRequest{
			Name:   fmt.Sprintf("child-%02d", i),
			Kind:   "folder",
			Parent: parent.ID,
		})
		require.NoError(t, err)
	}

	for page, want := range map[int]int{0: 20, 1: 20, 2: 5, 3: 0} {
		files, err := e.files.List(ctx, "owner-1", parent.ID, page)
		require.NoError(t, err)
		assert.Len(t, files, want, "page %d", page)
	}
}

func TestPublishIdempotent(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	created, err := e.files.Upload(ctx, "owner-1", service.UploadRequest{
		Name: "doc.txt",
		Kind: "file",
		Data: base64.StdEncoding.EncodeToString([]byte("content")),
	})
	require.NoError(t, err)

	first, err := e.files.Publish(ctx, "owner-1", created.ID)
	require.NoError(t, err)
	assert.True(t, first.IsPublic)

	second, err := e.files.Publish(ctx, "owner-1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	private, err := e.files.Unpublish(ctx, "owner-1", created.ID)
	require.NoError(t, err)
	assert.False(t, private.IsPublic)

	// ownership is checked before any mutation
	_, err = e.files.Publish(ctx, "owner-2", created.ID)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestReadContentPrivacy(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	payload := []byte("private content")
	created, err := e.files.Upload(ctx, "owner-1", service.UploadRequest{
		Name: "doc.txt",
		Kind: "file",
		Data: base64.StdEncoding.EncodeToString(payload),
	})
	require.NoError(t, err)

	rc, file, err := e.files.ReadContent(ctx, "owner-1", created.ID, 0)
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)
	assert.Equal(t, payload, data)
	assert.Equal(t, "doc.txt", file.Name)

	// foreign caller, anonymous caller and true absence are
	// indistinguishable
	_, _, foreignErr := e.files.ReadContent(ctx, "owner-2", created.ID, 0)
	_, _, anonErr := e.files.ReadContent(ctx, "", created.ID, 0)
	_, _, absentErr := e.files.ReadContent(ctx, "owner-2", "no-such-id", 0)
	assert.ErrorIs(t, foreignErr, entity.ErrNotFound)
	assert.ErrorIs(t, anonErr, entity.ErrNotFound)
	assert.ErrorIs(t, absentErr, entity.ErrNotFound)

	// publishing opens the file to everyone
	_, err = e.files.Publish(ctx, "owner-1", created.ID)
	require.NoError(t, err)

	rc, _, err = e.files.ReadContent(ctx, "", created.ID, 0)
	require.NoError(t, err)
	rc.Close()

	// unpublish restores private semantics
	_, err = e.files.Unpublish(ctx, "owner-1", created.ID)
	require.NoError(t, err)

	_, _, err = e.files.ReadContent(ctx, "owner-2", created.ID, 0)
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestReadContentFolder(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	folder, err := e.files.Upload(ctx, "owner-1", service.UploadRequest{Name: "docs", Kind: "folder"})
	require.NoError(t, err)

	_, _, err = e.files.ReadContent(ctx, "owner-1", folder.ID, 0)
	assert.ErrorIs(t, err, entity.ErrFolderNoContent)
}

func TestReadContentVariantNoFallback(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	created, err := e.files.Upload(ctx, "owner-1", service.UploadRequest{
		Name: "cat.png",
		Kind: "image",
		Data: encodedPNG(t),
	})
	require.NoError(t, err)

	// the worker has not run: the requested size must not silently fall
	// back to the original
	_, _, err = e.files.ReadContent(ctx, "owner-1", created.ID, 250)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	rc, _, err := e.files.ReadContent(ctx, "owner-1", created.ID, 0)
	require.NoError(t, err)
	rc.Close()
}

type failingEnqueuer struct{}

func (failingEnqueuer) Enqueue(ctx context.Context, ownerID, fileID string) error {
	return errors.New("queue unavailable")
}

func TestUploadSurvivesEnqueueFailure(t *testing.T) {
	e := newTestEnv(t)
	files := service.NewFiles(e.meta, e.blobs, failingEnqueuer{})

	created, err := files.Upload(context.Background(), "owner-1", service.UploadRequest{
		Name: "cat.png",
		Kind: "image",
		Data: encodedPNG(t),
	})
	require.NoError(t, err)

	_, err = files.Get(context.Background(), "owner-1", created.ID)
	assert.NoError(t, err)
}

func TestImageUploadThroughPipeline(t *testing.T) {
	e := newTestEnv(t)
	ctx := context.Background()

	// owner A uploads a private image
	created, err := e.files.Upload(ctx, "owner-a", service.UploadRequest{
		Name: "cat.png",
		Kind: "image",
		Data: encodedPNG(t),
	})
	require.NoError(t, err)

	// owner B can't see it
	_, _, err = e.files.ReadContent(ctx, "owner-b", created.ID, 0)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	// the 250 variant doesn't exist until the worker runs
	_, _, err = e.files.ReadContent(ctx, "owner-a", created.ID, 250)
	assert.ErrorIs(t, err, entity.ErrNotFound)

	e.jobs.Start(e.gen.Process)
	defer e.jobs.Stop()

	require.Eventually(t, func() bool {
		n, err := e.jobs.Pending(ctx)
		return err == nil && n == 0
	}, 5*time.Second, 20*time.Millisecond)

	rc, _, err := e.files.ReadContent(ctx, "owner-a", created.ID, 250)
	require.NoError(t, err)
	variant, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)

	rc, _, err = e.files.ReadContent(ctx, "owner-a", created.ID, 0)
	require.NoError(t, err)
	original, err := io.ReadAll(rc)
	rc.Close()
	require.NoError(t, err)

	assert.NotEmpty(t, variant)
	assert.NotEqual(t, original, variant)
}

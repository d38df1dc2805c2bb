package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/filevault/filevault/internal/blob"
	"github.com/filevault/filevault/internal/entity"
	"github.com/filevault/filevault/internal/store"
)

// Enqueuer submits thumbnail jobs. Satisfied by the job queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, ownerID, fileID string) error
}

// Files implements the core file operations: upload, lookup, listing,
// visibility toggling and content retrieval.
type Files struct {
	meta   *store.Store
	blobs  *blob.Store
	jobs   Enqueuer
	logger *log.Logger
}

func NewFiles(meta *store.Store, blobs *blob.Store, jobs Enqueuer) *Files {
	return &Files{
		meta:   meta,
		blobs:  blobs,
		jobs:   jobs,
		logger: log.New(os.Stdout, "[Files] ", log.LstdFlags),
	}
}

// UploadRequest carries a file or folder creation request. Data is the
// base64-encoded content, present unless Kind is folder. Parent is the raw
// parent reference as supplied by the client ("" or "0" mean root).
type UploadRequest struct {
	Name     string
	Kind     string
	Parent   string
	Data     string
	IsPublic bool
}

// Upload validates the request, writes the blob for non-folder kinds, then
// commits metadata. Image uploads enqueue a thumbnail job after the commit;
// enqueue failure is logged and swallowed, since thumbnails are a
// best-effort enhancement rather than a correctness requirement.
//
// The blob write and the metadata commit are not transactional across the
// two stores. A crash between them leaves an orphaned blob, recoverable by
// re-upload; the metadata record itself never dangles because it is written
// last.
func (s *Files) Upload(ctx context.Context, ownerID string, req UploadRequest) (*entity.File, error) {
	if req.Name == "" {
		return nil, entity.Invalid("Missing name")
	}

	kind := entity.Kind(req.Kind)
	if !kind.Valid() {
		return nil, entity.Invalid("Missing type")
	}

	if req.Data == "" && kind != entity.KindFolder {
		return nil, entity.Invalid("Missing data")
	}

	parent := entity.ParseParentRef(req.Parent)
	if parentID, ok := parent.FolderID(); ok {
		parentFile, err := s.meta.FileByID(ctx, parentID)
		if errors.Is(err, entity.ErrNotFound) {
			return nil, entity.ErrParentNotFound
		}
		if err != nil {
			return nil, err
		}
		if !parentFile.Kind.IsFolder() {
			return nil, entity.ErrParentNotFolder
		}
	}

	file := &entity.File{
		OwnerID:  ownerID,
		Name:     req.Name,
		Kind:     kind,
		Parent:   parent,
		IsPublic: req.IsPublic,
	}

	if kind != entity.KindFolder {
		payload, err := base64.StdEncoding.DecodeString(req.Data)
		if err != nil {
			return nil, entity.Invalid("Missing data")
		}

		path := s.blobs.NewPath()
		if err := s.blobs.Write(path, payload); err != nil {
			return nil, fmt.Errorf("failed to write blob: %w", err)
		}
		file.LocalPath = path
	}

	created, err := s.meta.CreateFile(ctx, file)
	if err != nil {
		return nil, err
	}

	if kind == entity.KindImage {
		if err := s.jobs.Enqueue(ctx, ownerID, created.ID); err != nil {
			s.logger.Printf("failed to enqueue thumbnail job for %s: %v", created.ID, err)
		}
	}

	return created, nil
}

// Get returns the file with id, scoped to ownerID.
func (s *Files) Get(ctx context.Context, ownerID, id string) (*entity.File, error) {
	return s.meta.FileByIDAndOwner(ctx, id, ownerID)
}

// List returns one page of ownerID's files under the given parent
// reference. Pages are zero-based windows of 20 in insertion order.
func (s *Files) List(ctx context.Context, ownerID, parent string, page int) ([]*entity.File, error) {
	return s.meta.ChildrenByParent(ctx, ownerID, entity.ParseParentRef(parent), page)
}

// Publish makes the file readable by anyone. Idempotent.
func (s *Files) Publish(ctx context.Context, ownerID, id string) (*entity.File, error) {
	return s.setVisibility(ctx, ownerID, id, true)
}

// Unpublish restores private semantics. Idempotent.
func (s *Files) Unpublish(ctx context.Context, ownerID, id string) (*entity.File, error) {
	return s.setVisibility(ctx, ownerID, id, false)
}

func (s *Files) setVisibility(ctx context.Context, ownerID, id string, public bool) (*entity.File, error) {
	if _, err := s.meta.FileByIDAndOwner(ctx, id, ownerID); err != nil {
		return nil, err
	}
	return s.meta.SetVisibility(ctx, id, public)
}

// ReadContent resolves which blob to stream for a file. callerID may be
// empty for anonymous requests. If width is non-zero the matching variant
// is served and its absence is a not-found outcome with no fallback to the
// original; the caller explicitly asked for a size.
//
// A private file requested by anyone but its owner yields the same
// entity.ErrNotFound as true absence, so requests cannot probe for the
// existence of other users' files.
func (s *Files) ReadContent(ctx context.Context, callerID, id string, width int) (io.ReadCloser, *entity.File, error) {
	file, err := s.meta.FileByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	if !file.IsPublic && (callerID == "" || callerID != file.OwnerID) {
		return nil, nil, entity.ErrNotFound
	}

	if file.Kind.IsFolder() {
		return nil, nil, entity.ErrFolderNoContent
	}

	path := file.LocalPath
	if width != 0 {
		path = blob.VariantPath(path, width)
	}

	rc, err := s.blobs.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, entity.ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to open blob: %w", err)
	}

	return rc, file, nil
}

package thumb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/filevault/filevault/internal/blob"
	"github.com/filevault/filevault/internal/entity"
	"github.com/filevault/filevault/internal/queue"
)

// Widths is the fixed set of thumbnail variants generated for every image.
var Widths = []int{500, 250, 100}

// Generator consumes thumbnail jobs and writes resized variants next to the
// primary blob. Generation is idempotent: variant paths are deterministic
// and writes are full overwrites, so duplicate delivery is safe.
type Generator struct {
	meta   MetadataStore
	blobs  *blob.Store
	logger *log.Logger
}

// MetadataStore is the slice of the metadata store the generator needs to
// re-derive ownership.
type MetadataStore interface {
	FileByIDAndOwner(ctx context.Context, id, ownerID string) (*entity.File, error)
}

func New(meta MetadataStore, blobs *blob.Store) *Generator {
	return &Generator{
		meta:   meta,
		blobs:  blobs,
		logger: log.New(os.Stdout, "[Thumbnail] ", log.LstdFlags),
	}
}

// Process handles one job through its lifecycle: validate the payload,
// re-resolve the file for the claimed owner, then generate all variants
// concurrently. The job only succeeds if every width succeeds; partial
// output is never acknowledged, and a retry overwrites whatever landed.
//
// Ownership is re-derived here rather than trusted from the payload: the
// job is a hint, not authorization.
func (g *Generator) Process(ctx context.Context, job queue.Job) error {
	if job.FileID == "" {
		return fmt.Errorf("%w: missing fileId", queue.ErrPermanent)
	}
	if job.OwnerID == "" {
		return fmt.Errorf("%w: missing userId", queue.ErrPermanent)
	}

	file, err := g.meta.FileByIDAndOwner(ctx, job.FileID, job.OwnerID)
	if errors.Is(err, entity.ErrNotFound) {
		return fmt.Errorf("%w: file %s not found for owner", queue.ErrPermanent, job.FileID)
	}
	if err != nil {
		return fmt.Errorf("failed to resolve file %s: %w", job.FileID, err)
	}

	src, err := g.decode(file.LocalPath)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", job.FileID, err)
	}

	format, err := imaging.FormatFromFilename(file.Name)
	if err != nil {
		format = imaging.PNG
	}

	var wg sync.WaitGroup
	errs := make(chan error, len(Widths))
	for _, width := range Widths {
		wg.Add(1)
		go func(width int) {
			defer wg.Done()
			if err := g.generate(src, format, file.LocalPath, width); err != nil {
				errs <- fmt.Errorf("width %d: %w", width, err)
			}
		}(width)
	}
	wg.Wait()
	close(errs)

	if err := <-errs; err != nil {
		return fmt.Errorf("thumbnail generation for %s: %w", job.FileID, err)
	}

	g.logger.Printf("generated %d variants for %s", len(Widths), job.FileID)
	return nil
}

func (g *Generator) decode(path string) (image.Image, error) {
	f, err := g.blobs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return imaging.Decode(f)
}

func (g *Generator) generate(src image.Image, format imaging.Format, path string, width int) error {
	resized := imaging.Resize(src, width, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, resized, format); err != nil {
		return err
	}

	return g.blobs.Write(blob.VariantPath(path, width), buf.Bytes())
}

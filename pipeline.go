package epaper

import (
	"context"
	"crypto/sha1"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// ErrDecode is returned when an image cannot be decoded.
var ErrDecode = errors.New("epaper: cannot decode image")

// Ignore any file greater than 64 MB
const maxImageSize = 64 << (10 * 2)

var imageExtensions = map[string]struct{}{
	".bmp":  {},
	".gif":  {},
	".jpeg": {},
	".jpg":  {},
	".png":  {},
	".tif":  {},
	".tiff": {},
	".webp": {},
}

// decodeImage decodes r and returns the image along with the hex SHA-1 of
// every byte in r.
func decodeImage(r io.Reader) (image.Image, string, error) {
	h := sha1.New()
	tr := io.TeeReader(r, h)

	m, _, err := image.Decode(tr)
	if err != nil {
		return nil, "", err
	}

	// Decoders don't always read to the end
	if _, err := io.Copy(io.Discard, tr); err != nil {
		return nil, "", err
	}

	return m, fmt.Sprintf("%X", h.Sum(nil)), nil
}

// DecodeFile decodes the image in file.
func DecodeFile(file string) (image.Image, error) {
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, file, err)
	}
	return m, nil
}

// Store converts the image read from r and adds it to db under name. If the
// image was already converted with the same profile the existing frame is
// kept and stored is false.
func (c *Converter) Store(db *FrameDB, name string, r io.Reader) (id uuid.UUID, stored bool, err error) {
	m, sha, err := decodeImage(r)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("%w: %s: %w", ErrDecode, name, err)
	}

	f, err := db.FindFrame(sha, c.opts.Profile)
	if err != nil {
		return uuid.Nil, false, err
	}
	if f != nil {
		c.logger.Debug("already converted", "name", name, "sha1", sha, "id", f.ID)
		return f.ID, false, nil
	}

	b, err := c.Convert(m)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("epaper: %s: %w", name, err)
	}

	if id, stored, err = db.AddFrame(sha, c.opts.Profile, name, b); err != nil {
		return uuid.Nil, false, err
	}

	if stored {
		c.logger.Info("stored frame", "name", name, "id", id)
	}

	return id, stored, nil
}

func (c *Converter) storeFile(db *FrameDB, file string) (bool, error) {
	f, err := os.Open(file)
	if err != nil {
		return false, err
	}
	defer f.Close()

	_, stored, err := c.Store(db, file, f)
	return stored, err
}

func (c *Converter) findImages(ctx context.Context, base string) (<-chan string, <-chan error, error) {
	out := make(chan string)
	errc := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errc)
		errc <- filepath.Walk(base, func(file string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}

			// Ignore any hidden files or directories, otherwise we end up fighting with things like Spotlight, etc.
			if info.Name()[0] == '.' && file != base {
				if info.Mode().IsDir() {
					return filepath.SkipDir
				}
				return nil
			}

			// Ignore anything that isn't a normal file
			if !info.Mode().IsRegular() {
				return nil
			}

			if info.Size() > maxImageSize {
				c.logger.Warn("skipping large file", "file", file, "size", info.Size())
				return nil
			}

			if _, ok := imageExtensions[strings.ToLower(filepath.Ext(file))]; !ok {
				return nil
			}

			select {
			case out <- file:
			case <-ctx.Done():
				return ctx.Err()
			}

			return nil
		})
	}()
	return out, errc, nil
}

func (c *Converter) imageWorker(ctx context.Context, db *FrameDB, in <-chan string, stored *atomic.Int64) (<-chan error, error) {
	errc := make(chan error, 1)
	go func() {
		defer close(errc)
		for file := range in {
			if ctx.Err() != nil {
				return
			}

			ok, err := c.storeFile(db, file)
			if errors.Is(err, ErrDecode) {
				c.logger.Warn("skipping file", "file", file, "error", err)
				continue
			}
			if err != nil {
				errc <- err
				return
			}
			if ok {
				stored.Add(1)
			}
		}
	}()
	return errc, nil
}

func waitForPipeline(cancel context.CancelFunc, errs ...<-chan error) error {
	errc := mergeErrors(errs...)
	var first error
	for err := range errc {
		if err != nil && first == nil {
			first = err
			cancel()
		}
	}
	return first
}

func mergeErrors(cs ...<-chan error) <-chan error {
	var wg sync.WaitGroup
	out := make(chan error, len(cs))
	wg.Add(len(cs))
	for _, c := range cs {
		go func(c <-chan error) {
			for n := range c {
				out <- n
			}
			wg.Done()
		}(c)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}

// Scan converts every image found under path and stores it in db. It
// returns the number of new frames stored. Images already converted with
// the same profile are skipped.
func (c *Converter) Scan(ctx context.Context, db *FrameDB, path string) (int, error) {
	dir, err := filepath.Abs(path)
	if err != nil {
		return 0, err
	}

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	var (
		errcList []<-chan error
		stored   atomic.Int64
	)

	files, errc, err := c.findImages(ctx, dir)
	if err != nil {
		return 0, err
	}
	errcList = append(errcList, errc)

	for i := 0; i < c.opts.Workers; i++ {
		errc, err := c.imageWorker(ctx, db, files, &stored)
		if err != nil {
			return 0, err
		}
		errcList = append(errcList, errc)
	}

	err = waitForPipeline(cancelFunc, errcList...)

	n := int(stored.Load())
	c.logger.Info("scan finished", "path", dir, "stored", n)

	return n, err
}

// Package sink writes crawl artifacts to a local path or an object store
// bucket.
package sink

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob" // gs://
	_ "gocloud.dev/blob/s3blob"  // s3://

	"eci-results-crawler/internal/ioformats"
	"eci-results-crawler/internal/models"
)

// Destination is one artifact location: a bucket plus the object key.
type Destination struct {
	bucket *blob.Bucket
	key    string
	uri    string
	format ioformats.Format
	zstd   bool
}

// Open resolves dest. A plain path is written through the local filesystem
// (directories are created); gs://, s3:// and file:// URLs name a bucket
// and key.
func Open(ctx context.Context, dest string) (*Destination, error) {
	format, err := ioformats.FormatFromPath(dest)
	if err != nil {
		return nil, err
	}
	d := &Destination{format: format, zstd: ioformats.Compressed(dest), uri: dest}

	if u, err := url.Parse(dest); err == nil && u.Scheme != "" && len(u.Scheme) > 1 {
		key := strings.TrimPrefix(u.Path, "/")
		if u.Scheme == "file" {
			// file:///dir/name.csv -> bucket file:///dir, key name.csv
			dir, name := filepath.Split(u.Path)
			d.bucket, err = fileblob.OpenBucket(dir, &fileblob.Options{CreateDir: true})
			d.key = name
		} else {
			bucketURL := *u
			bucketURL.Path = ""
			d.bucket, err = blob.OpenBucket(ctx, bucketURL.String())
			d.key = key
		}
		if err != nil {
			return nil, fmt.Errorf("open bucket for %s: %w", dest, err)
		}
		return d, nil
	}

	abs, err := filepath.Abs(dest)
	if err != nil {
		return nil, err
	}
	dir, name := filepath.Split(abs)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	d.bucket, err = fileblob.OpenBucket(dir, &fileblob.Options{CreateDir: true})
	if err != nil {
		return nil, fmt.Errorf("open directory %s: %w", dir, err)
	}
	d.key = name
	return d, nil
}

func (d *Destination) URI() string { return d.uri }

func (d *Destination) Format() ioformats.Format { return d.format }

// write streams one object. The object only becomes visible when the
// writer closes without error; on failure the write context is cancelled
// first so the partial object is discarded.
func (d *Destination) write(ctx context.Context, fn func(io.Writer) error) error {
	wctx, cancel := context.WithCancel(ctx)
	defer cancel()

	bw, err := d.bucket.NewWriter(wctx, d.key, &blob.WriterOptions{ContentType: contentType(d.format, d.zstd)})
	if err != nil {
		return fmt.Errorf("create writer for %s: %w", d.uri, err)
	}
	abort := func(err error) error {
		cancel()
		_ = bw.Close()
		return err
	}

	var w io.Writer = bw
	var zw *zstd.Encoder
	if d.zstd {
		if zw, err = zstd.NewWriter(bw); err != nil {
			return abort(err)
		}
		w = zw
	}

	if err := fn(w); err != nil {
		return abort(fmt.Errorf("write %s: %w", d.uri, err))
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return abort(fmt.Errorf("compress %s: %w", d.uri, err))
		}
	}
	if err := bw.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", d.uri, err)
	}
	return nil
}

func (d *Destination) WriteDataset(ctx context.Context, ds *models.ResultDataset) error {
	return d.write(ctx, func(w io.Writer) error {
		return ioformats.WriteRecords(w, d.format, ds)
	})
}

func (d *Destination) WriteAcceptedKeys(ctx context.Context, keys []models.AcceptedKey) error {
	return d.write(ctx, func(w io.Writer) error {
		return ioformats.WriteAcceptedKeys(w, d.format, keys)
	})
}

// ReadAcceptedKeys reads a key list previously written to this destination.
func (d *Destination) ReadAcceptedKeys(ctx context.Context) ([]models.AcceptedKey, error) {
	br, err := d.bucket.NewReader(ctx, d.key, nil)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d.uri, err)
	}
	defer br.Close()

	var r io.Reader = br
	if d.zstd {
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, err
		}
		defer zr.Close()
		r = zr
	}
	return ioformats.DecodeAcceptedKeys(r, d.format)
}

func (d *Destination) Close() error { return d.bucket.Close() }

func contentType(f ioformats.Format, compressed bool) string {
	if compressed {
		return "application/zstd"
	}
	switch f {
	case ioformats.CSV:
		return "text/csv"
	case ioformats.NDJSON:
		return "application/x-ndjson"
	}
	return "application/octet-stream"
}

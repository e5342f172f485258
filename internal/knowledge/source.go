package knowledge

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/peejay10/line-llama-chatbot/internal/errors"
)

// ColumnMapping names the workbook columns that carry questions and
// answers. Answer columns other than the question column are kept
// verbatim in each Record.
type ColumnMapping struct {
	QuestionColumn string
}

// parseSheet decodes one CSV sheet into records. The first row is the
// header; rows with an empty question cell are skipped.
func parseSheet(r io.Reader, category Category, mapping ColumnMapping) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // Sheets may have ragged rows
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: empty sheet", category.FileName())
	}
	if err != nil {
		return nil, fmt.Errorf("%s: read header: %w", category.FileName(), err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}

	questionIdx := -1
	for i, h := range header {
		if h == mapping.QuestionColumn {
			questionIdx = i
			break
		}
	}
	if questionIdx < 0 {
		return nil, fmt.Errorf("%s: question column %q not found in header %v",
			category.FileName(), mapping.QuestionColumn, header)
	}

	var records []Record
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: read row: %w", category.FileName(), err)
		}
		if questionIdx >= len(row) || strings.TrimSpace(row[questionIdx]) == "" {
			continue
		}
		rec := make(Record, len(header))
		for i, h := range header {
			if i < len(row) {
				rec[h] = strings.TrimSpace(row[i])
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// DirSource loads the workbook from CSV files in a local directory:
// general.csv, by_term.csv, and by_semester.csv.
type DirSource struct {
	dir     string
	mapping ColumnMapping
}

// NewDirSource creates a directory-backed workbook source.
func NewDirSource(dir string, mapping ColumnMapping) *DirSource {
	return &DirSource{dir: dir, mapping: mapping}
}

// Name implements Source.
func (d *DirSource) Name() string { return "dir" }

// Load implements Source. A missing sheet file yields an empty category,
// not an error; an unreadable or malformed sheet fails the whole load.
func (d *DirSource) Load(ctx context.Context) (*Snapshot, error) {
	records := make(map[Category][]Record, len(SearchOrder))
	for _, c := range SearchOrder {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(d.dir, c.FileName())
		f, err := os.Open(path)
		if os.IsNotExist(err) {
			records[c] = nil
			continue
		}
		if err != nil {
			return nil, apperrors.NewSourceError(d.Name(), c.String(), err)
		}
		recs, err := parseSheet(f, c, d.mapping)
		_ = f.Close()
		if err != nil {
			return nil, apperrors.NewSourceError(d.Name(), c.String(), err)
		}
		records[c] = recs
	}
	return NewSnapshot(records), nil
}

// ObjectFetcher downloads one object by key. Implemented by the
// objstore client.
type ObjectFetcher interface {
	Download(ctx context.Context, key string) ([]byte, error)
}

// BucketSource loads the workbook from object storage. Each category is
// one CSV object under the configured prefix; a ".zst" variant is tried
// first and transparently decompressed by the fetcher.
type BucketSource struct {
	fetcher ObjectFetcher
	prefix  string
	mapping ColumnMapping
}

// NewBucketSource creates an object-storage-backed workbook source.
func NewBucketSource(fetcher ObjectFetcher, prefix string, mapping ColumnMapping) *BucketSource {
	return &BucketSource{fetcher: fetcher, prefix: prefix, mapping: mapping}
}

// Name implements Source.
func (b *BucketSource) Name() string { return "bucket" }

// Load implements Source.
func (b *BucketSource) Load(ctx context.Context) (*Snapshot, error) {
	records := make(map[Category][]Record, len(SearchOrder))
	for _, c := range SearchOrder {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := b.fetch(ctx, c)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				records[c] = nil
				continue
			}
			return nil, apperrors.NewSourceError(b.Name(), c.String(), err)
		}
		recs, err := parseSheet(bytes.NewReader(data), c, b.mapping)
		if err != nil {
			return nil, apperrors.NewSourceError(b.Name(), c.String(), err)
		}
		records[c] = recs
	}
	return NewSnapshot(records), nil
}

func (b *BucketSource) fetch(ctx context.Context, c Category) ([]byte, error) {
	key := b.key(c)
	data, err := b.fetcher.Download(ctx, key+".zst")
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}
	return b.fetcher.Download(ctx, key)
}

func (b *BucketSource) key(c Category) string {
	if b.prefix == "" {
		return c.FileName()
	}
	return strings.TrimSuffix(b.prefix, "/") + "/" + c.FileName()
}

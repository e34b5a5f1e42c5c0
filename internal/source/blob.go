package source

import (
	"context"
	"fmt"
	"path"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/fileblob" // file:// driver
	_ "gocloud.dev/blob/gcsblob"  // gs:// driver
	_ "gocloud.dev/blob/s3blob"   // s3:// driver

	"github.com/takefinance/payslip-archiver/internal/payroll"
)

// BlobSource reads spreadsheet exports from a blob bucket. The ref passed
// to Fetch is the object key within the bucket.
type BlobSource struct {
	bucket *blob.Bucket
	url    string
	sheet  string
}

// NewBlobSource opens the bucket identified by a gocloud URL. sheet selects
// the workbook sheet for xlsx inputs.
func NewBlobSource(bucketURL, sheet string) (*BlobSource, error) {
	bucket, err := blob.OpenBucket(context.Background(), bucketURL)
	if err != nil {
		return nil, fmt.Errorf("%w: open bucket %s: %v", ErrSourceUnavailable, bucketURL, err)
	}
	return &BlobSource{bucket: bucket, url: bucketURL, sheet: sheet}, nil
}

// Fetch implements RecordSource.
func (s *BlobSource) Fetch(ctx context.Context, ref string) ([]payroll.EmployeeRecord, *Validation, error) {
	r, err := s.bucket.NewReader(ctx, ref, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: read %s/%s: %v", ErrSourceUnavailable, s.url, ref, err)
	}
	defer r.Close()

	return parse(r, path.Base(ref), s.sheet)
}

// Close releases the bucket connection.
func (s *BlobSource) Close() error {
	if s.bucket != nil {
		return s.bucket.Close()
	}
	return nil
}

// Package storage persists rendered payslip artifacts. Artifacts are
// organized into date-derived folders (YYYY-MM) under a configurable
// prefix; callers treat the resulting reference as opaque.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"
)

// ErrStoreUnavailable means the artifact store could not be reached or
// written. Per-record, recoverable: the batch continues.
var ErrStoreUnavailable = errors.New("artifact store unavailable")

// ArtifactRef describes where one payslip artifact lives.
type ArtifactRef struct {
	EmployeeID   string
	EmployeeName string
	Date         time.Time // drives the YYYY-MM folder and file name
	Kind         string    // "payslip" | "report"
	FileName     string    // explicit name; overrides the payslip convention
}

// Key returns the storage key for this artifact:
// <prefix><YYYY-MM>/Payroll_<YYYY-MM>_<id>_<safeName>.pdf for payslips,
// <prefix>reports/<YYYY-MM>/<FileName> for reports.
func (r ArtifactRef) Key(prefix string) string {
	month := r.Date.Format("2006-01")
	if r.Kind == "report" {
		return fmt.Sprintf("%sreports/%s/%s", prefix, month, r.FileName)
	}
	name := r.FileName
	if name == "" {
		name = fmt.Sprintf("Payroll_%s_%s_%s.pdf", month, r.EmployeeID, safeName(r.EmployeeName))
	}
	return fmt.Sprintf("%s%s/%s", prefix, month, name)
}

// safeName strips everything but letters, digits, spaces, dashes and
// underscores from an employee name, the same rule the export tooling uses.
func safeName(name string) string {
	var b strings.Builder
	for _, c := range name {
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == ' ' || c == '-' || c == '_' {
			b.WriteRune(c)
		}
	}
	return strings.TrimSpace(b.String())
}

// ArtifactStore persists artifacts and returns stable references.
type ArtifactStore interface {
	// Store writes the artifact and returns its canonical reference (URI).
	Store(ctx context.Context, data []byte, ref ArtifactRef) (string, error)

	// Exists reports whether the artifact is already stored.
	Exists(ctx context.Context, ref ArtifactRef) (bool, error)

	// URI returns the canonical URI for the given key.
	URI(key string) string

	// Close releases any resources.
	Close() error
}

// Config configures the artifact store backend.
type Config struct {
	Backend string `yaml:"backend"` // "local" | "gcs" | "s3"

	LocalDir string `yaml:"local_dir"`

	GCSBucket string `yaml:"gcs_bucket"`

	S3Bucket   string `yaml:"s3_bucket"`
	S3Endpoint string `yaml:"s3_endpoint"` // custom endpoint for B2/MinIO/R2
	S3Region   string `yaml:"s3_region"`

	Prefix string `yaml:"prefix"` // path prefix within bucket or local dir
}

// NewArtifactStore creates a storage backend based on configuration.
func NewArtifactStore(cfg Config) (ArtifactStore, error) {
	switch cfg.Backend {
	case "", "local":
		if cfg.LocalDir == "" {
			return nil, fmt.Errorf("local_dir required for local backend")
		}
		return NewLocalStore(cfg.LocalDir, cfg.Prefix)
	case "gcs":
		if cfg.GCSBucket == "" {
			return nil, fmt.Errorf("gcs_bucket required for gcs backend")
		}
		return NewGCSStore(cfg.GCSBucket, cfg.Prefix)
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3_bucket required for s3 backend")
		}
		return NewS3Store(cfg.S3Bucket, cfg.Prefix, cfg.S3Endpoint, cfg.S3Region)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

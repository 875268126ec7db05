// Package storage describes the object store published reports land in and
// the key layout reports/<yyyy-mm-dd>/<name>.md.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"
)

const (
	ReportRoot = "reports"
	reportExt  = ".md"
	dayLayout  = "2006-01-02"
)

var (
	ErrObjectNotFound   = errors.New("object not found")
	ErrInvalidReportKey = errors.New("invalid report key")
)

var (
	nameComponent  = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)
	slugSeparators = regexp.MustCompile(`[^a-z0-9]+`)
)

type ObjectInfo struct {
	Key          string
	Size         int64
	ETag         string
	LastModified time.Time
}

type PutOptions struct {
	ContentType string
	Metadata    map[string]string
}

// ObjectStore keys are relative to the store's own prefix.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, opts PutOptions) (ObjectInfo, error)
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, key string) (ObjectInfo, error)
	List(ctx context.Context, prefix string) ([]ObjectInfo, error)
}

// Presigner hands out time-limited download links.
type Presigner interface {
	PresignGet(ctx context.Context, key string, expiry time.Duration) (*url.URL, error)
}

// BuildReportKey returns reports/<yyyy-mm-dd>/<name>.md for the UTC day of at.
func BuildReportKey(name string, at time.Time) (string, error) {
	name = strings.TrimSuffix(name, reportExt)
	if !nameComponent.MatchString(name) {
		return "", fmt.Errorf("%w: report name %q", ErrInvalidReportKey, name)
	}
	return path.Join(ReportRoot, at.UTC().Format(dayLayout), name+reportExt), nil
}

// ReportKey validates day and name taken from a request path and joins them.
func ReportKey(day, name string) (string, error) {
	if _, err := time.Parse(dayLayout, day); err != nil {
		return "", fmt.Errorf("%w: day %q", ErrInvalidReportKey, day)
	}
	if !strings.HasSuffix(name, reportExt) || !nameComponent.MatchString(strings.TrimSuffix(name, reportExt)) {
		return "", fmt.Errorf("%w: report name %q", ErrInvalidReportKey, name)
	}
	return path.Join(ReportRoot, day, name), nil
}

// SplitReportKey is the inverse of ReportKey.
func SplitReportKey(key string) (day, name string, err error) {
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != ReportRoot {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidReportKey, key)
	}
	if _, err := ReportKey(parts[1], parts[2]); err != nil {
		return "", "", err
	}
	return parts[1], parts[2], nil
}

// ReportName derives a key-safe file name from a report title and time.
func ReportName(title string, at time.Time) string {
	slug := strings.Trim(slugSeparators.ReplaceAllString(strings.ToLower(title), "-"), "-")
	if slug == "" {
		slug = "report"
	}
	if len(slug) > 96 {
		slug = strings.TrimRight(slug[:96], "-")
	}
	return slug + "-" + at.UTC().Format("150405")
}

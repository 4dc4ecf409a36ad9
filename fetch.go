package bucketnotify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// ObjectGetter reads an object from Amazon S3.
// This is satisfied by *s3.Client.
type ObjectGetter interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// fetch reads location, which is a local path or a file://, http(s):// or
// s3:// URL. getter may be nil when no s3:// location is used.
func fetch(ctx context.Context, getter ObjectGetter, location string) ([]byte, error) {
	u, err := url.Parse(location)
	if err != nil {
		return os.ReadFile(filepath.Clean(location))
	}
	switch u.Scheme {
	case "http", "https":
		return fetchFromHTTP(ctx, u)
	case "s3":
		return fetchFromS3(ctx, getter, u)
	case "file":
		return os.ReadFile(filepath.Clean(u.Path))
	case "":
		return os.ReadFile(filepath.Clean(location))
	default:
		return nil, fmt.Errorf("scheme %s is not supported", u.Scheme)
	}
}

func fetchFromHTTP(ctx context.Context, u *url.URL) ([]byte, error) {
	slog.InfoContext(ctx, "fetching event", "url", u.Redacted())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch failed: HTTP %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}

func fetchFromS3(ctx context.Context, getter ObjectGetter, u *url.URL) ([]byte, error) {
	if getter == nil {
		return nil, fmt.Errorf("no S3 client to fetch %s", u)
	}
	key := strings.TrimLeft(u.Path, "/")
	slog.DebugContext(ctx, "try get object", "bucket", u.Host, "key", key)
	output, err := getter.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(u.Host),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from S3: %w", err)
	}
	defer output.Body.Close()
	return io.ReadAll(output.Body)
}

// locationExt returns the extension of the path part of location.
func locationExt(location string) string {
	if u, err := url.Parse(location); err == nil && u.Scheme != "" {
		return strings.ToLower(filepath.Ext(u.Path))
	}
	return strings.ToLower(filepath.Ext(location))
}

/*
Copyright © 2019 the canopyflux authors.
This file is part of canopyflux.

canopyflux is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

canopyflux is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with canopyflux.  If not, see <http://www.gnu.org/licenses/>.
*/

// Package cloud reads and writes files in blob storage on the local
// filesystem, Google Cloud Storage or AWS S3.
package cloud

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/cenkalti/backoff"
	"github.com/sirupsen/logrus"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/gcsblob"
	"gocloud.dev/blob/s3blob"
	"gocloud.dev/gcerrors"
	"gocloud.dev/gcp"
)

// maxRetries is the number of times a failed blob operation is retried.
const maxRetries = 4

// location is a parsed blob location. For the "file" provider, the
// bucket is a directory.
type location struct {
	provider, bucket, key string
}

func (l location) bucketURL() string { return l.provider + "://" + l.bucket }

// providers open a bucket by name.
var providers = map[string]func(ctx context.Context, bucket string) (*blob.Bucket, error){
	"file": func(_ context.Context, dir string) (*blob.Bucket, error) {
		return fileblob.OpenBucket(dir, nil)
	},
	"gs": gsBucket,
	"s3": s3Bucket,
}

// parse splits a blob location of the form "provider://bucket/key".
// If needKey is false, the location may refer to a bucket only.
func parse(name string, needKey bool) (location, error) {
	u, err := url.Parse(name)
	if err != nil {
		return location{}, fmt.Errorf("cloud: parsing blob location: %v", err)
	}
	if _, ok := providers[u.Scheme]; !ok {
		return location{}, fmt.Errorf("cloud: invalid provider %q in %s", u.Scheme, name)
	}
	l := location{provider: u.Scheme}
	if u.Scheme == "file" {
		p := u.Host + u.Path
		if !needKey {
			l.bucket = p
			return l, nil
		}
		l.bucket, l.key = filepath.Dir(p), filepath.Base(p)
		return l, nil
	}
	l.bucket, l.key = u.Host, strings.TrimPrefix(u.Path, "/")
	if needKey && l.key == "" {
		return location{}, fmt.Errorf("cloud: blob location %s has no key", name)
	}
	return l, nil
}

// splitURL splits the location of a blob into the bucket that holds it
// and its key within the bucket.
func splitURL(fileURL string) (bucketURL, key string, err error) {
	l, err := parse(fileURL, true)
	if err != nil {
		return "", "", err
	}
	return l.bucketURL(), l.key, nil
}

// IsURL returns whether name is a blob location, i.e., whether it
// starts with a provider name followed by "://".
func IsURL(name string) bool {
	i := strings.Index(name, "://")
	return i > 0 && !strings.ContainsAny(name[:i], `/\`)
}

// OpenBucket returns the bucket at bucketURL, which has the form
// "provider://name". Providers are "file" for a directory on the local
// filesystem (e.g., file:///tmp/output), "gs" for Google Cloud Storage
// and "s3" for AWS S3.
func OpenBucket(ctx context.Context, bucketURL string) (*blob.Bucket, error) {
	l, err := parse(bucketURL, false)
	if err != nil {
		return nil, err
	}
	b, err := providers[l.provider](ctx, l.bucket)
	if err != nil {
		return nil, fmt.Errorf("cloud: opening bucket %s: %v", bucketURL, err)
	}
	return b, nil
}

// gsBucket uses the application default credentials.
func gsBucket(ctx context.Context, name string) (*blob.Bucket, error) {
	creds, err := gcp.DefaultCredentials(ctx)
	if err != nil {
		return nil, err
	}
	c, err := gcp.NewHTTPClient(gcp.DefaultTransport(), gcp.CredentialsTokenSource(creds))
	if err != nil {
		return nil, err
	}
	return gcsblob.OpenBucket(ctx, c, name, nil)
}

// s3Bucket takes its credentials from AWS_ACCESS_KEY_ID and
// AWS_SECRET_ACCESS_KEY and its region from AWS_REGION.
func s3Bucket(ctx context.Context, name string) (*blob.Bucket, error) {
	region := os.Getenv("AWS_REGION")
	if region == "" {
		region = "us-east-2"
	}
	s, err := session.NewSession(&aws.Config{
		Region:      aws.String(region),
		Credentials: credentials.NewEnvCredentials(),
	})
	if err != nil {
		return nil, fmt.Errorf("creating AWS session: %v", err)
	}
	return s3blob.OpenBucket(ctx, s, name, nil)
}

// WriteFile writes data to the blob at fileURL, which has the form
// "provider://bucket/key", retrying with exponential backoff on failure.
func WriteFile(ctx context.Context, fileURL string, data []byte) error {
	bucketURL, key, err := splitURL(fileURL)
	if err != nil {
		return err
	}
	bucket, err := OpenBucket(ctx, bucketURL)
	if err != nil {
		return err
	}
	defer bucket.Close()
	return retry(ctx, func() error {
		return writeBlob(ctx, bucket, key, data)
	})
}

// ReadFile reads the blob at fileURL, which has the form
// "provider://bucket/key", retrying with exponential backoff on failure.
// A missing blob is not retried.
func ReadFile(ctx context.Context, fileURL string) ([]byte, error) {
	bucketURL, key, err := splitURL(fileURL)
	if err != nil {
		return nil, err
	}
	bucket, err := OpenBucket(ctx, bucketURL)
	if err != nil {
		return nil, err
	}
	defer bucket.Close()
	var data []byte
	err = retry(ctx, func() error {
		var err error
		data, err = bucket.ReadAll(ctx, key)
		if err != nil {
			return fmt.Errorf("cloud: reading blob %s: %w", key, err)
		}
		return nil
	})
	return data, err
}

// retry runs op until it succeeds, maxRetries is reached or op returns
// an error with a code that won't change on retrying.
func retry(ctx context.Context, op func() error) error {
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	return backoff.RetryNotify(func() error {
		err := op()
		switch gcerrors.Code(err) {
		case gcerrors.NotFound, gcerrors.InvalidArgument, gcerrors.PermissionDenied:
			return backoff.Permanent(err)
		}
		return err
	}, b, func(err error, d time.Duration) {
		logrus.WithError(err).Warnf("cloud: retrying in %v", d)
	})
}

// writeBlob writes the given data to the given bucket.
func writeBlob(ctx context.Context, bucket *blob.Bucket, key string, data []byte) error {
	w, err := bucket.NewWriter(ctx, key, nil)
	if err != nil {
		return fmt.Errorf("cloud: creating writer for blob %s: %w", key, err)
	}
	if _, err = io.Copy(w, bytes.NewReader(data)); err != nil {
		w.Close()
		return fmt.Errorf("cloud: copying blob %s: %w", key, err)
	}
	if err = w.Close(); err != nil {
		return fmt.Errorf("cloud: writing blob %s: %w", key, err)
	}
	return nil
}

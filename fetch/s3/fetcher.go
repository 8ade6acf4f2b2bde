// Package s3 serves fetch requests with ranged S3 GetObject calls.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/rs/zerolog"

	"github.com/viant/lodstream/fetch"
)

// Client abstracts the S3 API operation used by Fetcher. The s3.Client type
// satisfies this interface.
type Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// Fetcher issues one GetObject per request on its own goroutine.
type Fetcher struct {
	client Client
	bucket string
	logger zerolog.Logger
}

// Option configures a Fetcher.
type Option func(f *Fetcher)

// WithBucket sets the bucket used for sources that are plain keys.
func WithBucket(bucket string) Option {
	return func(f *Fetcher) { f.bucket = bucket }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(f *Fetcher) { f.logger = logger }
}

// New creates a fetcher over client.
func New(client Client, options ...Option) *Fetcher {
	ret := &Fetcher{client: client, logger: zerolog.Nop()}
	for _, opt := range options {
		opt(ret)
	}
	return ret
}

// Fetch implements fetch.Fetcher. Sources are either s3://bucket/key URLs or
// keys within the configured bucket.
func (f *Fetcher) Fetch(ctx context.Context, request *fetch.Request, progress fetch.ProgressFunc, done fetch.DoneFunc) {
	bucket, key, err := f.location(request.Source)
	if err != nil {
		done(&fetch.Result{Err: err})
		return
	}
	req := *request
	go func() {
		data, err := f.get(ctx, bucket, key, &req, progress)
		if err != nil {
			f.logger.Debug().Err(err).Str("request", req.String()).Msg("s3 range read failed")
		}
		done(&fetch.Result{Data: data, Err: err})
	}()
}

func (f *Fetcher) get(ctx context.Context, bucket, key string, request *fetch.Request, progress fetch.ProgressFunc) ([]byte, error) {
	if request.Size <= 0 {
		return []byte{}, nil
	}
	out, err := f.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Range:  aws.String(ByteRange(request.Offset, request.Size)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, fmt.Errorf("%w: s3://%s/%s", fetch.ErrNotFound, bucket, key)
		}
		if isInvalidRange(err) {
			return nil, fmt.Errorf("%w: %s", fetch.ErrOutOfRange, request)
		}
		return nil, err
	}
	defer out.Body.Close()
	body := io.Reader(out.Body)
	if progress != nil {
		body = &progressReader{reader: body, total: request.Size, progress: progress}
	}
	data, err := io.ReadAll(io.LimitReader(body, request.Size))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) < request.Size {
		return nil, fmt.Errorf("%w: %s returned %d bytes", fetch.ErrOutOfRange, request, len(data))
	}
	return data, nil
}

func (f *Fetcher) location(source string) (bucket, key string, err error) {
	if rest, ok := strings.CutPrefix(source, "s3://"); ok {
		bucket, key, _ = strings.Cut(rest, "/")
	} else {
		bucket, key = f.bucket, strings.TrimPrefix(source, "/")
	}
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("s3 fetcher: invalid source %q", source)
	}
	return bucket, key, nil
}

// ByteRange formats an HTTP Range header value for a window.
func ByteRange(offset, size int64) string {
	return fmt.Sprintf("bytes=%d-%d", offset, offset+size-1)
}

type progressReader struct {
	reader   io.Reader
	total    int64
	read     int64
	progress fetch.ProgressFunc
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.read += int64(n)
		r.progress(float32(min(r.read, r.total)) / float32(r.total))
	}
	return n, err
}

func isNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey", "NoSuchBucket":
			return true
		}
	}
	return false
}

func isInvalidRange(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "InvalidRange"
}

package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/storage"

	"github.com/viant/lodstream/fetch"
)

func newService(t *testing.T, chunk int) (*Service, string) {
	fs := afs.New()
	ctx := context.Background()
	URL := "mem://localhost/lodstream/asset.slod"
	require.NoError(t, fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader([]byte("0123456789abcdef"))))
	service, err := New(WithFS(fs), WithConfig(Config{Workers: 2, QueueBuffer: 8, ChunkSize: chunk}))
	require.NoError(t, err)
	service.Start(ctx)
	t.Cleanup(service.Shutdown)
	return service, URL
}

func TestService_Fetch(t *testing.T) {
	service, URL := newService(t, 2)
	testCases := []struct {
		description string
		request     fetch.Request
		expect      string
		expectErr   error
	}{
		{description: "head", request: fetch.Request{Source: URL, Offset: 0, Size: 4}, expect: "0123"},
		{description: "middle", request: fetch.Request{Source: URL, Offset: 10, Size: 3}, expect: "abc"},
		{description: "tail", request: fetch.Request{Source: URL, Offset: 12, Size: 4}, expect: "cdef"},
		{description: "past end", request: fetch.Request{Source: URL, Offset: 14, Size: 4}, expectErr: fetch.ErrOutOfRange},
		{description: "missing", request: fetch.Request{Source: "mem://localhost/lodstream/none.slod", Size: 1}, expectErr: fetch.ErrNotFound},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			data, err := fetch.Get(ctx, service, &testCase.request)
			if testCase.expectErr != nil {
				assert.ErrorIs(t, err, testCase.expectErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testCase.expect, string(data))
		})
	}
}

func TestService_Progress(t *testing.T) {
	service, URL := newService(t, 2)
	var mux sync.Mutex
	var rates []float32
	done := make(chan *fetch.Result, 1)
	service.Fetch(context.Background(), &fetch.Request{Source: URL, Offset: 2, Size: 6}, func(rate float32) {
		mux.Lock()
		rates = append(rates, rate)
		mux.Unlock()
	}, func(result *fetch.Result) { done <- result })
	select {
	case result := <-done:
		require.NoError(t, result.Err)
		assert.Equal(t, "234567", string(result.Data))
	case <-time.After(5 * time.Second):
		t.Fatal("fetch did not complete")
	}
	mux.Lock()
	defer mux.Unlock()
	require.Len(t, rates, 3)
	assert.InDelta(t, 1.0, rates[2], 1e-6)
}

func TestService_Closed(t *testing.T) {
	service, URL := newService(t, 4)
	service.Shutdown()
	_, err := fetch.Get(context.Background(), service, &fetch.Request{Source: URL, Size: 1})
	assert.ErrorIs(t, err, ErrClosed)
}

func TestService_OversizedWindow(t *testing.T) {
	service, URL := newService(t, 4)
	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, err := fetch.Get(context.Background(), service, &fetch.Request{Source: URL, Offset: 12, Size: 1 << 31})
	runtime.ReadMemStats(&after)
	assert.ErrorIs(t, err, fetch.ErrOutOfRange)
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(64<<20), "allocation follows the data read")
}

// flakyFS fails the first failures calls to OpenURL.
type flakyFS struct {
	afs.Service
	failures int32
	opens    atomic.Int32
}

var errUnavailable = errors.New("storage temporarily unavailable")

func (f *flakyFS) OpenURL(ctx context.Context, URL string, options ...storage.Option) (io.ReadCloser, error) {
	if f.opens.Add(1) <= f.failures {
		return nil, errUnavailable
	}
	return f.Service.OpenURL(ctx, URL, options...)
}

func TestService_Retry(t *testing.T) {
	testCases := []struct {
		description string
		failures    int32
		retries     int
		expect      string
		expectErr   error
		expectOpens int32
	}{
		{description: "recovers", failures: 2, retries: 2, expect: "0123", expectOpens: 3},
		{description: "exhausted", failures: 5, retries: 2, expectErr: errUnavailable, expectOpens: 3},
		{description: "disabled", failures: 1, retries: 0, expectErr: errUnavailable, expectOpens: 1},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			ctx := context.Background()
			fs := afs.New()
			URL := "mem://localhost/lodstream/retry.slod"
			require.NoError(t, fs.Upload(ctx, URL, file.DefaultFileOsMode, bytes.NewReader([]byte("0123456789"))))
			flaky := &flakyFS{Service: fs, failures: testCase.failures}
			service, err := New(WithFS(flaky), WithConfig(Config{Workers: 1, QueueBuffer: 4, ChunkSize: 4, Retries: testCase.retries, RetryDelayMs: 1}))
			require.NoError(t, err)
			service.Start(ctx)
			defer service.Shutdown()

			timeout, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			data, err := fetch.Get(timeout, service, &fetch.Request{Source: URL, Size: 4})
			if testCase.expectErr != nil {
				assert.ErrorIs(t, err, testCase.expectErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, testCase.expect, string(data))
			}
			assert.Equal(t, testCase.expectOpens, flaky.opens.Load())
		})
	}
}

func TestService_NotFoundIsFinal(t *testing.T) {
	fs := afs.New()
	flaky := &flakyFS{Service: fs}
	service, err := New(WithFS(flaky), WithConfig(Config{Workers: 1, ChunkSize: 4, Retries: 3, RetryDelayMs: 1}))
	require.NoError(t, err)
	service.Start(context.Background())
	defer service.Shutdown()
	_, err = fetch.Get(context.Background(), service, &fetch.Request{Source: "mem://localhost/lodstream/absent.slod", Size: 1})
	assert.ErrorIs(t, err, fetch.ErrNotFound)
	assert.EqualValues(t, 1, flaky.opens.Load())
}

func TestNew_Validation(t *testing.T) {
	_, err := New(WithConfig(Config{Workers: 0}))
	assert.Error(t, err)
	_, err = New(WithConfig(Config{Workers: 1, Retries: -1}))
	assert.Error(t, err)
}

package fetch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSlice(t *testing.T) {
	data := []byte("0123456789")
	testCases := []struct {
		description string
		offset      int64
		size        int64
		expect      string
		expectErr   bool
	}{
		{description: "middle", offset: 2, size: 3, expect: "234"},
		{description: "whole", offset: 0, size: 10, expect: "0123456789"},
		{description: "empty", offset: 10, size: 0, expect: ""},
		{description: "past end", offset: 8, size: 3, expectErr: true},
		{description: "negative", offset: -1, size: 1, expectErr: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			got, err := Slice(data, testCase.offset, testCase.size)
			if testCase.expectErr {
				assert.ErrorIs(t, err, ErrOutOfRange)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, testCase.expect, string(got))
		})
	}
}

func TestGet(t *testing.T) {
	fetcher := FetcherFunc(func(_ context.Context, request *Request, _ ProgressFunc, done DoneFunc) {
		if request.Source == "missing" {
			done(&Result{Err: ErrNotFound})
			return
		}
		go done(&Result{Data: []byte(request.String())})
	})
	data, err := Get(context.Background(), fetcher, &Request{Source: "a", Offset: 1, Size: 2})
	require.NoError(t, err)
	assert.Equal(t, "a[1:+2]", string(data))
	_, err = Get(context.Background(), fetcher, &Request{Source: "missing"})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRouter(t *testing.T) {
	named := func(name string) Fetcher {
		return FetcherFunc(func(_ context.Context, _ *Request, _ ProgressFunc, done DoneFunc) {
			done(&Result{Data: []byte(name)})
		})
	}
	router := NewRouter(named("default")).Route("S3", named("s3"))
	testCases := []struct {
		source string
		expect string
	}{
		{source: "s3://bucket/key", expect: "s3"},
		{source: "S3://bucket/key", expect: "s3"},
		{source: "file:///tmp/asset.slod", expect: "default"},
		{source: "/tmp/asset.slod", expect: "default"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.source, func(t *testing.T) {
			data, err := Get(context.Background(), router, &Request{Source: testCase.source})
			require.NoError(t, err)
			assert.Equal(t, testCase.expect, string(data))
		})
	}

	_, err := Get(context.Background(), NewRouter(nil), &Request{Source: "/tmp/asset.slod"})
	assert.ErrorIs(t, err, ErrNotFound)
}

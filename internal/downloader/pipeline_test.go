package downloader

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pinharvest/pkg/extract"
)

// fakeFetcher serves scripted payloads and tracks concurrency.
type fakeFetcher struct {
	mu       sync.Mutex
	payloads map[string][]byte
	failures map[string]error
	delay    time.Duration
	active   int
	peak     int
	calls    int
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls++
	f.active++
	if f.active > f.peak {
		f.peak = f.active
	}
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failures[url]; ok {
		return nil, err
	}
	if data, ok := f.payloads[url]; ok {
		return data, nil
	}
	return []byte("payload:" + url), nil
}

// fakeStore records saves in memory.
type fakeStore struct {
	mu       sync.Mutex
	saved    map[string][]byte
	existing map[string]bool
	saveErr  map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		saved:    make(map[string][]byte),
		existing: make(map[string]bool),
		saveErr:  make(map[string]error),
	}
}

func (s *fakeStore) Exists(url string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.existing[url]
}

func (s *fakeStore) Save(r io.Reader, url string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.saveErr[url]; ok {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.saved[url] = data
	s.existing[url] = true
	return s.PathForLocked(url), nil
}

func (s *fakeStore) PathFor(url string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.PathForLocked(url)
}

func (s *fakeStore) PathForLocked(url string) string {
	return "/media/" + url
}

func refs(urls ...string) []extract.MediaReference {
	out := make([]extract.MediaReference, len(urls))
	for i, u := range urls {
		out[i] = extract.MediaReference{SourceURL: u, OwnerKey: "owner"}
	}
	return out
}

func TestFetchAllOneOutcomePerRef(t *testing.T) {
	fetcher := &fakeFetcher{}
	store := newFakeStore()
	pipeline := NewPipeline(fetcher, store, 3)

	input := refs("a", "b", "c", "d")
	outcomes := pipeline.FetchAll(context.Background(), input)

	require.Len(t, outcomes, 4)
	for i, o := range outcomes {
		assert.Equal(t, input[i].SourceURL, o.Ref.SourceURL, "outcomes follow input order")
		assert.True(t, o.Success)
		assert.Equal(t, "/media/"+input[i].SourceURL, o.LocalPath)
	}
	assert.Len(t, store.saved, 4)
}

func TestFetchAllIsolatesSiblingFailures(t *testing.T) {
	fetcher := &fakeFetcher{failures: map[string]error{
		"b": fmt.Errorf("connection reset"),
	}}
	store := newFakeStore()
	pipeline := NewPipeline(fetcher, store, 2)

	outcomes := pipeline.FetchAll(context.Background(), refs("a", "b", "c"))

	require.Len(t, outcomes, 3)
	assert.True(t, outcomes[0].Success)
	assert.False(t, outcomes[1].Success)
	assert.Error(t, outcomes[1].Err)
	assert.True(t, outcomes[2].Success)
}

func TestFetchAllSkipsAlreadyStoredMedia(t *testing.T) {
	fetcher := &fakeFetcher{}
	store := newFakeStore()
	store.existing["a"] = true
	pipeline := NewPipeline(fetcher, store, 1)

	outcomes := pipeline.FetchAll(context.Background(), refs("a", "b"))

	require.Len(t, outcomes, 2)
	assert.True(t, outcomes[0].Success)
	assert.True(t, outcomes[1].Success)
	// Only the missing asset hit the network.
	assert.Equal(t, 1, fetcher.calls)
}

func TestFetchAllBoundsConcurrency(t *testing.T) {
	fetcher := &fakeFetcher{delay: 30 * time.Millisecond}
	store := newFakeStore()
	pipeline := NewPipeline(fetcher, store, 2)

	pipeline.FetchAll(context.Background(), refs("a", "b", "c", "d", "e", "f"))

	assert.LessOrEqual(t, fetcher.peak, 2)
}

func TestFetchAllReportsCancelledRemainder(t *testing.T) {
	fetcher := &fakeFetcher{delay: 50 * time.Millisecond}
	store := newFakeStore()
	pipeline := NewPipeline(fetcher, store, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()

	input := refs("a", "b", "c", "d", "e", "f", "g", "h")
	outcomes := pipeline.FetchAll(ctx, input)

	require.Len(t, outcomes, len(input))
	var failed int
	for _, o := range outcomes {
		if !o.Success {
			failed++
			assert.Error(t, o.Err)
		}
	}
	assert.Greater(t, failed, 0, "cancellation must surface in outcomes")
}

func TestFetchAllSaveFailureIsReported(t *testing.T) {
	fetcher := &fakeFetcher{}
	store := newFakeStore()
	store.saveErr["a"] = fmt.Errorf("disk full")
	pipeline := NewPipeline(fetcher, store, 1)

	outcomes := pipeline.FetchAll(context.Background(), refs("a"))
	require.Len(t, outcomes, 1)
	assert.False(t, outcomes[0].Success)
	assert.ErrorContains(t, outcomes[0].Err, "disk full")
}

func TestFetchAllEmptyInput(t *testing.T) {
	pipeline := NewPipeline(&fakeFetcher{}, newFakeStore(), 4)
	assert.Nil(t, pipeline.FetchAll(context.Background(), nil))
}

func TestClientFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.jpg" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		assert.NotEmpty(t, r.Header.Get("User-Agent"))
		w.Write([]byte("image-bytes"))
	}))
	defer server.Close()

	client := NewClient(5*time.Second, 0, "")

	data, err := client.Fetch(context.Background(), server.URL+"/photo.jpg")
	require.NoError(t, err)
	assert.Equal(t, []byte("image-bytes"), data)

	_, err = client.Fetch(context.Background(), server.URL+"/missing.jpg")
	require.Error(t, err)
}

func TestClientUserAgent(t *testing.T) {
	var got string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(5*time.Second, 0, "pinharvest-test/1.0")
	_, err := client.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "pinharvest-test/1.0", got)

	client = NewClient(5*time.Second, 0, "")
	_, err = client.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, defaultUserAgent, got)
}

func TestClientRateLimiterSpacesRequests(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(5*time.Second, 10, "")

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.Fetch(context.Background(), server.URL)
		require.NoError(t, err)
	}
	// 10 rps with burst 1 forces roughly 100ms between the extra requests.
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
}

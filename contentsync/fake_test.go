package contentsync

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/HughODwyer90/hugh.casa/data"
)

type call struct {
	Method string
	Path   string
	SHA    string // sha sent with a PUT
	Start  time.Time
	End    time.Time
}

// fakeStore is an in-memory GitHub contents API.
type fakeStore struct {
	t *testing.T

	mu      sync.Mutex
	objects map[string][]byte
	shas    map[string]string
	calls   []call
	// hook runs before a request is served; returning a status short-circuits it.
	hook func(method, path string, n int) int
	// beforePut runs after a PUT body is decoded and before the sha check.
	beforePut func(path string)
	delay     time.Duration
	srv       *httptest.Server
}

func newFakeStore(t *testing.T) *fakeStore {
	f := &fakeStore{
		t:       t,
		objects: map[string][]byte{},
		shas:    map[string]string{},
	}
	f.srv = httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(f.srv.Close)
	return f
}

func blobSHA(b []byte) string {
	h := sha1.New()
	fmt.Fprintf(h, "blob %d\x00", len(b))
	h.Write(b)
	return hex.EncodeToString(h.Sum(nil))
}

func (f *fakeStore) put(path string, content []byte) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[path] = content
	f.shas[path] = blobSHA(content)
	return f.shas[path]
}

func (f *fakeStore) get(path string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.objects[path]
	return b, ok
}

func (f *fakeStore) callsFor(method string) []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []call
	for _, c := range f.calls {
		if c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (f *fakeStore) allCalls() []call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]call(nil), f.calls...)
}

func (f *fakeStore) serve(w http.ResponseWriter, r *http.Request) {
	const prefix = "/repos/home/backup/contents/"
	start := time.Now()
	if !strings.HasPrefix(r.URL.Path, prefix) {
		http.NotFound(w, r)
		return
	}
	if got := r.Header.Get("Authorization"); got != "token secret" {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	path := strings.TrimPrefix(r.URL.Path, prefix)
	c := call{Method: r.Method, Path: path, Start: start}
	defer func() {
		c.End = time.Now()
		f.mu.Lock()
		f.calls = append(f.calls, c)
		f.mu.Unlock()
	}()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	n := 0
	for _, prev := range f.calls {
		if prev.Method == r.Method && prev.Path == path {
			n++
		}
	}
	hook := f.hook
	f.mu.Unlock()
	if hook != nil {
		if code := hook(r.Method, path, n+1); code != 0 {
			w.WriteHeader(code)
			fmt.Fprintf(w, `{"message":"injected %d"}`, code)
			return
		}
	}

	switch r.Method {
	case http.MethodGet:
		f.mu.Lock()
		sha, ok := f.shas[path]
		f.mu.Unlock()
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"message":"Not Found"}`)
			return
		}
		json.NewEncoder(w).Encode(&data.GitHubContent{Path: path, SHA: sha, Type: "file"})
	case http.MethodPut:
		var req data.GitHubPutRequest
		require.NoError(f.t, json.NewDecoder(r.Body).Decode(&req))
		c.SHA = req.SHA
		content, err := base64.StdEncoding.DecodeString(req.Content)
		require.NoError(f.t, err)
		if f.beforePut != nil {
			f.beforePut(path)
		}
		f.mu.Lock()
		current, exists := f.shas[path]
		f.mu.Unlock()
		switch {
		case exists && req.SHA == "":
			w.WriteHeader(http.StatusUnprocessableEntity)
			fmt.Fprint(w, `{"message":"\"sha\" wasn't supplied."}`)
			return
		case exists && req.SHA != current:
			w.WriteHeader(http.StatusConflict)
			fmt.Fprintf(w, `{"message":"%s does not match %s"}`, path, req.SHA)
			return
		}
		sha := f.put(path, content)
		code := http.StatusOK
		if !exists {
			code = http.StatusCreated
		}
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(&data.GitHubPutResponse{Content: &data.GitHubContent{Path: path, SHA: sha}})
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (f *fakeStore) client(t *testing.T, attempts int) (*Client, *[]time.Duration) {
	t.Helper()
	var mu sync.Mutex
	sleeps := []time.Duration{}
	c, err := New(Config{
		APIURL:     f.srv.URL,
		Repo:       "home/backup",
		Branch:     "main",
		Token:      "secret",
		Attempts:   attempts,
		RetryDelay: 5 * time.Second,
		Sleep: func(_ context.Context, d time.Duration) error {
			mu.Lock()
			sleeps = append(sleeps, d)
			mu.Unlock()
			return nil
		},
	})
	require.NoError(t, err)
	return c, &sleeps
}

// newRawServer answers every request with the given status and body.
func newRawServer(t *testing.T, code int, body string) string {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(code)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

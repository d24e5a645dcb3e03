package download

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"redgrab/pkg/dedup"
	"redgrab/pkg/errors"
	"redgrab/pkg/fetch"
	"redgrab/pkg/filter"
	"redgrab/pkg/logger"
	"redgrab/pkg/models"
	"redgrab/pkg/naming"
	"redgrab/pkg/resource"
	"redgrab/pkg/seen"
	"redgrab/pkg/sites"
)

// fakeAdapter returns a fixed resource list or error.
type fakeAdapter struct {
	name      string
	resources []*resource.Resource
	err       error
}

func (a *fakeAdapter) Name() string { return a.name }

func (a *fakeAdapter) FindResources(_ context.Context) ([]*resource.Resource, error) {
	return a.resources, a.err
}

// fakeResolver maps post IDs to adapters.
type fakeResolver struct {
	adapters map[string]sites.Adapter
	err      error
}

func (r *fakeResolver) ForPost(_ context.Context, post *models.Post, _ *fetch.Fetcher) (sites.Adapter, error) {
	if r.err != nil {
		return nil, r.err
	}
	return r.adapters[post.ID], nil
}

func testPost(id string) *models.Post {
	return &models.Post{
		ID:         id,
		Title:      "title " + id,
		Subreddit:  "testsub",
		Author:     "tester",
		URL:        "https://example.com/" + id + ".jpg",
		CreatedUTC: 1577836800,
	}
}

type testEnv struct {
	orch   *Orchestrator
	root   string
	ledger *dedup.Ledger
	log    *logger.TestLogger
}

func newTestEnv(t *testing.T, resolver AdapterResolver, opts Options) *testEnv {
	t.Helper()
	root := t.TempDir()
	namer, err := naming.NewFormatter("{POSTID}", "")
	if err != nil {
		t.Fatal(err)
	}
	if opts.MaxWaitTime == 0 {
		opts.MaxWaitTime = 10 * time.Millisecond
	}
	ledger := dedup.NewLedger()
	log := logger.NewTestLogger()
	orch := New(Params{
		Selector: resolver,
		Fetcher:  fetch.New(log, fetch.WithInterval(time.Millisecond)),
		Filter:   filter.New(nil, nil),
		Ledger:   ledger,
		Namer:    namer,
		Root:     root,
		Options:  opts,
		Logger:   log,
	})
	return &testEnv{orch: orch, root: root, ledger: ledger, log: log}
}

func serveBytes(t *testing.T, payload map[string][]byte) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		data, ok := payload[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(data)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func resolverFor(posts map[string][]*resource.Resource) *fakeResolver {
	adapters := make(map[string]sites.Adapter)
	for id, rs := range posts {
		adapters[id] = &fakeAdapter{name: "direct", resources: rs}
	}
	return &fakeResolver{adapters: adapters}
}

func TestDownloadWritesFileAndSetsMtime(t *testing.T) {
	srv, _ := serveBytes(t, map[string][]byte{"/a.jpg": []byte("image-bytes")})

	post := testPost("p1")
	res := resource.New(post, srv.URL+"/a.jpg", "")
	env := newTestEnv(t, resolverFor(map[string][]*resource.Resource{"p1": {res}}), Options{})

	stats := env.orch.Run(context.Background(), []*models.Post{post})
	if stats.Downloaded != 1 || stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	dest := filepath.Join(env.root, "p1.jpg")
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "image-bytes" {
		t.Errorf("wrong content: %q", data)
	}

	info, _ := os.Stat(dest)
	if !info.ModTime().Equal(post.Created()) {
		t.Errorf("mtime %v, want post creation time %v", info.ModTime(), post.Created())
	}
	if env.ledger.Len() != 1 {
		t.Errorf("expected 1 ledger entry, got %d", env.ledger.Len())
	}
}

func TestNoDuplicatesPolicyWritesOneFilePerHash(t *testing.T) {
	srv, _ := serveBytes(t, map[string][]byte{
		"/a.jpg": []byte("same-bytes"),
		"/b.jpg": []byte("same-bytes"),
		"/c.jpg": []byte("same-bytes"),
	})

	posts := []*models.Post{testPost("p1"), testPost("p2"), testPost("p3")}
	m := map[string][]*resource.Resource{
		"p1": {resource.New(posts[0], srv.URL+"/a.jpg", "")},
		"p2": {resource.New(posts[1], srv.URL+"/b.jpg", "")},
		"p3": {resource.New(posts[2], srv.URL+"/c.jpg", "")},
	}
	env := newTestEnv(t, resolverFor(m), Options{NoDuplicates: true})

	stats := env.orch.Run(context.Background(), posts)
	if stats.Downloaded != 1 || stats.Skipped != 2 || stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	entries, _ := os.ReadDir(env.root)
	if len(entries) != 1 {
		t.Errorf("expected exactly 1 file, got %d", len(entries))
	}
}

func TestHardLinkPolicySharesOneInode(t *testing.T) {
	srv, _ := serveBytes(t, map[string][]byte{
		"/a.jpg": []byte("same-bytes"),
		"/b.jpg": []byte("same-bytes"),
		"/c.jpg": []byte("same-bytes"),
	})

	posts := []*models.Post{testPost("p1"), testPost("p2"), testPost("p3")}
	m := map[string][]*resource.Resource{
		"p1": {resource.New(posts[0], srv.URL+"/a.jpg", "")},
		"p2": {resource.New(posts[1], srv.URL+"/b.jpg", "")},
		"p3": {resource.New(posts[2], srv.URL+"/c.jpg", "")},
	}
	env := newTestEnv(t, resolverFor(m), Options{HardLink: true})

	stats := env.orch.Run(context.Background(), posts)
	if stats.Downloaded != 3 || stats.Failed != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	entries, _ := os.ReadDir(env.root)
	if len(entries) != 3 {
		t.Fatalf("expected 3 directory entries, got %d", len(entries))
	}

	first, err := os.Stat(filepath.Join(env.root, "p1.jpg"))
	if err != nil {
		t.Fatal(err)
	}
	if st, ok := first.Sys().(*syscall.Stat_t); ok && st.Nlink != 3 {
		t.Errorf("expected link count 3, got %d", st.Nlink)
	}
	for _, id := range []string{"p2", "p3"} {
		other, err := os.Stat(filepath.Join(env.root, id+".jpg"))
		if err != nil {
			t.Fatal(err)
		}
		if !os.SameFile(first, other) {
			t.Errorf("%s.jpg must share the first copy's inode", id)
		}
	}

	if env.ledger.Len() != 1 {
		t.Errorf("hard-linked duplicates must not add ledger entries, got %d", env.ledger.Len())
	}
}

func TestDefaultPolicyWritesIndependentDuplicates(t *testing.T) {
	srv, _ := serveBytes(t, map[string][]byte{
		"/a.jpg": []byte("same-bytes"),
		"/b.jpg": []byte("same-bytes"),
	})

	posts := []*models.Post{testPost("p1"), testPost("p2")}
	m := map[string][]*resource.Resource{
		"p1": {resource.New(posts[0], srv.URL+"/a.jpg", "")},
		"p2": {resource.New(posts[1], srv.URL+"/b.jpg", "")},
	}
	env := newTestEnv(t, resolverFor(m), Options{})

	stats := env.orch.Run(context.Background(), posts)
	if stats.Downloaded != 2 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	a, _ := os.Stat(filepath.Join(env.root, "p1.jpg"))
	b, _ := os.Stat(filepath.Join(env.root, "p2.jpg"))
	if os.SameFile(a, b) {
		t.Error("default policy must write independent files")
	}

	// Ledger retains the first-seen path only.
	if env.ledger.Len() != 1 {
		t.Errorf("expected 1 ledger entry, got %d", env.ledger.Len())
	}
}

func TestPreExistingDestinationShortCircuits(t *testing.T) {
	srv, calls := serveBytes(t, map[string][]byte{"/a.jpg": []byte("bytes")})

	post := testPost("p1")
	res := resource.New(post, srv.URL+"/a.jpg", "")
	env := newTestEnv(t, resolverFor(map[string][]*resource.Resource{"p1": {res}}), Options{})

	dest := filepath.Join(env.root, "p1.jpg")
	if err := os.WriteFile(dest, []byte("already here"), 0644); err != nil {
		t.Fatal(err)
	}

	stats := env.orch.Run(context.Background(), []*models.Post{post})
	if stats.Skipped != 1 || stats.Downloaded != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if n := atomic.LoadInt32(calls); n != 0 {
		t.Errorf("existing path must prevent any network call, saw %d", n)
	}
	if env.ledger.Len() != 0 {
		t.Errorf("existing path must not create a ledger entry, got %d", env.ledger.Len())
	}
}

func TestExclusionSetSkipsBeforeAdapterWork(t *testing.T) {
	resolver := &fakeResolver{err: errors.New(errors.KindSite, "resolver must not be called")}
	env := newTestEnv(t, resolver, Options{
		ExcludeIDs: map[string]struct{}{"p1": {}},
	})

	stats := env.orch.Run(context.Background(), []*models.Post{testPost("p1")})
	if stats.Skipped != 1 || stats.Failed != 0 {
		t.Fatalf("excluded post must be skipped without adapter work: %+v", stats)
	}
}

func TestSkipSubredditSkipsBeforeAdapterWork(t *testing.T) {
	resolver := &fakeResolver{err: errors.New(errors.KindSite, "resolver must not be called")}
	env := newTestEnv(t, resolver, Options{
		SkipSubreddits: map[string]struct{}{"testsub": {}},
	})

	stats := env.orch.Run(context.Background(), []*models.Post{testPost("p1")})
	if stats.Skipped != 1 || stats.Failed != 0 {
		t.Fatalf("skip-subreddit post must be skipped without adapter work: %+v", stats)
	}
}

func TestFilterRunsAfterPathBeforeFetch(t *testing.T) {
	srv, calls := serveBytes(t, map[string][]byte{"/a.mp4": []byte("video")})

	post := testPost("p1")
	res := resource.New(post, srv.URL+"/a.mp4", "")
	root := t.TempDir()
	namer, _ := naming.NewFormatter("{POSTID}", "")
	log := logger.NewTestLogger()
	orch := New(Params{
		Selector: resolverFor(map[string][]*resource.Resource{"p1": {res}}),
		Fetcher:  fetch.New(log, fetch.WithInterval(time.Millisecond)),
		Filter:   filter.New([]string{".mp4"}, nil),
		Ledger:   dedup.NewLedger(),
		Namer:    namer,
		Root:     root,
		Options:  Options{MaxWaitTime: 10 * time.Millisecond},
		Logger:   log,
	})

	stats := orch.Run(context.Background(), []*models.Post{post})
	if stats.Skipped != 1 || stats.Downloaded != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if n := atomic.LoadInt32(calls); n != 0 {
		t.Errorf("filtered resource must not be fetched, saw %d calls", n)
	}
}

func TestResourceFailureDoesNotAbortPost(t *testing.T) {
	srv, _ := serveBytes(t, map[string][]byte{
		"/one.jpg":   []byte("one"),
		"/three.jpg": []byte("three"),
		// /two.jpg 404s
	})

	post := testPost("p1")
	resources := []*resource.Resource{
		resource.New(post, srv.URL+"/one.jpg", ""),
		resource.New(post, srv.URL+"/two.jpg", ""),
		resource.New(post, srv.URL+"/three.jpg", ""),
	}
	env := newTestEnv(t, resolverFor(map[string][]*resource.Resource{"p1": {resources[0], resources[1], resources[2]}}), Options{})

	stats := env.orch.Run(context.Background(), []*models.Post{post})
	if stats.Downloaded != 2 || stats.Failed != 1 {
		t.Fatalf("expected partial success, got %+v", stats)
	}

	// Multi-resource posts get index suffixes starting at 1.
	if _, err := os.Stat(filepath.Join(env.root, "p1_1.jpg")); err != nil {
		t.Errorf("missing first indexed file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(env.root, "p1_3.jpg")); err != nil {
		t.Errorf("missing third indexed file: %v", err)
	}
	if len(env.log.MessagesAtLevel("ERROR")) == 0 {
		t.Error("failed resource must produce an error log line")
	}
}

func TestResolutionFailureAbortsPostOnly(t *testing.T) {
	srv, _ := serveBytes(t, map[string][]byte{"/ok.jpg": []byte("fine")})

	bad := testPost("bad")
	good := testPost("good")
	resolver := &fakeResolver{adapters: map[string]sites.Adapter{
		"bad":  &fakeAdapter{name: "redgifs", err: errors.ForURL(errors.KindSite, bad.URL, "markup changed")},
		"good": &fakeAdapter{name: "direct", resources: []*resource.Resource{resource.New(good, srv.URL+"/ok.jpg", "")}},
	}}
	env := newTestEnv(t, resolver, Options{})

	stats := env.orch.Run(context.Background(), []*models.Post{bad, good})
	if stats.Failed != 1 || stats.Downloaded != 1 {
		t.Fatalf("one post fails, the next still runs: %+v", stats)
	}
}

func TestSeenRecordsOnlyFullyProcessedPosts(t *testing.T) {
	srv, _ := serveBytes(t, map[string][]byte{"/good.jpg": []byte("fine")})

	good := testPost("good")
	bad := testPost("bad")
	m := map[string][]*resource.Resource{
		"good": {resource.New(good, srv.URL+"/good.jpg", "")},
		"bad":  {resource.New(bad, srv.URL+"/missing.jpg", "")},
	}

	store, err := seen.Open(filepath.Join(t.TempDir(), "seen.json"))
	if err != nil {
		t.Fatal(err)
	}

	root := t.TempDir()
	namer, _ := naming.NewFormatter("{POSTID}", "")
	log := logger.NewTestLogger()
	orch := New(Params{
		Selector: resolverFor(m),
		Fetcher:  fetch.New(log, fetch.WithInterval(time.Millisecond)),
		Filter:   filter.New(nil, nil),
		Ledger:   dedup.NewLedger(),
		Namer:    namer,
		Root:     root,
		Options:  Options{MaxWaitTime: 10 * time.Millisecond},
		Seen:     store,
		Logger:   log,
	})

	stats := orch.Run(context.Background(), []*models.Post{good, bad})
	if stats.Downloaded != 1 || stats.Failed != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if !store.Contains("good") {
		t.Error("fully processed post must be recorded as seen")
	}
	if store.Contains("bad") {
		t.Error("post with a failed resource must stay eligible for retry")
	}
}

func TestSelfTextResourceBypassesFetcher(t *testing.T) {
	post := testPost("p1")
	post.IsSelf = true
	r := resource.New(post, post.URL, ".md")
	r.SetContent([]byte("## title\n\nbody\n"))

	env := newTestEnv(t, resolverFor(map[string][]*resource.Resource{"p1": {r}}), Options{})

	stats := env.orch.Run(context.Background(), []*models.Post{post})
	if stats.Downloaded != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	data, err := os.ReadFile(filepath.Join(env.root, "p1.md"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "## title\n\nbody\n" {
		t.Errorf("wrong content: %q", data)
	}
}

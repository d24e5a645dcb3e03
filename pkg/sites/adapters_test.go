package sites

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"redgrab/pkg/errors"
	"redgrab/pkg/fetch"
	"redgrab/pkg/logger"
	"redgrab/pkg/models"
)

func testClient() *fetch.Fetcher {
	return fetch.New(logger.NewTestLogger(), fetch.WithInterval(time.Millisecond))
}

func TestDirectUsesPostURLVerbatim(t *testing.T) {
	post := &models.Post{ID: "t3_d", URL: "https://cdn.example.com/pic.jpg"}
	a := NewDirect(post, testClient())

	resources, err := a.FindResources(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(resources) != 1 {
		t.Fatalf("expected 1 resource, got %d", len(resources))
	}
	if resources[0].URL != post.URL {
		t.Errorf("direct resource URL must be the post URL, got %s", resources[0].URL)
	}
	if resources[0].Extension != ".jpg" {
		t.Errorf("expected inferred .jpg, got %s", resources[0].Extension)
	}
}

func TestSelfTextSynthesizesDocument(t *testing.T) {
	post := &models.Post{
		ID:        "t3_s",
		Title:     "Discussion Thread",
		SelfText:  "Some body text.",
		Author:    "writer",
		Permalink: "/r/test/comments/abc/discussion_thread/",
		IsSelf:    true,
	}
	a := NewSelfText(post, testClient())

	resources, err := a.FindResources(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(resources) != 1 {
		t.Fatalf("expected 1 resource, got %d", len(resources))
	}

	r := resources[0]
	if r.Extension != ".md" {
		t.Errorf("expected .md extension, got %s", r.Extension)
	}
	if !r.HasContent() {
		t.Fatal("self-text resource must carry content without fetching")
	}
	body := string(r.Content)
	if !strings.Contains(body, "Discussion Thread") || !strings.Contains(body, "Some body text.") {
		t.Errorf("document missing title or body:\n%s", body)
	}
	if !strings.Contains(body, "u/writer") {
		t.Errorf("document missing attribution:\n%s", body)
	}
	if _, err := r.Hash(); err != nil {
		t.Errorf("hash must be computable immediately: %v", err)
	}
}

func TestGalleryProbesExtensionsAndSurvivesPartialFailure(t *testing.T) {
	// id3 resolves to nothing; id1 only as .png, id2 and id4 as .jpg.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/id1.png", "/id2.jpg", "/id4.jpg":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	post := &models.Post{
		ID:         "t3_g",
		URL:        "https://www.reddit.com/gallery/t3_g",
		GalleryIDs: []string{"id1", "id2", "id3", "id4"},
	}
	a := &Gallery{post: post, client: testClient(), log: logger.NewTestLogger(), host: srv.URL + "/"}

	resources, err := a.FindResources(context.Background())
	if err != nil {
		t.Fatalf("partial failure must not abort the gallery: %v", err)
	}
	if len(resources) != 3 {
		t.Fatalf("expected 3 resolved resources, got %d", len(resources))
	}
	if resources[0].Extension != ".png" {
		t.Errorf("id1 should resolve as .png, got %s", resources[0].Extension)
	}
}

func TestGalleryAllIdentifiersFail(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	post := &models.Post{ID: "t3_g", URL: "https://www.reddit.com/gallery/t3_g", GalleryIDs: []string{"id1"}}
	a := &Gallery{post: post, client: testClient(), log: logger.NewTestLogger(), host: srv.URL + "/"}

	_, err := a.FindResources(context.Background())
	if err == nil {
		t.Fatal("expected error when nothing resolves")
	}
	if errors.KindOf(err) != errors.KindNotFound {
		t.Errorf("expected resource-not-found, got %v", errors.KindOf(err))
	}
}

const ldJSONPage = `<html><head>
<script type="application/ld+json">{"@type":"VideoObject","contentUrl":"%s"}</script>
</head><body></body></html>`

func TestRedgifsScrapesContentURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/watch/someclip" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		fmt.Fprintf(w, ldJSONPage, "https://media.example.com/someclip.mp4")
	}))
	defer srv.Close()

	post := &models.Post{ID: "t3_r", URL: "https://redgifs.com/watch/someclip"}
	a := &Redgifs{post: post, client: testClient(), base: srv.URL + "/watch/"}

	resources, err := a.FindResources(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(resources) != 1 || resources[0].URL != "https://media.example.com/someclip.mp4" {
		t.Fatalf("unexpected resources: %+v", resources)
	}
	if resources[0].Extension != ".mp4" {
		t.Errorf("expected inferred .mp4, got %s", resources[0].Extension)
	}
}

func TestRedgifsMissingBlockFailsClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>nothing embedded here</body></html>"))
	}))
	defer srv.Close()

	post := &models.Post{ID: "t3_r", URL: "https://redgifs.com/watch/someclip"}
	a := &Redgifs{post: post, client: testClient(), base: srv.URL + "/watch/"}

	_, err := a.FindResources(context.Background())
	if err == nil {
		t.Fatal("expected site error for missing ld+json block")
	}
	if errors.KindOf(err) != errors.KindSite {
		t.Errorf("expected site error, got %v", errors.KindOf(err))
	}
}

func TestRedgifsAmbiguousBlocksFailClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><head>
<script type="application/ld+json">{"contentUrl":"https://a.example.com/1.mp4"}</script>
<script type="application/ld+json">{"contentUrl":"https://a.example.com/2.mp4"}</script>
</head></html>`))
	}))
	defer srv.Close()

	post := &models.Post{ID: "t3_r", URL: "https://redgifs.com/watch/someclip"}
	a := &Redgifs{post: post, client: testClient(), base: srv.URL + "/watch/"}

	_, err := a.FindResources(context.Background())
	if err == nil {
		t.Fatal("expected site error for ambiguous ld+json blocks")
	}
}

func TestGfycatChainsToSiblingDomain(t *testing.T) {
	sibling := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, ldJSONPage, "https://media.example.com/migrated.mp4")
	}))
	defer sibling.Close()

	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>clip moved</body></html>"))
	}))
	defer primary.Close()

	post := &models.Post{ID: "t3_gf", URL: "https://gfycat.com/someclip"}
	a := &Gfycat{
		post:        post,
		client:      testClient(),
		base:        primary.URL + "/",
		siblingBase: sibling.URL + "/watch/",
	}

	resources, err := a.FindResources(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(resources) != 1 || resources[0].URL != "https://media.example.com/migrated.mp4" {
		t.Fatalf("unexpected resources: %+v", resources)
	}
}

func TestImgurGifvRewrite(t *testing.T) {
	post := &models.Post{ID: "t3_i", URL: "https://i.imgur.com/abcdef.gifv"}
	a := NewImgur(post, testClient())

	resources, err := a.FindResources(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(resources) != 1 {
		t.Fatalf("expected 1 resource, got %d", len(resources))
	}
	if resources[0].URL != "https://i.imgur.com/abcdef.mp4" {
		t.Errorf("gifv must rewrite to mp4, got %s", resources[0].URL)
	}
}

func TestImgurAlbumScrape(t *testing.T) {
	payload := `{\"is_album\":true,\"media\":[{\"id\":\"one\",\"ext\":\"jpg\"},{\"id\":\"two\",\"ext\":\"gifv\"}]}`
	page := `<html><head><script>window.postDataJSON="` + payload + `"</script></head></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	post := &models.Post{ID: "t3_i", URL: srv.URL + "/a/album1"}
	a := &Imgur{post: post, client: testClient(), host: "https://i.imgur.com/"}

	resources, err := a.FindResources(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(resources) != 2 {
		t.Fatalf("expected 2 resources, got %d", len(resources))
	}
	if resources[0].URL != "https://i.imgur.com/one.jpg" {
		t.Errorf("unexpected first media URL: %s", resources[0].URL)
	}
	if resources[1].URL != "https://i.imgur.com/two.mp4" || resources[1].Extension != ".mp4" {
		t.Errorf("gifv album entry must map to mp4: %s (%s)", resources[1].URL, resources[1].Extension)
	}
}

func TestImgurMissingScriptFailsClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body>no data script</body></html>"))
	}))
	defer srv.Close()

	post := &models.Post{ID: "t3_i", URL: srv.URL + "/a/album1"}
	a := &Imgur{post: post, client: testClient(), host: "https://i.imgur.com/"}

	_, err := a.FindResources(context.Background())
	if err == nil {
		t.Fatal("expected site error")
	}
	if errors.KindOf(err) != errors.KindSite {
		t.Errorf("expected site error, got %v", errors.KindOf(err))
	}
}

func TestVidbleScrapesImagesAndVideos(t *testing.T) {
	page := `<html><body>
<img class="img2" src="/imgs/pic1_med.jpg"/>
<img class="img2" src="/imgs/pic2_med.png"/>
<img class="thumbnail" src="/imgs/ignored.jpg"/>
<video>
  <source src="/vids/clip_1080.mp4"/>
  <source src="/vids/clip_720.mp4"/>
</video>
</body></html>`

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(page))
	}))
	defer srv.Close()

	post := &models.Post{ID: "t3_v", URL: srv.URL + "/album/abc"}
	a := &Vidble{post: post, client: testClient(), host: srv.URL}

	resources, err := a.FindResources(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(resources) != 3 {
		t.Fatalf("expected 2 images + 1 video, got %d", len(resources))
	}
	if resources[0].URL != srv.URL+"/imgs/pic1.jpg" {
		t.Errorf("thumbnail suffix must be stripped: %s", resources[0].URL)
	}
	if resources[2].URL != srv.URL+"/vids/clip_720.mp4" {
		t.Errorf("preferred bitrate variant must win: %s", resources[2].URL)
	}
}

func TestVidbleEmptyPageFailsClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html><body></body></html>"))
	}))
	defer srv.Close()

	post := &models.Post{ID: "t3_v", URL: srv.URL + "/album/abc"}
	a := &Vidble{post: post, client: testClient(), host: srv.URL}

	if _, err := a.FindResources(context.Background()); err == nil {
		t.Fatal("expected site error for empty page")
	}
}

func TestMediaID(t *testing.T) {
	tests := []struct {
		url, id string
	}{
		{"https://gfycat.com/AdmirableClip", "AdmirableClip"},
		{"https://redgifs.com/watch/someclip", "someclip"},
		{"https://i.imgur.com/abcdef.gifv", "abcdef"},
		{"https://gfycat.com/someclip-size_restricted.gif", "someclip"},
		{"https://gfycat.com/someclip/", "someclip"},
	}
	for _, tt := range tests {
		if got := mediaID(tt.url); got != tt.id {
			t.Errorf("mediaID(%q) = %q, want %q", tt.url, got, tt.id)
		}
	}
}

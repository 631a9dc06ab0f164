package resolver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"postmedia/pkg/config"
	errs "postmedia/pkg/errors"
	"postmedia/pkg/fetch"
	"postmedia/pkg/logger"
	"postmedia/pkg/metadata"
	"postmedia/pkg/ratelimit"
)

// fakeFetcher serves canned bodies by URL and records what was asked for
type fakeFetcher struct {
	mu        sync.Mutex
	pages     map[string]string
	finalURLs map[string]string
	errs      map[string]error
	calls     []string
}

func (f *fakeFetcher) Get(_ context.Context, rawURL string, _ map[string]string) (*fetch.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, rawURL)

	if err, ok := f.errs[rawURL]; ok {
		return nil, err
	}
	body, ok := f.pages[rawURL]
	if !ok {
		return nil, errs.Status(rawURL, http.StatusNotFound)
	}
	final := rawURL
	if u, ok := f.finalURLs[rawURL]; ok {
		final = u
	}
	return &fetch.Response{StatusCode: http.StatusOK, FinalURL: final, Body: []byte(body)}, nil
}

// fakeExtractor returns a fixed Info
type fakeExtractor struct {
	info  *metadata.Info
	err   error
	calls int
}

func (f *fakeExtractor) Extract(context.Context, string) (*metadata.Info, error) {
	f.calls++
	return f.info, f.err
}

func intp(n int) *int { return &n }

func newTestResolver(t *testing.T, fetcher Fetcher, extractor metadata.Extractor, mutate ...func(*config.Config)) (*Resolver, *logger.TestLogger) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Fetch.EmbedRequestsPerMinute = 0
	for _, m := range mutate {
		m(cfg)
	}
	log := logger.NewTestLogger()
	return New(fetcher, extractor, cfg, log), log
}

func TestResolveDirectExtensionStripsQuery(t *testing.T) {
	fetcher := &fakeFetcher{}
	extractor := &fakeExtractor{}
	r, _ := newTestResolver(t, fetcher, extractor)

	got := r.Resolve(context.Background(), "https://example.com/photo.png?ref=ig")

	assert.Equal(t, []string{"https://example.com/photo.png"}, got.URLs)
	assert.Equal(t, StrategyDirectExtension, got.Strategy)
	assert.Empty(t, fetcher.calls, "no network for direct links")
	assert.Zero(t, extractor.calls)
}

func TestResolveNestedURL(t *testing.T) {
	r, _ := newTestResolver(t, &fakeFetcher{}, &fakeExtractor{})

	got := r.Resolve(context.Background(), "https://site.com/media?url=https%3A%2F%2Fcdn.com%2Fx.jpg")

	assert.Equal(t, []string{"https://cdn.com/x.jpg"}, got.URLs)
	assert.Equal(t, StrategyNestedURL, got.Strategy)
}

func TestResolveNestedURLBeatsDirectExtension(t *testing.T) {
	r, _ := newTestResolver(t, &fakeFetcher{}, &fakeExtractor{})

	got := r.Resolve(context.Background(), "https://site.com/share.png?url=https%3A%2F%2Fcdn.com%2Fy.webp")
	assert.Equal(t, []string{"https://cdn.com/y.webp"}, got.URLs)
	assert.Equal(t, StrategyNestedURL, got.Strategy)
}

func TestResolveNestedURLWithoutImageFallsThrough(t *testing.T) {
	r, _ := newTestResolver(t, &fakeFetcher{}, &fakeExtractor{}, func(c *config.Config) {
		c.Resolver.DisabledStrategies = []string{StrategyDocument}
	})

	got := r.Resolve(context.Background(), "https://site.com/media?url=https%3A%2F%2Fcdn.com%2Fpage.html")
	assert.True(t, got.Empty())
}

func TestResolveEmbedCarousel(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://www.instagram.com/p/CarouselX/embed/captioned/": embedPage,
	}}
	extractor := &fakeExtractor{info: &metadata.Info{Thumbnail: "https://meta/thumb.jpg"}}
	r, _ := newTestResolver(t, fetcher, extractor)

	got := r.Resolve(context.Background(), "https://www.instagram.com/someone/p/CarouselX/?igsh=abc")

	assert.Equal(t, embedExpected, got.URLs)
	assert.Equal(t, StrategyEmbed, got.Strategy)
	assert.Zero(t, extractor.calls, "later strategies must not run")
}

func TestResolveEmbedThroughFetchClient(t *testing.T) {
	var requested string
	var referer string
	transport := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		requested = req.URL.String()
		referer = req.Header.Get("Referer")
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     make(http.Header),
			Body:       io.NopCloser(bytes.NewBufferString(embedPage)),
			Request:    req,
		}, nil
	})
	client := fetch.New(config.DefaultConfig().Fetch, logger.NewTestLogger(), fetch.WithTransport(transport))
	r, _ := newTestResolver(t, client, metadata.Nop{})

	got := r.Resolve(context.Background(), "https://instagram.com/reel/CarouselX")

	assert.Equal(t, "https://www.instagram.com/p/CarouselX/embed/captioned/", requested)
	assert.Equal(t, "https://www.instagram.com/", referer)
	assert.Equal(t, embedExpected, got.URLs)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func TestResolveEmbedFailureFallsToMetadata(t *testing.T) {
	fetcher := &fakeFetcher{errs: map[string]error{
		"https://www.instagram.com/p/Gone/embed/captioned/": errs.Wrap(errs.ErrorTypeTransport, "", errors.New("reset")),
	}}
	extractor := &fakeExtractor{info: &metadata.Info{
		Thumbnail: "https://meta/single.jpg",
		Thumbnails: []metadata.Thumbnail{
			{URL: "https://meta/150.jpg", Width: intp(150)},
			{URL: "https://meta/nowidth.jpg"},
			{URL: "https://meta/1080.jpg", Width: intp(1080)},
			{URL: "https://meta/640.jpg", Width: intp(640)},
		},
	}}
	r, log := newTestResolver(t, fetcher, extractor)

	got := r.Resolve(context.Background(), "https://www.instagram.com/p/Gone/")

	assert.Equal(t, []string{"https://meta/1080.jpg"}, got.URLs)
	assert.Equal(t, StrategyMetadata, got.Strategy)
	assert.True(t, log.HasMessage("embed page fetch failed"))
}

func TestResolveEmbedWithoutMediaFallsThrough(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://www.instagram.com/p/Empty/embed/captioned/": `<html><script>{"graphql":{"shortcode_media":{"is_video":true,"display_url":"https://v.jpg"}}}</script></html>`,
	}}
	extractor := &fakeExtractor{info: &metadata.Info{Thumbnail: "//meta/thumb.jpg"}}
	r, _ := newTestResolver(t, fetcher, extractor)

	got := r.Resolve(context.Background(), "https://www.instagram.com/p/Empty/")
	assert.Equal(t, []string{"https://meta/thumb.jpg"}, got.URLs)
	assert.Equal(t, StrategyMetadata, got.Strategy)
}

func TestResolveDocumentFallback(t *testing.T) {
	fetcher := &fakeFetcher{
		pages: map[string]string{
			"https://blog.example.com/post/1": `<html><head><meta property="og:image" content="/img/cover.jpg"></head></html>`,
		},
		finalURLs: map[string]string{
			"https://blog.example.com/post/1": "https://www.example.com/articles/1",
		},
	}
	r, _ := newTestResolver(t, fetcher, &fakeExtractor{err: errors.New("unsupported url")})

	got := r.Resolve(context.Background(), "https://blog.example.com/post/1")

	assert.Equal(t, []string{"https://www.example.com/img/cover.jpg"}, got.URLs)
	assert.Equal(t, StrategyDocument, got.Strategy)
}

func TestResolveTotalFailure(t *testing.T) {
	fetcher := &fakeFetcher{}
	r, log := newTestResolver(t, fetcher, &fakeExtractor{})

	got := r.Resolve(context.Background(), "https://nothing.example.com/page")

	assert.True(t, got.Empty())
	assert.Empty(t, got.Strategy)
	assert.Equal(t, []string{"https://nothing.example.com/page"}, fetcher.calls)
	assert.True(t, log.HasMessage("no media found"))
}

func TestResolveTotalFailureInstagramPost(t *testing.T) {
	post := "https://www.instagram.com/p/NoMedia/"
	fetcher := &fakeFetcher{pages: map[string]string{
		post: `<html><body><img src="/static/logo.png"><img src="https://cdn.example.com/icon-32.png"><img src="https://t.example.com/pixel.gif"></body></html>`,
	}}
	extractor := &fakeExtractor{info: &metadata.Info{}}
	r, log := newTestResolver(t, fetcher, extractor)

	got := r.Resolve(context.Background(), post)

	assert.True(t, got.Empty())
	assert.Empty(t, got.Strategy)
	assert.Equal(t, []string{"https://www.instagram.com/p/NoMedia/embed/captioned/", post}, fetcher.calls)
	assert.Equal(t, 1, extractor.calls)
	assert.True(t, log.HasMessage("embed page fetch failed"))
	assert.True(t, log.HasMessage("no media found"))
}

func TestEmbedPacingWaitBoundedByTimeout(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://www.instagram.com/p/CarouselX/embed/captioned/": embedPage,
	}}
	embed := &Embed{
		Fetcher: fetcher,
		Timeout: 100 * time.Millisecond,
		Limiter: ratelimit.NewSlidingWindow(1, 2*time.Second),
		Log:     logger.NewTestLogger(),
	}
	req, err := NewRequest("https://www.instagram.com/p/CarouselX/")
	require.NoError(t, err)

	first := embed.Resolve(context.Background(), req)
	assert.Equal(t, embedExpected, first.URLs)

	start := time.Now()
	second := embed.Resolve(context.Background(), req)
	elapsed := time.Since(start)

	assert.True(t, second.Empty())
	assert.Less(t, elapsed, time.Second)
	assert.Len(t, fetcher.calls, 1)
}

func TestResolvePacedEmbedFallsThrough(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://www.instagram.com/p/CarouselX/embed/captioned/": embedPage,
	}}
	extractor := &fakeExtractor{info: &metadata.Info{Thumbnail: "https://meta/thumb.jpg"}}
	r, _ := newTestResolver(t, fetcher, extractor, func(c *config.Config) {
		c.Fetch.EmbedRequestsPerMinute = 1
		c.Fetch.EmbedTimeout = 100 * time.Millisecond
	})

	first := r.Resolve(context.Background(), "https://www.instagram.com/p/CarouselX/")
	assert.Equal(t, StrategyEmbed, first.Strategy)

	start := time.Now()
	second := r.Resolve(context.Background(), "https://www.instagram.com/p/CarouselX/")
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, StrategyMetadata, second.Strategy)
	assert.Equal(t, []string{"https://meta/thumb.jpg"}, second.URLs)
}

func TestResolveUnparseableURL(t *testing.T) {
	fetcher := &fakeFetcher{}
	r, _ := newTestResolver(t, fetcher, &fakeExtractor{})

	for _, raw := range []string{"", "   ", "not a url", "ftp://x.com/a.jpg", "https://"} {
		assert.True(t, r.Resolve(context.Background(), raw).Empty(), raw)
	}
	assert.Empty(t, fetcher.calls)
}

func TestResolveDisabledStrategies(t *testing.T) {
	r, _ := newTestResolver(t, &fakeFetcher{}, &fakeExtractor{}, func(c *config.Config) {
		c.Resolver.DisabledStrategies = []string{"Direct-Extension", StrategyMetadata}
	})

	assert.Equal(t, []string{StrategyNestedURL, StrategyEmbed, StrategyDocument}, r.Strategies())
}

func TestResolveMetadataDisabledInConfig(t *testing.T) {
	extractor := &fakeExtractor{info: &metadata.Info{Thumbnail: "https://meta/t.jpg"}}
	r, _ := newTestResolver(t, &fakeFetcher{}, extractor, func(c *config.Config) {
		c.Metadata.Enabled = false
	})

	got := r.Resolve(context.Background(), "https://example.com/page")
	assert.True(t, got.Empty())
	assert.Zero(t, extractor.calls)
}

type panicStrategy struct{}

func (panicStrategy) Name() string { return "boom" }
func (panicStrategy) Resolve(context.Context, *Request) Result {
	panic("unexpected payload shape")
}

type fixedStrategy struct {
	name string
	urls []string
}

func (s fixedStrategy) Name() string { return s.name }
func (s fixedStrategy) Resolve(context.Context, *Request) Result {
	return Result{URLs: s.urls}
}

func TestResolveRecoversFromPanics(t *testing.T) {
	log := logger.NewTestLogger()
	r := NewWithStrategies(log, panicStrategy{}, fixedStrategy{name: "after", urls: []string{"https://x.jpg"}})

	got := r.Resolve(context.Background(), "https://example.com/")
	assert.Equal(t, []string{"https://x.jpg"}, got.URLs)
	assert.Equal(t, "after", got.Strategy)
	assert.True(t, log.HasMessage("strategy panicked"))
}

func TestResolveFirstNonEmptyWins(t *testing.T) {
	r := NewWithStrategies(logger.NewTestLogger(),
		fixedStrategy{name: "empty"},
		fixedStrategy{name: "first", urls: []string{"https://1.jpg"}},
		fixedStrategy{name: "second", urls: []string{"https://2.jpg"}},
	)

	got := r.Resolve(context.Background(), "https://example.com/")
	assert.Equal(t, Result{URLs: []string{"https://1.jpg"}, Strategy: "first"}, got)
}

func TestResolveCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := NewWithStrategies(logger.NewTestLogger(), fixedStrategy{name: "x", urls: []string{"https://1.jpg"}})
	assert.True(t, r.Resolve(ctx, "https://example.com/").Empty())
}

func TestResolveConcurrentUse(t *testing.T) {
	fetcher := &fakeFetcher{pages: map[string]string{
		"https://www.instagram.com/p/CarouselX/embed/captioned/": embedPage,
	}}
	r, _ := newTestResolver(t, fetcher, metadata.Nop{})

	var wg sync.WaitGroup
	results := make([]Result, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = r.Resolve(context.Background(), "https://www.instagram.com/p/CarouselX/")
		}(i)
	}
	wg.Wait()

	for _, got := range results {
		assert.Equal(t, embedExpected, got.URLs)
	}
}

func TestEmbedExtract(t *testing.T) {
	e := &Embed{Log: logger.NewTestLogger()}

	assert.Equal(t, embedExpected, e.Extract(embedPage, e.Log))
	assert.Empty(t, e.Extract("<html>nothing here</html>", e.Log))
	assert.Empty(t, e.Extract(`"graphql": not an object "graphql":{"broken"`, e.Log))
}

func TestNewRequest(t *testing.T) {
	req, err := NewRequest("  HTTPS://Example.com/A/Photo.PNG?ref=ig&url=x#frag ")
	require.NoError(t, err)

	assert.Equal(t, "HTTPS://Example.com/A/Photo.PNG?ref=ig&url=x#frag", req.Raw)
	assert.Equal(t, "/a/photo.png", req.Path)
	assert.Equal(t, "x", req.Query.Get("url"))
	assert.Equal(t, "https://Example.com/A/Photo.PNG", req.WithoutQuery())

	_, err = NewRequest("mailto:someone@example.com")
	assert.True(t, errs.IsType(err, errs.ErrorTypeUnsupported))
}

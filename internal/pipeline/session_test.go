package pipeline_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/edgecomet/blogkeywords/internal/common/config"
	"github.com/edgecomet/blogkeywords/internal/fetcher"
	"github.com/edgecomet/blogkeywords/internal/pipeline"
	"github.com/edgecomet/blogkeywords/internal/workspace"
	"github.com/edgecomet/blogkeywords/pkg/types"
)

var _ = Describe("Session", func() {
	var (
		server   *httptest.Server
		cfg      *config.Config
		ws       *workspace.Workspace
		analyzer *recordingAnalyzer
		session  *pipeline.Session
		blogURL  string
		ctx      context.Context
	)

	newSession := func() *pipeline.Session {
		return pipeline.New(cfg, ws, fetcher.New(cfg.Fetch, zap.NewNop()), zap.NewNop(),
			pipeline.WithAnalyzer(analyzer),
			pipeline.WithPrompt("extract keywords"))
	}

	BeforeEach(func() {
		server = newBlogServer()
		DeferCleanup(server.Close)

		cfg = config.Default()
		off := false
		cfg.Fetch.SSRFProtection = &off
		cfg.Scrape.ArticleDelay = types.Duration(5 * time.Millisecond)

		var err error
		ws, err = workspace.Open(filepath.Join(GinkgoT().TempDir(), "scraped"), zap.NewNop())
		Expect(err).NotTo(HaveOccurred())

		analyzer = &recordingAnalyzer{result: "🔑 Palabras clave SEO extraídas:\nkeyword research"}
		session = newSession()
		blogURL = server.URL + "/blog/"
		ctx = context.Background()
	})

	It("starts ready with no keywords", func() {
		snap := session.Snapshot()
		Expect(snap.Status).To(Equal(types.StatusReady))
		Expect(snap.Keywords).To(Equal(types.NoKeywordsYet))
		Expect(snap.Articles).To(BeEmpty())
	})

	Describe("Fetch", func() {
		It("saves the main page and every linked article", func() {
			snap, err := session.Fetch(ctx, blogURL)
			Expect(err).NotTo(HaveOccurred())

			Expect(snap.Status).To(Equal(types.StatusReady))
			Expect(snap.URL).To(Equal(blogURL))
			Expect(snap.RunID).NotTo(BeEmpty())
			Expect(snap.MainPage).To(Equal(ws.MainPage()))
			Expect(snap.MainPage).To(BeAnExistingFile())

			Expect(snap.Articles).To(HaveLen(3))

			first := snap.Articles[0]
			Expect(first.Index).To(Equal(1))
			Expect(first.URL).To(Equal(server.URL + "/blog/first-post"))
			Expect(first.Title).To(Equal("First Post Title"))
			Expect(first.Selected).To(BeTrue())
			Expect(first.File).To(Equal(filepath.Join(ws.Dir(), "article_1_first-post.pdf")))
			Expect(first.File).To(BeAnExistingFile())

			second := snap.Articles[1]
			Expect(second.URL).To(Equal(server.URL + "/blog/second-post"))
			Expect(second.Title).To(Equal("Second Post"))
			Expect(second.Selected).To(BeTrue())

			broken := snap.Articles[2]
			Expect(broken.Selected).To(BeFalse())
			Expect(broken.Saved()).To(BeFalse())
			Expect(broken.Error).To(ContainSubstring("404"))

			Expect(filepath.Join(ws.Dir(), "main_page.md")).To(BeAnExistingFile())
			Expect(filepath.Join(ws.Dir(), workspace.ManifestFile)).To(BeAnExistingFile())
		})

		It("writes a manifest with SEO data", func() {
			_, err := session.Fetch(ctx, blogURL)
			Expect(err).NotTo(HaveOccurred())

			manifest, err := session.Manifest()
			Expect(err).NotTo(HaveOccurred())
			Expect(manifest.URL).To(Equal(blogURL))
			Expect(manifest.Articles).To(HaveLen(3))
			Expect(manifest.SEO).To(HaveKey(blogURL))
			Expect(manifest.SEO[blogURL].MetaDescription).To(Equal("Notes on SEO and content."))
		})

		It("stops after scrape.max_articles articles", func() {
			cfg.Scrape.MaxArticles = 1
			session = newSession()

			snap, err := session.Fetch(ctx, blogURL)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Articles).To(HaveLen(1))

			files, err := ws.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(files).To(HaveLen(2))
		})

		It("saves only the main page when scrape.max_articles is 0", func() {
			cfg.Scrape.MaxArticles = 0
			session = newSession()

			snap, err := session.Fetch(ctx, blogURL)
			Expect(err).NotTo(HaveOccurred())
			Expect(snap.Articles).To(BeEmpty())
			Expect(snap.MainPage).To(BeAnExistingFile())
		})

		It("waits scrape.article_delay after each article before fetching the next", func() {
			delay := 150 * time.Millisecond
			cfg.Scrape.ArticleDelay = types.Duration(delay)
			slow := &slowFetcher{inner: fetcher.New(cfg.Fetch, zap.NewNop()), latency: 2 * delay}
			session = pipeline.New(cfg, ws, slow, zap.NewNop())

			_, err := session.Fetch(ctx, blogURL)
			Expect(err).NotTo(HaveOccurred())

			spans := slow.Spans()
			Expect(spans).To(HaveLen(4))
			Expect(spans[0].url).To(Equal(blogURL))
			Expect(spans[1].start.Sub(spans[0].end)).To(BeNumerically("<", delay))
			for i := 2; i < len(spans); i++ {
				Expect(spans[i].start.Sub(spans[i-1].end)).To(BeNumerically(">=", delay),
					"gap before fetch %d", i+1)
			}
		})

		It("stops waiting between articles when the context is cancelled", func() {
			cfg.Scrape.ArticleDelay = types.Duration(time.Hour)
			session = newSession()

			cancelCtx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
			defer cancel()

			_, err := session.Fetch(cancelCtx, blogURL)
			Expect(err).To(MatchError(context.DeadlineExceeded))

			snap := session.Snapshot()
			Expect(snap.Status).To(Equal(types.StatusReady))
			Expect(snap.URL).To(BeEmpty())
			Expect(snap.Articles).To(HaveLen(1))
		})

		It("refuses to fetch the same URL twice", func() {
			_, err := session.Fetch(ctx, blogURL)
			Expect(err).NotTo(HaveOccurred())

			_, err = session.Fetch(ctx, blogURL)
			Expect(err).To(MatchError(pipeline.ErrAlreadyFetched))
			Expect(session.Snapshot().Articles).To(HaveLen(3))
		})

		It("rejects invalid URLs", func() {
			_, err := session.Fetch(ctx, "not a url")
			Expect(errors.Is(err, pipeline.ErrInvalidURL)).To(BeTrue())
		})

		It("aborts when the main page cannot be fetched", func() {
			_, err := session.Fetch(ctx, server.URL+"/blog/missing-listing")
			Expect(err).To(HaveOccurred())

			snap := session.Snapshot()
			Expect(snap.Status).To(Equal(types.StatusReady))
			Expect(snap.URL).To(BeEmpty())
			Expect(snap.MainPage).To(BeEmpty())

			files, err := ws.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(files).To(BeEmpty())
		})

		It("replaces the documents of a previous fetch", func() {
			_, err := session.Fetch(ctx, blogURL)
			Expect(err).NotTo(HaveOccurred())

			cfg.Scrape.MaxArticles = 1
			_, err = session.Fetch(ctx, server.URL+"/blog/?page=2")
			Expect(err).NotTo(HaveOccurred())

			files, err := ws.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(files).To(ConsistOf(ws.MainPage(), filepath.Join(ws.Dir(), "article_1_first-post.pdf")))
		})
	})

	Describe("Analyze", func() {
		It("fails before anything was fetched", func() {
			_, err := session.Analyze(ctx)
			Expect(err).To(MatchError(pipeline.ErrNothingToAnalyze))
		})

		It("sends the main page followed by the selected articles", func() {
			_, err := session.Fetch(ctx, blogURL)
			Expect(err).NotTo(HaveOccurred())

			keywords, err := session.Analyze(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(keywords).To(ContainSubstring("keyword research"))

			Expect(analyzer.Paths()).To(Equal([]string{
				ws.MainPage(),
				filepath.Join(ws.Dir(), "article_1_first-post.pdf"),
				filepath.Join(ws.Dir(), "article_2_second-post.pdf"),
			}))
			Expect(analyzer.prompt).To(Equal("extract keywords"))
			Expect(session.Snapshot().Keywords).To(Equal(keywords))
		})

		It("skips deselected articles", func() {
			_, err := session.Fetch(ctx, blogURL)
			Expect(err).NotTo(HaveOccurred())

			selected, err := session.ToggleArticle(1)
			Expect(err).NotTo(HaveOccurred())
			Expect(selected).To(BeFalse())

			_, err = session.Analyze(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(analyzer.Paths()).To(Equal([]string{
				ws.MainPage(),
				filepath.Join(ws.Dir(), "article_2_second-post.pdf"),
			}))
		})

		It("keeps the previous keywords when the analyzer fails", func() {
			_, err := session.Fetch(ctx, blogURL)
			Expect(err).NotTo(HaveOccurred())

			analyzer.err = errors.New("quota exceeded")
			_, err = session.Analyze(ctx)
			Expect(err).To(MatchError(ContainSubstring("quota exceeded")))

			snap := session.Snapshot()
			Expect(snap.Keywords).To(Equal(types.NoKeywordsYet))
			Expect(snap.Status).To(Equal(types.StatusReady))
		})

		It("requires an analyzer", func() {
			s := pipeline.New(cfg, ws, fetcher.New(cfg.Fetch, zap.NewNop()), zap.NewNop())
			_, err := s.Analyze(ctx)
			Expect(err).To(MatchError(pipeline.ErrAnalyzerUnavailable))
		})
	})

	Describe("while processing", func() {
		It("rejects concurrent operations", func() {
			_, err := session.Fetch(ctx, blogURL)
			Expect(err).NotTo(HaveOccurred())

			analyzer.release = make(chan struct{})
			done := make(chan error, 1)
			go func() {
				_, err := session.Analyze(ctx)
				done <- err
			}()

			Eventually(func() string { return session.Snapshot().Status }).Should(Equal(types.StatusProcessing))

			_, err = session.Fetch(ctx, server.URL+"/blog/?other=1")
			Expect(err).To(MatchError(pipeline.ErrBusy))
			_, err = session.Analyze(ctx)
			Expect(err).To(MatchError(pipeline.ErrBusy))
			_, err = session.ToggleArticle(1)
			Expect(err).To(MatchError(pipeline.ErrBusy))
			Expect(session.Clear()).To(MatchError(pipeline.ErrBusy))

			close(analyzer.release)
			Eventually(done).Should(Receive(BeNil()))
			Expect(session.Snapshot().Status).To(Equal(types.StatusReady))
		})
	})

	Describe("ToggleArticle", func() {
		It("rejects unknown articles", func() {
			_, err := session.ToggleArticle(7)
			Expect(errors.Is(err, pipeline.ErrUnknownArticle)).To(BeTrue())
		})

		It("flips the selection back and forth", func() {
			_, err := session.Fetch(ctx, blogURL)
			Expect(err).NotTo(HaveOccurred())

			Expect(session.ToggleArticle(2)).To(BeFalse())
			Expect(session.ToggleArticle(2)).To(BeTrue())
			Expect(session.Snapshot().SelectedCount()).To(Equal(2))
		})
	})

	Describe("Clear", func() {
		It("resets the session and deletes the documents", func() {
			_, err := session.Fetch(ctx, blogURL)
			Expect(err).NotTo(HaveOccurred())
			_, err = session.Analyze(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(session.Clear()).To(Succeed())

			snap := session.Snapshot()
			Expect(snap.Articles).To(BeEmpty())
			Expect(snap.URL).To(BeEmpty())
			Expect(snap.Keywords).To(Equal(types.NoKeywordsYet))

			files, err := ws.List()
			Expect(err).NotTo(HaveOccurred())
			Expect(files).To(BeEmpty())

			manifest, err := session.Manifest()
			Expect(err).NotTo(HaveOccurred())
			Expect(manifest).To(BeNil())

			_, err = session.Fetch(ctx, blogURL)
			Expect(err).NotTo(HaveOccurred())
		})
	})
})

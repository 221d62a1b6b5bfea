package goquery_test

import (
	"strings"
	"testing"

	"github.com/fwojciec/trawl"
	"github.com/fwojciec/trawl/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractor_Extract(t *testing.T) {
	t.Parallel()

	t.Run("extracts title, text and links", func(t *testing.T) {
		t.Parallel()

		html := `<html><head><title> Go Concurrency </title></head><body>
			<p>Goroutines are lightweight threads.</p>
			<a href="/patterns">Concurrency patterns</a>
			<a href="https://other.test/channels">Channels</a>
		</body></html>`

		page, err := goquery.NewExtractor().Extract(html, "https://example.com/docs/")

		require.NoError(t, err)
		assert.Equal(t, "Go Concurrency", page.Title)
		assert.Contains(t, page.Text, "Goroutines are lightweight threads.")
		require.Len(t, page.Links, 2)
		assert.Equal(t, "https://example.com/patterns", page.Links[0].URL)
		assert.Equal(t, "Concurrency patterns", page.Links[0].Anchor)
		assert.Equal(t, "https://other.test/channels", page.Links[1].URL)
	})

	t.Run("strips navigation chrome and executable content", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
			<nav>Site navigation</nav>
			<script>var tracked = true;</script>
			<style>body { color: red }</style>
			<p>Actual content.</p>
			<footer>Copyright notice</footer>
		</body></html>`

		page, err := goquery.NewExtractor().Extract(html, "https://example.com/")

		require.NoError(t, err)
		assert.Equal(t, "Actual content.", page.Text)
	})

	t.Run("keeps nav links even though nav text is stripped", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
			<nav><a href="/about">About</a></nav>
			<p>Body.</p>
		</body></html>`

		page, err := goquery.NewExtractor().Extract(html, "https://example.com/")

		require.NoError(t, err)
		require.Len(t, page.Links, 1)
		assert.Equal(t, "https://example.com/about", page.Links[0].URL)
		assert.NotContains(t, page.Text, "About")
	})

	t.Run("filters non-http schemes and media links", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
			<a href="javascript:void(0)">Click</a>
			<a href="mailto:team@example.com">Mail</a>
			<a href="tel:+15551234">Call</a>
			<a href="/report.pdf">Report</a>
			<a href="/photo.JPG">Photo</a>
			<a href="ftp://example.com/file">FTP</a>
			<a href="/article">Article</a>
		</body></html>`

		page, err := goquery.NewExtractor().Extract(html, "https://example.com/")

		require.NoError(t, err)
		require.Len(t, page.Links, 1)
		assert.Equal(t, "https://example.com/article", page.Links[0].URL)
	})

	t.Run("deduplicates links and drops fragments", func(t *testing.T) {
		t.Parallel()

		html := `<html><body>
			<a href="/page#intro">Intro</a>
			<a href="/page#usage">Usage</a>
			<a href="/page">Page</a>
		</body></html>`

		page, err := goquery.NewExtractor().Extract(html, "https://example.com/")

		require.NoError(t, err)
		require.Len(t, page.Links, 1)
		assert.Equal(t, "https://example.com/page", page.Links[0].URL)
	})

	t.Run("collapses whitespace runs", func(t *testing.T) {
		t.Parallel()

		html := "<html><body><p>spaced\n\n\tout    text</p></body></html>"

		page, err := goquery.NewExtractor().Extract(html, "https://example.com/")

		require.NoError(t, err)
		assert.Equal(t, "spaced out text", page.Text)
	})

	t.Run("truncates oversized text on a word boundary", func(t *testing.T) {
		t.Parallel()

		body := strings.Repeat("verylongword ", trawl.MaxContentBytes/12)
		html := "<html><body><p>" + body + "</p></body></html>"

		page, err := goquery.NewExtractor().Extract(html, "https://example.com/")

		require.NoError(t, err)
		assert.LessOrEqual(t, len(page.Text), trawl.MaxContentBytes)
		assert.False(t, strings.HasSuffix(page.Text, " "))
	})

	t.Run("rejects an invalid base URL", func(t *testing.T) {
		t.Parallel()

		_, err := goquery.NewExtractor().Extract("<html></html>", "://broken")

		require.Error(t, err)
		assert.Equal(t, trawl.EINVALID, trawl.ErrorCode(err))
	})

	t.Run("empty body is not an error", func(t *testing.T) {
		t.Parallel()

		page, err := goquery.NewExtractor().Extract("<html><body></body></html>", "https://example.com/")

		require.NoError(t, err)
		assert.Empty(t, page.Text)
		assert.Empty(t, page.Links)
	})
}

package http_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	trawlhttp "github.com/fwojciec/trawl/http"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const userAgent = "trawlbot/1.0"

func TestFetcher_Fetch(t *testing.T) {
	t.Parallel()

	t.Run("sends the crawler user agent", func(t *testing.T) {
		t.Parallel()

		var gotUA string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotUA = r.Header.Get("User-Agent")
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, "<html><body>hi</body></html>")
		}))
		t.Cleanup(srv.Close)

		f := trawlhttp.NewFetcher(userAgent, trawlhttp.WithClient(srv.Client()))

		res, err := f.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, userAgent, gotUA)
		assert.Equal(t, http.StatusOK, res.StatusCode)
		assert.Contains(t, string(res.Body), "hi")
		assert.Contains(t, res.ContentType, "text/html")
	})

	t.Run("error statuses return a result, not an error", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "gone", http.StatusNotFound)
		}))
		t.Cleanup(srv.Close)

		f := trawlhttp.NewFetcher(userAgent, trawlhttp.WithClient(srv.Client()))

		res, err := f.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, res.StatusCode)
	})

	t.Run("follows redirects and reports the final URL", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/start" {
				http.Redirect(w, r, "/final", http.StatusMovedPermanently)
				return
			}
			fmt.Fprint(w, "arrived")
		}))
		t.Cleanup(srv.Close)

		f := trawlhttp.NewFetcher(userAgent, trawlhttp.WithClient(srv.Client()))

		res, err := f.Fetch(context.Background(), srv.URL+"/start")
		require.NoError(t, err)
		assert.True(t, strings.HasSuffix(res.FinalURL, "/final"))
		assert.Equal(t, "arrived", string(res.Body))
	})

	t.Run("stops after the redirect cap", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, r.URL.Path+"x", http.StatusFound)
		}))
		t.Cleanup(srv.Close)

		f := trawlhttp.NewFetcher(userAgent, trawlhttp.WithClient(srv.Client()))

		_, err := f.Fetch(context.Background(), srv.URL)
		require.Error(t, err)
	})

	t.Run("caps the body size", func(t *testing.T) {
		t.Parallel()

		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write(make([]byte, 6<<20))
		}))
		t.Cleanup(srv.Close)

		f := trawlhttp.NewFetcher(userAgent, trawlhttp.WithClient(srv.Client()))

		res, err := f.Fetch(context.Background(), srv.URL)
		require.NoError(t, err)
		assert.LessOrEqual(t, len(res.Body), 5<<20)
	})

	t.Run("transport failures return an error", func(t *testing.T) {
		t.Parallel()

		f := trawlhttp.NewFetcher(userAgent)

		_, err := f.Fetch(context.Background(), "http://127.0.0.1:1/unreachable")
		require.Error(t, err)
	})
}

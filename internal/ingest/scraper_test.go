package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!doctype html>
<html><head><title>Solorzano Spa</title>
<style>body { color: red }</style>
<script>var tracking = "do not index";</script>
</head>
<body>
<nav><a href="/">Home</a></nav>
<h1>Our   services</h1>
<p>Deep tissue massage, <b>facials</b> and
   aromatherapy.</p>
<noscript>Enable JavaScript</noscript>
<ul><li>Open Monday to Saturday</li><li>Closed Sunday</li></ul>
</body></html>`

func TestHTMLTextStripsMarkup(t *testing.T) {
	text, err := HTMLText(strings.NewReader(samplePage))
	require.NoError(t, err)

	assert.NotContains(t, text, "tracking")
	assert.NotContains(t, text, "color: red")
	assert.NotContains(t, text, "Enable JavaScript")
	assert.Contains(t, text, "Our services")
	assert.Contains(t, text, "Deep tissue massage, facials and aromatherapy.")

	paragraphs := strings.Split(text, DefaultSeparator)
	assert.Contains(t, paragraphs, "Open Monday to Saturday")
	assert.Contains(t, paragraphs, "Closed Sunday")
}

func TestScraperFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(samplePage))
		case "/plain":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte("plain <b>text</b>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	s := NewScraper(time.Second)

	text, err := s.Fetch(context.Background(), srv.URL+"/page")
	require.NoError(t, err)
	assert.Contains(t, text, "aromatherapy")

	text, err = s.Fetch(context.Background(), srv.URL+"/plain")
	require.NoError(t, err)
	assert.Equal(t, "plain <b>text</b>", text)

	_, err = s.Fetch(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
}

func TestExtractPDFTextRejectsGarbage(t *testing.T) {
	data := []byte("definitely not a pdf")
	_, err := ExtractPDFText(strings.NewReader(string(data)), int64(len(data)))
	require.Error(t, err)
}

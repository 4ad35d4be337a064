package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const (
	defaultScrapeTimeout = 15 * time.Second
	maxPageBytes         = 5 << 20
	scraperUserAgent     = "spa-concierge-ingest/1.0"
)

// Scraper downloads web pages and reduces them to readable text.
type Scraper struct {
	client *http.Client
}

// NewScraper builds a scraper whose requests time out after timeout.
func NewScraper(timeout time.Duration) *Scraper {
	if timeout <= 0 {
		timeout = defaultScrapeTimeout
	}
	return &Scraper{client: &http.Client{Timeout: timeout}}
}

// Fetch GETs url and returns its visible text. Non-2xx responses are errors.
func (s *Scraper) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("ingest: build request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", scraperUserAgent)
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.5")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("ingest: fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("ingest: fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, maxPageBytes)
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain") {
		raw, err := io.ReadAll(body)
		if err != nil {
			return "", fmt.Errorf("ingest: read %s: %w", url, err)
		}
		return string(raw), nil
	}
	return HTMLText(body)
}

// HTMLText strips markup from an HTML document. Script, style and noscript
// contents are dropped; block elements become paragraph breaks so the
// chunker can split on them.
func HTMLText(r io.Reader) (string, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return "", fmt.Errorf("ingest: parse html: %w", err)
	}

	var (
		paragraphs []string
		line       strings.Builder
	)
	breakParagraph := func() {
		if text := strings.Join(strings.Fields(line.String()), " "); text != "" {
			paragraphs = append(paragraphs, text)
		}
		line.Reset()
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript, atom.Template, atom.Svg:
				return
			}
		case html.TextNode:
			line.WriteString(n.Data)
			line.WriteByte(' ')
			return
		}

		block := isBlock(n)
		if block {
			breakParagraph()
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
		if block {
			breakParagraph()
		}
	}
	walk(doc)
	breakParagraph()

	return strings.Join(paragraphs, DefaultSeparator), nil
}

func isBlock(n *html.Node) bool {
	if n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.P, atom.Div, atom.Section, atom.Article, atom.Header, atom.Footer, atom.Main,
		atom.Nav, atom.Aside, atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6,
		atom.Li, atom.Ul, atom.Ol, atom.Table, atom.Tr, atom.Br, atom.Blockquote,
		atom.Pre, atom.Title, atom.Dd, atom.Dt:
		return true
	}
	return false
}

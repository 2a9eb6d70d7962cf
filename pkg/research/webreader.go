package research

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
	readability "github.com/go-shiori/go-readability"
	"golang.org/x/net/html"
)

var excessiveLinesRe = regexp.MustCompile(`\n{3,}`)

// WebReader turns an arbitrary article URL into clean markdown: readability
// strips the chrome, then the remaining HTML is converted. Used by sources
// that return links instead of content.
type WebReader struct {
	client    *http.Client
	converter *md.Converter
	maxBytes  int64
}

func NewWebReader() *WebReader {
	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	return &WebReader{
		client: &http.Client{
			Timeout: 20 * time.Second,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return fmt.Errorf("stopped after 10 redirects")
				}
				return nil
			},
		},
		converter: converter,
		maxBytes:  2 << 20,
	}
}

// Read 抓取网页并抽取正文，返回标题与 markdown 正文
func (r *WebReader) Read(ctx context.Context, pageURL string) (title, markdown string, err error) {
	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", "", fmt.Errorf("invalid url %q: %w", pageURL, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", "Curio-Crawler/1.0")
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s", ErrSourceUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("%w: unexpected status %d", ErrSourceUnavailable, resp.StatusCode)
	}

	body := io.LimitReader(resp.Body, r.maxBytes)
	article, err := readability.FromReader(body, parsed)
	if err != nil {
		return "", "", fmt.Errorf("extract article: %w", err)
	}

	markdown, err = r.converter.ConvertString(article.Content)
	if err != nil {
		// 转换失败时退回纯文本
		markdown = article.TextContent
	}
	markdown = strings.TrimSpace(excessiveLinesRe.ReplaceAllString(markdown, "\n\n"))

	return article.Title, markdown, nil
}

// stripTags 去掉检索摘要里的高亮标记
func stripTags(s string) string {
	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return s
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return strings.TrimSpace(b.String())
}

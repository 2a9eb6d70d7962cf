package research

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const wikipediaAPI = "https://en.wikipedia.org/w/api.php"

// Wikipedia 维基百科全文检索来源
type Wikipedia struct {
	client   *http.Client
	endpoint string
	limit    int
}

var _ Source = (*Wikipedia)(nil)

func NewWikipedia() *Wikipedia {
	return &Wikipedia{
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
		endpoint: wikipediaAPI,
		limit:    3,
	}
}

func (s *Wikipedia) Name() string {
	return "wikipedia"
}

type wikiSearchResponse struct {
	Query struct {
		Search []struct {
			Title   string `json:"title"`
			Snippet string `json:"snippet"`
			PageID  int    `json:"pageid"`
		} `json:"search"`
	} `json:"query"`
}

type wikiExtractResponse struct {
	Query struct {
		Pages map[string]struct {
			Title   string `json:"title"`
			Extract string `json:"extract"`
		} `json:"pages"`
	} `json:"query"`
}

func (s *Wikipedia) Search(ctx context.Context, query string) ([]Result, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", fmt.Sprintf("%d", s.limit))
	params.Set("format", "json")

	var searchResp wikiSearchResponse
	if err := s.getJSON(ctx, params, &searchResp); err != nil {
		return nil, fmt.Errorf("%w: wikipedia search: %s", ErrSourceUnavailable, err.Error())
	}

	var results []Result
	for _, hit := range searchResp.Query.Search {
		extract, err := s.extract(ctx, hit.Title)
		if err != nil || extract == "" {
			// 摘要取不到时退回检索摘要片段
			extract = stripTags(hit.Snippet)
		}
		if extract == "" {
			continue
		}
		results = append(results, Result{
			Title:      hit.Title,
			Content:    extract,
			URL:        "https://en.wikipedia.org/wiki/" + url.PathEscape(hit.Title),
			SourceName: s.Name(),
		})
	}
	return results, nil
}

func (s *Wikipedia) extract(ctx context.Context, title string) (string, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "extracts")
	params.Set("exintro", "1")
	params.Set("explaintext", "1")
	params.Set("titles", title)
	params.Set("format", "json")

	var extractResp wikiExtractResponse
	if err := s.getJSON(ctx, params, &extractResp); err != nil {
		return "", err
	}
	for _, page := range extractResp.Query.Pages {
		return page.Extract, nil
	}
	return "", nil
}

func (s *Wikipedia) getJSON(ctx context.Context, params url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Curio-Crawler/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(body, out)
}

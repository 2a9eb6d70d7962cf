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

const duckduckgoAPI = "https://api.duckduckgo.com/"

// DuckDuckGo Instant Answer 来源，适合定义类、百科类问题
type DuckDuckGo struct {
	client   *http.Client
	endpoint string
}

var _ Source = (*DuckDuckGo)(nil)

func NewDuckDuckGo() *DuckDuckGo {
	return &DuckDuckGo{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		endpoint: duckduckgoAPI,
	}
}

func (s *DuckDuckGo) Name() string {
	return "duckduckgo"
}

type ddgResponse struct {
	Heading       string `json:"Heading"`
	AbstractText  string `json:"AbstractText"`
	AbstractURL   string `json:"AbstractURL"`
	Answer        string `json:"Answer"`
	Definition    string `json:"Definition"`
	DefinitionURL string `json:"DefinitionURL"`
	RelatedTopics []struct {
		Text     string `json:"Text"`
		FirstURL string `json:"FirstURL"`
	} `json:"RelatedTopics"`
}

func (s *DuckDuckGo) Search(ctx context.Context, query string) ([]Result, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("no_html", "1")
	params.Set("skip_disambig", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Curio-Crawler/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: duckduckgo: %s", ErrSourceUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: duckduckgo: unexpected status %d", ErrSourceUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: duckduckgo: %s", ErrSourceUnavailable, err.Error())
	}

	var payload ddgResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: duckduckgo: %s", ErrSourceUnavailable, err.Error())
	}

	var results []Result
	if payload.AbstractText != "" {
		results = append(results, Result{
			Title:      payload.Heading,
			Content:    payload.AbstractText,
			URL:        payload.AbstractURL,
			SourceName: s.Name(),
		})
	}
	if payload.Answer != "" {
		results = append(results, Result{
			Title:      payload.Heading,
			Content:    payload.Answer,
			URL:        payload.AbstractURL,
			SourceName: s.Name(),
		})
	}
	if payload.Definition != "" {
		results = append(results, Result{
			Title:      payload.Heading,
			Content:    payload.Definition,
			URL:        payload.DefinitionURL,
			SourceName: s.Name(),
		})
	}
	// related topics 质量参差，只在没有正文时兜底取前两条
	if len(results) == 0 {
		for i, topic := range payload.RelatedTopics {
			if i >= 2 || topic.Text == "" {
				break
			}
			results = append(results, Result{
				Title:      query,
				Content:    topic.Text,
				URL:        topic.FirstURL,
				SourceName: s.Name(),
			})
		}
	}

	return results, nil
}

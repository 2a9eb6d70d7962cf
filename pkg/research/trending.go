package research

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const wikimediaFeedAPI = "https://api.wikimedia.org/feed/v1/wikipedia/en/featured"

// TrendingFeed 热门话题来源，话题发现的 trending 渠道
type TrendingFeed struct {
	client   *http.Client
	endpoint string
}

func NewTrendingFeed() *TrendingFeed {
	return &TrendingFeed{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		endpoint: wikimediaFeedAPI,
	}
}

type featuredResponse struct {
	MostRead struct {
		Articles []struct {
			NormalizedTitle string `json:"normalizedtitle"`
		} `json:"articles"`
	} `json:"mostread"`
}

// Trending 返回近一天阅读量靠前的条目名
func (s *TrendingFeed) Trending(ctx context.Context, limit int) ([]string, error) {
	now := time.Now().UTC()
	endpoint := fmt.Sprintf("%s/%04d/%02d/%02d", s.endpoint, now.Year(), now.Month(), now.Day())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Curio-Crawler/1.0")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: trending feed: %s", ErrSourceUnavailable, err.Error())
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: trending feed: unexpected status %d", ErrSourceUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var payload featuredResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}

	var topics []string
	for _, article := range payload.MostRead.Articles {
		name := strings.TrimSpace(article.NormalizedTitle)
		if name == "" {
			continue
		}
		topics = append(topics, name)
		if len(topics) >= limit {
			break
		}
	}
	return topics, nil
}

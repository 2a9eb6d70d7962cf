// Package research wraps the external knowledge sources the crawler and the
// query router fan out to. Every source is independently fallible; callers
// merge whatever subset responds in time.
package research

import (
	"context"
	"errors"
	"sync"

	"github.com/samber/lo"

	"github.com/curio-ai/curio/pkg/utils"
)

var (
	// ErrSourceUnavailable 单个来源失败，调用方继续尝试其他来源
	ErrSourceUnavailable = errors.New("research: source unavailable")
	// ErrAllSourcesFailed 所有来源都失败
	ErrAllSourcesFailed = errors.New("research: all sources failed")
)

// Result 检索到的一条外部资料
type Result struct {
	Title      string `json:"title"`
	Content    string `json:"content"`
	URL        string `json:"url"`
	SourceName string `json:"source_name"`
}

type Source interface {
	Name() string
	Search(ctx context.Context, query string) ([]Result, error)
}

// SearchAll queries every source concurrently and merges whichever subset
// succeeds before ctx expires. Only when every source fails does it return
// ErrAllSourcesFailed.
func SearchAll(ctx context.Context, sources []Source, query string) ([]Result, error) {
	if len(sources) == 0 {
		return nil, ErrAllSourcesFailed
	}

	type outcome struct {
		results []Result
		err     error
	}

	outcomes := make([]outcome, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			results, err := src.Search(ctx, query)
			outcomes[i] = outcome{results: results, err: err}
		}(i, src)
	}
	wg.Wait()

	var merged []Result
	failed := 0
	for _, o := range outcomes {
		if o.err != nil {
			failed++
			continue
		}
		merged = append(merged, o.results...)
	}
	if failed == len(sources) {
		return nil, ErrAllSourcesFailed
	}

	return Dedupe(merged), nil
}

// Dedupe 按内容指纹去重，保留先出现的
func Dedupe(results []Result) []Result {
	return lo.UniqBy(results, func(r Result) string {
		return utils.ContentHash(r.Content)
	})
}

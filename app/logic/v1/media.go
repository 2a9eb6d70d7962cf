package v1

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/curio-ai/curio/pkg/ai"
)

var imageURLPattern = regexp.MustCompile(`https?://\S+\.(?:png|jpe?g|gif|webp)(?:\?\S*)?`)

// ExtractImageURLs 提取提问中的图片链接
func ExtractImageURLs(query string) []string {
	return imageURLPattern.FindAllString(query, -1)
}

// ResolveMedia 将图片链接替换为模型生成的文字描述，后续阶段只处理纯文本。
// 识别失败时保留原始链接继续，不阻断问答。
func ResolveMedia(ctx context.Context, vision ai.Vision, query string) string {
	urls := ExtractImageURLs(query)
	if len(urls) == 0 || vision == nil {
		return query
	}

	resolved := query
	for _, u := range urls {
		desc, err := vision.DescribeImage(ctx, u)
		if err != nil {
			slog.Warn("describe image failed", slog.String("url", u), slog.String("error", err.Error()))
			continue
		}
		desc = strings.TrimSpace(desc)
		if desc == "" {
			continue
		}
		resolved = strings.Replace(resolved, u, fmt.Sprintf("[image: %s]", desc), 1)
	}
	return resolved
}

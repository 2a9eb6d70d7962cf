package utils

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encOnce sync.Once
	enc     *tiktoken.Tiktoken
	encErr  error
)

// NumTokens 估算文本 token 数，用于上下文预算控制
// 编码器加载失败时退化为按 4 字符 1 token 估算
func NumTokens(text string) int {
	encOnce.Do(func() {
		enc, encErr = tiktoken.GetEncoding("cl100k_base")
	})
	if encErr != nil || enc == nil {
		return len(text) / 4
	}
	return len(enc.Encode(text, nil, nil))
}

package v1

import (
	"strings"

	"github.com/curio-ai/curio/pkg/i18n"
	"github.com/curio-ai/curio/pkg/utils"
)

// smalltalkRule 命中后直接返回 canned response，不消耗模型调用
type smalltalkRule struct {
	messageID string
	patterns  []string
}

var smalltalkRules = []smalltalkRule{
	{
		messageID: i18n.MESSAGE_IDENTITY,
		patterns: []string{
			"who are you", "what are you", "your name", "introduce yourself",
			"你是谁", "你叫什么",
		},
	},
	{
		messageID: i18n.MESSAGE_THANKS,
		patterns: []string{
			"thank you", "thanks", "thx", "appreciate it", "谢谢", "多谢",
		},
	},
	{
		messageID: i18n.MESSAGE_COMPLIMENT,
		patterns: []string{
			"good job", "well done", "awesome", "great answer", "you are great",
			"you're great", "真棒", "厉害",
		},
	},
	{
		messageID: i18n.MESSAGE_GREETING,
		patterns: []string{
			"hello", "hi there", "hey", "good morning", "good afternoon",
			"good evening", "你好", "早上好", "晚上好",
		},
	},
}

// MatchSmalltalk 返回命中的 message id，未命中返回空串。
// 只有整句是寒暄时才算命中，避免吞掉 "hi, what is tcp" 这类真实提问。
func MatchSmalltalk(query string) string {
	t := strings.ToLower(strings.TrimSpace(query))
	t = strings.Trim(t, "!.?, ")
	if t == "" {
		return ""
	}
	if t == "hi" {
		return i18n.MESSAGE_GREETING
	}
	words := len(strings.Fields(t))
	for _, rule := range smalltalkRules {
		for _, p := range rule.patterns {
			if strings.Contains(t, p) && words <= len(strings.Fields(p))+2 {
				return rule.messageID
			}
		}
	}
	return ""
}

// LocalizeSmalltalk 按提问语言本地化 canned response
func LocalizeSmalltalk(l i18n.Localizer, query, messageID string) string {
	return l.Get(utils.WhatLangTag(query), messageID)
}

package utils

import (
	"github.com/abadojack/whatlanggo"
)

var whatLangOpts = whatlanggo.Options{
	Whitelist: map[whatlanggo.Lang]bool{
		whatlanggo.Eng: true,
		whatlanggo.Cmn: true,
	},
}

// WhatLangTag 返回 i18n 使用的语言标记
func WhatLangTag(query string) string {
	info := whatlanggo.DetectWithOptions(query, whatLangOpts)
	if info.Lang == whatlanggo.Cmn {
		return "zh-CN"
	}
	return "en"
}

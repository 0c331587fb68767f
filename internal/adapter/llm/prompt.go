package llm

import (
	"strings"
	"unicode/utf8"
)

const (
	// DefaultBudget 发给模型的最大字符数 (含截断标记)
	DefaultBudget = 8000
	// TruncationMarker 截断后追加在末尾的提示
	TruncationMarker = "\n\n... [README truncated for summarization]"

	baseInstruction = `Summarize the following text in English, in 3 short lines. Do NOT add any extra words like "Here's a summary". Only summarize the content`
	truncatedNote   = ". Note: This content was truncated from a larger document, so focus on the main topics covered"
)

// Truncate 把文本截到 budget 个字符以内并追加截断标记
// 优先在预算 75% 之后的段落边界截断，其次是句子边界，最后硬截断
func Truncate(text string, budget int) (string, bool) {
	if budget <= 0 {
		budget = DefaultBudget
	}
	if utf8.RuneCountInString(text) <= budget {
		return text, false
	}

	limit := budget - utf8.RuneCountInString(TruncationMarker)
	if limit <= 0 {
		return TruncationMarker[:runeOffset(TruncationMarker, budget)], true
	}
	cut := text[:runeOffset(text, limit)]
	floor := runeOffset(cut, limit*3/4)

	if i := strings.LastIndex(cut, "\n\n"); i >= floor {
		cut = cut[:i]
	} else if i := lastSentenceEnd(cut); i >= floor {
		cut = cut[:i+1]
	}
	return strings.TrimRight(cut, " \t\r\n") + TruncationMarker, true
}

// runeOffset 返回第 n 个字符的字节偏移，不足 n 个字符时返回 len(s)
func runeOffset(s string, n int) int {
	for i := range s {
		if n == 0 {
			return i
		}
		n--
	}
	return len(s)
}

// lastSentenceEnd 返回最后一个句末标点的位置，没有时返回 -1
func lastSentenceEnd(s string) int {
	best := -1
	for _, sep := range []string{". ", "! ", "? ", ".\n", "!\n", "?\n"} {
		if i := strings.LastIndex(s, sep); i > best {
			best = i
		}
	}
	return best
}

// IsTruncated 判断文本是否带有截断标记
func IsTruncated(text string) bool {
	return strings.Contains(text, "[README truncated")
}

// Instruction 摘要指令，截断过的内容会额外提示模型关注主要话题
func Instruction(text string) string {
	if IsTruncated(text) {
		return baseInstruction + truncatedNote
	}
	return baseInstruction
}

// BuildPrompt 单条 user 消息形式的完整提示词
func BuildPrompt(text string) string {
	return Instruction(text) + ":\n\n" + text
}

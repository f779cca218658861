package parser

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var spaceRe = regexp.MustCompile(`\s+`)

// NormalizeColumnName 规范化列名：去除首尾空白与换行，压缩连续空白为一个空格
func NormalizeColumnName(name string) string {
	name = strings.ReplaceAll(name, "\r", " ")
	name = strings.ReplaceAll(name, "\n", " ")
	name = strings.ReplaceAll(name, "\t", " ")
	return strings.TrimSpace(spaceRe.ReplaceAllString(name, " "))
}

// FoldKey 匹配键：小写、去掉越南语声调（đ → d）、下划线视为空格
func FoldKey(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	folded = strings.NewReplacer("đ", "d", "Đ", "d", "_", " ").Replace(folded)
	return NormalizeColumnName(strings.ToLower(folded))
}

// ContainsAny 检查字符串是否包含任意一个关键词
func ContainsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

var patternCache sync.Map // pattern → *regexp.Regexp

// MatchPattern 使用正则匹配（编译结果缓存）
func MatchPattern(text, pattern string) bool {
	if re, ok := patternCache.Load(pattern); ok {
		return re.(*regexp.Regexp).MatchString(text)
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	patternCache.Store(pattern, re)
	return re.MatchString(text)
}

// DedupeHeaders 表头去重：重复的列名依次加 .1、.2 … 后缀（不与已有列名冲突），
// 空表头命名为 Unnamed_<列号>
func DedupeHeaders(headers []string) []string {
	out := make([]string, len(headers))
	used := make(map[string]bool, len(headers))
	for _, h := range headers {
		used[NormalizeColumnName(h)] = true
	}
	seen := make(map[string]int, len(headers))
	for i, h := range headers {
		name := NormalizeColumnName(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed_%d", i+1)
		}
		n, dup := seen[name]
		seen[name] = n + 1
		if !dup {
			out[i] = name
			continue
		}
		var candidate string
		for k := n; ; k++ {
			candidate = fmt.Sprintf("%s.%d", name, k)
			if !used[candidate] {
				break
			}
		}
		used[candidate] = true
		out[i] = candidate
	}
	return out
}

// FlattenHeaders 合并两行表头：上层合并单元格向右延续，结果为 "上层 下层"
func FlattenHeaders(top, sub []string) []string {
	n := len(top)
	if len(sub) > n {
		n = len(sub)
	}
	out := make([]string, n)
	last := ""
	for i := 0; i < n; i++ {
		var t, s string
		if i < len(top) {
			t = NormalizeColumnName(top[i])
		}
		if i < len(sub) {
			s = NormalizeColumnName(sub[i])
		}
		switch {
		case t != "":
			last = t
		case s != "":
			t = last
		default:
			last = ""
		}
		out[i] = strings.TrimSpace(t + " " + s)
	}
	return out
}

// isBlankRow 整行为空（"-" 视为空）
func isBlankRow(row []string) bool {
	for _, c := range row {
		if v := strings.TrimSpace(c); v != "" && v != "-" {
			return false
		}
	}
	return true
}

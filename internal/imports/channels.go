// Package imports 从识别出的截图文字中提取频道编号。
// 文字识别引擎在仓库之外，这里只消费它输出的文本。
package imports

import (
	"regexp"
	"sort"
	"strconv"
)

// 频道编号是 4 位数字，有效范围 1000..9999
var channelNumberPattern = regexp.MustCompile(`\b\d{4}\b`)

const (
	minChannelNumber = 1000
	maxChannelNumber = 9999
)

// ExtractChannelNumbers 从文本中提取频道编号：
// 匹配 4 位数字、过滤有效范围、去重、升序排序
func ExtractChannelNumbers(text string) []int {
	matches := channelNumberPattern.FindAllString(text, -1)

	seen := make(map[int]struct{})
	numbers := []int{}
	for _, m := range matches {
		n, err := strconv.Atoi(m)
		if err != nil || n < minChannelNumber || n > maxChannelNumber {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		numbers = append(numbers, n)
	}

	sort.Ints(numbers)
	return numbers
}

// NewCandidates 从识别结果中剔除已存在的编号，保持升序
func NewCandidates(recognized, existing []int) []int {
	present := make(map[int]struct{}, len(existing))
	for _, n := range existing {
		present[n] = struct{}{}
	}

	candidates := []int{}
	for _, n := range recognized {
		if _, ok := present[n]; !ok {
			candidates = append(candidates, n)
		}
	}
	return candidates
}

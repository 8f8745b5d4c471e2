// Package solution 0/1 解的紧凑文本表示：取值为 1 的变量下标，逗号分隔
package solution

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

const (
	Delimiter = ","
	// DefaultTolerance 取值大于该容差即视为 1
	DefaultTolerance = 0.001
)

var ErrParse = errors.New("solution: 无法解析")

// ParseError 某个 token 不是合法整数
type ParseError struct {
	Token    string
	Position int
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("solution: 第 %d 个 token %q 不是整数: %v", e.Position, e.Token, e.Err)
}

func (e *ParseError) Unwrap() []error {
	return []error{ErrParse, e.Err}
}

// Encode 空序列编码为空字符串
func Encode(indices []int) string {
	if len(indices) == 0 {
		return ""
	}
	parts := make([]string, len(indices))
	for i, idx := range indices {
		parts[i] = strconv.Itoa(idx)
	}
	return strings.Join(parts, Delimiter)
}

// Decode 跳过空 token（容忍 "3,,5" 和结尾多余的逗号）
func Decode(text string) ([]int, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []int{}, nil
	}
	parts := strings.Split(text, Delimiter)
	out := make([]int, 0, len(parts))
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return nil, &ParseError{Token: p, Position: i, Err: err}
		}
		out = append(out, v)
	}
	return out, nil
}

// Extract 取值大于 tol 的下标，严格递增
func Extract(values []float64, tol float64) []int {
	out := make([]int, 0)
	for i, v := range values {
		if v > tol {
			out = append(out, i)
		}
	}
	return out
}

// Package lns 大邻域搜索（LNS）与 warm start：按参考解固定/提示 0/1 变量
package lns

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"time"
)

var ErrInvalidArgument = errors.New("lns: 参数不合法")

// Sample 从 [0,n) 中无放回均匀抽取 floor(n*ratio) 个下标，结果升序。
// 相同 (n, ratio, seed) 结果完全相同，保证实验可复现
func Sample(n int, ratio float64, seed int64) ([]int, error) {
	k, err := sampleSize(n, ratio)
	if err != nil {
		return nil, err
	}
	return sampleK(n, k, rand.New(rand.NewSource(seed))), nil
}

// SampleUnseeded 不指定 seed 的便捷版本
func SampleUnseeded(n int, ratio float64) ([]int, error) {
	return Sample(n, ratio, time.Now().UnixNano())
}

func sampleSize(n int, ratio float64) (int, error) {
	if n < 0 {
		return 0, fmt.Errorf("%w: 总体大小 %d 不能为负", ErrInvalidArgument, n)
	}
	if math.IsNaN(ratio) || ratio < 0 || ratio >= 1 {
		return 0, fmt.Errorf("%w: 比例 %v 不在 [0,1) 内", ErrInvalidArgument, ratio)
	}
	return int(math.Floor(float64(n) * ratio)), nil
}

// sampleK 部分 Fisher-Yates 洗牌
func sampleK(n, k int, rng *rand.Rand) []int {
	pool := make([]int, n)
	for i := range pool {
		pool[i] = i
	}
	for i := 0; i < k; i++ {
		j := i + rng.Intn(n-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	out := append([]int{}, pool[:k]...)
	sort.Ints(out)
	return out
}

package utils

import (
	"context"
	"sync"
)

const defaultConcurrency = 5

// BatchConfig 批量查询配置
type BatchConfig struct {
	// Concurrency 同时在途的查询数，缺省 5
	Concurrency int
}

// BatchError 单个条目的失败信息
type BatchError struct {
	// Index 条目在输入中的下标
	Index int
	// Error 失败原因
	Error error
}

// BatchQueryResult 批量查询结果
//
// Results 按输入顺序排列，只含成功条目；失败条目按下标列在 Errors 中。
type BatchQueryResult[R any] struct {
	Results []R
	Errors  []BatchError
	Total   int
	Success int
	Failed  int
}

// BatchQuery 对一组输入并发执行查询
//
// 并发数受限，单条失败不中断其余查询；ctx 取消后未开始的条目
// 记为失败。config 为 nil 时使用缺省配置。
func BatchQuery[T any, R any](
	ctx context.Context,
	items []T,
	queryFn func(ctx context.Context, item T, index int) (R, error),
	config *BatchConfig,
) (*BatchQueryResult[R], error) {
	concurrency := defaultConcurrency
	if config != nil && config.Concurrency > 0 {
		concurrency = config.Concurrency
	}

	results := make([]R, len(items))
	errs := make([]error, len(items))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i := range items {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			if err := ctx.Err(); err != nil {
				errs[idx] = err
				return
			}
			result, err := queryFn(ctx, items[idx], idx)
			if err != nil {
				errs[idx] = err
				return
			}
			results[idx] = result
		}(i)
	}
	wg.Wait()

	out := &BatchQueryResult[R]{Total: len(items)}
	for i := range items {
		if errs[i] != nil {
			out.Errors = append(out.Errors, BatchError{Index: i, Error: errs[i]})
			out.Failed++
			continue
		}
		out.Results = append(out.Results, results[i])
		out.Success++
	}
	return out, nil
}

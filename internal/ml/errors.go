// Package ml 定义推荐核心各组件共享的错误类型。
package ml

import "errors"

var (
	// ErrModelNotTrained 表示在成功 Fit 之前调用了需要已训练模型的操作。
	// 这是调用方错误，对该次调用致命，但不影响进程。
	ErrModelNotTrained = errors.New("模型尚未训练")

	// ErrInsufficientData 表示语料或用户历史太少，不足以训练或构建档案。
	// 非致命，调用方应走降级路径。
	ErrInsufficientData = errors.New("数据量不足")

	// ErrDimensionMismatch 表示比较了不同词表版本下生成的向量。
	// 属于编程错误，应通过向量版本号提前拦截。
	ErrDimensionMismatch = errors.New("向量维度不一致")
)

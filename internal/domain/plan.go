package domain

// CopyPlan 规划一次文件拷贝（只描述 src/dst；真正执行在 save 阶段）。
type CopyPlan struct {
	SrcAbs string
	DstAbs string

	// Renamed 表示目标名因冲突被分配了 __N 后缀（绝不覆盖已有文件）。
	Renamed bool
}

// BucketPlan 是对一个分组键的最小执行计划：目标目录 + 按桶序的拷贝列表。
//
// 约束：规划阶段只读（ReadDir 目标目录现状），不做任何写入。
type BucketPlan struct {
	Key    TimeKey
	DirAbs string
	DirRel string // 相对 dest 的展示路径（与 Key.Segments 一致）

	Copies []CopyPlan
}

package index

import (
	"sort"

	"github.com/John-Robertt/mediasort/internal/domain"
)

// Index 把媒体文件按时间键聚合成桶。
//
// - KeyShape 构造后不变，所有插入共用同一形态
// - 桶内文件保持插入顺序
// - Keys 的迭代顺序只由键的全序决定，与插入顺序无关
type Index struct {
	shape   domain.KeyShape
	buckets map[domain.TimeKey][]domain.MediaFile
	total   int
}

func New(shape domain.KeyShape) *Index {
	return &Index{
		shape:   shape,
		buckets: make(map[domain.TimeKey][]domain.MediaFile, 16),
	}
}

func (ix *Index) Shape() domain.KeyShape { return ix.shape }

// Insert 把原始 (year, month) 投影到当前形态后归桶。
// 没有拍摄时间的文件由调用方传入 (0, 0)，落入哨兵桶。
func (ix *Index) Insert(year, month int, file domain.MediaFile) {
	k := ix.shape.Project(year, month)
	ix.buckets[k] = append(ix.buckets[k], file)
	ix.total++
}

// Size 返回累计插入的文件数（所有桶大小之和）。
func (ix *Index) Size() int { return ix.total }

// Keys 返回全部键的升序快照。
func (ix *Index) Keys() []domain.TimeKey {
	keys := make([]domain.TimeKey, 0, len(ix.buckets))
	for k := range ix.buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// Bucket 返回 k 桶内的文件，保持插入顺序；键不存在时返回 nil。
func (ix *Index) Bucket(k domain.TimeKey) []domain.MediaFile {
	return ix.buckets[k]
}

package planner

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/John-Robertt/mediasort/internal/domain"
	"github.com/John-Robertt/mediasort/internal/index"
	"github.com/John-Robertt/mediasort/internal/infra/fsx"
)

// Plan 基于已填充的索引生成确定性的复制计划（只读，不做任何写入）。
//
// - 桶按键升序排列
// - 桶内复制顺序与索引插入顺序一致
// - 目标名冲突用 "__N" 后缀解决：既考虑目录里已有的名字，
//   也考虑本次计划里先分配出去的名字
func Plan(ix *index.Index, destRoot string) ([]domain.BucketPlan, error) {
	shape := ix.Shape()
	keys := ix.Keys()

	plans := make([]domain.BucketPlan, 0, len(keys))
	for _, k := range keys {
		dirRel := filepath.Join(k.Segments(shape)...)
		dirAbs := filepath.Join(destRoot, dirRel)

		used, err := readExistingNames(dirAbs)
		if err != nil {
			return nil, err
		}

		files := ix.Bucket(k)
		copies := make([]domain.CopyPlan, 0, len(files))
		for _, f := range files {
			dstName := allocName(f.Name, used)
			used[dstName] = struct{}{}

			copies = append(copies, domain.CopyPlan{
				SrcAbs:  f.AbsPath,
				DstAbs:  filepath.Join(dirAbs, dstName),
				Renamed: dstName != f.Name,
			})
		}

		plans = append(plans, domain.BucketPlan{
			Key:    k,
			DirAbs: dirAbs,
			DirRel: dirRel,
			Copies: copies,
		})
	}
	return plans, nil
}

// readExistingNames 读取目标目录的现有条目名（只做 ReadDir，不读内容）。
// 目录不存在按空集处理。
func readExistingNames(dir string) (map[string]struct{}, error) {
	names := map[string]struct{}{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return names, nil
		}
		if fi, statErr := os.Stat(dir); statErr == nil && !fi.IsDir() {
			return nil, &fsx.PathTypeConflictError{Path: dir, Want: "dir", Got: "file"}
		}
		return nil, err
	}

	for _, e := range entries {
		names[e.Name()] = struct{}{}
	}
	return names, nil
}

func allocName(name string, used map[string]struct{}) string {
	if _, ok := used[name]; !ok {
		return name
	}

	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	for n := 2; ; n++ {
		cand := fmt.Sprintf("%s__%d%s", base, n, ext)
		if _, ok := used[cand]; !ok {
			return cand
		}
	}
}

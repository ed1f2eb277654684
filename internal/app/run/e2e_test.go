package run

import (
	"bytes"
	"image"
	"image/jpeg"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/John-Robertt/mediasort/internal/config"
	"github.com/John-Robertt/mediasort/internal/domain"
	"github.com/John-Robertt/mediasort/internal/infra/filelock"
)

func TestExecute_YearMonthEndToEnd(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "dest")
	writeJPEGWithDTO(t, filepath.Join(src, "a.jpg"), "2024:01:01 10:30:00")
	writePlainJPEG(t, filepath.Join(src, "b.jpg"))

	rr := Execute(config.EffectiveConfig{
		Source: src,
		Dest:   dest,
		Shape:  domain.ShapeYearMonth,
	})

	if rr.Status != domain.StatusOK {
		t.Fatalf("不期望失败：%+v", rr)
	}
	if rr.GroupBy != "year+month" || rr.RunID == "" {
		t.Fatalf("报告头不符合预期：group_by=%q run_id=%q", rr.GroupBy, rr.RunID)
	}

	if _, err := os.Stat(filepath.Join(dest, "2024", "January", "a.jpg")); err != nil {
		t.Fatalf("期望拷出 a.jpg：%v", err)
	}
	if _, err := os.Stat(filepath.Join(dest, "0", "Unknown", "b.jpg")); err != nil {
		t.Fatalf("期望拷出 b.jpg：%v", err)
	}

	// 复制不移动：源文件保持原位。
	if _, err := os.Stat(filepath.Join(src, "a.jpg")); err != nil {
		t.Fatalf("源文件不应消失：%v", err)
	}

	if len(rr.Buckets) != 2 || rr.Buckets[0].Key != "0/Unknown" || rr.Buckets[1].Key != "2024/January" {
		t.Fatalf("桶序不符合预期：%+v", rr.Buckets)
	}
	f := rr.Buckets[1].Files[0]
	if f.Dst != filepath.Join("2024", "January", "a.jpg") || f.Status != domain.FileStatusCopied || f.Renamed {
		t.Fatalf("文件结果不符合预期：%+v", f)
	}

	s := rr.Summary
	if s.Found != 2 || s.WithTime != 1 || s.NoTime != 1 || s.Copied != 2 || s.Failed != 0 {
		t.Fatalf("summary 不符合预期：%+v", s)
	}

	if len(rr.Phases) != 3 || rr.Phases[0].Name != "scan" || rr.Phases[1].Name != "plan" || rr.Phases[2].Name != "save" {
		t.Fatalf("阶段不符合预期：%+v", rr.Phases)
	}
}

func TestExecute_NoMediaFound_DestUntouched(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "dest")
	writeBytes(t, filepath.Join(src, "notes.txt"), []byte("x"))

	rr := Execute(config.EffectiveConfig{
		Source: src,
		Dest:   dest,
		Shape:  domain.ShapeYearMonth,
	})

	if rr.Status != domain.StatusFailed || rr.ErrorCode != domain.ErrCodeNoMedia {
		t.Fatalf("期望 %q，实际 status=%q code=%q", domain.ErrCodeNoMedia, rr.Status, rr.ErrorCode)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("dest 不应被创建，但 Stat err=%v", err)
	}
	if len(rr.Buckets) != 0 || rr.Summary.Found != 0 {
		t.Fatalf("空运行不应有桶：%+v", rr)
	}
}

func TestExecute_DryRun_NoWrites(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "dest")
	writeJPEGWithDTO(t, filepath.Join(src, "a.jpg"), "2024:01:01 10:30:00")

	rr := Execute(config.EffectiveConfig{
		Source: src,
		Dest:   dest,
		Shape:  domain.ShapeYearMonth,
		DryRun: true,
	})

	if rr.Status != domain.StatusOK {
		t.Fatalf("不期望失败：%+v", rr)
	}
	if !rr.DryRun {
		t.Fatalf("报告应带 dry_run=true")
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("dry-run 不应创建 dest，但 Stat err=%v", err)
	}
	if len(rr.Buckets) != 1 || rr.Buckets[0].Files[0].Status != domain.FileStatusPlanned {
		t.Fatalf("dry-run 文件应停留在 planned：%+v", rr.Buckets)
	}
	if rr.Summary.Copied != 0 {
		t.Fatalf("dry-run 不应有 copied：%+v", rr.Summary)
	}
	if len(rr.Phases) != 2 || rr.Phases[1].Name != "plan" {
		t.Fatalf("dry-run 只有 scan/plan 两个阶段：%+v", rr.Phases)
	}
}

func TestExecute_CollisionGetsSuffix(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "dest")
	writeJPEGWithDTO(t, filepath.Join(src, "a.jpg"), "2024:01:01 10:30:00")

	occupied := filepath.Join(dest, "2024", "January", "a.jpg")
	if err := os.MkdirAll(filepath.Dir(occupied), 0o755); err != nil {
		t.Fatalf("创建目录失败：%v", err)
	}
	writeBytes(t, occupied, []byte("old"))

	rr := Execute(config.EffectiveConfig{
		Source: src,
		Dest:   dest,
		Shape:  domain.ShapeYearMonth,
	})

	if rr.Status != domain.StatusOK {
		t.Fatalf("不期望失败：%+v", rr)
	}
	if _, err := os.Stat(filepath.Join(dest, "2024", "January", "a__2.jpg")); err != nil {
		t.Fatalf("期望改名为 a__2.jpg：%v", err)
	}
	old, err := os.ReadFile(occupied)
	if err != nil || string(old) != "old" {
		t.Fatalf("已有文件必须原样保留：%q err=%v", old, err)
	}
	if rr.Summary.Renamed != 1 {
		t.Fatalf("期望 renamed=1，实际 %d", rr.Summary.Renamed)
	}
	if !rr.Buckets[0].Files[0].Renamed {
		t.Fatalf("文件结果应带 renamed 标记：%+v", rr.Buckets[0].Files[0])
	}
}

func TestExecute_SecondRunSameDirSet(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "dest")
	writeJPEGWithDTO(t, filepath.Join(src, "a.jpg"), "2024:01:01 10:30:00")
	writePlainJPEG(t, filepath.Join(src, "b.jpg"))

	eff := config.EffectiveConfig{Source: src, Dest: dest, Shape: domain.ShapeYearMonth}

	rr1 := Execute(eff)
	if rr1.Status != domain.StatusOK {
		t.Fatalf("第一次运行不期望失败：%+v", rr1)
	}
	dirs1 := listDirs(t, dest)

	rr2 := Execute(eff)
	if rr2.Status != domain.StatusOK {
		t.Fatalf("第二次运行不期望失败：%+v", rr2)
	}
	dirs2 := listDirs(t, dest)

	if len(dirs1) != len(dirs2) {
		t.Fatalf("两次运行目录集应一致：%v vs %v", dirs1, dirs2)
	}
	for i := range dirs1 {
		if dirs1[i] != dirs2[i] {
			t.Fatalf("两次运行目录集应一致：%v vs %v", dirs1, dirs2)
		}
	}
	if rr2.Summary.Renamed != 2 {
		t.Fatalf("第二次运行应全部改名，实际 renamed=%d", rr2.Summary.Renamed)
	}
}

func TestExecute_YearOnlyShape(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "dest")
	writeJPEGWithDTO(t, filepath.Join(src, "a.jpg"), "2024:01:01 10:30:00")

	rr := Execute(config.EffectiveConfig{Source: src, Dest: dest, Shape: domain.ShapeYear})
	if rr.Status != domain.StatusOK {
		t.Fatalf("不期望失败：%+v", rr)
	}
	if _, err := os.Stat(filepath.Join(dest, "2024", "a.jpg")); err != nil {
		t.Fatalf("期望 dest/2024/a.jpg：%v", err)
	}
	if rr.Buckets[0].Key != "2024" {
		t.Fatalf("期望键 2024，实际 %q", rr.Buckets[0].Key)
	}
}

func TestExecute_MonthOnlyShape(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "dest")
	writeJPEGWithDTO(t, filepath.Join(src, "a.jpg"), "2024:01:01 10:30:00")

	rr := Execute(config.EffectiveConfig{Source: src, Dest: dest, Shape: domain.ShapeMonth})
	if rr.Status != domain.StatusOK {
		t.Fatalf("不期望失败：%+v", rr)
	}
	if _, err := os.Stat(filepath.Join(dest, "January", "a.jpg")); err != nil {
		t.Fatalf("期望 dest/January/a.jpg：%v", err)
	}
}

func TestExecute_DestDirOccupiedByFile(t *testing.T) {
	src := t.TempDir()
	dest := t.TempDir()
	writeJPEGWithDTO(t, filepath.Join(src, "a.jpg"), "2024:01:01 10:30:00")
	writeBytes(t, filepath.Join(dest, "2024"), []byte("x"))

	rr := Execute(config.EffectiveConfig{Source: src, Dest: dest, Shape: domain.ShapeYear})
	if rr.Status != domain.StatusFailed || rr.ErrorCode != domain.ErrCodeTargetConflict {
		t.Fatalf("期望 %q，实际 status=%q code=%q msg=%q",
			domain.ErrCodeTargetConflict, rr.Status, rr.ErrorCode, rr.ErrorMsg)
	}
	fi, err := os.Lstat(filepath.Join(dest, "2024"))
	if err != nil || fi.IsDir() {
		t.Fatalf("占位文件必须原样保留：fi=%v err=%v", fi, err)
	}
}

func TestExecute_DestinationLocked(t *testing.T) {
	src := t.TempDir()
	dest := filepath.Join(t.TempDir(), "dest")
	writeJPEGWithDTO(t, filepath.Join(src, "a.jpg"), "2024:01:01 10:30:00")

	held, err := filelock.Acquire(dest)
	if err != nil {
		t.Fatalf("预先持锁失败：%v", err)
	}
	defer held.Release()

	rr := Execute(config.EffectiveConfig{Source: src, Dest: dest, Shape: domain.ShapeYearMonth})
	if rr.Status != domain.StatusFailed || rr.ErrorCode != domain.ErrCodeLocked {
		t.Fatalf("期望 %q，实际 status=%q code=%q", domain.ErrCodeLocked, rr.Status, rr.ErrorCode)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatalf("被锁住的运行不应创建 dest，但 Stat err=%v", err)
	}
	if rr.Buckets[0].Files[0].Status != domain.FileStatusPlanned {
		t.Fatalf("被锁住的运行文件应停留在 planned：%+v", rr.Buckets)
	}
}

// listDirs 收集 dest 下全部目录（相对路径，字典序）。
func listDirs(t *testing.T, root string) []string {
	t.Helper()
	var out []string
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() && p != root {
			rel, e := filepath.Rel(root, p)
			if e != nil {
				return e
			}
			out = append(out, rel)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("遍历 dest 失败：%v", err)
	}
	sort.Strings(out)
	return out
}

// le16 / le32 以小端序编码，供手工构造 TIFF 块使用。
func le16(v uint16) []byte { return []byte{byte(v), byte(v >> 8)} }

func le32(v uint32) []byte {
	return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
}

// buildTIFF 构造只含 DateTimeOriginal 的最小 TIFF 块（64 字节，小端）。
func buildTIFF(t *testing.T, dto string) []byte {
	t.Helper()
	if len(dto) != 19 {
		t.Fatalf("日期串长度必须为 19：%q", dto)
	}
	b := make([]byte, 0, 64)
	b = append(b, 'I', 'I', 0x2a, 0x00)
	b = append(b, le32(8)...)

	b = append(b, le16(1)...)
	b = append(b, le16(0x8769)...) // ExifIFDPointer
	b = append(b, le16(4)...)      // LONG
	b = append(b, le32(1)...)
	b = append(b, le32(26)...)
	b = append(b, le32(0)...)

	b = append(b, le16(1)...)
	b = append(b, le16(0x9003)...) // DateTimeOriginal
	b = append(b, le16(2)...)      // ASCII
	b = append(b, le32(20)...)
	b = append(b, le32(44)...)
	b = append(b, le32(0)...)

	b = append(b, dto...)
	b = append(b, 0x00)
	return b
}

func writePlainJPEG(t *testing.T, path string) {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("编码 JPEG 失败：%v", err)
	}
	writeBytes(t, path, buf.Bytes())
}

// writeJPEGWithDTO 在标准编码器输出的 SOI 之后拼入 APP1(Exif) 段。
func writeJPEGWithDTO(t *testing.T, path, dto string) {
	t.Helper()
	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("编码 JPEG 失败：%v", err)
	}
	raw := buf.Bytes()

	payload := append([]byte("Exif\x00\x00"), buildTIFF(t, dto)...)
	app1 := []byte{0xff, 0xe1, byte((len(payload) + 2) >> 8), byte(len(payload) + 2)}
	app1 = append(app1, payload...)

	out := make([]byte, 0, len(raw)+len(app1))
	out = append(out, raw[:2]...)
	out = append(out, app1...)
	out = append(out, raw[2:]...)
	writeBytes(t, path, out)
}

func writeBytes(t *testing.T, path string, b []byte) {
	t.Helper()
	if err := os.WriteFile(path, b, 0o644); err != nil {
		t.Fatalf("写入文件失败 %q：%v", path, err)
	}
}

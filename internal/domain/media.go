package domain

// MediaFile 描述一次发现得到的媒体文件。
//
// 不变量（实现必须遵守）：
// - AbsPath 必须是 clean + absolute
// - 发现阶段只做目录读取与 stat，不读文件内容
// - 插入分组索引后不再修改（值语义）
type MediaFile struct {
	AbsPath string
	RelPath string
	Name    string // 原始文件名（含扩展名），落盘时保留
}

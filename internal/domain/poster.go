package domain

// PosterPlan 描述一部电影的 poster 处理计划（只描述，不执行）。
type PosterPlan struct {
	// SourceURL 为空表示没有可下载的 poster。
	SourceURL string
	// LocalPath 是下载成功后的落盘路径（绝对路径）。
	LocalPath string
	// Recorded 是写进 CSV 的值；与下载是否成功无关。
	Recorded string
	// Download=false 时不发起任何网络请求。
	Download bool
}

package domain

// MovieRecord 是一部电影规整后的扁平记录，对应 CSV 的一行。
//
// 约束：
// - 只在“列表项 + 详情响应”合并时临时构造，随即序列化，不做持久化缓存
// - 字段缺失时使用约定的默认值（ReleaseYear="Unknown"、Runtime=0、Rating=0.0）
type MovieRecord struct {
	TMDBID      int
	Title       string
	Director    string
	Cast        string // 前 5 位演员名，", " 连接
	Synopsis    string
	Poster      string // 写入 CSV 的相对路径，例如 "movie_posters/42.jpg"
	ReleaseYear string
	Genres      string // ", " 连接
	Runtime     int    // 分钟
	Rating      float64
}

// UnknownYear 是 release_date 缺失或不足 4 个字符时的年份占位。
const UnknownYear = "Unknown"

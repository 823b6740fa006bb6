package meowstatus

// Heartbeat 是客户端上报给状态后端的单次心跳 payload。
// 空的 music 字段表示“无数据”，后端按缺省处理。
type Heartbeat struct {
	DeviceID     string `json:"device_id"`
	DeviceName   string `json:"device_name"`
	Online       bool   `json:"online"`
	IdleSeconds  int64  `json:"idle_seconds"`
	MusicPlaying bool   `json:"music_playing"`
	MusicTitle   string `json:"music_title,omitempty"`
	MusicArtist  string `json:"music_artist,omitempty"`
	MusicSource  string `json:"music_source,omitempty"`
}

// DeviceStatusRecord is the backend's view of one device, as served by GET /status.
// The online flag is already staleness- and manual-offline-corrected by the backend;
// consumers read it verbatim and never mutate the record.
type DeviceStatusRecord struct {
	DeviceID            string `json:"device_id"`
	DeviceName          string `json:"device_name"`
	Online              bool   `json:"online"`
	LastSeen            int64  `json:"last_seen"`
	IdleSeconds         int64  `json:"idle_seconds"`
	ManualOffline       bool   `json:"manual_offline"`
	GlobalManualOffline bool   `json:"global_manual_offline"`
	MusicPlaying        bool   `json:"music_playing"`
	MusicTitle          string `json:"music_title,omitempty"`
	MusicArtist         string `json:"music_artist,omitempty"`
	MusicSource         string `json:"music_source,omitempty"`
	MusicUpdatedAt      int64  `json:"music_updated_at,omitempty"`
}

// Quote 一言卡片内容。
type Quote struct {
	Text string `json:"hitokoto"`
	From string `json:"from,omitempty"`
}

// ScheduleItem 日程表单条记录。
type ScheduleItem struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Time      string `json:"time"`
	Note      string `json:"note,omitempty"`
	Location  string `json:"location,omitempty"`
	Tag       string `json:"tag,omitempty"`
	SortOrder int64  `json:"sort_order"`
	UpdatedAt int64  `json:"updated_at"`
}

// BlogPostSummary 博客列表项（不含正文）。
type BlogPostSummary struct {
	Slug      string `json:"slug"`
	Title     string `json:"title"`
	Date      string `json:"date"`
	Tag       string `json:"tag,omitempty"`
	Excerpt   string `json:"excerpt"`
	SortOrder int64  `json:"sort_order"`
	UpdatedAt int64  `json:"updated_at"`
}

// BlogPost 博客详情，正文为段落列表。
type BlogPost struct {
	Slug      string   `json:"slug"`
	Title     string   `json:"title"`
	Date      string   `json:"date"`
	Tag       string   `json:"tag,omitempty"`
	Excerpt   string   `json:"excerpt"`
	Content   []string `json:"content"`
	SortOrder int64    `json:"sort_order"`
	UpdatedAt int64    `json:"updated_at"`
}

// VisitorStats 访客计数聚合，缺字段按零处理。
type VisitorStats struct {
	Today     int64 `json:"today"`
	Month     int64 `json:"month"`
	Total     int64 `json:"total"`
	UpdatedAt int64 `json:"updated_at"`
}

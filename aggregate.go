package meowstatus

// 首页状态摘要文案，与后端约定保持一致。
const (
	SummaryLoading     = "加载中"
	SummaryOnline      = "营业中"
	SummaryBusy        = "在忙/睡觉"
	SummaryUnavailable = "暂时无法获取"
)

// HasOnlineDevice reports whether any record claims online. The flag is taken
// verbatim; the backend has already applied its staleness window to it.
func HasOnlineDevice(records []DeviceStatusRecord) bool {
	for _, record := range records {
		if record.Online {
			return true
		}
	}
	return false
}

// AllDevicesOffline is true only for a non-empty set where every device is offline.
func AllDevicesOffline(records []DeviceStatusRecord) bool {
	if len(records) == 0 {
		return false
	}
	for _, record := range records {
		if record.Online {
			return false
		}
	}
	return true
}

// SummaryText reduces the device set to a single human-facing summary.
// loading only wins while no data has ever arrived; after the first payload the
// last known state keeps rendering through refreshes and failures.
func SummaryText(records []DeviceStatusRecord, loading bool) string {
	if loading && len(records) == 0 {
		return SummaryLoading
	}
	if HasOnlineDevice(records) {
		return SummaryOnline
	}
	if AllDevicesOffline(records) {
		return SummaryBusy
	}
	return SummaryUnavailable
}

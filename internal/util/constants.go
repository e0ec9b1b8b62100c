package util

const (
	DateFormat = "2006-01-02"
	TimeFormat = "2006-01-02 15:04:05"
)

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

const (
	MimeCSV = "text/csv"
)

// 导出文件前缀，清理任务按前缀筛选
const (
	ExportPrefixUserAttempts = "exports/quiz_attempts_"
	ExportPrefixUsers        = "exports/users_report_"
	ExportPrefixQuizStats    = "exports/quiz_statistics_"
	ExportDir                = "exports/"
)

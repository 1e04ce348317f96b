package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
)

const (
	MimeCSV = "text/csv"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

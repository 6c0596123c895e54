package util

const (
	StorageLocal = "local"
	StorageMinio = "minio"
	StorageOSS   = "oss"
)

const (
	MimeJSON = "application/json"
)

// context keys set by the auth middleware
const (
	ContextUser  = "user"
	ContextActor = "actor"
)

package errors

// Generic codes used when no specific kind applies.
const (
	CodeSystemGeneric   = "SYS-000"
	CodeDatabaseGeneric = "DB-000"
)

// Downloader codes.
const (
	CodeDownloadDirectory     = "DL-001"
	CodeDownloadRequest       = "DL-002"
	CodeDownloadContentLength = "DL-003"
	CodeDownloadStream        = "DL-004"
	CodeDownloadStatus        = "DL-005"
)

// Release client codes.
const (
	CodeReleaseRequest       = "REL-001"
	CodeReleaseParse         = "REL-002"
	CodeReleaseVersion       = "REL-003"
	CodeReleaseAssetNotFound = "REL-004"
)

// Proxy manager codes.
const (
	CodeProxyVersion            = "PRX-001"
	CodeProxyVersionUnparsable  = "PRX-002"
	CodeProxySpawn              = "PRX-003"
	CodeProxyExtract            = "PRX-004"
	CodeProxyUnsupportedVariant = "PRX-005"
)

// Configuration codes.
const (
	CodeConfigLoad    = "CFG-001"
	CodeConfigInvalid = "CFG-002"
)

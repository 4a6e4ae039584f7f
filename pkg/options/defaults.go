package options

const (
	// DefaultTotalSize is the byte budget split across both segment
	// files when no explicit size is configured, matching the
	// original object cache's default.
	DefaultTotalSize int64 = 20_000_000

	// MinTotalSize is the smallest total size New accepts: a handful
	// of minimum-size records must fit in half the budget, or the
	// cache would rotate on nearly every write.
	MinTotalSize int64 = 1024

	// MaxTotalSize caps the total size to keep a misconfigured value
	// (e.g. a stray units mixup) from trying to preallocate terabytes
	// of segment space.
	MaxTotalSize int64 = 1024 * 1024 * 1024 * 1024

	// DefaultClientTag is the client tag when none is supplied,
	// matching the original's empty-string default. An empty tag
	// selects unnamed temporary segment files, so it never appears in
	// a segment filename.
	DefaultClientTag = ""
)

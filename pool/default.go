package pool

// Defaults used when a caller passes zero values.
const (
	DefaultBufferSize = 4096
	DefaultCapacity   = 256
)

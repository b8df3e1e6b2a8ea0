package config

import "time"

const (
	// MaxFolderNameLength is the maximum length for folder names.
	// Limited to 255 to fit in PostgreSQL VARCHAR(255).
	MaxFolderNameLength = 255

	// MaxFileNameLength is the maximum length for stored original file names.
	MaxFileNameLength = 255

	// MaxPathDepth bounds ancestor walks. Folder trees are expected to stay
	// tens of levels deep; anything longer is treated as a broken chain.
	MaxPathDepth = 64

	// MinVariantSize and MaxVariantSize bound manual resize requests (pixels).
	MinVariantSize = 16
	MaxVariantSize = 4096

	// MaxUploadFileBytes is the per-file upload limit (100 MiB).
	MaxUploadFileBytes = 100 << 20

	// MaxUploadBatchFiles is the maximum number of files in one upload request.
	MaxUploadBatchFiles = 10

	// DefaultResizeTimeout bounds one call to the resize worker.
	DefaultResizeTimeout = 60 * time.Second
)

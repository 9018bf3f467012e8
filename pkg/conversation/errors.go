package conversation

import "github.com/pkg/errors"

// Structural errors. They signal caller logic defects and are never retried.
var (
	ErrEmptyLog             = errors.New("conversation log is empty")
	ErrIndexOutOfRange      = errors.New("index out of range")
	ErrBookmarkNotFound     = errors.New("bookmark not found")
	ErrInvalidSerializedLog = errors.New("invalid serialized conversation log")
)

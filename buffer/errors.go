package buffer

import "errors"

var (
	// ErrBufferPoolFull means every frame is pinned and no victim exists.
	ErrBufferPoolFull = errors.New("buffer pool is full, all frames are pinned")

	// ErrPageNotFound means the requested page is not resident.
	ErrPageNotFound = errors.New("page not found in buffer pool")

	// ErrInvalidConfig means the pool was constructed with bad parameters.
	ErrInvalidConfig = errors.New("invalid buffer pool configuration")
)

// BufferPoolError tags an underlying error with the failing operation.
type BufferPoolError struct {
	Op  string
	Err error
}

func (e *BufferPoolError) Error() string {
	if e.Err == nil {
		return "<nil>"
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *BufferPoolError) Unwrap() error {
	return e.Err
}

// NewError wraps err with the operation name.
func NewError(op string, err error) error {
	return &BufferPoolError{Op: op, Err: err}
}

// IsBufferPoolFull reports whether err is a pool saturation error.
func IsBufferPoolFull(err error) bool {
	return errors.Is(err, ErrBufferPoolFull)
}

// IsNotFound reports whether err is a missing page error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrPageNotFound)
}

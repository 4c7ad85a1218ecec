package transcribe

import "fmt"

// FileAccessError reports that the input file could not be opened or read.
// No provider call is made when it is returned.
type FileAccessError struct {
	Path string
	Err  error
}

func (e *FileAccessError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *FileAccessError) Unwrap() error { return e.Err }

// ExternalCallError carries a failure from the model provider. Its message is
// the provider's message, unchanged.
type ExternalCallError struct {
	Err error
}

func (e *ExternalCallError) Error() string { return e.Err.Error() }

func (e *ExternalCallError) Unwrap() error { return e.Err }

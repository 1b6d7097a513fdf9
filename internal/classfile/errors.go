package classfile

import "fmt"

// ReaderError is the typed decode failure the class-file decoder produces.
// The four kinds mirror the original rjvm ClassReaderError used throughout
// _examples/original_source/reader/src/class_reader_error.rs.
type ReaderError struct {
	Kind    ReaderErrorKind
	Message string
}

type ReaderErrorKind int

const (
	InvalidClassData ReaderErrorKind = iota
	UnsupportedVersion
	InvalidTypeDescriptor
	UnsupportedInstruction
)

func (k ReaderErrorKind) String() string {
	switch k {
	case InvalidClassData:
		return "InvalidClassData"
	case UnsupportedVersion:
		return "UnsupportedVersion"
	case InvalidTypeDescriptor:
		return "InvalidTypeDescriptor"
	case UnsupportedInstruction:
		return "UnsupportedInstruction"
	default:
		return "Unknown"
	}
}

func (e *ReaderError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newErr(kind ReaderErrorKind, format string, args ...any) error {
	return &ReaderError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

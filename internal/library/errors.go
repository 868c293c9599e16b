package library

import (
	"errors"

	"library/internal/storage"
)

// ErrCode classifies failures for the presentation layer
type ErrCode string

const (
	CodeNotFound   ErrCode = "NOT_FOUND"
	CodeConflict   ErrCode = "CONFLICT"
	CodeValidation ErrCode = "VALIDATION"
)

type codedError struct {
	code ErrCode
	msg  string
	err  error
}

func (e codedError) Error() string { return e.msg }
func (e codedError) Code() ErrCode { return e.code }
func (e codedError) Unwrap() error { return e.err }

func makeErr(code ErrCode, msg string, cause error) error {
	return codedError{code: code, msg: msg, err: cause}
}

// Code extracts the error code. Uncoded errors return "" and are internal failures.
func Code(err error) ErrCode {
	var ce interface{ Code() ErrCode }
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return ""
}

// classify turns storage errors into coded errors. conflict is the message
// used for the operation-specific conflicts (duplicates and active loans).
func classify(err error, conflict string) error {
	var notFound *storage.NotFoundError
	switch {
	case errors.As(err, &notFound):
		return makeErr(CodeNotFound, notFound.Error(), err)
	case errors.Is(err, storage.ErrBookUnavailable):
		return makeErr(CodeConflict, "book not available", err)
	case errors.Is(err, storage.ErrAlreadyReturned):
		return makeErr(CodeConflict, "loan already returned", err)
	case errors.Is(err, storage.ErrActiveLoans), errors.Is(err, storage.ErrDuplicate):
		return makeErr(CodeConflict, conflict, err)
	}
	return err
}

package common

import (
	"errors"
	"fmt"
)

// Return status codes the client reacts to.
const (
	StatusOK                      = 0
	StatusMarketDoesNotExist      = 8
	StatusMarketNotActive         = 16
	StatusWithdrawalSeqInvalid    = 136
	StatusMaxInputRecordsExceeded = 137
	StatusSequenceNumberInvalid   = 310
	StatusPunterBlacklisted       = 406
)

var (
	ErrBlacklisted     = errors.New("punter is blacklisted")
	ErrInvalidSequence = errors.New("invalid sequence number")
)

// ApiError means the exchange answered with a non-success return status.
// Chunk is the zero-based batch index for chunked calls, -1 otherwise.
type ApiError struct {
	Op    string
	Code  int
	Chunk int
	Msg   string
}

func NewApiError(op string, code int, msg string) *ApiError {
	return &ApiError{Op: op, Code: code, Chunk: -1, Msg: msg}
}

func (e *ApiError) Error() string {
	s := fmt.Sprintf("%s: api error code %d", e.Op, e.Code)
	if e.Chunk >= 0 {
		s += fmt.Sprintf(" (chunk %d)", e.Chunk)
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	return s
}

func (e *ApiError) Is(target error) bool {
	switch target {
	case ErrBlacklisted:
		return e.Code == StatusPunterBlacklisted
	case ErrInvalidSequence:
		return e.Code == StatusSequenceNumberInvalid
	}
	return false
}

// CheckStatus turns a non-zero return status into an ApiError.
func CheckStatus(op string, st ReturnStatus) error {
	if st.Code == StatusOK {
		return nil
	}
	return NewApiError(op, st.Code, st.Description)
}

// DataError means a response violated a shape invariant the parser relies on.
type DataError struct {
	Op  string
	Msg string
}

func (e *DataError) Error() string { return fmt.Sprintf("%s: data error: %s", e.Op, e.Msg) }

// TransportError wraps failures below the API layer (network, timeouts,
// undecodable bodies).
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: transport: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

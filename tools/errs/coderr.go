package errs

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// CodeError is the error shape every boundary handler speaks: a stable
// numeric code, a short message, and an optional free-form detail.
type CodeError struct {
	Code   int    `json:"code"`
	Msg    string `json:"msg"`
	Detail string `json:"detail,omitempty"`
}

func NewCodeError(code int, msg string) *CodeError {
	return &CodeError{Code: code, Msg: msg}
}

func (e *CodeError) Error() string {
	v := make([]string, 0, 3)
	v = append(v, strconv.Itoa(e.Code), e.Msg)
	if e.Detail != "" {
		v = append(v, e.Detail)
	}
	return strings.Join(v, " ")
}

// WithDetail returns a copy carrying extra detail; the receiver is unchanged
// so the predefined sentinel values stay clean.
func (e *CodeError) WithDetail(detail string) *CodeError {
	d := detail
	if e.Detail != "" {
		d = e.Detail + ", " + detail
	}
	return &CodeError{Code: e.Code, Msg: e.Msg, Detail: d}
}

// Wrap attaches a stack trace.
func (e *CodeError) Wrap() error {
	return errors.WithStack(e)
}

// WrapMsg attaches detail plus a stack trace in one step.
func (e *CodeError) WrapMsg(detail string) error {
	return errors.WithStack(e.WithDetail(detail))
}

// Is matches on code, so errors.Is(err, ErrStaleSignal) works across
// WithDetail copies and stack wrapping.
func (e *CodeError) Is(target error) bool {
	t, ok := target.(*CodeError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Unwrap digs a *CodeError out of a wrapped chain, or nil.
func Unwrap(err error) *CodeError {
	var ce *CodeError
	if errors.As(err, &ce) {
		return ce
	}
	return nil
}

func New(msg string) error {
	return errors.New(msg)
}

func Wrap(err error, msg string) error {
	return errors.Wrap(err, msg)
}

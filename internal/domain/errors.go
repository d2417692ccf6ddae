package domain

import (
	"errors"
	"fmt"
)

// ErrorKind — закрытый набор видов ошибок, пересекающих границы компонентов.
type ErrorKind int

const (
	// KindServer — ошибка провизии, нарушение инварианта или остановка приложения.
	KindServer ErrorKind = iota

	// KindNotFound — у workspace нет runtime, хотя он требуется.
	KindNotFound

	// KindConflict — текущий статус несовместим с операцией.
	KindConflict
)

// String возвращает имя вида ошибки.
func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	default:
		return "server error"
	}
}

// Error — ошибка с видом из ErrorKind.
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

// Error возвращает сообщение ошибки.
func (e *Error) Error() string {
	switch {
	case e.Msg != "":
		return e.Msg
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Kind.String()
	}
}

// Unwrap возвращает исходную ошибку.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is сравнивает по виду с sentinel-ошибками ErrNotFound, ErrConflict, ErrServer.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Msg == "" && t.Err == nil {
		return t.Kind == e.Kind
	}
	return t == e
}

// Sentinel-ошибки для errors.Is.
var (
	ErrServer   = &Error{Kind: KindServer}
	ErrNotFound = &Error{Kind: KindNotFound}
	ErrConflict = &Error{Kind: KindConflict}
)

// NotFoundf создаёт ошибку вида NotFound.
func NotFoundf(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

// Conflictf создаёт ошибку вида Conflict.
func Conflictf(format string, args ...any) error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

// ServerErrorf создаёт ошибку вида ServerError.
func ServerErrorf(format string, args ...any) error {
	return &Error{Kind: KindServer, Msg: fmt.Sprintf(format, args...)}
}

// WrapServer оборачивает произвольную ошибку в ServerError.
// Если ошибка уже типизирована, она возвращается как есть.
func WrapServer(err error) error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return err
	}
	return &Error{Kind: KindServer, Msg: err.Error(), Err: err}
}

// KindOf возвращает вид ошибки. Нетипизированные ошибки считаются KindServer.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindServer
}

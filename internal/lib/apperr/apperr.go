// Package apperr описывает таксономию ошибок приложения, общую для сервера
// и клиентского координатора галереи.
package apperr

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindDatabase      Kind = "database"
	KindStorage       Kind = "storage"
	KindUploadFailed  Kind = "upload_failed"
	KindDeleteFailed  Kind = "delete_failed"
	KindTagGeneration Kind = "tag_generation"
	KindInternal      Kind = "internal"
)

// Error ошибка с классом, операцией и (для валидации) ошибками по полям.
type Error struct {
	Kind   Kind
	Op     string
	Err    error
	Fields map[string]string
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(string(e.Kind))
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
		}
		b.WriteString(" (")
		b.WriteString(strings.Join(parts, "; "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}

	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func E(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Validation создает ошибку валидации с описанием по полям.
func Validation(op string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Op: op, Fields: fields}
}

// KindOf возвращает класс ошибки; неизвестные ошибки считаются внутренними.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}

	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}

	return KindInternal
}

func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// FieldsOf возвращает ошибки по полям первой ошибки валидации в цепочке.
func FieldsOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) && e.Kind == KindValidation {
		return e.Fields
	}

	return nil
}

// UserMessage текст уведомления для пользователя.
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindValidation:
		return "Some fields are invalid, please check your input"
	case KindNotFound:
		return "Item not found, it may have been removed"
	case KindDatabase:
		return "Could not save changes, please try again"
	case KindStorage:
		return "File storage is unavailable, please try again"
	case KindUploadFailed:
		return "Upload failed"
	case KindDeleteFailed:
		return "Delete failed"
	case KindTagGeneration:
		return "Could not suggest tags"
	default:
		return "Something went wrong"
	}
}

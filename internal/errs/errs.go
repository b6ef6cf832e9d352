package errs

import (
	"errors"
	"fmt"
)

// Code идентификатор класса ошибки движка
type Code string

const (
	CodeInvalidTransition        Code = "INVALID_TRANSITION"
	CodeExpired                  Code = "EXPIRED"
	CodeUnauthorized             Code = "UNAUTHORIZED"
	CodeOverlap                  Code = "OVERLAP"
	CodeSlotAlreadyBooked        Code = "SLOT_ALREADY_BOOKED"
	CodeExtensionNotAllowed      Code = "EXTENSION_NOT_ALLOWED"
	CodeCancellationWindowClosed Code = "CANCELLATION_WINDOW_CLOSED"

	CodeValidation Code = "VALIDATION"
	CodeNotFound   Code = "NOT_FOUND"
	CodeInternal   Code = "INTERNAL"
)

// Error ошибка с кодом, которую можно вернуть клиенту
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	cause   error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.cause
}

// Is сравнивает ошибки по коду, чтобы errors.Is работал с сентинелами
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithCause добавляет причину
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// New создаёт ошибку с кодом
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Сентинелы для errors.Is
var (
	ErrInvalidTransition        = New(CodeInvalidTransition, "invalid transition")
	ErrExpired                  = New(CodeExpired, "expired")
	ErrUnauthorized             = New(CodeUnauthorized, "unauthorized")
	ErrOverlap                  = New(CodeOverlap, "slot overlaps an existing slot")
	ErrSlotAlreadyBooked        = New(CodeSlotAlreadyBooked, "slot already booked")
	ErrExtensionNotAllowed      = New(CodeExtensionNotAllowed, "extension not allowed")
	ErrCancellationWindowClosed = New(CodeCancellationWindowClosed, "cancellation window closed")
	ErrValidation               = New(CodeValidation, "validation failed")
	ErrNotFound                 = New(CodeNotFound, "not found")
)

// InvalidTransition операция недопустима из текущего статуса
func InvalidTransition(entity, from, op string) *Error {
	return New(CodeInvalidTransition, fmt.Sprintf("cannot %s %s in status %s", op, entity, from))
}

// Expired срок сущности истёк
func Expired(entity string) *Error {
	return New(CodeExpired, fmt.Sprintf("%s has expired", entity))
}

// Unauthorized актор не может действовать над сущностью
func Unauthorized(reason string) *Error {
	return New(CodeUnauthorized, reason)
}

// Overlap конфликт времени слота
func Overlap() *Error {
	return New(CodeOverlap, "slot overlaps an existing slot of the same owner")
}

// SlotAlreadyBooked проигравший гонку за слот
func SlotAlreadyBooked() *Error {
	return New(CodeSlotAlreadyBooked, "slot was just booked by someone else")
}

// ExtensionNotAllowed продление запроса невозможно
func ExtensionNotAllowed(reason string) *Error {
	return New(CodeExtensionNotAllowed, reason)
}

// CancellationWindowClosed отмена после дедлайна
func CancellationWindowClosed(reason string) *Error {
	return New(CodeCancellationWindowClosed, reason)
}

// Validation невалидные входные данные
func Validation(message string) *Error {
	return New(CodeValidation, message)
}

// MissingRequired обязательное поле не заполнено
func MissingRequired(field string) *Error {
	return New(CodeValidation, fmt.Sprintf("%s is required", field))
}

// NotFound сущность не найдена
func NotFound(entity string) *Error {
	return New(CodeNotFound, fmt.Sprintf("%s not found", entity))
}

// Internal непредвиденная ошибка
func Internal(message string, cause error) *Error {
	return New(CodeInternal, message).WithCause(cause)
}

// As достаёт *Error из цепочки
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetCode возвращает код ошибки или CodeInternal
func GetCode(err error) Code {
	if e, ok := As(err); ok {
		return e.Code
	}
	return CodeInternal
}

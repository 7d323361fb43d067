package engine

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// CodeHabitNotFound indicates the referenced habit id does not exist.
	CodeHabitNotFound ErrorCode = "HABIT_NOT_FOUND"

	// CodeInvalidHabit indicates habit input failed validation.
	CodeInvalidHabit ErrorCode = "INVALID_HABIT"

	// CodeNotCompletedToday indicates an undo for a habit not completed today.
	CodeNotCompletedToday ErrorCode = "NOT_COMPLETED_TODAY"

	// CodeInvalidReorder indicates reorder positions outside the habit list.
	CodeInvalidReorder ErrorCode = "INVALID_REORDER"
)

// Error is returned by engine operations for caller mistakes. Store failures
// are returned wrapped, not as *Error.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// HabitID identifies the affected habit, if any.
	HabitID string
}

// Sentinels for errors.Is. Matching compares Code only.
var (
	ErrHabitNotFound     = &Error{Code: CodeHabitNotFound, Message: "habit not found"}
	ErrInvalidHabit      = &Error{Code: CodeInvalidHabit, Message: "invalid habit"}
	ErrNotCompletedToday = &Error{Code: CodeNotCompletedToday, Message: "habit not completed today"}
	ErrInvalidReorder    = &Error{Code: CodeInvalidReorder, Message: "invalid reorder"}
)

// Error implements the error interface.
func (e *Error) Error() string {
	if e.HabitID != "" {
		return fmt.Sprintf("%s: %s (habit=%s)", e.Code, e.Message, e.HabitID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

func codeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsNotFound returns true if err is a habit-not-found error.
// Uses errors.As to handle wrapped errors.
func IsNotFound(err error) bool { return codeOf(err) == CodeHabitNotFound }

// IsInvalidHabit returns true if err is a validation error.
func IsInvalidHabit(err error) bool { return codeOf(err) == CodeInvalidHabit }

// IsNotCompletedToday returns true if err rejects an undo.
func IsNotCompletedToday(err error) bool { return codeOf(err) == CodeNotCompletedToday }

// IsInvalidReorder returns true if err rejects a reorder.
func IsInvalidReorder(err error) bool { return codeOf(err) == CodeInvalidReorder }

func notFound(habitID string) *Error {
	return &Error{Code: CodeHabitNotFound, Message: "habit not found", HabitID: habitID}
}

func invalidHabit(format string, args ...any) *Error {
	return &Error{Code: CodeInvalidHabit, Message: fmt.Sprintf(format, args...)}
}

func notCompletedToday(habitID string) *Error {
	return &Error{Code: CodeNotCompletedToday, Message: "habit was not completed today", HabitID: habitID}
}

func invalidReorder(from, to, n int) *Error {
	return &Error{
		Code:    CodeInvalidReorder,
		Message: fmt.Sprintf("cannot move position %d to %d in a list of %d", from, to, n),
	}
}

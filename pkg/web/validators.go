package web

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
)

// ParamValidator is a function type that validates a parameter.
type ParamValidator func(valueToTest int64) bool

func newComparisonValidator(valueInClosure int64, compareFn func(argValue, closedValue int64) bool) ParamValidator {
	return func(argValue int64) bool {
		return compareFn(argValue, valueInClosure)
	}
}

// Between returns a ParamValidator accepting values in [lo, hi].
func Between(lo, hi int64) ParamValidator {
	return func(v int64) bool {
		return v >= lo && v <= hi
	}
}

// Gte returns a ParamValidator that checks if the argument is greater than or equal to the value captured in the closure.
func Gte(valToCompareAgainst int64) ParamValidator {
	return newComparisonValidator(valToCompareAgainst, func(argValue, closedValue int64) bool {
		return argValue >= closedValue
	})
}

// ParseOptionalInt reads an integer query parameter, falling back to def when it is absent.
// Responds 400 and returns false when the value is malformed or rejected by pValidator.
func ParseOptionalInt(r *http.Request, w http.ResponseWriter, logger *slog.Logger, key string, def int32, pValidator ParamValidator) (int32, bool) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return def, true
	}
	intValue, err := strconv.ParseInt(value, 10, 32)
	if err != nil || !pValidator(intValue) {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("Invalid %s number: %s", key, value))
		return 0, false
	}
	return int32(intValue), true
}

// ParseOptionalBool reads a boolean query parameter. A nil result means the parameter was absent.
func ParseOptionalBool(r *http.Request, w http.ResponseWriter, logger *slog.Logger, key string) (*bool, bool) {
	value := r.URL.Query().Get(key)
	if value == "" {
		return nil, true
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		RespondError(w, logger, http.StatusBadRequest, fmt.Sprintf("Invalid %s flag: %s", key, value))
		return nil, false
	}
	return &b, true
}

package errors

import (
	"net/http"
	"strings"
)

// ErrorCode identifies an error condition as "<MODULE>_<NNN>".
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Sentinel codes outside the module scheme.
const (
	ErrCodeOK      ErrorCode = "OK"
	ErrCodeUnknown ErrorCode = "UNKNOWN"
)

// Common error codes.
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_003"
	ErrCodeConflict           ErrorCode = "COMMON_004"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_005"
	ErrCodeTimeout            ErrorCode = "COMMON_006"
	ErrCodeValidation         ErrorCode = "COMMON_007"
	ErrCodeSerialization      ErrorCode = "COMMON_008"
	ErrCodeInvalidConfig      ErrorCode = "COMMON_009"
)

// Biomarker engine error codes.
const (
	ErrCodeReferenceIntegrity  ErrorCode = "BIO_001"
	ErrCodeSpecificationEmpty  ErrorCode = "BIO_002"
	ErrCodeSpecificationDecode ErrorCode = "BIO_003"
	ErrCodeEngineConfig        ErrorCode = "BIO_004"
	ErrCodeEngineNotReady      ErrorCode = "BIO_005"
	ErrCodeOverrideLookup      ErrorCode = "BIO_006"
	ErrCodeSpecificationImport ErrorCode = "BIO_007"
)

// Infrastructure error codes.
const (
	ErrCodeDatabaseError  ErrorCode = "INFRA_001"
	ErrCodeCacheError     ErrorCode = "INFRA_002"
	ErrCodeMessagingError ErrorCode = "INFRA_003"
	ErrCodeStorageError   ErrorCode = "INFRA_004"
	ErrCodeMigrationError ErrorCode = "INFRA_005"
)

// ErrorCodeHTTPStatus maps codes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeOK:                 http.StatusOK,
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeConflict:           http.StatusConflict,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusBadRequest,
	ErrCodeInvalidConfig:      http.StatusInternalServerError,

	ErrCodeReferenceIntegrity:  http.StatusInternalServerError,
	ErrCodeSpecificationEmpty:  http.StatusUnprocessableEntity,
	ErrCodeSpecificationDecode: http.StatusBadRequest,
	ErrCodeEngineConfig:        http.StatusInternalServerError,
	ErrCodeEngineNotReady:      http.StatusServiceUnavailable,
	ErrCodeOverrideLookup:      http.StatusBadGateway,
	ErrCodeSpecificationImport: http.StatusInternalServerError,

	ErrCodeDatabaseError:  http.StatusInternalServerError,
	ErrCodeCacheError:     http.StatusInternalServerError,
	ErrCodeMessagingError: http.StatusInternalServerError,
	ErrCodeStorageError:   http.StatusBadGateway,
	ErrCodeMigrationError: http.StatusInternalServerError,
}

// ErrorCodeMessage maps codes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeConflict:           "resource conflict",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "malformed payload",
	ErrCodeInvalidConfig:      "invalid configuration",

	ErrCodeReferenceIntegrity:  "reference specification integrity violation",
	ErrCodeSpecificationEmpty:  "reference specification has no biomarkers",
	ErrCodeSpecificationDecode: "reference specification could not be decoded",
	ErrCodeEngineConfig:        "invalid engine configuration",
	ErrCodeEngineNotReady:      "normalization engine not loaded",
	ErrCodeOverrideLookup:      "override lookup failed",
	ErrCodeSpecificationImport: "specification import failed",

	ErrCodeDatabaseError:  "database error",
	ErrCodeCacheError:     "cache error",
	ErrCodeMessagingError: "messaging error",
	ErrCodeStorageError:   "object storage error",
	ErrCodeMigrationError: "schema migration failed",
}

// HTTPStatusForCode returns the HTTP status for code, 500 when unregistered.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for code.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError reports whether code maps to a 4xx status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError reports whether code maps to a 5xx status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the prefix before the first underscore.
func ModuleForCode(code ErrorCode) string {
	prefix, _, found := strings.Cut(string(code), "_")
	if !found || prefix == "" {
		return "UNKNOWN"
	}
	return prefix
}

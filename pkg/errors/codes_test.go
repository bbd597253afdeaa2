package errors

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func allCodes() []ErrorCode {
	return []ErrorCode{
		ErrCodeInternal, ErrCodeBadRequest, ErrCodeNotFound, ErrCodeConflict,
		ErrCodeServiceUnavailable, ErrCodeTimeout, ErrCodeValidation, ErrCodeSerialization,
		ErrCodeInvalidConfig,
		ErrCodeReferenceIntegrity, ErrCodeSpecificationEmpty, ErrCodeSpecificationDecode,
		ErrCodeEngineConfig, ErrCodeEngineNotReady, ErrCodeOverrideLookup, ErrCodeSpecificationImport,
		ErrCodeDatabaseError, ErrCodeCacheError, ErrCodeMessagingError, ErrCodeStorageError,
		ErrCodeMigrationError,
	}
}

func TestErrorCode_String(t *testing.T) {
	assert.Equal(t, "BIO_001", ErrCodeReferenceIntegrity.String())
}

func TestHTTPStatusForCode(t *testing.T) {
	tests := []struct {
		code     ErrorCode
		expected int
	}{
		{ErrCodeInternal, 500},
		{ErrCodeBadRequest, 400},
		{ErrCodeNotFound, 404},
		{ErrCodeValidation, 422},
		{ErrCodeEngineNotReady, 503},
		{ErrCodeSpecificationDecode, 400},
		{ErrorCode("NOPE_999"), 500},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, HTTPStatusForCode(tt.code), string(tt.code))
	}
}

func TestDefaultMessageForCode(t *testing.T) {
	assert.Equal(t, "reference specification integrity violation", DefaultMessageForCode(ErrCodeReferenceIntegrity))
	assert.Equal(t, "unknown error", DefaultMessageForCode(ErrorCode("NOPE_999")))
}

func TestIsClientAndServerError(t *testing.T) {
	assert.True(t, IsClientError(ErrCodeBadRequest))
	assert.False(t, IsClientError(ErrCodeInternal))
	assert.True(t, IsServerError(ErrCodeDatabaseError))
	assert.False(t, IsServerError(ErrCodeValidation))
}

func TestModuleForCode(t *testing.T) {
	assert.Equal(t, "COMMON", ModuleForCode(ErrCodeInternal))
	assert.Equal(t, "BIO", ModuleForCode(ErrCodeReferenceIntegrity))
	assert.Equal(t, "INFRA", ModuleForCode(ErrCodeCacheError))
	assert.Equal(t, "UNKNOWN", ModuleForCode(ErrorCode("")))
	assert.Equal(t, "UNKNOWN", ModuleForCode(ErrCodeOK))
}

func TestErrorCodeFormat_Convention(t *testing.T) {
	re := regexp.MustCompile(`^[A-Z]+_\d{3}$`)
	for _, code := range allCodes() {
		assert.Regexp(t, re, string(code))
	}
}

func TestErrorCodeMappings_Completeness(t *testing.T) {
	for _, code := range allCodes() {
		_, hasStatus := ErrorCodeHTTPStatus[code]
		_, hasMessage := ErrorCodeMessage[code]
		assert.True(t, hasStatus, "missing status for %s", code)
		assert.True(t, hasMessage, "missing message for %s", code)
	}
}

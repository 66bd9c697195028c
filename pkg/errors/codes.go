package errors

import (
	"net/http"
	"strings"
)

// ErrorCode is a string representation of a specific error condition.
// Codes are namespaced by module: "<MODULE>_<nnn>".
type ErrorCode string

func (c ErrorCode) String() string {
	return string(c)
}

// Common Error Codes
const (
	ErrCodeInternal           ErrorCode = "COMMON_001"
	ErrCodeBadRequest         ErrorCode = "COMMON_002"
	ErrCodeNotFound           ErrorCode = "COMMON_005"
	ErrCodeTooManyRequests    ErrorCode = "COMMON_007"
	ErrCodeServiceUnavailable ErrorCode = "COMMON_008"
	ErrCodeTimeout            ErrorCode = "COMMON_009"
	ErrCodeValidation         ErrorCode = "COMMON_010"
	ErrCodeSerialization      ErrorCode = "COMMON_011"
	ErrCodeCacheError         ErrorCode = "COMMON_013"
	ErrCodeNotImplemented     ErrorCode = "COMMON_016"
)

// Short aliases used at call sites.
const (
	CodeInternal     = ErrCodeInternal
	CodeInvalidParam = ErrCodeBadRequest
	CodeNotFound     = ErrCodeNotFound
	CodeOK           = ErrorCode("OK")
	CodeUnknown      = ErrorCode("UNKNOWN")
)

// Molecule Module Error Codes
const (
	ErrCodeMoleculeInvalidSMILES       ErrorCode = "MOL_001"
	ErrCodeMoleculeInvalidFormat       ErrorCode = "MOL_003"
	ErrCodeMoleculeParsingFailed       ErrorCode = "MOL_006"
	ErrCodeFingerprintGenerationFailed ErrorCode = "MOL_007"
	ErrCodeSimilarityMetricUnsupported ErrorCode = "MOL_008"
	ErrCodeSubstructureSearchFailed    ErrorCode = "MOL_012"
	ErrCodeChemistryInvalid            ErrorCode = "MOL_016"
	ErrCodeNullOperand                 ErrorCode = "MOL_017"
	ErrCodeQueryCacheBuildFailed       ErrorCode = "MOL_018"
)

// ErrorCodeHTTPStatus maps ErrorCodes to HTTP status codes.
var ErrorCodeHTTPStatus = map[ErrorCode]int{
	ErrCodeInternal:           http.StatusInternalServerError,
	ErrCodeBadRequest:         http.StatusBadRequest,
	ErrCodeNotFound:           http.StatusNotFound,
	ErrCodeTooManyRequests:    http.StatusTooManyRequests,
	ErrCodeServiceUnavailable: http.StatusServiceUnavailable,
	ErrCodeTimeout:            http.StatusGatewayTimeout,
	ErrCodeValidation:         http.StatusUnprocessableEntity,
	ErrCodeSerialization:      http.StatusInternalServerError,
	ErrCodeCacheError:         http.StatusInternalServerError,
	ErrCodeNotImplemented:     http.StatusNotImplemented,

	ErrCodeMoleculeInvalidSMILES:       http.StatusBadRequest,
	ErrCodeMoleculeInvalidFormat:       http.StatusBadRequest,
	ErrCodeMoleculeParsingFailed:       http.StatusUnprocessableEntity,
	ErrCodeFingerprintGenerationFailed: http.StatusBadRequest,
	ErrCodeSimilarityMetricUnsupported: http.StatusBadRequest,
	ErrCodeSubstructureSearchFailed:    http.StatusInternalServerError,
	ErrCodeChemistryInvalid:            http.StatusUnprocessableEntity,
	ErrCodeNullOperand:                 http.StatusUnprocessableEntity,
	ErrCodeQueryCacheBuildFailed:       http.StatusUnprocessableEntity,
}

// ErrorCodeMessage maps ErrorCodes to default messages.
var ErrorCodeMessage = map[ErrorCode]string{
	ErrCodeInternal:           "internal server error",
	ErrCodeBadRequest:         "bad request",
	ErrCodeNotFound:           "resource not found",
	ErrCodeTooManyRequests:    "too many requests",
	ErrCodeServiceUnavailable: "service unavailable",
	ErrCodeTimeout:            "request timeout",
	ErrCodeValidation:         "validation failed",
	ErrCodeSerialization:      "serialization failed",
	ErrCodeCacheError:         "cache error",
	ErrCodeNotImplemented:     "not implemented",

	ErrCodeMoleculeInvalidSMILES:       "invalid SMILES",
	ErrCodeMoleculeInvalidFormat:       "invalid molecule format",
	ErrCodeMoleculeParsingFailed:       "failed to parse molecule",
	ErrCodeFingerprintGenerationFailed: "failed to generate fingerprint",
	ErrCodeSimilarityMetricUnsupported: "unsupported similarity metric",
	ErrCodeSubstructureSearchFailed:    "substructure search failed",
	ErrCodeChemistryInvalid:            "chemically invalid structure",
	ErrCodeNullOperand:                 "operation on an invalid molecule",
	ErrCodeQueryCacheBuildFailed:       "failed to build query",
}

// HTTPStatusForCode returns the HTTP status code for an ErrorCode.
func HTTPStatusForCode(code ErrorCode) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// DefaultMessageForCode returns the default message for an ErrorCode.
func DefaultMessageForCode(code ErrorCode) string {
	if msg, ok := ErrorCodeMessage[code]; ok {
		return msg
	}
	return "unknown error"
}

// IsClientError returns true if the ErrorCode corresponds to a 4xx HTTP status.
func IsClientError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 400 && status < 500
}

// IsServerError returns true if the ErrorCode corresponds to a 5xx HTTP status.
func IsServerError(code ErrorCode) bool {
	status := HTTPStatusForCode(code)
	return status >= 500 && status < 600
}

// ModuleForCode returns the module prefix of an ErrorCode.
func ModuleForCode(code ErrorCode) string {
	parts := strings.Split(string(code), "_")
	if len(parts) > 0 && parts[0] != "" {
		return parts[0]
	}
	return "UNKNOWN"
}

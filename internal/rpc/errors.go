package rpc

import "fmt"

// EIP-1193 provider error codes.
const (
	CodeUserRejectedRequest = 4001
	CodeUnauthorized        = 4100
)

// ProviderError is the only error shape a page ever sees.
type ProviderError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

var (
	ErrUserRejected = &ProviderError{
		Code:    CodeUserRejectedRequest,
		Message: "The user rejected the request.",
	}
	ErrUnauthorized = &ProviderError{
		Code:    CodeUnauthorized,
		Message: "The requested method and/or account has not been authorized by the user.",
	}
)

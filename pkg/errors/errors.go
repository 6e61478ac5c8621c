package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

// Transport-level codes.
const (
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeInternal     Code = "INTERNAL_ERROR"
	CodeDependency   Code = "DEPENDENCY_ERROR"
)

// Business codes. Each one names a violated domain rule and is stable
// across releases; clients branch on these.
const (
	CodeEmptyCart              Code = "EMPTY_CART"
	CodeProductNotFound        Code = "PRODUCT_NOT_FOUND"
	CodeProductUnavailable     Code = "PRODUCT_UNAVAILABLE"
	CodeInsufficientStock      Code = "INSUFFICIENT_STOCK"
	CodeInvalidShippingAddress Code = "INVALID_SHIPPING_ADDRESS"
	CodeOrderNotFound          Code = "ORDER_NOT_FOUND"
	CodeInvalidOrderStatus     Code = "INVALID_ORDER_STATUS"
	CodeOrderNumberExhausted   Code = "ORDER_NUMBER_EXHAUSTED"
)

type Metadata struct {
	HTTPStatus     int
	Retryable      bool
	Business       bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	CodeUnauthorized: {
		HTTPStatus:    http.StatusUnauthorized,
		PublicMessage: "authentication required",
	},
	CodeForbidden: {
		HTTPStatus:    http.StatusForbidden,
		PublicMessage: "access denied",
	},
	CodeNotFound: {
		HTTPStatus:    http.StatusNotFound,
		PublicMessage: "resource not found",
	},
	CodeConflict: {
		HTTPStatus:    http.StatusConflict,
		PublicMessage: "conflict detected",
	},
	CodeInternal: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     true,
		PublicMessage: "internal server error",
	},
	CodeDependency: {
		HTTPStatus:     http.StatusServiceUnavailable,
		Retryable:      true,
		PublicMessage:  "dependency unavailable",
		DetailsAllowed: true,
	},
	CodeEmptyCart: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		Business:       true,
		PublicMessage:  "cart is empty",
		DetailsAllowed: true,
	},
	CodeProductNotFound: {
		HTTPStatus:     http.StatusNotFound,
		Business:       true,
		PublicMessage:  "product not found",
		DetailsAllowed: true,
	},
	CodeProductUnavailable: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		Business:       true,
		PublicMessage:  "product unavailable",
		DetailsAllowed: true,
	},
	CodeInsufficientStock: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		Business:       true,
		PublicMessage:  "insufficient stock",
		DetailsAllowed: true,
	},
	CodeInvalidShippingAddress: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		Business:       true,
		PublicMessage:  "invalid shipping address",
		DetailsAllowed: true,
	},
	CodeOrderNotFound: {
		HTTPStatus:    http.StatusNotFound,
		Business:      true,
		PublicMessage: "order not found",
	},
	CodeInvalidOrderStatus: {
		HTTPStatus:     http.StatusUnprocessableEntity,
		Business:       true,
		PublicMessage:  "order status does not allow this action",
		DetailsAllowed: true,
	},
	CodeOrderNumberExhausted: {
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     true,
		PublicMessage: "could not allocate an order number",
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

// IsBusiness reports whether err carries a business code, i.e. a violated
// domain rule a caller can act on, as opposed to an infrastructural failure.
func IsBusiness(err error) bool {
	typed := As(err)
	if typed == nil {
		return false
	}
	return MetadataFor(typed.Code()).Business
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		business  bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeConflict, status: http.StatusConflict, publicMsg: "conflict detected"},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
		{code: CodeEmptyCart, status: http.StatusUnprocessableEntity, publicMsg: "cart is empty", business: true, detailsOK: true},
		{code: CodeProductNotFound, status: http.StatusNotFound, publicMsg: "product not found", business: true, detailsOK: true},
		{code: CodeProductUnavailable, status: http.StatusUnprocessableEntity, publicMsg: "product unavailable", business: true, detailsOK: true},
		{code: CodeInsufficientStock, status: http.StatusUnprocessableEntity, publicMsg: "insufficient stock", business: true, detailsOK: true},
		{code: CodeInvalidShippingAddress, status: http.StatusUnprocessableEntity, publicMsg: "invalid shipping address", business: true, detailsOK: true},
		{code: CodeOrderNotFound, status: http.StatusNotFound, publicMsg: "order not found", business: true},
		{code: CodeInvalidOrderStatus, status: http.StatusUnprocessableEntity, publicMsg: "order status does not allow this action", business: true, detailsOK: true},
		{code: CodeOrderNumberExhausted, status: http.StatusInternalServerError, publicMsg: "could not allocate an order number", retryable: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.Business != tt.business {
			t.Fatalf("code %s expected business %v got %v", tt.code, tt.business, meta.Business)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeInsufficientStock, "stock too low")
	if base.Code() != CodeInsufficientStock {
		t.Fatalf("expected insufficient stock code, got %s", base.Code())
	}
	if base.Message() != "stock too low" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatal("details should be nil by default")
	}

	withDetails := base.WithDetails(map[string]any{"requested": 3, "available": 2})
	if withDetails.Details() == nil {
		t.Fatal("details should be attached")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeDependency, cause, "query failed")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatal("wrapped error should unwrap to cause")
	}
	if wrapped.Error() != "DEPENDENCY_ERROR: query failed" {
		t.Fatalf("unexpected error string %q", wrapped.Error())
	}
}

func TestAs(t *testing.T) {
	typed := New(CodeEmptyCart, "no lines")
	wrapped := Wrap(CodeDependency, typed, "outer")
	if got := As(wrapped); got == nil || got.Code() != CodeDependency {
		t.Fatalf("expected outermost typed error, got %v", got)
	}
	if As(stdErrors.New("plain")) != nil {
		t.Fatal("plain errors should not convert")
	}
}

func TestIsBusiness(t *testing.T) {
	if !IsBusiness(New(CodeInvalidOrderStatus, "not pending")) {
		t.Fatal("invalid order status should be business")
	}
	if IsBusiness(New(CodeDependency, "db down")) {
		t.Fatal("dependency errors are not business")
	}
	if IsBusiness(stdErrors.New("plain")) {
		t.Fatal("plain errors are not business")
	}
}

func TestDumpCollectsChain(t *testing.T) {
	cause := stdErrors.New("root")
	err := Wrap(CodeInternal, cause, "wrapper")
	dump := Dump(err)
	if dump.Code != CodeInternal {
		t.Fatalf("expected code in dump, got %s", dump.Code)
	}
	if len(dump.Chain) < 2 {
		t.Fatalf("expected full chain, got %v", dump.Chain)
	}
}

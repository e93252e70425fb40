package errors

import (
	errorspkg "errors"
	"testing"
)

func resetHTTPOverrides() {
	httpStatusMu.Lock()
	defer httpStatusMu.Unlock()
	httpStatusOverrides = make(map[ErrorCode]int)
	httpStatusResolverFn = nil
}

func TestBizErrorIsAndUnwrap(t *testing.T) {
	cause := errorspkg.New("root")
	err := Wrap(ErrCodeNotFound, "missing", cause)

	if !Is(err, ErrNotFound) {
		t.Fatalf("expected Is to match ErrNotFound")
	}
	if !errorspkg.Is(err, cause) {
		t.Fatalf("expected errors.Is to match cause")
	}
}

func TestBehaviorErrorCodes(t *testing.T) {
	err := Wrapf(ErrCodeMapping, nil, "model %s lacks column %s", "articles", "slug")
	if !Is(err, ErrMapping) {
		t.Fatalf("expected mapping error to match ErrMapping")
	}
	if Is(err, ErrSluggable) {
		t.Fatalf("mapping error must not match ErrSluggable")
	}
	if Code(err) != ErrCodeMapping {
		t.Fatalf("unexpected code: %d", Code(err))
	}
	if got := err.Error(); got != "[2001] model articles lacks column slug" {
		t.Fatalf("unexpected message: %q", got)
	}
}

func TestCodeOfPlainError(t *testing.T) {
	if Code(errorspkg.New("plain")) != ErrCodeUnknown {
		t.Fatalf("expected unknown code for plain error")
	}
	if _, ok := AsBizError(nil); ok {
		t.Fatalf("expected nil error not to be a biz error")
	}
}

func TestToHTTPResponse(t *testing.T) {
	resetHTTPOverrides()
	defer resetHTTPOverrides()

	statusCode, body := ToHTTPResponse(nil)
	if statusCode != 200 {
		t.Fatalf("unexpected status for nil error: %d", statusCode)
	}
	if body["code"].(int) != 0 {
		t.Fatalf("unexpected code for nil error: %v", body["code"])
	}

	statusCode, _ = ToHTTPResponse(New(ErrCodeSluggable, "no source"))
	if statusCode != 422 {
		t.Fatalf("expected 422 for sluggable error, got: %d", statusCode)
	}

	RegisterHTTPStatus(ErrCodeNotFound, 410)
	statusCode, _ = ToHTTPResponse(New(ErrCodeNotFound, "gone"))
	if statusCode != 410 {
		t.Fatalf("expected override status, got: %d", statusCode)
	}

	resetHTTPOverrides()
	SetHTTPStatusResolver(func(code ErrorCode) (int, bool) {
		if code == ErrCodePermissionDenied {
			return 451, true
		}
		return 0, false
	})
	statusCode, _ = ToHTTPResponse(New(ErrCodePermissionDenied, "deny"))
	if statusCode != 451 {
		t.Fatalf("expected resolver status, got: %d", statusCode)
	}

	statusCode, body = ToHTTPResponse(errorspkg.New("boom"))
	if statusCode != 500 || body["msg"] != "internal server error" {
		t.Fatalf("unexpected response for plain error: %d %v", statusCode, body)
	}
}

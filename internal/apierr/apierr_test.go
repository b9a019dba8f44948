package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
)

func TestKindOf(t *testing.T) {
	base := errors.New("dial tcp: refused")
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, ""},
		{"plain", base, ""},
		{"direct", Wrap(Transport, "GET /x", base), Transport},
		{"wrapped", fmt.Errorf("ask: %w", New(Config, "missing index name")), Config},
		{"formatted", Newf(Decode, "column %q", "n"), Decode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestE_ErrorAndUnwrap(t *testing.T) {
	base := errors.New("boom")
	e := Wrap(Transport, "POST /query", base)
	if e.Error() != "transport: POST /query: boom" {
		t.Errorf("Error = %q", e.Error())
	}
	if !errors.Is(e, base) {
		t.Error("Wrap should keep the cause in the chain")
	}
	if New(Unsupported, "delete").Error() != "unsupported: delete" {
		t.Errorf("Error = %q", New(Unsupported, "delete").Error())
	}
}

func TestNewHTTPError(t *testing.T) {
	body := []byte(strings.Repeat("x", 2*maxBodyExcerpt))
	err := NewHTTPError(http.MethodGet, "/api/2.0/space", http.StatusNotFound, body)
	if !IsKind(err, Transport) {
		t.Fatalf("kind = %q, want transport", KindOf(err))
	}
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatal("expected *HTTPError in chain")
	}
	if httpErr.StatusCode != http.StatusNotFound {
		t.Errorf("StatusCode = %d", httpErr.StatusCode)
	}
	if len(httpErr.Body) != maxBodyExcerpt+len("...") || !strings.HasSuffix(httpErr.Body, "...") {
		t.Errorf("body not truncated: %d bytes", len(httpErr.Body))
	}
	if got := (&HTTPError{Method: "GET", Path: "/p", StatusCode: 500}).Error(); got != "GET /p: status 500" {
		t.Errorf("Error = %q", got)
	}
}

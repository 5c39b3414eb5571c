package httpclient

import (
	"net/http"
	"testing"
	"time"
)

func TestNewOutbound_Defaults(t *testing.T) {
	c := NewOutbound()
	if c.Timeout != defaultTimeout {
		t.Fatalf("timeout=%v want %v", c.Timeout, defaultTimeout)
	}
	tr, ok := c.Transport.(*http.Transport)
	if !ok {
		t.Fatalf("transport type %T", c.Transport)
	}
	if !tr.DisableCompression {
		t.Fatalf("expected compression disabled")
	}
}

func TestNewOutbound_Options(t *testing.T) {
	c := NewOutbound(WithTimeout(5*time.Second), WithMaxIdlePerHost(8), WithTimeout(0))
	if c.Timeout != 5*time.Second {
		t.Fatalf("timeout=%v want 5s", c.Timeout)
	}
	if got := c.Transport.(*http.Transport).MaxIdleConnsPerHost; got != 8 {
		t.Fatalf("MaxIdleConnsPerHost=%d want 8", got)
	}
}

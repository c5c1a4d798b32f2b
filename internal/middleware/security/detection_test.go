package security

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractClientIPDirect(t *testing.T) {
	d := NewDetector()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:54321"

	if ip := d.ExtractClientIP(req); ip != "203.0.113.7" {
		t.Errorf("ExtractClientIP() = %q, want %q", ip, "203.0.113.7")
	}
}

func TestExtractClientIPTrustedProxy(t *testing.T) {
	d := NewDetector()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.2.3:443"
	req.Header.Set("X-Forwarded-For", "198.51.100.9, 10.1.2.3")

	if ip := d.ExtractClientIP(req); ip != "198.51.100.9" {
		t.Errorf("ExtractClientIP() = %q, want forwarded client", ip)
	}
}

func TestExtractClientIPIgnoresForwardedFromUntrustedPeer(t *testing.T) {
	d := NewDetector()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "203.0.113.7:54321"
	req.Header.Set("X-Forwarded-For", "198.51.100.9")

	if ip := d.ExtractClientIP(req); ip != "203.0.113.7" {
		t.Errorf("ExtractClientIP() = %q, spoofed XFF must be ignored", ip)
	}
}

func TestExtractClientIPRealIPHeader(t *testing.T) {
	d := NewDetector()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "127.0.0.1:8080"
	req.Header.Set("X-Real-IP", "198.51.100.9")

	if ip := d.ExtractClientIP(req); ip != "198.51.100.9" {
		t.Errorf("ExtractClientIP() = %q, want X-Real-IP value", ip)
	}
}

func TestDetectSuspiciousRequest(t *testing.T) {
	tests := []struct {
		name  string
		build func() *http.Request
		want  bool
	}{
		{
			name: "normal page load",
			build: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/asientos?year=2025", nil)
			},
			want: false,
		},
		{
			name: "path traversal",
			build: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/static/../../etc/passwd", nil)
			},
			want: true,
		},
		{
			name: "wordpress probe",
			build: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/wp-admin/setup.php", nil)
			},
			want: true,
		},
		{
			name: "sql injection in query",
			build: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/asientos?q=1%20union%20select%20*", nil)
			},
			want: true,
		},
		{
			name: "scanner user agent",
			build: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.Header.Set("User-Agent", "sqlmap/1.7")
				return r
			},
			want: true,
		},
		{
			name: "trace method",
			build: func() *http.Request {
				return httptest.NewRequest("TRACE", "/", nil)
			},
			want: true,
		},
		{
			name: "forged proxy chain",
			build: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.Header.Set("X-Forwarded-For", "1.1.1.1,2.2.2.2,3.3.3.3,4.4.4.4,5.5.5.5,6.6.6.6,7.7.7.7")
				return r
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector()
			if got := d.DetectSuspiciousRequest(tt.build()); got != tt.want {
				t.Errorf("DetectSuspiciousRequest() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectionMetricsCount(t *testing.T) {
	d := NewDetector()

	d.DetectSuspiciousRequest(httptest.NewRequest(http.MethodGet, "/wp-admin", nil))
	d.DetectSuspiciousRequest(httptest.NewRequest(http.MethodGet, "/asientos", nil))
	d.DetectSuspiciousRequest(httptest.NewRequest(http.MethodGet, "/.git/config", nil))

	if m := d.GetMetrics(); m.SuspiciousRequests != 2 {
		t.Errorf("SuspiciousRequests = %d, want 2", m.SuspiciousRequests)
	}
}

func TestAddTrustedProxy(t *testing.T) {
	d := NewDetector()

	if err := d.AddTrustedProxy("100.64.0.0/10"); err != nil {
		t.Fatalf("AddTrustedProxy() error = %v", err)
	}
	if err := d.AddTrustedProxy("not-a-cidr"); err == nil {
		t.Error("AddTrustedProxy() should reject malformed CIDR")
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "100.64.0.5:443"
	req.Header.Set("X-Forwarded-For", "198.51.100.9")

	if ip := d.ExtractClientIP(req); ip != "198.51.100.9" {
		t.Errorf("ExtractClientIP() = %q, added proxy range should be trusted", ip)
	}
}

func TestHeadersMiddlewareSetsPolicy(t *testing.T) {
	h := NewHeadersMiddleware(DefaultHeadersConfig())
	handler := h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	checks := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "SAMEORIGIN",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}
	for header, want := range checks {
		if got := rr.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
	if csp := rr.Header().Get("Content-Security-Policy"); csp == "" {
		t.Error("Content-Security-Policy should be set")
	}
}

func TestStaticAssetMiddlewareCacheControl(t *testing.T) {
	handler := StaticAssetMiddleware(3600)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))

	if got := rr.Header().Get("Cache-Control"); got != "public, max-age=3600, immutable" {
		t.Errorf("Cache-Control = %q", got)
	}
}

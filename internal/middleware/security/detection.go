package security

import (
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync/atomic"
)

// DetectionMetrics counts security events for the metrics endpoint.
type DetectionMetrics struct {
	SuspiciousRequests int64
	InvalidIPAttempts  int64
}

// Patterns that show up in probe traffic against any internet-facing app.
// Matches are logged, never blocked, so a false positive costs nothing.
var suspiciousPathPatterns = []string{
	"../", "..\\", ".env", "wp-admin", "phpmyadmin",
	"admin.php", "config.php", ".git", ".ssh",
	"eval(", "javascript:", "<script", "union select",
	"etc/passwd", "cmd.exe",
}

var suspiciousAgents = []string{
	"sqlmap", "nmap", "nikto", "gobuster", "dirb",
	"masscan", "scanner", "acunetix",
}

var unusualMethods = []string{"TRACE", "TRACK", "DEBUG"}

// Detector classifies requests and resolves client IPs behind trusted proxies.
type Detector struct {
	metrics        DetectionMetrics
	trustedProxies []*net.IPNet
}

// NewDetector creates a detector trusting the private ranges as proxies.
func NewDetector() *Detector {
	return &Detector{
		trustedProxies: []*net.IPNet{
			mustCIDR("127.0.0.0/8"),
			mustCIDR("10.0.0.0/8"),
			mustCIDR("172.16.0.0/12"),
			mustCIDR("192.168.0.0/16"),
		},
	}
}

func mustCIDR(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(fmt.Sprintf("bad trusted proxy CIDR %s: %v", cidr, err))
	}
	return network
}

// DetectSuspiciousRequest reports whether the request matches known probe
// patterns. Counted in metrics when it does.
func (d *Detector) DetectSuspiciousRequest(r *http.Request) bool {
	suspicious := matchesAny(strings.ToLower(r.URL.Path), suspiciousPathPatterns) ||
		matchesAny(strings.ToLower(r.URL.RawQuery), suspiciousPathPatterns) ||
		matchesAny(strings.ToLower(r.Header.Get("User-Agent")), suspiciousAgents)

	if !suspicious {
		for _, method := range unusualMethods {
			if r.Method == method {
				suspicious = true
				break
			}
		}
	}

	// Overflow attempts and forged proxy chains.
	if !suspicious && len(r.URL.String()) > 2048 {
		suspicious = true
	}
	if !suspicious {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" && strings.Count(xff, ",") > 5 {
			suspicious = true
		}
	}

	if suspicious {
		atomic.AddInt64(&d.metrics.SuspiciousRequests, 1)
	}
	return suspicious
}

func matchesAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// ExtractClientIP returns the real client IP. Forwarded headers are only
// honored when the direct peer is a trusted proxy.
func (d *Detector) ExtractClientIP(r *http.Request) string {
	directIP, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		directIP = r.RemoteAddr
	}

	parsed := net.ParseIP(directIP)
	if parsed == nil {
		atomic.AddInt64(&d.metrics.InvalidIPAttempts, 1)
		return directIP
	}

	if d.isTrustedProxy(parsed) {
		if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
			// First hop in the chain is the original client.
			first := strings.TrimSpace(strings.Split(xff, ",")[0])
			if net.ParseIP(first) != nil {
				return first
			}
			atomic.AddInt64(&d.metrics.InvalidIPAttempts, 1)
		}
		if xri := r.Header.Get("X-Real-IP"); xri != "" {
			if net.ParseIP(xri) != nil {
				return xri
			}
			atomic.AddInt64(&d.metrics.InvalidIPAttempts, 1)
		}
	}

	return directIP
}

func (d *Detector) isTrustedProxy(ip net.IP) bool {
	for _, network := range d.trustedProxies {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// GetMetrics returns a snapshot of the counters.
func (d *Detector) GetMetrics() DetectionMetrics {
	return DetectionMetrics{
		SuspiciousRequests: atomic.LoadInt64(&d.metrics.SuspiciousRequests),
		InvalidIPAttempts:  atomic.LoadInt64(&d.metrics.InvalidIPAttempts),
	}
}

// AddTrustedProxy registers an extra proxy network, for deployments behind
// a load balancer outside the private ranges.
func (d *Detector) AddTrustedProxy(cidr string) error {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		return fmt.Errorf("invalid CIDR %s: %w", cidr, err)
	}
	d.trustedProxies = append(d.trustedProxies, network)
	return nil
}

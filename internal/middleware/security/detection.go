package security

import (
	"strings"
	"sync/atomic"

	"github.com/gin-gonic/gin"

	applog "dailyexpense/internal/log"
)

// TrustedProxies lists networks allowed to set forwarding headers.
var TrustedProxies = []string{
	"127.0.0.0/8",    // localhost
	"10.0.0.0/8",     // private networks
	"172.16.0.0/12",  // private networks
	"192.168.0.0/16", // private networks
}

var suspiciousPatterns = []string{
	"../", "..\\", ".env", "wp-admin", "phpmyadmin",
	"admin.php", "config.php", ".git", ".ssh",
	"eval(", "javascript:", "<script", "union select",
	"etc/passwd", "cmd.exe",
}

var suspiciousAgents = []string{
	"sqlmap", "nmap", "nikto", "gobuster", "dirb", "masscan", "zgrab",
}

// Detector flags requests that look like scans or injection attempts.
// Flagged requests are logged and counted, never blocked.
type Detector struct {
	suspicious int64
}

// NewDetector creates a new security detector
func NewDetector() *Detector {
	return &Detector{}
}

// IsSuspicious analyzes the request path, query and user agent.
func (d *Detector) IsSuspicious(method, path, rawQuery, userAgent string, urlLength int) bool {
	path = strings.ToLower(path)
	query := strings.ToLower(rawQuery)
	for _, pattern := range suspiciousPatterns {
		if strings.Contains(path, pattern) || strings.Contains(query, pattern) {
			return true
		}
	}

	agent := strings.ToLower(userAgent)
	for _, a := range suspiciousAgents {
		if strings.Contains(agent, a) {
			return true
		}
	}

	switch method {
	case "TRACE", "TRACK", "DEBUG", "CONNECT":
		return true
	}

	// Check for excessively long URLs (possible overflow attempt)
	return urlLength > 2048
}

// Handler returns gin middleware that logs suspicious requests.
func (d *Detector) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		r := c.Request
		if d.IsSuspicious(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent(), len(r.URL.String())) {
			atomic.AddInt64(&d.suspicious, 1)
			ctx := r.Context()
			applog.FromContext(ctx).WithComponent(applog.ComponentSecurity).WarnContext(ctx, "Suspicious request",
				applog.NewFields().
					WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, r.UserAgent()).
					WithClientIP(c.ClientIP()).
					ToSlice()...)
		}
		c.Next()
	}
}

// SuspiciousCount returns the number of flagged requests so far.
func (d *Detector) SuspiciousCount() int64 {
	return atomic.LoadInt64(&d.suspicious)
}

package server

import (
	"net"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"
)

// originPolicy decides which browser origins may open a chat socket.
type originPolicy struct {
	allowed  map[string]struct{}
	allowAll bool
	log      *zap.Logger
}

// newOriginPolicy builds the allow set from configured origins. "*" admits any
// well-formed origin; blank and malformed entries are skipped.
func newOriginPolicy(origins []string, log *zap.Logger) *originPolicy {
	p := &originPolicy{allowed: make(map[string]struct{}, len(origins)), log: log}
	for _, raw := range origins {
		entry := strings.TrimSpace(raw)
		switch entry {
		case "":
			continue
		case "*":
			p.allowAll = true
			continue
		}
		key, ok := originKey(entry)
		if !ok {
			log.Warn("ignoring invalid origin in configuration", zap.String("origin", raw))
			continue
		}
		p.allowed[key] = struct{}{}
	}
	return p
}

// originKey reduces an origin to lowercase scheme://host[:port]. Default ports
// for http and https are dropped so "https://a.example:443" matches
// "https://a.example".
func originKey(origin string) (string, bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if port != "" {
		host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	return scheme + "://" + host, true
}

// check is the upgrader's CheckOrigin hook.
func (p *originPolicy) check(r *http.Request) bool {
	header := r.Header.Get("Origin")
	key, ok := originKey(header)
	if ok {
		if p.allowAll {
			return true
		}
		if _, found := p.allowed[key]; found {
			return true
		}
	}
	p.log.Warn("rejected websocket origin", zap.String("origin", header))
	return false
}

package handler

import (
	"net"
	"net/http"
	"strings"

	"github.com/Yulikepython/drive-cleaner/internal/middleware"
	"github.com/Yulikepython/drive-cleaner/internal/model"
)

func actorFromRequest(r *http.Request) model.AuditActor {
	actor := model.AuditActor{IP: clientIP(r)}

	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		actor.UserID = claims.UserID
		actor.Role = claims.Role
	}

	return actor
}

func clientIP(r *http.Request) string {
	if xff := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil {
		return host
	}

	return strings.TrimSpace(r.RemoteAddr)
}

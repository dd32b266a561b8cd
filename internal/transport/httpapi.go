package transport

import (
	"crypto/subtle"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rawblock/landkeeper/internal/ids"
	"github.com/rawblock/landkeeper/internal/ratelimit"
	"github.com/rawblock/landkeeper/internal/statetree"
)

// AdminAuthMiddleware returns a gin middleware guarding the schema and
// admin routes with a bearer token read from ADMIN_AUTH_TOKEN. If the token
// is unset, every request is allowed through (dev mode), with a warning
// logged at construction when GIN_MODE is release.
func AdminAuthMiddleware() gin.HandlerFunc {
	token := os.Getenv("ADMIN_AUTH_TOKEN")
	if token == "" && os.Getenv("GIN_MODE") == "release" {
		log.Println("[SECURITY WARNING] ADMIN_AUTH_TOKEN is not set in release mode; schema/admin routes are publicly accessible")
	}

	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}
		auth := c.GetHeader("Authorization")
		parts := strings.SplitN(auth, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" || subtle.ConstantTimeCompare([]byte(parts[1]), []byte(token)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid or missing admin token"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// SchemaHandler returns a gin.HandlerFunc serving the land's schema
// introspection endpoint: the field schema's broadcast/server-only
// partition plus, when the adapter's encoder hashes paths, the path-hash
// table's version and template count. The template <-> hash entries
// themselves are not listed.
func SchemaHandler(a *Adapter) gin.HandlerFunc {
	return func(c *gin.Context) {
		body := gin.H{
			"land_id": a.keeper.LandID().String(),
			"schema":  schemaDescriptor(a.keeper.RootSchema()),
		}
		if a.table != nil {
			body["path_hash_table"] = pathHashTableDescriptor(a.table)
		}
		if degraded, ok := a.keeper.RecorderHealth(); ok {
			body["recorder_degraded"] = degraded
		}
		c.JSON(http.StatusOK, body)
	}
}

// joinRateLimiter throttles join/auth attempts per remote IP, mirroring the
// teacher's per-IP HTTP rate limiter but built on internal/ratelimit's
// generic bucket instead of a bespoke one.
var joinRateLimiter = ratelimit.New(60, 10, 10*time.Minute)

// JoinRateLimitMiddleware returns a gin middleware rejecting join attempts
// once a remote IP exceeds the configured burst.
func JoinRateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if ok, retryAfter := joinRateLimiter.Allow(c.ClientIP()); !ok {
			c.Header("Retry-After", retryAfter.String())
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many join attempts"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// schemaDescriptor renders a field schema as the JSON shape the schema
// introspection endpoint serves: name, policy, kind, and nested
// fields/element, recursively.
func schemaDescriptor(f *statetree.FieldSchema) map[string]interface{} {
	out := map[string]interface{}{
		"name":   f.Name,
		"policy": syncPolicyName(f.Policy),
	}
	switch f.Kind {
	case statetree.KindLeafField:
		out["kind"] = "leaf"
	case statetree.KindComposite:
		out["kind"] = "composite"
		fields := make([]map[string]interface{}, 0, len(f.Fields))
		for _, child := range f.Fields {
			fields = append(fields, schemaDescriptor(child))
		}
		out["fields"] = fields
	case statetree.KindArrayField:
		out["kind"] = "array"
		out["element"] = schemaDescriptor(f.Element)
	case statetree.KindMapField:
		out["kind"] = "map"
		out["element"] = schemaDescriptor(f.Element)
	}
	return out
}

func syncPolicyName(p statetree.SyncPolicy) string {
	if p == statetree.Broadcast {
		return "broadcast"
	}
	return "server_only"
}

func pathHashTableDescriptor(t *ids.PathHashTable) map[string]interface{} {
	return map[string]interface{}{
		"version": t.Version,
		"count":   t.Len(),
	}
}

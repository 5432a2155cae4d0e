package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// ObjectStore is durable blob storage with per-prefix retention rules.
type ObjectStore interface {
	Put(ctx context.Context, key string, body io.Reader) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// EnsureRetention installs an expire-after-days rule for the prefix.
	// An existing rule with the same identifier is replaced, never
	// duplicated.
	EnsureRetention(ctx context.Context, prefix string, days int) error
}

// ObjectKey builds the backup object key. The layout is load-bearing for
// compatibility with existing archives: {prefix}/{tenant}/{yyyy}/{mm}/{dd}/{HHMMSS}.{ext}
func ObjectKey(prefix, tenantName string, t time.Time, ext string) string {
	return fmt.Sprintf("%s/%s/%s.%s", prefix, tenantName, t.UTC().Format("2006/01/02/150405"), ext)
}

// RetentionRuleID names the lifecycle rule for a prefix:
// expire-{prefix-with-slashes-replaced-by-dashes}-{days}d
func RetentionRuleID(prefix string, days int) string {
	return fmt.Sprintf("expire-%s-%dd", strings.ReplaceAll(prefix, "/", "-"), days)
}

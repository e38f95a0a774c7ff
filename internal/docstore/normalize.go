package docstore

import (
	"strings"

	"google.golang.org/protobuf/types/known/timestamppb"
)

// NormalizeTimestamps walks maps and slices reachable from v and replaces
// every backend timestamp with a time.Time, in place. Keys starting with "_"
// are skipped along with everything below them. Other values are left alone.
func NormalizeTimestamps(v any) {
	switch c := v.(type) {
	case map[string]any:
		for k, item := range c {
			if strings.HasPrefix(k, "_") {
				continue
			}
			if ts, ok := asTime(item); ok {
				c[k] = ts
				continue
			}
			NormalizeTimestamps(item)
		}
	case []any:
		for i, item := range c {
			if ts, ok := asTime(item); ok {
				c[i] = ts
				continue
			}
			NormalizeTimestamps(item)
		}
	case []map[string]any:
		for _, item := range c {
			NormalizeTimestamps(item)
		}
	}
}

func asTime(v any) (any, bool) {
	ts, ok := v.(*timestamppb.Timestamp)
	if !ok || ts == nil {
		return nil, false
	}
	return ts.AsTime(), true
}

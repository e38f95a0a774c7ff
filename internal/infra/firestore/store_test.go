package firestore

import (
	"testing"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/dvloznov/asset-tracker/internal/docstore"
)

func TestEncodeServerTimestamp(t *testing.T) {
	when := time.Date(2023, 1, 17, 12, 0, 0, 0, time.UTC)
	in := map[string]any{
		"created": docstore.ServerTimestamp,
		"owner":   map[string]any{"seen": docstore.ServerTimestamp},
		"transactions": []any{
			map[string]any{"timestamp": when},
		},
		"name": "Brokerage",
	}

	out := encodeMap(in)

	if out["created"] != firestore.ServerTimestamp {
		t.Errorf("created = %v, want firestore.ServerTimestamp", out["created"])
	}
	if out["owner"].(map[string]any)["seen"] != firestore.ServerTimestamp {
		t.Errorf("nested placeholder was not translated")
	}
	tx := out["transactions"].([]any)[0].(map[string]any)
	if got := tx["timestamp"].(time.Time); !got.Equal(when) {
		t.Errorf("timestamp = %v, want %v", got, when)
	}
	if out["name"] != "Brokerage" {
		t.Errorf("name = %v", out["name"])
	}
	if in["created"] != docstore.ServerTimestamp {
		t.Errorf("input map was modified")
	}
}

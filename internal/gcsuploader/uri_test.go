package gcsuploader

import (
	"errors"
	"testing"
)

func TestParseGCSURI(t *testing.T) {
	tests := []struct {
		name       string
		uri        string
		wantBucket string
		wantObject string
		wantErr    bool
	}{
		{name: "nested object", uri: "gs://bucket/statements/jan.pdf", wantBucket: "bucket", wantObject: "statements/jan.pdf"},
		{name: "missing scheme", uri: "bucket/jan.pdf", wantErr: true},
		{name: "bucket only", uri: "gs://bucket", wantErr: true},
		{name: "empty object", uri: "gs://bucket/", wantErr: true},
		{name: "empty bucket", uri: "gs:///jan.pdf", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bucket, object, err := ParseGCSURI(tt.uri)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidURI) {
					t.Errorf("ParseGCSURI(%q) error = %v, want ErrInvalidURI", tt.uri, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseGCSURI(%q) unexpected error: %v", tt.uri, err)
			}
			if bucket != tt.wantBucket || object != tt.wantObject {
				t.Errorf("ParseGCSURI(%q) = %q, %q, want %q, %q", tt.uri, bucket, object, tt.wantBucket, tt.wantObject)
			}
		})
	}
}

func TestObjectURIAndFilename(t *testing.T) {
	uri := ObjectURI("bucket", "/backups/uid-1/20230117T153000Z.json")
	if uri != "gs://bucket/backups/uid-1/20230117T153000Z.json" {
		t.Errorf("ObjectURI() = %q", uri)
	}
	if got := ExtractFilenameFromGCSURI(uri); got != "20230117T153000Z.json" {
		t.Errorf("ExtractFilenameFromGCSURI() = %q", got)
	}
	if got := ExtractFilenameFromGCSURI("gs://bucket"); got != "bucket" {
		t.Errorf("ExtractFilenameFromGCSURI(bucket only) = %q", got)
	}
}

package session

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	data, err := Encode(testSession(time.Now()))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	data[0] = CurrentSchemaVersion + 1

	if _, err := Decode(data); !errors.Is(err, ErrSessionCorrupt) {
		t.Fatalf("expected ErrSessionCorrupt, got %v", err)
	}
}

func TestDecodeRejectsTruncatedAndTrailing(t *testing.T) {
	data, err := Encode(testSession(time.Now()))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	for i := 0; i < len(data); i++ {
		if _, err := Decode(data[:i]); !errors.Is(err, ErrSessionCorrupt) {
			t.Fatalf("prefix %d: expected ErrSessionCorrupt, got %v", i, err)
		}
	}

	if _, err := Decode(append(data, 0)); !errors.Is(err, ErrSessionCorrupt) {
		t.Fatalf("trailing byte: expected ErrSessionCorrupt, got %v", err)
	}
}

func TestEncodeRejectsOversizedField(t *testing.T) {
	sess := testSession(time.Now())
	sess.UserAgent = strings.Repeat("x", 1<<16)

	if _, err := Encode(sess); err == nil {
		t.Fatal("expected oversized field error")
	}
}

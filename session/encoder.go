package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	// CurrentSchemaVersion is written by Encode.
	CurrentSchemaVersion uint8 = 1
)

// ErrSessionCorrupt is returned when a stored blob cannot be fully decoded.
var ErrSessionCorrupt = errors.New("session record corrupt")

// Encode serializes s using the current schema.
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("nil session")
	}

	var buf bytes.Buffer
	buf.Grow(64 + len(s.UserID) + len(s.Email) + len(s.AccessToken) + len(s.IPAddress) + len(s.UserAgent))
	buf.WriteByte(CurrentSchemaVersion)

	for _, field := range []struct {
		name  string
		value string
	}{
		{"userID", s.UserID},
		{"email", s.Email},
		{"accessToken", s.AccessToken},
		{"ipAddress", s.IPAddress},
		{"userAgent", s.UserAgent},
	} {
		if err := writeString(&buf, field.value); err != nil {
			return nil, fmt.Errorf("%s: %w", field.name, err)
		}
	}

	for _, ts := range []int64{s.CreatedAt, s.LastActivity, s.ExpiresAt} {
		if err := binary.Write(&buf, binary.BigEndian, ts); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// Decode parses a blob written by Encode. Unknown versions, truncated input,
// and trailing bytes all yield ErrSessionCorrupt.
func Decode(data []byte) (*Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("%w: empty record", ErrSessionCorrupt)
	}
	if version != CurrentSchemaVersion {
		return nil, fmt.Errorf("%w: unsupported session schema version %d", ErrSessionCorrupt, version)
	}

	s := &Session{SchemaVersion: version}
	for _, dst := range []*string{&s.UserID, &s.Email, &s.AccessToken, &s.IPAddress, &s.UserAgent} {
		v, err := readString(reader)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
		}
		*dst = v
	}

	for _, dst := range []*int64{&s.CreatedAt, &s.LastActivity, &s.ExpiresAt} {
		if err := binary.Read(reader, binary.BigEndian, dst); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSessionCorrupt, err)
		}
	}

	if reader.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrSessionCorrupt, reader.Len())
	}

	return s, nil
}

func writeString(buf *bytes.Buffer, v string) error {
	if len(v) > math.MaxUint16 {
		return errors.New("field too long")
	}
	var n [2]byte
	binary.BigEndian.PutUint16(n[:], uint16(len(v)))
	buf.Write(n[:])
	buf.WriteString(v)
	return nil
}

func readString(r *bytes.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	if int(n) > r.Len() {
		return "", io.ErrUnexpectedEOF
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return "", err
	}
	return string(b), nil
}

package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

const recordFormatVersionCurrent = 1

// Encode serializes a record into the compact binary storage format:
// version byte, three length-prefixed strings, three big-endian int64
// timestamps.
func Encode(r *Record) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(recordFormatVersionCurrent)

	for _, field := range []string{r.ID, r.UserID, r.SecretToken} {
		if len(field) > 255 {
			return nil, errors.New("session field too long")
		}
		buf.WriteByte(byte(len(field)))
		buf.WriteString(field)
	}

	for _, ts := range []int64{r.CreatedAt, r.ExpiresAt, r.LastUsedAt} {
		if err := binary.Write(&buf, binary.BigEndian, ts); err != nil {
			return nil, err
		}
	}

	return buf.Bytes(), nil
}

// Decode parses a binary record. Unknown versions and truncated input are
// rejected; the decoder never guesses at partial data.
func Decode(data []byte) (*Record, error) {
	r := bytes.NewReader(data)

	version, err := r.ReadByte()
	if err != nil {
		return nil, errors.New("empty session record")
	}
	if version != recordFormatVersionCurrent {
		return nil, errors.New("unknown session record version")
	}

	readString := func() (string, error) {
		length, err := r.ReadByte()
		if err != nil {
			return "", errors.New("truncated session record")
		}
		raw := make([]byte, length)
		if _, err := io.ReadFull(r, raw); err != nil {
			return "", errors.New("truncated session record")
		}
		return string(raw), nil
	}

	var record Record
	if record.ID, err = readString(); err != nil {
		return nil, err
	}
	if record.UserID, err = readString(); err != nil {
		return nil, err
	}
	if record.SecretToken, err = readString(); err != nil {
		return nil, err
	}

	for _, ts := range []*int64{&record.CreatedAt, &record.ExpiresAt, &record.LastUsedAt} {
		if err := binary.Read(r, binary.BigEndian, ts); err != nil {
			return nil, errors.New("truncated session record")
		}
	}

	if r.Len() != 0 {
		return nil, errors.New("trailing bytes in session record")
	}

	return &record, nil
}

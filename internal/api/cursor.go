package api

import (
	"encoding/base64"
	"encoding/json"
	"errors"
)

// ErrInvalidCursor is returned by DecodeCursor for malformed cursors.
var ErrInvalidCursor = errors.New("invalid cursor")

// Cursor is the offset/limit position of the next page.
type Cursor struct {
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// EncodeCursor returns the opaque base64 form of c.
func EncodeCursor(c Cursor) string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor parses a cursor produced by EncodeCursor.
func DecodeCursor(s string) (Cursor, error) {
	var c Cursor
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return c, ErrInvalidCursor
	}
	if err := json.Unmarshal(b, &c); err != nil || c.Offset < 0 || c.Limit <= 0 {
		return Cursor{}, ErrInvalidCursor
	}
	return c, nil
}

// NextCursor returns the cursor of the page after [offset, offset+limit), or nil when total
// records are exhausted.
func NextCursor(offset, limit, total int) *string {
	if offset+limit >= total {
		return nil
	}
	s := EncodeCursor(Cursor{Offset: offset + limit, Limit: limit})
	return &s
}

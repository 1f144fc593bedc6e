package envelope

import (
	"encoding/base64"
	"encoding/json"
)

// cursor is the decoded form of an opaque pagination cursor.
type cursor struct {
	Offset int `json:"offset"`
}

// EncodeCursor packs an offset into an opaque base64 cursor.
func EncodeCursor(offset int) string {
	data, _ := json.Marshal(cursor{Offset: offset})
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeCursor unpacks a cursor into its offset. Any decoding failure, and
// any negative offset, means "start from the beginning": the result is 0,
// never an error.
func DecodeCursor(s string) int {
	if s == "" {
		return 0
	}

	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return 0
	}

	var c cursor
	if err := json.Unmarshal(data, &c); err != nil {
		return 0
	}
	if c.Offset < 0 {
		return 0
	}
	return c.Offset
}

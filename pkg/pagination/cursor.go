package pagination

import (
	"encoding/base64"
	"encoding/json"

	"github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/docstore"
	apperrors "github.com/AndreasKatsouris/MerakiCaptivePortal-firebaseDB-sub003/pkg/errors"
)

// EncodeCursor renders a cursor as an opaque URL-safe token. A nil cursor is "".
func EncodeCursor(c *docstore.Cursor) string {
	if c == nil {
		return ""
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return ""
	}
	return base64.RawURLEncoding.EncodeToString(raw)
}

// DecodeCursor parses a token produced by EncodeCursor. "" is the nil cursor.
func DecodeCursor(token string) (*docstore.Cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, apperrors.NewValidationError("cursor", "malformed cursor")
	}
	var c docstore.Cursor
	if err := json.Unmarshal(raw, &c); err != nil || c.Key == "" {
		return nil, apperrors.NewValidationError("cursor", "malformed cursor")
	}
	return &c, nil
}

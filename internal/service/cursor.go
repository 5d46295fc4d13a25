package service

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joshdurbin/ns-shortener/internal/domain"
)

// EncodeCursor renders a cursor as an opaque URL-safe token
func EncodeCursor(c *domain.Cursor) string {
	if c == nil {
		return ""
	}
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + "." + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a token produced by EncodeCursor; empty yields nil
func DecodeCursor(token string) (*domain.Cursor, error) {
	if token == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", domain.ErrInvalidRequest)
	}
	nanos, id, ok := strings.Cut(string(raw), ".")
	if !ok {
		return nil, fmt.Errorf("%w: malformed cursor", domain.ErrInvalidRequest)
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", domain.ErrInvalidRequest)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed cursor", domain.ErrInvalidRequest)
	}
	return &domain.Cursor{CreatedAt: time.Unix(0, n).UTC(), ID: parsed}, nil
}

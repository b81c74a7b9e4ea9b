package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// GenerateKey creates a deterministic cache key for an encoded request.
// Equal requests produce equal keys regardless of member order.
func GenerateKey(requestType string, body []byte) string {
	hash := sha256.Sum256(normalizeBody(body))
	return requestType + ":" + hex.EncodeToString(hash[:16])
}

// normalizeBody re-encodes JSON so object members come out in sorted order
func normalizeBody(body []byte) []byte {
	if len(body) == 0 {
		return []byte("null")
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var data interface{}
	if err := dec.Decode(&data); err != nil {
		return body // Return as-is if cannot parse
	}

	result, err := json.Marshal(data)
	if err != nil {
		return body
	}
	return result
}

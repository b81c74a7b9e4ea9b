package message

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// TypeField is the JSON member carrying the type tag of an encoded value
const TypeField = "__type"

var (
	// ErrMissingType is returned when an encoded value has no type tag
	ErrMissingType = errors.New("message: missing " + TypeField + " member")
	// ErrNotBatch is returned when a batch payload is not a JSON array
	ErrNotBatch = errors.New("message: batch payload must be a JSON array")
)

// Codec encodes requests and responses as JSON objects stamped with their
// type tag, and decodes them back into fresh values from a TypeRegistry
type Codec struct {
	types *TypeRegistry
}

// NewCodec creates a codec bound to a type registry
func NewCodec(types *TypeRegistry) *Codec {
	return &Codec{types: types}
}

// Types returns the underlying type registry
func (c *Codec) Types() *TypeRegistry {
	return c.types
}

// EncodeRequest encodes a single request
func (c *Codec) EncodeRequest(req Request) ([]byte, error) {
	if req == nil {
		return nil, errors.New("message: cannot encode nil request")
	}
	return encodeTagged(req, req.RequestType())
}

// EncodeResponse encodes a single response
func (c *Codec) EncodeResponse(resp Response) ([]byte, error) {
	if resp == nil {
		return nil, errors.New("message: cannot encode nil response")
	}
	return encodeTagged(resp, resp.ResponseType())
}

// DecodeRequest decodes a single tagged request
func (c *Codec) DecodeRequest(data []byte) (Request, error) {
	tag, err := peekTag(data)
	if err != nil {
		return nil, err
	}
	req, err := c.types.NewRequest(tag)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, req); err != nil {
		return nil, fmt.Errorf("failed to decode request %q: %w", tag, err)
	}
	return req, nil
}

// DecodeResponse decodes a single tagged response
func (c *Codec) DecodeResponse(data []byte) (Response, error) {
	tag, err := peekTag(data)
	if err != nil {
		return nil, err
	}
	resp, err := c.types.NewResponse(tag)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, resp); err != nil {
		return nil, fmt.Errorf("failed to decode response %q: %w", tag, err)
	}
	return resp, nil
}

// EncodeRequests encodes a batch of requests as a JSON array
func (c *Codec) EncodeRequests(requests []Request) ([]byte, error) {
	items := make([][]byte, len(requests))
	for i, req := range requests {
		data, err := c.EncodeRequest(req)
		if err != nil {
			return nil, fmt.Errorf("request[%d]: %w", i, err)
		}
		items[i] = data
	}
	return joinArray(items), nil
}

// EncodeResponses encodes a batch of responses as a JSON array
func (c *Codec) EncodeResponses(responses []Response) ([]byte, error) {
	items := make([][]byte, len(responses))
	for i, resp := range responses {
		data, err := c.EncodeResponse(resp)
		if err != nil {
			return nil, fmt.Errorf("response[%d]: %w", i, err)
		}
		items[i] = data
	}
	return joinArray(items), nil
}

// DecodeRequests decodes a JSON array of tagged requests, preserving order
func (c *Codec) DecodeRequests(data []byte) ([]Request, error) {
	elements, err := splitArray(data)
	if err != nil {
		return nil, err
	}
	requests := make([]Request, len(elements))
	for i, raw := range elements {
		req, err := c.DecodeRequest(raw)
		if err != nil {
			return nil, fmt.Errorf("request[%d]: %w", i, err)
		}
		requests[i] = req
	}
	return requests, nil
}

// DecodeResponses decodes a JSON array of tagged responses, preserving order
func (c *Codec) DecodeResponses(data []byte) ([]Response, error) {
	elements, err := splitArray(data)
	if err != nil {
		return nil, err
	}
	responses := make([]Response, len(elements))
	for i, raw := range elements {
		resp, err := c.DecodeResponse(raw)
		if err != nil {
			return nil, fmt.Errorf("response[%d]: %w", i, err)
		}
		responses[i] = resp
	}
	return responses, nil
}

// CloneResponse returns a deep copy of resp by encoding and decoding it
func (c *Codec) CloneResponse(resp Response) (Response, error) {
	data, err := c.EncodeResponse(resp)
	if err != nil {
		return nil, err
	}
	return c.DecodeResponse(data)
}

// encodeTagged marshals v and stamps the type tag into the resulting object
func encodeTagged(v any, tag string) ([]byte, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %q: %w", tag, err)
	}
	body = trimWhitespace(body)
	if len(body) == 0 || body[0] != '{' {
		return nil, fmt.Errorf("%q must encode as a JSON object", tag)
	}
	return sjson.SetBytes(body, TypeField, tag)
}

// peekTag reads the type tag without decoding the whole value
func peekTag(data []byte) (string, error) {
	if !gjson.ValidBytes(data) {
		return "", errors.New("message: invalid JSON")
	}
	tag := gjson.GetBytes(data, TypeField)
	if !tag.Exists() || tag.Type != gjson.String || tag.Str == "" {
		return "", ErrMissingType
	}
	return tag.Str, nil
}

// splitArray returns the raw elements of a JSON array
func splitArray(data []byte) ([][]byte, error) {
	data = trimWhitespace(data)
	if len(data) == 0 || data[0] != '[' {
		return nil, ErrNotBatch
	}
	if !gjson.ValidBytes(data) {
		return nil, errors.New("message: invalid JSON")
	}

	var elements [][]byte
	gjson.ParseBytes(data).ForEach(func(_, value gjson.Result) bool {
		elements = append(elements, []byte(value.Raw))
		return true
	})
	return elements, nil
}

// joinArray concatenates encoded elements into a JSON array
func joinArray(items [][]byte) []byte {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, item := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(item)
	}
	buf.WriteByte(']')
	return buf.Bytes()
}

// trimWhitespace removes leading whitespace from byte slice
func trimWhitespace(data []byte) []byte {
	for i := 0; i < len(data); i++ {
		switch data[i] {
		case ' ', '\t', '\n', '\r':
			continue
		default:
			return data[i:]
		}
	}
	return data[:0]
}

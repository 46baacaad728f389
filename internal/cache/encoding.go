package cache

import (
	"bytes"
	"compress/zlib"
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
)

const (
	internalObjectKey = "__internal_object__"

	// UncompressedBytesTag marks a base64 payload stored as-is.
	UncompressedBytesTag = "6bbc5f9e-6aba-40f4-878c-1ce5f5f50055"
	// ZLibCompressedBytesTag marks a base64 payload that is zlib compressed.
	ZLibCompressedBytesTag = "f12d83b4-b2dd-4968-8f14-e063970c66fd"

	compressThreshold = 1000
)

// Marshal serializes v as minified JSON with sorted keys. Byte slices are
// replaced by tagged internal objects, compressed when it pays off.
func Marshal(v any) ([]byte, error) {
	encoded, err := encodeValue(v)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(encoded); err != nil {
		return nil, fmt.Errorf("failed to marshal cache object: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Unmarshal parses data produced by Marshal, restoring byte slices. Numbers
// are decoded as json.Number.
func Unmarshal(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cache object: %w", err)
	}
	return decodeValue(raw)
}

// Normalize round-trips v through Marshal and Unmarshal so that freshly
// rendered data has the same shape as data loaded from the store.
func Normalize(v any) (any, error) {
	data, err := Marshal(v)
	if err != nil {
		return nil, err
	}
	return Unmarshal(data)
}

// Hash returns the hex MD5 digest of the canonical serialization of v.
func Hash(v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", err
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}

func encodeValue(v any) (any, error) {
	switch value := v.(type) {
	case []byte:
		return encodeBytes(value)
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, item := range value {
			encoded, err := encodeValue(item)
			if err != nil {
				return nil, err
			}
			out[k] = encoded
		}
		return out, nil
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			encoded, err := encodeValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = encoded
		}
		return out, nil
	case []string:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = item
		}
		return out, nil
	case map[string]string:
		out := make(map[string]any, len(value))
		for k, item := range value {
			out[k] = item
		}
		return out, nil
	default:
		return v, nil
	}
}

func encodeBytes(data []byte) (map[string]any, error) {
	if len(data) > compressThreshold {
		var buf bytes.Buffer
		w := zlib.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, fmt.Errorf("failed to compress bytes: %w", err)
		}
		if err := w.Close(); err != nil {
			return nil, fmt.Errorf("failed to compress bytes: %w", err)
		}

		saved := len(data) - buf.Len()
		savedPercent := 100 * float64(saved) / float64(len(data))
		if saved >= compressThreshold && savedPercent >= 1 {
			return map[string]any{
				internalObjectKey: ZLibCompressedBytesTag,
				"data":            base64.StdEncoding.EncodeToString(buf.Bytes()),
			}, nil
		}
	}

	return map[string]any{
		internalObjectKey: UncompressedBytesTag,
		"data":            base64.StdEncoding.EncodeToString(data),
	}, nil
}

func decodeValue(v any) (any, error) {
	switch value := v.(type) {
	case map[string]any:
		if tag, ok := value[internalObjectKey]; ok {
			return decodeInternalObject(tag, value["data"])
		}
		for k, item := range value {
			decoded, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			value[k] = decoded
		}
		return value, nil
	case []any:
		for i, item := range value {
			decoded, err := decodeValue(item)
			if err != nil {
				return nil, err
			}
			value[i] = decoded
		}
		return value, nil
	default:
		return v, nil
	}
}

func decodeInternalObject(tag, data any) ([]byte, error) {
	text, ok := data.(string)
	if !ok {
		return nil, fmt.Errorf("internal object has no data payload")
	}
	raw, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil, fmt.Errorf("failed to decode internal object: %w", err)
	}

	switch tag {
	case UncompressedBytesTag:
		return raw, nil
	case ZLibCompressedBytesTag:
		r, err := zlib.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, fmt.Errorf("failed to open compressed object: %w", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress object: %w", err)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unknown internal object type %v", tag)
	}
}

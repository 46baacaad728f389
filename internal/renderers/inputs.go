package renderers

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"

	"slidepress/internal/cache"
	"slidepress/internal/errs"
)

func requireString(inputs map[string]any, renderer, key string) (string, error) {
	if _, ok := inputs[key]; !ok {
		return "", errs.Newf(errs.KindMissingParameter, "%s renderer requires %q", renderer, key)
	}
	return cache.Data(inputs).String(key), nil
}

func optionalFloat(inputs map[string]any, key string, def float64) (float64, error) {
	v, ok := inputs[key]
	if !ok || v == nil {
		return def, nil
	}
	if s, ok := v.(string); ok {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, errs.Wrap(errs.KindUnknownParameter, err, "%s must be a number", key)
		}
		return f, nil
	}
	f, err := cache.Data(inputs).Float(key)
	if err != nil {
		return 0, errs.Wrap(errs.KindUnknownParameter, err, "%s must be a number", key)
	}
	return f, nil
}

func optionalBool(inputs map[string]any, key string) bool {
	switch v := inputs[key].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// hashFile returns the hex MD5 of a file's contents.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errs.Wrap(errs.KindFileLookup, err, "failed to open %s", path)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// srcHashKey is the rendering key of renderers that read a source file.
func srcHashKey(inputs map[string]any) (map[string]any, error) {
	src, ok := inputs["src"].(string)
	if !ok || src == "" {
		return nil, nil
	}
	hash, err := hashFile(src)
	if err != nil {
		return nil, err
	}
	return map[string]any{"srchash": hash}, nil
}

func version(v int) map[string]any {
	return map[string]any{"version": v}
}

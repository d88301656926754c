package repository

import (
	"time"
)

// Helper functions for decoding PostgREST rows
func getString(data map[string]interface{}, key string) string {
	if val, ok := data[key]; ok && val != nil {
		if str, ok := val.(string); ok {
			return str
		}
	}
	return ""
}

func getInt(data map[string]interface{}, key string) int {
	if val, ok := data[key]; ok && val != nil {
		switch v := val.(type) {
		case int:
			return v
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}

func getBool(data map[string]interface{}, key string) (bool, bool) {
	if val, ok := data[key]; ok && val != nil {
		switch v := val.(type) {
		case bool:
			return v, true
		case string:
			return v == "true" || v == "t" || v == "1", true
		case float64:
			return v != 0, true
		}
	}
	return false, false
}

// getTimePointer parses a timestamptz column. Null or unparsable values yield nil.
func getTimePointer(data map[string]interface{}, key string) *time.Time {
	str := getString(data, key)
	if str == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02 15:04:05.999999-07", "2006-01-02"} {
		if t, err := time.Parse(layout, str); err == nil {
			return &t
		}
	}
	return nil
}

package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a document does not exist in its collection.
var ErrNotFound = errors.New("document not found")

// Document is a schemaless record loaded from a collection. The
// authorization layer only reads the handful of fields named by an access
// config (owner field, group field, invited-members list, profile flags);
// everything else passes through untouched.
type Document map[string]interface{}

// GetString returns the named field as a string, or "" when absent or not
// a string.
func (d Document) GetString(field string) string {
	if v, ok := d[field].(string); ok {
		return v
	}
	return ""
}

// GetBool returns the named field as a bool, or false when absent or not a
// bool.
func (d Document) GetBool(field string) bool {
	if v, ok := d[field].(bool); ok {
		return v
	}
	return false
}

// GetStringSlice returns the named field as a string slice. JSON decoding
// yields []interface{}; non-string elements are skipped.
func (d Document) GetStringSlice(field string) []string {
	raw, ok := d[field].([]interface{})
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

// DocumentStore reads documents by collection and id.
type DocumentStore interface {
	// Get loads one document. Returns ErrNotFound when the id does not
	// exist in the collection.
	Get(ctx context.Context, collection, id string) (Document, error)
}

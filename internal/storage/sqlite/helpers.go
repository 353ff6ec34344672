package sqlite

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"math"
	"time"
)

// unixOrNil converts an optional time to a nullable unix-seconds column value
func unixOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}

// timeFromNull converts a nullable unix-seconds column back to *time.Time
func timeFromNull(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := time.Unix(v.Int64, 0)
	return &t
}

// floatOrNil converts an optional float to a nullable column value
func floatOrNil(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// floatFromNull converts a nullable REAL column back to *float64
func floatFromNull(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

// marshalJSON serializes list/object columns, collapsing nil to an empty list
func marshalJSON(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	if string(data) == "null" {
		return "[]"
	}
	return string(data)
}

// unmarshalStrings decodes a JSON string-array column, tolerating empty text
func unmarshalStrings(raw string) []string {
	if raw == "" || raw == "null" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}

// encodeEmbedding packs a vector as little-endian float32 bytes for BLOB
// storage. Nil vectors become nil (a NULL column).
func encodeEmbedding(vector []float32) []byte {
	if len(vector) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeEmbedding unpacks a BLOB column back to a vector
func decodeEmbedding(buf []byte) []float32 {
	if len(buf) == 0 || len(buf)%4 != 0 {
		return nil
	}
	vector := make([]float32, len(buf)/4)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vector
}

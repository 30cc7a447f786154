package embedding

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/pgvector/pgvector-go"
)

// Codec converts embeddings to and from the text form a gallery store keeps
// them in. Decode validates shape only; normalization is the caller's job.
type Codec interface {
	Encode(v Vector) (string, error)
	Decode(s string) (Vector, error)
	Name() string
}

// Codec names accepted by CodecByName.
const (
	CodecJSON     = "json"
	CodecPGVector = "pgvector"
)

// CodecByName returns the codec registered under name.
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", CodecJSON:
		return JSONCodec{}, nil
	case CodecPGVector:
		return PGVectorCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown embedding codec %q", name)
	}
}

// JSONCodec stores an embedding as a JSON array of Dim numbers, e.g.
// "[0.0123, -0.0456, ...]". Decode also accepts the list-of-lists form
// "[[...]]" written by some stores, as long as it holds a single list.
type JSONCodec struct{}

func (JSONCodec) Name() string { return CodecJSON }

func (JSONCodec) Encode(v Vector) (string, error) {
	if err := checkEncodable(v); err != nil {
		return "", err
	}
	data, err := json.Marshal([]float64(v))
	if err != nil {
		return "", fmt.Errorf("marshal embedding: %w", err)
	}
	return string(data), nil
}

func (JSONCodec) Decode(s string) (Vector, error) {
	data := bytes.TrimSpace([]byte(s))
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidVector)
	}

	var values []float64
	if bytes.HasPrefix(data, []byte("[[")) {
		var nested [][]float64
		if err := json.Unmarshal(data, &nested); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidVector, err)
		}
		if len(nested) != 1 {
			return nil, fmt.Errorf("%w: expected a single embedding, got %d", ErrInvalidVector, len(nested))
		}
		values = nested[0]
	} else if err := json.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVector, err)
	}

	if len(values) != Dim {
		return nil, fmt.Errorf("%w: length %d, want %d", ErrInvalidVector, len(values), Dim)
	}
	return Vector(values), nil
}

// PGVectorCodec stores an embedding in pgvector's text form "[1,2,3]".
// Values round-trip at float32 precision.
type PGVectorCodec struct{}

func (PGVectorCodec) Name() string { return CodecPGVector }

func (PGVectorCodec) Encode(v Vector) (string, error) {
	if err := checkEncodable(v); err != nil {
		return "", err
	}
	val, err := pgvector.NewVector(v.Float32()).Value()
	if err != nil {
		return "", fmt.Errorf("encode pgvector: %w", err)
	}
	s, ok := val.(string)
	if !ok {
		return "", fmt.Errorf("encode pgvector: unexpected value type %T", val)
	}
	return s, nil
}

func (PGVectorCodec) Decode(s string) (Vector, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("%w: empty input", ErrInvalidVector)
	}
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, fmt.Errorf("%w: not a pgvector literal", ErrInvalidVector)
	}
	var pv pgvector.Vector
	if err := pv.Scan(s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidVector, err)
	}
	values := pv.Slice()
	if len(values) != Dim {
		return nil, fmt.Errorf("%w: length %d, want %d", ErrInvalidVector, len(values), Dim)
	}
	return FromFloat32(values), nil
}

func checkEncodable(v Vector) error {
	if len(v) != Dim {
		return fmt.Errorf("%w: length %d, want %d", ErrInvalidVector, len(v), Dim)
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("%w: non-finite component at index %d", ErrInvalidVector, i)
		}
	}
	return nil
}

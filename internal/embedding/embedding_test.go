package embedding

import (
	"errors"
	"math"
	"math/rand/v2"
	"strings"
	"testing"
)

// randomVector returns a deterministic raw (unnormalized) vector.
func randomVector(seed uint64) Vector {
	r := rand.New(rand.NewPCG(seed, seed*31+7))
	v := make(Vector, Dim)
	for i := range v {
		v[i] = r.NormFloat64() * 3
	}
	return v
}

func mustNormalize(t *testing.T, v Vector) Vector {
	t.Helper()
	n, err := Normalize(v)
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	return n
}

func TestNormalize_UnitNorm(t *testing.T) {
	for seed := uint64(1); seed <= 50; seed++ {
		n := mustNormalize(t, randomVector(seed))
		if got := Norm(n); math.Abs(got-1) > NormTolerance {
			t.Errorf("seed %d: norm = %v, want 1 within %v", seed, got, NormTolerance)
		}
		if !IsNormalized(n) {
			t.Errorf("seed %d: IsNormalized = false", seed)
		}
	}
}

func TestNormalize_ExtremeMagnitudes(t *testing.T) {
	tests := []struct {
		name  string
		scale float64
	}{
		{"tiny", 1e-300},
		{"huge", 1e300},
		{"unit", 1},
		{"subnormal", 1e-315},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := randomVector(9)
			for i := range v {
				v[i] *= tt.scale
			}
			n := mustNormalize(t, v)
			if got := Norm(n); math.Abs(got-1) > NormTolerance {
				t.Errorf("norm = %v, want 1", got)
			}
		})
	}
}

func TestNormalize_SmallestSubnormal(t *testing.T) {
	v := make(Vector, Dim)
	for i := range v {
		v[i] = math.SmallestNonzeroFloat64
	}
	v[7] = -math.SmallestNonzeroFloat64

	n := mustNormalize(t, v)
	if got := Norm(n); math.Abs(got-1) > NormTolerance {
		t.Errorf("norm = %v, want 1", got)
	}
	want := 1 / math.Sqrt(Dim)
	if math.Abs(n[0]-want) > 1e-12 || math.Abs(n[7]+want) > 1e-12 {
		t.Errorf("components = %v, %v, want %v, %v", n[0], n[7], want, -want)
	}
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	v := randomVector(3)
	orig := v.Clone()
	mustNormalize(t, v)
	for i := range v {
		if v[i] != orig[i] {
			t.Fatalf("input modified at index %d", i)
		}
	}
}

func TestNormalize_Invalid(t *testing.T) {
	zero := make(Vector, Dim)

	withNaN := randomVector(4)
	withNaN[17] = math.NaN()

	withInf := randomVector(5)
	withInf[0] = math.Inf(-1)

	tests := []struct {
		name string
		v    Vector
	}{
		{"nil", nil},
		{"short", make(Vector, Dim-1)},
		{"long", append(randomVector(6), 1)},
		{"zero", zero},
		{"nan", withNaN},
		{"inf", withInf},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Normalize(tt.v)
			if !errors.Is(err, ErrInvalidVector) {
				t.Errorf("Normalize() error = %v, want ErrInvalidVector", err)
			}
		})
	}
}

func TestNormalizeAny_ArbitraryLength(t *testing.T) {
	n, err := NormalizeAny(Vector{3, 4})
	if err != nil {
		t.Fatalf("NormalizeAny: %v", err)
	}
	if math.Abs(n[0]-0.6) > 1e-12 || math.Abs(n[1]-0.8) > 1e-12 {
		t.Errorf("NormalizeAny({3,4}) = %v, want [0.6 0.8]", n)
	}
}

func TestScore_SelfIsOne(t *testing.T) {
	for seed := uint64(1); seed <= 20; seed++ {
		n := mustNormalize(t, randomVector(seed))
		s, err := Score(n, n)
		if err != nil {
			t.Fatalf("Score: %v", err)
		}
		if math.Abs(s-1) > 1e-6 {
			t.Errorf("seed %d: Score(v, v) = %v, want 1", seed, s)
		}
	}
}

func TestScore_SymmetricAndClamped(t *testing.T) {
	for seed := uint64(1); seed <= 30; seed++ {
		a := mustNormalize(t, randomVector(seed))
		b := mustNormalize(t, randomVector(seed+1000))

		ab, err := Score(a, b)
		if err != nil {
			t.Fatalf("Score: %v", err)
		}
		ba, err := Score(b, a)
		if err != nil {
			t.Fatalf("Score: %v", err)
		}
		if ab != ba {
			t.Errorf("seed %d: Score not symmetric: %v vs %v", seed, ab, ba)
		}
		if ab < 0 || ab > 1 {
			t.Errorf("seed %d: Score = %v, out of [0,1]", seed, ab)
		}
	}
}

func TestScore_NegativeClampedToZero(t *testing.T) {
	a := mustNormalize(t, randomVector(11))
	neg := make(Vector, len(a))
	for i := range a {
		neg[i] = -a[i]
	}
	s, err := Score(a, neg)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if s != 0 {
		t.Errorf("Score(v, -v) = %v, want 0", s)
	}
}

func TestScore_AboveOneCapped(t *testing.T) {
	a := mustNormalize(t, randomVector(12))
	inflated := make(Vector, len(a))
	for i := range a {
		inflated[i] = a[i] * (1 + 1e-9)
	}
	s, err := Score(a, inflated)
	if err != nil {
		t.Fatalf("Score: %v", err)
	}
	if s != 1 {
		t.Errorf("Score = %v, want exactly 1", s)
	}
}

func TestScore_DimensionMismatch(t *testing.T) {
	a := mustNormalize(t, randomVector(1))
	_, err := Score(a, a[:Dim-1])
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Errorf("Score() error = %v, want ErrDimensionMismatch", err)
	}
}

func TestCosineDistance(t *testing.T) {
	a := mustNormalize(t, randomVector(2))
	d, err := CosineDistance(a, a)
	if err != nil {
		t.Fatalf("CosineDistance: %v", err)
	}
	if d > 1e-6 {
		t.Errorf("CosineDistance(v, v) = %v, want 0", d)
	}
}

func TestFloat32RoundTrip(t *testing.T) {
	v := Vector{0.5, -0.25, 1}
	got := FromFloat32(v.Float32())
	for i := range v {
		if got[i] != v[i] {
			t.Errorf("index %d: got %v, want %v", i, got[i], v[i])
		}
	}
}

func TestJSONCodec_RoundTrip(t *testing.T) {
	v := mustNormalize(t, randomVector(21))
	c := JSONCodec{}

	s, err := c.Encode(v)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		t.Errorf("Encode() = %q..., want a JSON array", s[:10])
	}

	got, err := c.Decode(s)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for i := range v {
		if got[i] != v[i] {
			t.Fatalf("index %d: got %v, want %v", i, got[i], v[i])
		}
	}
}

func TestJSONCodec_DecodeListOfLists(t *testing.T) {
	v := mustNormalize(t, randomVector(22))
	s, err := JSONCodec{}.Encode(v)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	got, err := JSONCodec{}.Decode("  [" + s + "]\n")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != Dim {
		t.Errorf("len = %d, want %d", len(got), Dim)
	}
}

func TestJSONCodec_DecodeInvalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"null", "null"},
		{"object", `{"a": 1}`},
		{"strings", `["a", "b"]`},
		{"short", "[1, 2, 3]"},
		{"truncated", "[0.1, 0.2"},
		{"two lists", "[[1],[2]]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := JSONCodec{}.Decode(tt.input)
			if !errors.Is(err, ErrInvalidVector) {
				t.Errorf("Decode(%q) error = %v, want ErrInvalidVector", tt.input, err)
			}
		})
	}
}

func TestJSONCodec_EncodeInvalid(t *testing.T) {
	v := randomVector(1)
	v[3] = math.Inf(1)
	if _, err := (JSONCodec{}).Encode(v); !errors.Is(err, ErrInvalidVector) {
		t.Errorf("Encode(inf) error = %v, want ErrInvalidVector", err)
	}
	if _, err := (JSONCodec{}).Encode(Vector{1}); !errors.Is(err, ErrInvalidVector) {
		t.Errorf("Encode(short) error = %v, want ErrInvalidVector", err)
	}
}

func TestPGVectorCodec_RoundTrip(t *testing.T) {
	v := mustNormalize(t, randomVector(23))
	c := PGVectorCodec{}

	s, err := c.Encode(v)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := c.Decode(s)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	for i := range v {
		if math.Abs(got[i]-v[i]) > 1e-6 {
			t.Fatalf("index %d: got %v, want %v", i, got[i], v[i])
		}
	}
}

func TestPGVectorCodec_DecodeInvalid(t *testing.T) {
	for _, input := range []string{"", "x", "[]", "[1,2,3]", "1,2,3", "[a,b]"} {
		if _, err := (PGVectorCodec{}).Decode(input); !errors.Is(err, ErrInvalidVector) {
			t.Errorf("Decode(%q) error = %v, want ErrInvalidVector", input, err)
		}
	}
}

func TestCodecByName(t *testing.T) {
	tests := []struct {
		name    string
		want    string
		wantErr bool
	}{
		{"", CodecJSON, false},
		{"json", CodecJSON, false},
		{" PGVector ", CodecPGVector, false},
		{"msgpack", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := CodecByName(tt.name)
			if tt.wantErr {
				if err == nil {
					t.Error("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("CodecByName: %v", err)
			}
			if c.Name() != tt.want {
				t.Errorf("Name() = %q, want %q", c.Name(), tt.want)
			}
		})
	}
}

package sqltype

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Kinds(t *testing.T) {
	tests := []struct {
		input string
		kind  Kind
	}{
		{"INT", Int},
		{"bigint", Int},
		{"tinyint(1)", Int},
		{"DOUBLE", Float},
		{"decimal(10,2)", Decimal},
		{"NUMERIC", Decimal},
		{"BOOLEAN", Bool},
		{"VARBINARY(16)", Bytes},
		{"DATETIME", Time},
		{"varchar(80)", String},
		{"ENUM", String},
		{"GEOMETRY", String},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.kind, got.Kind)
		})
	}
}

func TestParse_Modifiers(t *testing.T) {
	vc, err := Parse("VARCHAR(80)")
	require.NoError(t, err)
	assert.Equal(t, 80, vc.Length)

	dec, err := Parse("DECIMAL(10, 2)")
	require.NoError(t, err)
	assert.Equal(t, 10, dec.Precision)
	assert.Equal(t, 2, dec.Scale)
	assert.Equal(t, 0, dec.Length)
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse("VARCHAR(abc)")
	assert.Error(t, err)

	_, err = Parse("VARCHAR)80(")
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "abc", Normalize(String, []byte("abc")))
	assert.Equal(t, int64(42), Normalize(Int, []byte("42")))
	assert.Equal(t, 150.0, Normalize(Decimal, []byte("150.00")))
	assert.Equal(t, true, Normalize(Bool, []byte("1")))
	assert.Equal(t, []byte{0x01, 0x02}, Normalize(Bytes, []byte{0x01, 0x02}))
	assert.Equal(t, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC), Normalize(Time, []byte("2024-01-02 03:04:05")))

	// Values the driver already converted pass through.
	assert.Equal(t, int64(7), Normalize(Int, int64(7)))
	assert.Nil(t, Normalize(String, nil))

	// Unparseable numerics fall back to string.
	assert.Equal(t, "n/a", Normalize(Int, []byte("n/a")))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "decimal", Decimal.String())
	assert.Equal(t, "entity", Entity.String())
	assert.Equal(t, "string", String.String())
}

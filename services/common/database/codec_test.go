package database

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type priced struct {
	Price decimal.Decimal `bson:"price"`
}

func TestDecimalCodec_RoundTrip(t *testing.T) {
	reg := NewRegistry()

	raw, err := bson.MarshalWithRegistry(reg, priced{Price: decimal.RequireFromString("19.99")})
	require.NoError(t, err)

	var generic bson.M
	require.NoError(t, bson.Unmarshal(raw, &generic))
	_, isDecimal128 := generic["price"].(primitive.Decimal128)
	assert.True(t, isDecimal128, "stored as Decimal128, got %T", generic["price"])

	var out priced
	require.NoError(t, bson.UnmarshalWithRegistry(reg, raw, &out))
	assert.True(t, out.Price.Equal(decimal.RequireFromString("19.99")), out.Price.String())
}

func TestDecimalCodec_DecodesForeignNumbers(t *testing.T) {
	reg := NewRegistry()
	cases := map[string]any{
		"double": 10.5,
		"int32":  int32(10),
		"int64":  int64(10),
		"string": "10",
	}
	want := map[string]decimal.Decimal{
		"double": decimal.RequireFromString("10.5"),
		"int32":  decimal.NewFromInt(10),
		"int64":  decimal.NewFromInt(10),
		"string": decimal.NewFromInt(10),
	}

	for name, v := range cases {
		t.Run(name, func(t *testing.T) {
			raw, err := bson.Marshal(bson.M{"price": v})
			require.NoError(t, err)

			var out priced
			require.NoError(t, bson.UnmarshalWithRegistry(reg, raw, &out))
			assert.True(t, out.Price.Equal(want[name]), out.Price.String())
		})
	}
}

func TestDecimalCodec_RejectsUnsupported(t *testing.T) {
	raw, err := bson.Marshal(bson.M{"price": true})
	require.NoError(t, err)

	var out priced
	assert.Error(t, bson.UnmarshalWithRegistry(NewRegistry(), raw, &out))
}

package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() ProcessSnapshot {
	return ProcessSnapshot{
		UserID:       5,
		ContainerID:  1,
		WasteTypeID:  2,
		TotalLb:      40,
		FillPercent:  50,
		CostRecordID: 9,
		CostPerLb:    2.5,
		TotalCost:    100,
		CostSource:   "contenedor",
		ReadingID:    33,
		ReadingValue: 40,
		ReadingAt:    time.Now().Truncate(time.Second),
	}
}

func TestProcessTokenRoundTrip(t *testing.T) {
	codec := NewProcessTokenCodec("secret", 15*time.Minute)

	token, err := codec.Encode(sampleSnapshot())
	require.NoError(t, err)

	decoded, err := codec.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, 5, decoded.UserID)
	assert.Equal(t, 40.0, decoded.TotalLb)
	assert.Equal(t, 2.5, decoded.CostPerLb)
	assert.Equal(t, 100.0, decoded.TotalCost)
	assert.Equal(t, 9, decoded.CostRecordID)
	assert.Equal(t, 33, decoded.ReadingID)
}

func TestProcessTokenWrongSecret(t *testing.T) {
	token, err := NewProcessTokenCodec("secret", time.Minute).Encode(sampleSnapshot())
	require.NoError(t, err)

	_, err = NewProcessTokenCodec("other", time.Minute).Decode(token)
	assert.ErrorIs(t, err, ErrProcessTokenInvalid)
}

func TestProcessTokenExpired(t *testing.T) {
	codec := NewProcessTokenCodec("secret", -time.Minute)

	token, err := codec.Encode(sampleSnapshot())
	require.NoError(t, err)

	_, err = codec.Decode(token)
	assert.ErrorIs(t, err, ErrProcessTokenInvalid)
}

func TestProcessTokenTampered(t *testing.T) {
	codec := NewProcessTokenCodec("secret", time.Minute)

	token, err := codec.Encode(sampleSnapshot())
	require.NoError(t, err)

	_, err = codec.Decode(token + "x")
	assert.ErrorIs(t, err, ErrProcessTokenInvalid)
}

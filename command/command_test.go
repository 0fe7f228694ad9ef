package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode_Order(t *testing.T) {
	t.Parallel()

	raw := []byte(`{"type":"ORDER","action":"BUY","symbol":"GOLD","multiplier":1.5,
		"atr":3.2,"reason":"confluence","ai_confidence":82,"ai_reason":"aligned"}`)

	cmd, err := Decode(raw)
	require.NoError(t, err)

	assert.Equal(t, KindOrder, cmd.Kind)
	assert.Equal(t, "GOLD", cmd.Symbol)
	require.NotNil(t, cmd.Order)
	assert.Equal(t, "BUY", cmd.Order.Action)
	assert.InDelta(t, 1.5, cmd.Order.Multiplier, 1e-9)
	assert.InDelta(t, 3.2, cmd.Order.ATR, 1e-9)
	assert.Equal(t, "confluence", cmd.Order.Reason)
	require.NotNil(t, cmd.Order.AIConfidence)
	assert.Equal(t, 82, *cmd.Order.AIConfidence)
}

func TestDecode_Kinds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want Kind
	}{
		{"hold", `{"type":"HOLD"}`, KindHold},
		{"hold lowercase", `{"type":"hold"}`, KindHold},
		{"close", `{"type":"CLOSE"}`, KindClose},
		{"deprecated close_signal is hold", `{"type":"CLOSE_SIGNAL"}`, KindHold},
		{"order minimal", `{"type":"ORDER","action":"SELL","multiplier":1}`, KindOrder},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cmd, err := Decode([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd.Kind)
		})
	}
}

func TestDecode_Failures(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"not json", "ORDER BUY"},
		{"missing type", `{"action":"BUY"}`},
		{"unknown type", `{"type":"REBALANCE"}`},
		{"truncated", `{"type":"ORDER","action"`},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode([]byte(tt.raw))
			require.Error(t, err)
			var de *DecodeError
			assert.ErrorAs(t, err, &de)
		})
	}
}

func TestDecode_ModesOnAnyKind(t *testing.T) {
	t.Parallel()

	cmd, err := Decode([]byte(`{"type":"HOLD","trail_mode":"WIDE","tp_mode":"tight"}`))
	require.NoError(t, err)
	require.NotNil(t, cmd.TrailMode)
	require.NotNil(t, cmd.TPMode)
	assert.Equal(t, ModeWide, *cmd.TrailMode)
	assert.Equal(t, ModeTight, *cmd.TPMode)

	// Unknown mode strings leave the pointer nil rather than failing decode.
	cmd, err = Decode([]byte(`{"type":"CLOSE","trail_mode":"EXTREME"}`))
	require.NoError(t, err)
	assert.Nil(t, cmd.TrailMode)
}

func TestModeMultipliers(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0, ModeNormal.TrailMult(), 1e-9)
	assert.InDelta(t, 1.5, ModeWide.TrailMult(), 1e-9)
	assert.InDelta(t, 0.7, ModeTight.TrailMult(), 1e-9)

	assert.InDelta(t, 1.0, ModeNormal.TPMult(), 1e-9)
	assert.InDelta(t, 1.5, ModeWide.TPMult(), 1e-9)
	assert.InDelta(t, 0.6, ModeTight.TPMult(), 1e-9)
}

package sim_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeongseonghan/modulation-studio/internal/modem"
	"github.com/jeongseonghan/modulation-studio/internal/preset"
	"github.com/jeongseonghan/modulation-studio/internal/sim"
)

func seeded(c preset.Controls, seed uint32) preset.Controls {
	c.Deterministic = true
	c.Seed = seed
	return c
}

func TestRun_AnalogScenario(t *testing.T) {
	c, err := preset.Scenario("cleanAnalog")
	require.NoError(t, err)

	r, err := sim.Run(context.Background(), seeded(c, 7))
	require.NoError(t, err)

	assert.Len(t, r.Time, 640)
	assert.Equal(t, modem.AMDSBLC, r.Primary.Scheme.ID)
	assert.False(t, r.Primary.Metrics.Digital)
	assert.Greater(t, r.Primary.Metrics.Correlation, 0.5)
	assert.Len(t, r.Primary.Spectrum.Freq, 256)
	assert.Nil(t, r.Compare)
	assert.Equal(t, "Comparison disabled", r.CompareText())
	assert.True(t, strings.HasSuffix(r.PrimaryText(), " | Seed: 7"), r.PrimaryText())
}

func TestRun_DeterministicIsReproducible(t *testing.T) {
	c, err := preset.Scenario("offsetQpsk")
	require.NoError(t, err)
	c = seeded(c, 12345)

	a, err := sim.Run(context.Background(), c)
	require.NoError(t, err)
	b, err := sim.Run(context.Background(), c)
	require.NoError(t, err)

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, a.Primary.Metrics.Fingerprint, b.Primary.Metrics.Fingerprint)
	require.NotNil(t, a.Compare)
	require.NotNil(t, b.Compare)
	assert.Equal(t, a.Compare.Metrics.Fingerprint, b.Compare.Metrics.Fingerprint)
	assert.Equal(t, a.Primary.Result.RxSignal, b.Primary.Result.RxSignal)

	c.Seed++
	d, err := sim.Run(context.Background(), c)
	require.NoError(t, err)
	assert.NotEqual(t, a.Primary.Metrics.Fingerprint, d.Primary.Metrics.Fingerprint)
}

func TestRun_SharedBitPool(t *testing.T) {
	c, err := preset.Scenario("noisyBpsk")
	require.NoError(t, err)
	c.SNRdB = 40
	r, err := sim.Run(context.Background(), seeded(c, 99))
	require.NoError(t, err)
	require.NotNil(t, r.Compare)
	assert.Equal(t, modem.QPSK, r.Compare.Scheme.ID)

	tx1, tx2 := r.Primary.Result.TxBits, r.Compare.Result.TxBits
	n := min(len(tx1), len(tx2))
	require.Greater(t, n, 16)
	assert.Equal(t, tx1[:n], tx2[:n])
	assert.True(t, r.Compare.Metrics.Digital)
}

func TestRun_MixedFamilies(t *testing.T) {
	c := preset.Defaults()
	c.Scheme = modem.PM
	c.CompareMode = true
	c.CompareScheme = modem.FSK
	r, err := sim.Run(context.Background(), c)
	require.NoError(t, err)

	assert.Nil(t, r.Seed)
	assert.False(t, r.Primary.Metrics.Digital)
	require.NotNil(t, r.Compare)
	assert.True(t, r.Compare.Metrics.Digital)
	assert.Equal(t, len(r.Compare.Result.TxBits), len(r.Compare.Result.RxBits))
	assert.Equal(t, len(r.Time), len(r.Compare.Result.RxSignal))
}

func TestRun_Errors(t *testing.T) {
	c := preset.Defaults()
	c.Scheme = "ofdm"
	_, err := sim.Run(context.Background(), c)
	assert.ErrorIs(t, err, modem.ErrUnsupportedScheme)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = sim.Run(ctx, preset.Defaults())
	assert.ErrorIs(t, err, context.Canceled)
}

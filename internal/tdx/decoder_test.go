package tdx

import (
	"bytes"
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantmill/tdxscan/internal/contracts"
)

func encodeCN(t *testing.T, recs ...cnRecord) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, r := range recs {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, r))
	}
	return buf.Bytes()
}

func encodeUS(t *testing.T, recs ...usRecord) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, r := range recs {
		require.NoError(t, binary.Write(&buf, binary.LittleEndian, r))
	}
	return buf.Bytes()
}

func TestDecode_CNScaling(t *testing.T) {
	data := encodeCN(t, cnRecord{
		Date:   20250306,
		Open:   1234,  // 12.34
		High:   1300,  // 13.00
		Low:    1201,  // 12.01
		Close:  1299,  // 12.99
		Amount: 4.5e8,
		Volume: 1_000_000,
	})

	bars, err := NewDecoder().Decode(data, "sh600000.day", contracts.MarketCN)
	require.NoError(t, err)
	require.Len(t, bars, 1)

	bar := bars[0]
	assert.Equal(t, time.Date(2025, 3, 6, 0, 0, 0, 0, time.UTC), bar.Date)
	assert.InDelta(t, 12.34, bar.Open, 1e-9)
	assert.InDelta(t, 13.00, bar.High, 1e-9)
	assert.InDelta(t, 12.01, bar.Low, 1e-9)
	assert.InDelta(t, 12.99, bar.Close, 1e-9)
	assert.Equal(t, uint64(1_000_000), bar.Volume)
	assert.InDelta(t, 4.5e8, bar.Amount, 1)
}

// Scaled CN prices must round-trip to fixed point within one cent.
func TestDecode_CNRoundTrip(t *testing.T) {
	raws := []uint32{1, 99, 100, 12345, 987654, 4294967}
	dates := recsDates(len(raws))
	recs := make([]cnRecord, len(raws))
	for i, raw := range raws {
		recs[i] = cnRecord{Date: dates[i], Open: raw, High: raw, Low: raw, Close: raw, Volume: 1}
	}

	bars, err := NewDecoder().Decode(encodeCN(t, recs...), "sh600000.day", contracts.MarketCN)
	require.NoError(t, err)
	require.Len(t, bars, len(raws))

	for i, bar := range bars {
		back := math.Round(bar.Close * 100)
		assert.InDelta(t, float64(raws[i]), back, 1, "raw %d", raws[i])
	}
}

// recsDates returns n distinct ascending YYYYMMDD values.
func recsDates(n int) []uint32 {
	out := make([]uint32, n)
	for i := range out {
		out[i] = uint32(20250101 + i)
	}
	return out
}

func TestDecode_USNoRescale(t *testing.T) {
	data := encodeUS(t, usRecord{
		Date:   20250306,
		Open:   189.5,
		High:   191.25,
		Low:    188.0,
		Close:  190.75,
		Amount: 3.2e9,
		Volume: 55_000_000,
	})

	bars, err := NewDecoder().Decode(data, "74#AAPL.day", contracts.MarketUS)
	require.NoError(t, err)
	require.Len(t, bars, 1)

	bar := bars[0]
	// US prices decode to exactly the stored float32 value.
	assert.Equal(t, float64(float32(189.5)), bar.Open)
	assert.Equal(t, float64(float32(191.25)), bar.High)
	assert.Equal(t, float64(float32(188.0)), bar.Low)
	assert.Equal(t, float64(float32(190.75)), bar.Close)
	assert.Equal(t, uint64(55_000_000), bar.Volume)
}

func TestDecode_SortsAscending(t *testing.T) {
	data := encodeCN(t,
		cnRecord{Date: 20250310, Close: 1100, Volume: 1},
		cnRecord{Date: 20250306, Close: 1000, Volume: 1},
		cnRecord{Date: 20250307, Close: 1050, Volume: 1},
	)

	bars, err := NewDecoder().Decode(data, "sh600000.day", contracts.MarketCN)
	require.NoError(t, err)
	require.Len(t, bars, 3)

	assert.True(t, bars[0].Date.Before(bars[1].Date))
	assert.True(t, bars[1].Date.Before(bars[2].Date))
	assert.InDelta(t, 10.0, bars[0].Close, 1e-9)
	assert.InDelta(t, 11.0, bars[2].Close, 1e-9)
}

func TestDecode_BadLength(t *testing.T) {
	data := make([]byte, RecordSize+7)

	_, err := NewDecoder().Decode(data, "sh600000.day", contracts.MarketCN)

	var formatErr *contracts.FormatError
	require.ErrorAs(t, err, &formatErr)
	assert.Contains(t, formatErr.Reason, "not a multiple")
}

func TestDecode_BadDateField(t *testing.T) {
	data := encodeCN(t, cnRecord{Date: 20251399, Close: 1000, Volume: 1})

	_, err := NewDecoder().Decode(data, "sh600000.day", contracts.MarketCN)

	var formatErr *contracts.FormatError
	assert.ErrorAs(t, err, &formatErr)
}

func TestDecode_EmptyFile(t *testing.T) {
	bars, err := NewDecoder().Decode(nil, "sh600000.day", contracts.MarketCN)
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestDecodeFile_NotFound(t *testing.T) {
	_, err := NewDecoder().DecodeFile(filepath.Join(t.TempDir(), "missing.day"), contracts.MarketCN)

	var notFound *contracts.NotFoundError
	assert.ErrorAs(t, err, &notFound)
}

func TestDecodeFile_ReadsFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sh600000.day")
	data := encodeCN(t, cnRecord{Date: 20250306, Open: 1000, High: 1010, Low: 990, Close: 1005, Volume: 7})
	require.NoError(t, os.WriteFile(path, data, 0o644))

	bars, err := NewDecoder().DecodeFile(path, contracts.MarketCN)
	require.NoError(t, err)
	require.Len(t, bars, 1)
	assert.InDelta(t, 10.05, bars[0].Close, 1e-9)
}

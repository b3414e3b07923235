package tdx

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/quantmill/tdxscan/internal/contracts"
)

// RecordSize is the fixed width of one daily record in a .day file.
const RecordSize = 32

// cnRecord is the CN layout: fixed-point prices scaled by 100.
type cnRecord struct {
	Date     uint32
	Open     uint32
	High     uint32
	Low      uint32
	Close    uint32
	Amount   float32
	Volume   uint32
	Reserved uint32
}

// usRecord is the US layout: prices stored directly as float32.
type usRecord struct {
	Date     uint32
	Open     float32
	High     float32
	Low      float32
	Close    float32
	Amount   float32
	Volume   uint32
	Reserved uint32
}

// Decoder parses TDX .day files into bar sequences.
type Decoder struct{}

// NewDecoder creates a new decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// DecodeFile reads every 32-byte record in path and returns the bars in
// ascending date order. The sort is applied unconditionally; file order is
// not trusted. Bars carry no ticker; the caller stamps it.
func (d *Decoder) DecodeFile(path string, market contracts.Market) ([]contracts.DailyBar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &contracts.NotFoundError{Path: path}
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return d.Decode(data, path, market)
}

// Decode parses raw file bytes. path is only used in error messages.
func (d *Decoder) Decode(data []byte, path string, market contracts.Market) ([]contracts.DailyBar, error) {
	if len(data)%RecordSize != 0 {
		return nil, &contracts.FormatError{
			Path:   path,
			Reason: fmt.Sprintf("file length %d is not a multiple of %d", len(data), RecordSize),
		}
	}

	n := len(data) / RecordSize
	bars := make([]contracts.DailyBar, 0, n)
	reader := bytes.NewReader(data)

	for i := 0; i < n; i++ {
		var bar contracts.DailyBar
		var rawDate uint32

		switch market {
		case contracts.MarketUS:
			var rec usRecord
			if err := binary.Read(reader, binary.LittleEndian, &rec); err != nil {
				return nil, &contracts.FormatError{Path: path, Reason: err.Error()}
			}
			rawDate = rec.Date
			bar.Open = float64(rec.Open)
			bar.High = float64(rec.High)
			bar.Low = float64(rec.Low)
			bar.Close = float64(rec.Close)
			bar.Amount = float64(rec.Amount)
			bar.Volume = uint64(rec.Volume)
		default:
			var rec cnRecord
			if err := binary.Read(reader, binary.LittleEndian, &rec); err != nil {
				return nil, &contracts.FormatError{Path: path, Reason: err.Error()}
			}
			rawDate = rec.Date
			bar.Open = float64(rec.Open) / 100.0
			bar.High = float64(rec.High) / 100.0
			bar.Low = float64(rec.Low) / 100.0
			bar.Close = float64(rec.Close) / 100.0
			bar.Amount = float64(rec.Amount)
			bar.Volume = uint64(rec.Volume)
		}

		date, err := parseDate(rawDate)
		if err != nil {
			return nil, &contracts.FormatError{
				Path:   path,
				Reason: fmt.Sprintf("record %d: %v", i, err),
			}
		}
		bar.Date = date

		bars = append(bars, bar)
	}

	sort.SliceStable(bars, func(i, j int) bool {
		return bars[i].Date.Before(bars[j].Date)
	})

	return bars, nil
}

// parseDate converts a YYYYMMDD integer into a calendar date.
func parseDate(raw uint32) (time.Time, error) {
	year := int(raw / 10000)
	month := int(raw % 10000 / 100)
	day := int(raw % 100)

	if year < 1900 || year > 2200 || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("date field %d out of range", raw)
	}

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}

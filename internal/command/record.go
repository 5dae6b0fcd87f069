// Package command holds the command record exchanged between the camera and
// robot processes, the gesture-to-record mapping, and the send policy.
package command

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ayusman/robowave/internal/gesture"
)

// Motion names understood by the receiver.
const (
	NameReset     = "reset"
	NameWaveServo = "wave_servo"
)

// Directions carried by wave records.
const (
	DirectionNone  = ""
	DirectionLeft  = "left"
	DirectionRight = "right"
	DirectionBoth  = "both"
)

var (
	// ErrEmptyRecord is returned when the document has no content.
	ErrEmptyRecord = errors.New("empty record")
	// ErrMalformedRecord is returned when the document cannot be decoded.
	ErrMalformedRecord = errors.New("malformed record")
)

// Record is the single-slot command document.
type Record struct {
	Name          string  `json:"name"`
	Direction     string  `json:"direction"`
	TimestampSent float64 `json:"timestamp_sent"`
}

// Encode renders the record as indented JSON.
func (r Record) Encode() ([]byte, error) {
	return json.MarshalIndent(r, "", "    ")
}

// Sent returns the send timestamp as a time.
func (r Record) Sent() time.Time {
	return FromSeconds(r.TimestampSent)
}

// ParseRecord decodes a command document.
func ParseRecord(data []byte) (Record, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return Record{}, ErrEmptyRecord
	}

	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	return r, nil
}

// Seconds converts t to fractional seconds since the Unix epoch.
func Seconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

// FromSeconds converts fractional Unix seconds back to a time.
func FromSeconds(s float64) time.Time {
	return time.Unix(0, int64(s*1e9))
}

type mapping struct {
	name      string
	direction string
}

var table = map[gesture.Symbol]mapping{
	gesture.Reset:     {name: NameReset, direction: DirectionNone},
	gesture.WaveLeft:  {name: NameWaveServo, direction: DirectionLeft},
	gesture.WaveRight: {name: NameWaveServo, direction: DirectionRight},
	gesture.WaveBoth:  {name: NameWaveServo, direction: DirectionBoth},
}

// Lookup returns the record name and direction for a gesture.
func Lookup(sym gesture.Symbol) (name, direction string, ok bool) {
	m, ok := table[sym]
	return m.name, m.direction, ok
}

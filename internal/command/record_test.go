package command

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ayusman/robowave/internal/gesture"
)

func TestParseRecord(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    Record
		wantErr error
	}{
		{
			name: "wave record",
			data: `{"name": "wave_servo", "direction": "both", "timestamp_sent": 5.0}`,
			want: Record{Name: NameWaveServo, Direction: DirectionBoth, TimestampSent: 5.0},
		},
		{
			name: "missing fields default",
			data: `{"name": "reset"}`,
			want: Record{Name: NameReset},
		},
		{name: "empty", data: "", wantErr: ErrEmptyRecord},
		{name: "whitespace", data: " \n\t", wantErr: ErrEmptyRecord},
		{name: "partial write", data: `{"name": "wave_se`, wantErr: ErrMalformedRecord},
		{name: "wrong type", data: `{"timestamp_sent": "soon"}`, wantErr: ErrMalformedRecord},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRecord([]byte(tt.data))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseRecord() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRecord() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseRecord() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestLookup(t *testing.T) {
	tests := []struct {
		sym       gesture.Symbol
		name      string
		direction string
	}{
		{gesture.Reset, "reset", ""},
		{gesture.WaveLeft, "wave_servo", "left"},
		{gesture.WaveRight, "wave_servo", "right"},
		{gesture.WaveBoth, "wave_servo", "both"},
	}

	for _, tt := range tests {
		t.Run(string(tt.sym), func(t *testing.T) {
			name, direction, ok := Lookup(tt.sym)
			if !ok {
				t.Fatalf("Lookup(%v) not found", tt.sym)
			}
			if name != tt.name || direction != tt.direction {
				t.Errorf("Lookup(%v) = (%q, %q), want (%q, %q)", tt.sym, name, direction, tt.name, tt.direction)
			}
		})
	}

	if _, _, ok := Lookup(gesture.None); ok {
		t.Error("Lookup(None) should not be found")
	}
}

func TestSeconds_RoundTrip(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 123456000, time.UTC)
	back := FromSeconds(Seconds(now))

	if diff := math.Abs(float64(back.Sub(now))); diff > float64(time.Microsecond) {
		t.Errorf("round trip drifted by %v", time.Duration(diff))
	}
}

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ayusman/robowave/internal/command"
	"github.com/ayusman/robowave/internal/gesture"
)

type fakeTrigger struct {
	got    []gesture.Symbol
	result command.Dispatch
}

func (f *fakeTrigger) Trigger(ctx context.Context, sym gesture.Symbol, now time.Time) command.Dispatch {
	f.got = append(f.got, sym)
	return f.result
}

func (f *fakeTrigger) Now() time.Time { return time.Unix(100, 0) }

func TestCommandHandler(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		body       string
		result     command.Dispatch
		wantStatus int
		wantCalls  int
	}{
		{
			name:       "sent",
			method:     http.MethodPost,
			body:       `{"gesture":"WAVE_LEFT"}`,
			result:     command.Dispatch{Outcome: command.Sent, Record: command.Record{Name: "wave_servo", Direction: "left", TimestampSent: 100}},
			wantStatus: http.StatusAccepted,
			wantCalls:  1,
		},
		{
			name:       "sent with delivery error",
			method:     http.MethodPost,
			body:       `{"gesture":"RESET"}`,
			result:     command.Dispatch{Outcome: command.Sent, Err: errors.New("deliver record: timeout")},
			wantStatus: http.StatusAccepted,
			wantCalls:  1,
		},
		{
			name:       "cooldown",
			method:     http.MethodPost,
			body:       `{"gesture":"WAVE_BOTH"}`,
			result:     command.Dispatch{Outcome: command.Cooldown},
			wantStatus: http.StatusTooManyRequests,
			wantCalls:  1,
		},
		{
			name:       "local write failed",
			method:     http.MethodPost,
			body:       `{"gesture":"WAVE_RIGHT"}`,
			result:     command.Dispatch{Outcome: command.Failed, Err: errors.New("persist record")},
			wantStatus: http.StatusInternalServerError,
			wantCalls:  1,
		},
		{
			name:       "unknown gesture",
			method:     http.MethodPost,
			body:       `{"gesture":"JUMP"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "invalid json",
			method:     http.MethodPost,
			body:       `{`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "wrong method",
			method:     http.MethodGet,
			wantStatus: http.StatusMethodNotAllowed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trig := &fakeTrigger{result: tt.result}
			h := NewCommandHandler(trig)

			req := httptest.NewRequest(tt.method, "/api/commands", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if len(trig.got) != tt.wantCalls {
				t.Errorf("trigger calls = %d, want %d", len(trig.got), tt.wantCalls)
			}
		})
	}
}

func TestCommandHandler_ResponseBody(t *testing.T) {
	trig := &fakeTrigger{result: command.Dispatch{
		Outcome: command.Sent,
		Record:  command.Record{Name: "wave_servo", Direction: "both", TimestampSent: 5},
	}}
	h := NewCommandHandler(trig)

	req := httptest.NewRequest(http.MethodPost, "/api/commands", strings.NewReader(`{"gesture":"WAVE_BOTH"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp commandResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Gesture != "WAVE_BOTH" || resp.Outcome != "sent" {
		t.Errorf("response = %+v", resp)
	}
	if resp.Record == nil || resp.Record.Direction != "both" {
		t.Errorf("record = %+v", resp.Record)
	}
	if trig.got[0] != gesture.WaveBoth {
		t.Errorf("triggered %v, want WAVE_BOTH", trig.got[0])
	}
}

package log

import (
	"testing"
	"time"

	"github.com/sensorlink/sensorlink-go/pkg/wire"
)

func TestEventCBORRoundTrip(t *testing.T) {
	ts := time.Date(2026, 1, 28, 10, 15, 32, 123456789, time.UTC)
	original := Event{
		Timestamp: ts,
		BindingID: "abc12345-def6-7890-abcd-ef1234567890",
		Direction: DirectionOut,
		Layer:     LayerDispatch,
		Category:  CategoryDispatch,
		Service:   "sensor_service_accel",
		Dispatch: &DispatchEvent{
			CmdID:       1,
			RequestSize: 18,
			ReplySize:   0,
			Status:      wire.StatusNotSupport,
			Duration:    1500 * time.Microsecond,
		},
	}

	data, err := EncodeEvent(original)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}

	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}

	if !decoded.Timestamp.Equal(original.Timestamp) {
		t.Errorf("Timestamp: got %v, want %v", decoded.Timestamp, original.Timestamp)
	}
	if decoded.BindingID != original.BindingID {
		t.Errorf("BindingID: got %q, want %q", decoded.BindingID, original.BindingID)
	}
	if decoded.Service != original.Service {
		t.Errorf("Service: got %q, want %q", decoded.Service, original.Service)
	}
	if decoded.Layer != LayerDispatch || decoded.Category != CategoryDispatch {
		t.Errorf("Layer/Category: got %v/%v", decoded.Layer, decoded.Category)
	}
	if decoded.Dispatch == nil {
		t.Fatal("Dispatch is nil")
	}
	if *decoded.Dispatch != *original.Dispatch {
		t.Errorf("Dispatch: got %+v, want %+v", *decoded.Dispatch, *original.Dispatch)
	}
}

func TestEventCBORNotifyAndState(t *testing.T) {
	events := []Event{
		{
			Timestamp: time.Now(),
			Direction: DirectionIn,
			Layer:     LayerEvent,
			Category:  CategoryNotify,
			Notify:    &NotifyEvent{EventID: 7, Size: 64, Listeners: 3, Failed: 1},
		},
		{
			Timestamp:   time.Now(),
			Layer:       LayerRegistry,
			Category:    CategoryState,
			StateChange: &StateChangeEvent{Entity: StateEntityManager, OldState: "DISCOVERING", NewState: "READY", Reason: "2 services"},
		},
	}

	for _, e := range events {
		data, err := EncodeEvent(e)
		if err != nil {
			t.Fatalf("EncodeEvent failed: %v", err)
		}
		decoded, err := DecodeEvent(data)
		if err != nil {
			t.Fatalf("DecodeEvent failed: %v", err)
		}
		switch {
		case e.Notify != nil:
			if decoded.Notify == nil || *decoded.Notify != *e.Notify {
				t.Errorf("Notify: got %+v, want %+v", decoded.Notify, e.Notify)
			}
		case e.StateChange != nil:
			if decoded.StateChange == nil || *decoded.StateChange != *e.StateChange {
				t.Errorf("StateChange: got %+v, want %+v", decoded.StateChange, e.StateChange)
			}
		}
	}
}

func TestEventCBORErrorCode(t *testing.T) {
	code := wire.StatusIO
	e := Event{
		Timestamp: time.Now(),
		Category:  CategoryError,
		Error:     &ErrorEventData{Layer: LayerRegistry, Message: "short record", Code: &code, Context: "get_info_list"},
	}

	data, err := EncodeEvent(e)
	if err != nil {
		t.Fatalf("EncodeEvent failed: %v", err)
	}
	decoded, err := DecodeEvent(data)
	if err != nil {
		t.Fatalf("DecodeEvent failed: %v", err)
	}
	if decoded.Error == nil || decoded.Error.Code == nil {
		t.Fatal("Error code lost in round trip")
	}
	if *decoded.Error.Code != wire.StatusIO {
		t.Errorf("Code = %s, want IO", *decoded.Error.Code)
	}
}

func TestDecodeEventRejectsGarbage(t *testing.T) {
	if _, err := DecodeEvent([]byte{0xff, 0x00, 0x13}); err == nil {
		t.Error("DecodeEvent should fail on malformed input")
	}
}

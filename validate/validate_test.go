package validate

import (
	"testing"

	"github.com/jonwraymond/toolgate/problem"
)

const tool = "get_carrier_status"

func TestOrderID(t *testing.T) {
	tests := []struct {
		name    string
		orderID string
		wantOK  bool
	}{
		{"valid short", "B456", true},
		{"valid long", "Z123456", true},
		{"lowercase letter", "b456", false},
		{"too many digits", "B4567890", false},
		{"too few digits", "B45", false},
		{"no letter", "4567", false},
		{"two letters", "BB456", false},
		{"empty", "", false},
		{"trailing garbage", "B456x", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := OrderID(tool, tt.orderID)
			if tt.wantOK && err != nil {
				t.Errorf("OrderID(%q) = %v, want nil", tt.orderID, err)
			}
			if !tt.wantOK {
				if err == nil {
					t.Fatalf("OrderID(%q) = nil, want validation error", tt.orderID)
				}
				if err.Kind() != problem.KindValidation {
					t.Errorf("error kind = %q, want %q", err.Kind(), problem.KindValidation)
				}
				if err.Status != 400 {
					t.Errorf("status = %d, want 400", err.Status)
				}
			}
		})
	}
}

func TestIdempotencyKey(t *testing.T) {
	tests := []struct {
		name   string
		key    string
		wantOK bool
	}{
		{"valid", "exp_B456_001", true},
		{"multiple words", "exp_rush_B456_001", true},
		{"missing sequence", "exp_B456", false},
		{"lowercase order segment", "exp_b456_001", false},
		{"digits in prefix", "exp1_B456_001", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := IdempotencyKey(tool, tt.key)
			if tt.wantOK && err != nil {
				t.Errorf("IdempotencyKey(%q) = %v, want nil", tt.key, err)
			}
			if !tt.wantOK && err == nil {
				t.Errorf("IdempotencyKey(%q) = nil, want validation error", tt.key)
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	tests := []struct {
		name      string
		requestID string
		wantOK    bool
	}{
		{"valid short", "req_abc123", true},
		{"valid long", "req_abcDEF123456", true},
		{"too short", "req_abc", false},
		{"too long", "req_abcdef1234567", false},
		{"wrong prefix", "rq_abc123", false},
		{"illegal characters", "req_abc-123", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := RequestID(tool, tt.requestID)
			if tt.wantOK && err != nil {
				t.Errorf("RequestID(%q) = %v, want nil", tt.requestID, err)
			}
			if !tt.wantOK && err == nil {
				t.Errorf("RequestID(%q) = nil, want validation error", tt.requestID)
			}
		})
	}
}

func TestEnum(t *testing.T) {
	allowed := []string{"standard", "express", "overnight"}

	if err := Enum(tool, "service_level", "express", allowed); err != nil {
		t.Errorf("Enum(express) = %v, want nil", err)
	}
	if err := Enum(tool, "service_level", "teleport", allowed); err == nil {
		t.Error("Enum(teleport) = nil, want validation error")
	}
}

func TestStringLength(t *testing.T) {
	if err := StringLength(tool, "note", "hello", 1, 10); err != nil {
		t.Errorf("StringLength in range = %v, want nil", err)
	}
	if err := StringLength(tool, "note", "", 1, 10); err == nil {
		t.Error("StringLength below min should fail")
	}
	if err := StringLength(tool, "note", "this is far too long", 1, 10); err == nil {
		t.Error("StringLength above max should fail")
	}
}

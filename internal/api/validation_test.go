package api

import "testing"

func boolPtr(b bool) *bool { return &b }

func TestValidateEngineControl(t *testing.T) {
	tests := []struct {
		name    string
		req     EngineControlRequest
		wantErr bool
	}{
		{"run only", EngineControlRequest{Run: boolPtr(true)}, false},
		{"pause only", EngineControlRequest{Pause: boolPtr(true)}, false},
		{"resume", EngineControlRequest{Pause: boolPtr(false)}, false},
		{"empty", EngineControlRequest{}, true},
		{"both", EngineControlRequest{Run: boolPtr(true), Pause: boolPtr(false)}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateEngineControl(tt.req)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateEngineControl() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateRecipient(t *testing.T) {
	tests := []struct {
		name    string
		addr    string
		wantErr bool
	}{
		{"plain address", "operator@truesoul.test", false},
		{"with display name", "Ops <operator@truesoul.test>", false},
		{"empty", "", true},
		{"no domain", "operator", true},
		{"spaces", "not an address", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateRecipient(tt.addr)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateRecipient(%q) error = %v, wantErr %v", tt.addr, err, tt.wantErr)
			}
		})
	}
}

func TestValidateStatusFilters(t *testing.T) {
	for _, status := range []string{"", "pending", "processing", "paused", "sent", "failed"} {
		if err := validateJobStatus(status); err != nil {
			t.Errorf("validateJobStatus(%q) = %v", status, err)
		}
	}
	if err := validateJobStatus("SENT"); err == nil {
		t.Error("job statuses are lowercase; SENT should be rejected")
	}

	for _, status := range []string{"", "SENT", "FAILED_TO_SEND", "FAILED_PREPARATION", "FAILED_VALIDATION"} {
		if err := validateTaskStatus(status); err != nil {
			t.Errorf("validateTaskStatus(%q) = %v", status, err)
		}
	}
	if err := validateTaskStatus("sent"); err == nil {
		t.Error("task statuses are uppercase; sent should be rejected")
	}
}

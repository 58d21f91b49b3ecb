package config

import (
	"errors"
	"os"
	"testing"

	"p600/tuner"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig([]byte(`{}`))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if *cfg != *DefaultConfig() {
		t.Errorf("empty JSON gave %+v", cfg)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	data := []byte(`{
		"Debug": true,
		"Tuner": {
			"MaxTimeouts": 3,
			"Filter": {"HighMarker": 8}
		},
		"Storage": {"Offset": 256}
	}`)

	cfg, err := LoadConfig(data)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	def := tuner.DefaultConfig()
	if !cfg.Debug || cfg.Tuner.MaxTimeouts != 3 || cfg.Tuner.Filter.HighMarker != 8 || cfg.Storage.Offset != 256 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	// untouched fields keep the stock values
	if cfg.Tuner.Filter.LowMarker != def.Filter.LowMarker || !cfg.Tuner.Filter.PeriodFallsWithCode {
		t.Errorf("filter defaults lost: %+v", cfg.Tuner.Filter)
	}
	if cfg.Tuner.Osc != def.Osc {
		t.Errorf("osc defaults lost: %+v", cfg.Tuner.Osc)
	}
}

func TestLoadConfigZeros(t *testing.T) {
	cfg, err := LoadConfig([]byte(`{"Tuner": {"PollBudget": 0, "TickRate": 0, "Osc": {"InitDivisor": 0}}, "Storage": {"Size": 0}}`))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	def := tuner.DefaultConfig()
	if cfg.Tuner.PollBudget != def.PollBudget || cfg.Tuner.TickRate != def.TickRate {
		t.Errorf("zeros not defaulted: %+v", cfg.Tuner)
	}
	if cfg.Tuner.Osc.InitDivisor != def.Osc.InitDivisor || cfg.Storage.Size != 4096 {
		t.Errorf("zeros not defaulted: %+v %+v", cfg.Tuner.Osc, cfg.Storage)
	}
}

func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{"markers", `{"Tuner": {"Osc": {"LowMarker": 6, "HighMarker": 4}}}`, tuner.ErrBadMarkers},
		{"search bits", `{"Tuner": {"SearchBits": 17}}`, tuner.ErrBadSearch},
		{"negative budget", `{"Tuner": {"MaxTimeouts": -1}}`, tuner.ErrBadBudget},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig([]byte(tt.data))
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("LoadConfig = %v, want %v", err, tt.wantErr)
			}
		})
	}

	t.Run("syntax", func(t *testing.T) {
		if _, err := LoadConfig([]byte(`{"Tuner": `)); err == nil {
			t.Error("malformed JSON accepted")
		}
	})
}

func TestLoadBoardConfig(t *testing.T) {
	data, err := os.ReadFile("../../targets/rp2040/config.json")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	cfg, err := LoadConfig(data)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if *cfg != *DefaultConfig() {
		t.Errorf("board config differs from the stock one: %+v", cfg)
	}
}

package tuning

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaultsWithoutFile(t *testing.T) {
	got, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.StartingBalance != 1_000_000 || got.Store.OrdinarySlots != 6 || got.Store.BigSlots != 3 {
		t.Fatalf("defaults=%+v", got)
	}
	if got.PassiveIncomePeriod != 20*time.Second || got.Curse.RiskOneIn != 3 {
		t.Fatalf("defaults=%+v", got)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	doc := "starting_balance: 500\nstore:\n  big_stock_slots: 1\nsave_every: 30s\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.StartingBalance != 500 || got.Store.BigSlots != 1 || got.SaveEvery != 30*time.Second {
		t.Fatalf("tuning=%+v", got)
	}
	if got.Store.OrdinarySlots != 6 {
		t.Fatalf("unset field lost its default: %d", got.Store.OrdinarySlots)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("PROCOIN_SAVE_EVERY", "2m")
	t.Setenv("PROCOIN_CURSE_RISK_ONE_IN", "5")
	t.Setenv("PROCOIN_STORE_BIG_SLOTS", "2")
	got, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.SaveEvery != 2*time.Minute || got.Curse.RiskOneIn != 5 || got.Store.BigSlots != 2 {
		t.Fatalf("tuning=%+v", got)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	bad := Defaults()
	bad.SellPriceMax = 0.5
	bad.Curse.RiskOneIn = 0
	err := bad.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "sell price") || !strings.Contains(err.Error(), "risk_one_in") {
		t.Fatalf("err=%v", err)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tuning.yaml")
	if err := os.WriteFile(path, []byte("save_every: [\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "tuning.yaml") {
		t.Fatalf("err=%v", err)
	}
}

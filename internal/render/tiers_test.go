package render

import (
	"encoding/json"
	"testing"
)

func TestQualityTierStringAndParse(t *testing.T) {
	for _, tier := range []QualityTier{TierHigh, TierMedium, TierLow} {
		parsed, err := ParseQualityTier(tier.String())
		if err != nil {
			t.Fatalf("round trip %s: %v", tier, err)
		}
		if parsed != tier {
			t.Errorf("round trip %s = %s", tier, parsed)
		}
	}
	if _, err := ParseQualityTier("ultra"); err == nil {
		t.Error("unknown tier name should error")
	}
}

func TestQualityTierJSON(t *testing.T) {
	data, err := json.Marshal(TierMedium)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `"medium"` {
		t.Errorf("marshalled = %s", data)
	}
	var tier QualityTier
	if err := json.Unmarshal([]byte(`"low"`), &tier); err != nil {
		t.Fatal(err)
	}
	if tier != TierLow {
		t.Errorf("unmarshalled = %s, want low", tier)
	}
	if err := json.Unmarshal([]byte(`"nope"`), &tier); err == nil {
		t.Error("bad tier name should fail to unmarshal")
	}
}

func TestTierConfigPresetsValidate(t *testing.T) {
	for name, cfg := range map[string]TierConfig{
		"standard": StandardTierConfig(),
		"low-end":  LowEndTierConfig(),
		"high-end": HighEndTierConfig(),
	} {
		if err := cfg.Validate(); err != nil {
			t.Errorf("%s preset invalid: %v", name, err)
		}
	}
}

func TestTierConfigValidateRejectsBadBand(t *testing.T) {
	cfg := StandardTierConfig()
	cfg.RaiseFpsHigh = cfg.DropFpsLow - 1
	if err := cfg.Validate(); err == nil {
		t.Error("raise below drop should be rejected")
	}

	cfg = StandardTierConfig()
	cfg.MarkerCapLow = 0
	if err := cfg.Validate(); err == nil {
		t.Error("zero marker cap should be rejected")
	}

	cfg = StandardTierConfig()
	cfg.SimplifyEpsilonLow = -1
	if err := cfg.Validate(); err == nil {
		t.Error("negative epsilon should be rejected")
	}
}

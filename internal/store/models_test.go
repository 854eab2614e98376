package store

import (
	"encoding/json"
	"testing"
)

func TestDiscoverable(t *testing.T) {
	cases := []struct {
		name    string
		enabled bool
		safety  SafetyStatus
		want    bool
	}{
		{"enabled safe", true, SafetySafe, true},
		{"disabled safe", false, SafetySafe, false},
		{"enabled unsafe", true, SafetyUnsafe, false},
		{"enabled pending", true, SafetyPending, false},
		{"enabled unknown", true, SafetyUnknown, false},
	}
	for _, tc := range cases {
		e := Entity{Enabled: tc.enabled, Safety: tc.safety}
		if got := e.Discoverable(); got != tc.want {
			t.Errorf("%s: Discoverable() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestToolID(t *testing.T) {
	if got := ToolID("/fininfo", "get_stock_price"); got != "/fininfo#get_stock_price" {
		t.Errorf("unexpected tool id: %s", got)
	}
}

func TestMetaValue_UnmarshalTagged(t *testing.T) {
	raw := `{
		"team": "finance",
		"replicas": 3,
		"beta": true,
		"missing": null,
		"regions": ["eu", "us"],
		"limits": {"qps": 100}
	}`

	var md Metadata
	if err := json.Unmarshal([]byte(raw), &md); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	if md["team"].Kind != MetaString || md["team"].Str != "finance" {
		t.Errorf("team: got %+v", md["team"])
	}
	if md["replicas"].Kind != MetaNumber || md["replicas"].Num != 3 {
		t.Errorf("replicas: got %+v", md["replicas"])
	}
	if md["beta"].Kind != MetaBool || !md["beta"].Bool {
		t.Errorf("beta: got %+v", md["beta"])
	}
	if md["missing"].Kind != MetaNull {
		t.Errorf("missing: got %+v", md["missing"])
	}
	if md["regions"].Kind != MetaList || len(md["regions"].List) != 2 {
		t.Errorf("regions: got %+v", md["regions"])
	}
	if md["limits"].Kind != MetaMap || md["limits"].Map["qps"].Num != 100 {
		t.Errorf("limits: got %+v", md["limits"])
	}
}

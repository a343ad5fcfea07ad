package util

import "testing"

func TestDecodeJSONObject(t *testing.T) {
	m, err := DecodeJSONObject([]byte(`{"Atif": {"category": "onshore", "level": "service_field"}}`))
	if err != nil {
		t.Fatalf("DecodeJSONObject() error = %v", err)
	}
	if _, ok := m["Atif"]; !ok {
		t.Error("expected key Atif in decoded config")
	}
}

func TestDecodeJSONObjectRejectsGarbage(t *testing.T) {
	cases := []struct {
		name string
		in   string
	}{
		{"truncated", `{"a": 1`},
		{"trailing", `{"a": 1} extra`},
		{"array", `[1, 2]`},
		{"null", `null`},
		{"empty", ``},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := DecodeJSONObject([]byte(tc.in)); err == nil {
				t.Errorf("DecodeJSONObject(%q) expected error", tc.in)
			}
		})
	}
}

func TestToFloat64(t *testing.T) {
	m, err := DecodeJSONObject([]byte(`{"grand_total_usd": 1234.5}`))
	if err != nil {
		t.Fatalf("DecodeJSONObject() error = %v", err)
	}

	f, ok := ToFloat64(m["grand_total_usd"])
	if !ok || f != 1234.5 {
		t.Errorf("ToFloat64(json.Number) = %v, %v; want 1234.5, true", f, ok)
	}

	if _, ok := ToFloat64("nope"); ok {
		t.Error("ToFloat64 should fail for non-numeric string")
	}
}

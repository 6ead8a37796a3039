package models

import (
	"encoding/json"
	"testing"
)

func TestRawModInfoTolerantEntries(t *testing.T) {
	payload := `{"Mods":[
		{"name":"lower","Version":"1.0.0","RequiredOnClient":true,"pdiff":"bool x"},
		{"Name":["array"],"Version":"2.0.0","pdiff":{"not":"text"}},
		{"Name":"NullDiff","pdiff":null},
		"string entry",
		null
	]}`

	var info RawModInfo
	if err := json.Unmarshal([]byte(payload), &info); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(info.Mods) != 5 {
		t.Fatalf("len = %d, want 5", len(info.Mods))
	}

	if got := info.Mods[0]; got.Name != "lower" || !got.RequiredOnClient || got.Pdiff != "bool x" {
		t.Fatalf("Mods[0] = %+v", got)
	}
	if got := info.Mods[1]; got.Name != "" || got.Version != "2.0.0" || got.Pdiff != "" {
		t.Fatalf("Mods[1] = %+v, want mistyped fields empty", got)
	}
	if got := info.Mods[2]; got.Name != "NullDiff" || got.Pdiff != "" {
		t.Fatalf("Mods[2] = %+v", got)
	}
	for i := 3; i < 5; i++ {
		if info.Mods[i] != (RawMod{}) {
			t.Fatalf("Mods[%d] = %+v, want zero", i, info.Mods[i])
		}
	}
}

package agents

import (
	"encoding/json"
	"testing"
)

func TestKindTextRoundTrip(t *testing.T) {
	for _, k := range []Kind{KindCitizen, KindCop} {
		b, err := json.Marshal(k)
		if err != nil {
			t.Fatalf("Marshal(%v): %v", k, err)
		}
		var got Kind
		if err := json.Unmarshal(b, &got); err != nil {
			t.Fatalf("Unmarshal(%s): %v", b, err)
		}
		if got != k {
			t.Errorf("round trip %v = %v", k, got)
		}
	}

	var k Kind
	if err := k.UnmarshalText([]byte("SHERIFF")); err == nil {
		t.Error("expected error for unknown kind")
	}
}

func TestStateTextRoundTrip(t *testing.T) {
	for _, s := range []State{StateQuiescent, StateActive, StateJailed} {
		var got State
		b, _ := s.MarshalText()
		if err := got.UnmarshalText(b); err != nil {
			t.Fatalf("UnmarshalText(%s): %v", b, err)
		}
		if got != s {
			t.Errorf("round trip %v = %v", s, got)
		}
	}

	var s State
	if err := s.UnmarshalText([]byte("RIOTING")); err == nil {
		t.Error("expected error for unknown state")
	}
}

func TestCitizenJSONRoundTrip(t *testing.T) {
	in := &Citizen{ID: 7, Node: 3, State: StateActive, JailSentence: 0, Jailable: true, Hardship: 0.5}
	b, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out Citizen
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out != *in {
		t.Errorf("round trip = %+v, want %+v", out, *in)
	}
}

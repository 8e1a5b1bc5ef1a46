package main

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestGoalArgs(t *testing.T) {
	item, qty, err := goalArgs([]string{"stick"})
	if err != nil || item != "stick" || qty != 1 {
		t.Fatalf("goalArgs: %s %d %v", item, qty, err)
	}
	item, qty, err = goalArgs([]string{"oak_planks", "8"})
	if err != nil || item != "oak_planks" || qty != 8 {
		t.Fatalf("goalArgs: %s %d %v", item, qty, err)
	}
	for _, bad := range [][]string{{""}, {"stick", "0"}, {"stick", "many"}} {
		if _, _, err := goalArgs(bad); err == nil {
			t.Fatalf("%v: expected error", bad)
		}
	}
}

func TestParseInventory(t *testing.T) {
	inv, err := parseInventory([]string{"oak_log=3", "stick", "stick", " coal = 2 "})
	if err != nil {
		t.Fatalf("parseInventory: %v", err)
	}
	want := staticInventory{"oak_log": 3, "stick": 2, "coal": 2}
	if diff := cmp.Diff(want, inv); diff != "" {
		t.Fatalf("inventory mismatch (-want +got):\n%s", diff)
	}
	if _, err := parseInventory([]string{"coal=lots"}); err == nil {
		t.Fatalf("expected error")
	}
}

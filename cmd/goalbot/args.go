package main

import (
	"fmt"
	"strconv"
	"strings"
)

// goalArgs parses "ITEM [QTY]".
func goalArgs(args []string) (string, int, error) {
	item := strings.TrimSpace(args[0])
	if item == "" {
		return "", 0, fmt.Errorf("empty item")
	}
	qty := 1
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil || n < 1 {
			return "", 0, fmt.Errorf("bad quantity %q", args[1])
		}
		qty = n
	}
	return item, qty, nil
}

// staticInventory is an inventory given on the command line as item=n.
type staticInventory map[string]int

func parseInventory(pairs []string) (staticInventory, error) {
	inv := staticInventory{}
	for _, p := range pairs {
		name, count, ok := strings.Cut(p, "=")
		if !ok {
			inv[strings.TrimSpace(p)]++
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(count))
		if err != nil {
			return nil, fmt.Errorf("bad inventory entry %q", p)
		}
		inv[strings.TrimSpace(name)] += n
	}
	return inv, nil
}

func (s staticInventory) Count(item string) int { return s[item] }

// Package grid turns inbound command messages into smartplug addresses.
//
// Plugs are laid out in rows and columns and identified as w.r{row}.c{col}.
// A message selects plugs through its topic and an optional subtopics list.
// Each selector is one of:
//
//	row/{n}      every column of row n, ascending
//	column/{n}   every row of column n, ascending
//	w.r3.c4      a single plug
//
// Identifiers are looked up in the current address directory snapshot;
// identifiers without an entry are skipped silently. The resolved list keeps
// selector order and is never de-duplicated, so overlapping selectors may
// address the same plug twice.
package grid

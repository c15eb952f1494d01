package x11

import (
	"reflect"
	"sort"
	"testing"

	"github.com/BurntSushi/xgb/xproto"
)

func TestDecodeModifiers(t *testing.T) {
	tests := []struct {
		name  string
		state uint16
		want  ModifierState
	}{
		{name: "none", state: 0},
		{name: "shift", state: xproto.ModMaskShift, want: ModifierState{Shift: true}},
		{name: "ctrl alt", state: xproto.ModMaskControl | xproto.ModMask1, want: ModifierState{Control: true, Alt: true}},
		{name: "super", state: xproto.ModMask4, want: ModifierState{Meta: true}},
		{name: "caps lock ignored", state: xproto.ModMaskLock | xproto.ModMask2, want: ModifierState{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeModifiers(tt.state); got != tt.want {
				t.Fatalf("DecodeModifiers(%#x) = %+v, want %+v", tt.state, got, tt.want)
			}
		})
	}
}

func TestIgnoreMaskCombinations(t *testing.T) {
	got := ignoreMaskCombinations([]uint16{xproto.ModMaskLock, xproto.ModMask2})
	sort.Slice(got, func(i, j int) bool { return got[i] < got[j] })
	want := []uint16{0, xproto.ModMaskLock, xproto.ModMask2, xproto.ModMaskLock | xproto.ModMask2}
	sort.Slice(want, func(i, j int) bool { return want[i] < want[j] })
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("combinations = %v, want %v", got, want)
	}

	if got := ignoreMaskCombinations(nil); !reflect.DeepEqual(got, []uint16{0}) {
		t.Fatalf("empty base = %v", got)
	}
}

func TestOpacityValue(t *testing.T) {
	if opacityValue(1) != 0xffffffff || opacityValue(2) != 0xffffffff {
		t.Fatalf("opaque should be full cardinal")
	}
	if opacityValue(0) != 0 || opacityValue(-1) != 0 {
		t.Fatalf("non-positive opacity should be 0")
	}
	if got := opacityValue(0.5); got < 0x7fffffff-1 || got > 0x80000000 {
		t.Fatalf("half opacity = %#x", got)
	}
}

func TestMatchesClass(t *testing.T) {
	tests := []struct {
		class, instance, want string
		match                 bool
	}{
		{"Editor", "editor", "editor", true},
		{"Firefox", "Navigator", "navigator", true},
		{" Code ", "code", "CODE", true},
		{"Alacritty", "alacritty", "editor", false},
	}
	for _, tt := range tests {
		if got := matchesClass(tt.class, tt.instance, tt.want); got != tt.match {
			t.Fatalf("matchesClass(%q,%q,%q) = %v", tt.class, tt.instance, tt.want, got)
		}
	}
}

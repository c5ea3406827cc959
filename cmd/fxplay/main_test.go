package main

import (
	"testing"
)

func TestLayerName(t *testing.T) {
	tests := map[string]string{
		"examples/assets/shaders/plasma.frag.wgsl": "plasma",
		`C:\fx\vignette.frag.wgsl`:                 "vignette",
		"tunnel":                                   "tunnel",
		".hidden.wgsl":                             ".hidden.wgsl",
		"dir/":                                     "effect",
	}
	for in, want := range tests {
		if got := layerName(in); got != want {
			t.Errorf("layerName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBlendOptions(t *testing.T) {
	for _, mode := range []string{"alpha", "", "ADD", "additive"} {
		opts, err := blendOptions(mode)
		if err != nil || len(opts) != 1 {
			t.Errorf("blendOptions(%q) = %d options, %v", mode, len(opts), err)
		}
	}
	if opts, err := blendOptions("none"); err != nil || opts != nil {
		t.Errorf("blendOptions(none) = %v, %v", opts, err)
	}
	if _, err := blendOptions("multiply"); err == nil {
		t.Error("blendOptions(multiply) expected error")
	}
}

func TestStringList(t *testing.T) {
	var s stringList
	_ = s.Set("a.wgsl")
	_ = s.Set("b.wgsl")
	if got := s.String(); got != "a.wgsl,b.wgsl" {
		t.Errorf("String() = %q", got)
	}
}

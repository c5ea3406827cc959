package main

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-fx/engine/renderer/shader"
	"github.com/gogpu/naga/hlsl"
)

func TestResolveStage(t *testing.T) {
	tests := []struct {
		flag, path string
		want       shader.ShaderType
		wantErr    bool
	}{
		{path: "shaders/plasma.frag.wgsl", want: shader.ShaderTypeFragment},
		{path: "fullscreen.vert.wgsl", want: shader.ShaderTypeVertex},
		{path: "blur.PS.wgsl", want: shader.ShaderTypeFragment},
		{flag: "vertex", path: "plasma.frag.wgsl", want: shader.ShaderTypeVertex},
		{path: "effect.wgsl", wantErr: true},
		{flag: "compute", path: "effect.wgsl", wantErr: true},
	}
	for _, tt := range tests {
		got, err := resolveStage(tt.flag, tt.path)
		if (err != nil) != tt.wantErr {
			t.Errorf("resolveStage(%q, %q) error = %v, wantErr %v", tt.flag, tt.path, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("resolveStage(%q, %q) = %v, want %v", tt.flag, tt.path, got, tt.want)
		}
	}
}

func TestParseShaderModel(t *testing.T) {
	tests := []struct {
		name    string
		want    hlsl.ShaderModel
		wantErr bool
	}{
		{name: "5.1", want: hlsl.ShaderModel5_1},
		{name: "6_0", want: hlsl.ShaderModel6_0},
		{name: " 5.0 ", want: hlsl.ShaderModel5_0},
		{name: "6.7", want: hlsl.ShaderModel6_7},
		{name: "4.0", wantErr: true},
		{name: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseShaderModel(tt.name)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseShaderModel(%q) error = %v, wantErr %v", tt.name, err, tt.wantErr)
			continue
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("parseShaderModel(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

package project

import (
	"slices"
	"testing"
)

func TestNormalizeModulePath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "a/b.thrift", want: "a/b.thrift"},
		{in: "./a//b.proto", want: "a/b.proto"},
		{in: `idl\common\x.proto`, want: "idl/common/x.proto"},
		{in: "/abs/x.thrift", want: "abs/x.thrift"},
		{in: "a/../b.thrift", want: "b.thrift"},
		{in: "../x.thrift", wantErr: true},
		{in: ".", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := NormalizeModulePath(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("NormalizeModulePath(%q) = %q, want error", tt.in, got)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("NormalizeModulePath(%q) = %q, %v; want %q", tt.in, got, err, tt.want)
		}
	}
}

func TestImportCandidates(t *testing.T) {
	tests := []struct {
		name     string
		importer string
		imp      string
		includes []string
		want     []string
	}{
		{
			name:     "sibling first",
			importer: "idl/svc/api.thrift",
			imp:      "shared.thrift",
			includes: []string{"idl", "third_party"},
			want:     []string{"idl/svc/shared.thrift", "idl/shared.thrift", "third_party/shared.thrift"},
		},
		{
			name:     "root importer",
			importer: "a.proto",
			imp:      "google/type/date.proto",
			includes: []string{"."},
			want:     []string{"google/type/date.proto"},
		},
		{
			name:     "parent",
			importer: "idl/svc/api.thrift",
			imp:      "../base.thrift",
			want:     []string{"idl/base.thrift"},
		},
		{
			name:     "escape dropped",
			importer: "api.thrift",
			imp:      "../outside.thrift",
			includes: []string{"idl"},
			want:     []string{"outside.thrift"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ImportCandidates(tt.importer, tt.imp, tt.includes)
			if !slices.Equal(got, tt.want) {
				t.Fatalf("ImportCandidates = %v, want %v", got, tt.want)
			}
		})
	}
}

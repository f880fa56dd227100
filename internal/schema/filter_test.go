package schema

import "testing"

func TestParseProviderFilter(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		size int
	}{
		{"", "all", 0},
		{"   ", "all", 0},
		{"AWS", "only", 1},
		{"AWS,Minio", "only", 2},
		{" AWS , Minio ,", "only", 2},
		{"!AWS", "except", 1},
		{"!AWS,Ceph,Other", "except", 3},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			switch f := ParseProviderFilter(tt.raw).(type) {
			case AllProviders:
				if tt.want != "all" {
					t.Fatalf("got AllProviders, want %s", tt.want)
				}
			case OnlyProviders:
				if tt.want != "only" {
					t.Fatalf("got OnlyProviders, want %s", tt.want)
				}
				if len(f.Names) != tt.size {
					t.Errorf("got %d names, want %d", len(f.Names), tt.size)
				}
			case AllExcept:
				if tt.want != "except" {
					t.Fatalf("got AllExcept, want %s", tt.want)
				}
				if len(f.Names) != tt.size {
					t.Errorf("got %d names, want %d", len(f.Names), tt.size)
				}
			default:
				t.Fatalf("unexpected filter %T", f)
			}
		})
	}
}

func TestApplies(t *testing.T) {
	tests := []struct {
		name     string
		filter   string
		provider string
		want     bool
	}{
		{"empty filter, no provider", "", "", true},
		{"empty filter, provider", "", "AWS", true},
		{"positive, no provider", "AWS", "", false},
		{"positive, member", "AWS,Minio", "Minio", true},
		{"positive, non-member", "AWS,Minio", "Ceph", false},
		{"negated, no provider", "!AWS", "", true},
		{"negated, member", "!AWS,Minio", "AWS", false},
		{"negated, non-member", "!AWS,Minio", "Ceph", true},
		{"case sensitive", "AWS", "aws", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Applies(ParseProviderFilter(tt.filter), tt.provider); got != tt.want {
				t.Errorf("Applies(%q, %q) = %v, want %v", tt.filter, tt.provider, got, tt.want)
			}
		})
	}
}

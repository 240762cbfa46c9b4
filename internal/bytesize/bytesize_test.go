package bytesize

import "testing"

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    ByteSize
		wantErr bool
	}{
		{"0", 0, false},
		{"8192", 8192, false},
		{"1024B", 1024, false},
		{"8Ki", 8 * 1024, false},
		{"64KiB", 64 * 1024, false},
		{"100Mi", 100 * MiB, false},
		{"1Gi", GiB, false},
		{"1TiB", TiB, false},
		{"5MB", 5 * MB, false},
		{"1K", KB, false},
		{"1gb", GB, false},
		{"  8Ki  ", 8 * 1024, false},
		{"8 Ki", 8 * 1024, false},
		{"1.5Mi", ByteSize(1.5 * float64(MiB)), false},
		{"", 0, true},
		{"Ki", 0, true},
		{"12XB", 0, true},
		{"-1Ki", 0, true},
	}

	for _, tt := range tests {
		got, err := Parse(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("Parse(%q) = %d, want error", tt.input, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("Parse(%q): %v", tt.input, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Parse(%q) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestUnmarshalText(t *testing.T) {
	var b ByteSize
	if err := b.UnmarshalText([]byte("64KiB")); err != nil {
		t.Fatalf("UnmarshalText: %v", err)
	}
	if b != 64*KiB {
		t.Errorf("b = %d, want %d", b, 64*KiB)
	}
	if err := b.UnmarshalText([]byte("nope")); err == nil {
		t.Error("UnmarshalText accepted garbage")
	}
}

func TestString(t *testing.T) {
	tests := []struct {
		in   ByteSize
		want string
	}{
		{512, "512B"},
		{8 * KiB, "8.00KiB"},
		{5 * MiB, "5.00MiB"},
		{2 * GiB, "2.00GiB"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("String(%d) = %q, want %q", uint64(tt.in), got, tt.want)
		}
	}
}

package timeparsing

import (
	"testing"
	"time"
)

func TestParseCompactDuration(t *testing.T) {
	// Fixed reference time for deterministic tests
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		input   string
		want    time.Time
		wantErr bool
	}{
		{
			name:  "+6h adds 6 hours",
			input: "+6h",
			want:  time.Date(2025, 6, 15, 18, 0, 0, 0, time.UTC),
		},
		{
			name:  "+1d adds 1 day",
			input: "+1d",
			want:  time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC),
		},
		{
			name:  "+2w adds 2 weeks",
			input: "+2w",
			want:  time.Date(2025, 6, 29, 12, 0, 0, 0, time.UTC),
		},
		{
			name:  "-1d subtracts 1 day",
			input: "-1d",
			want:  time.Date(2025, 6, 14, 12, 0, 0, 0, time.UTC),
		},
		{
			name:  "3m without sign adds 3 months",
			input: "3m",
			want:  time.Date(2025, 9, 15, 12, 0, 0, 0, time.UTC),
		},
		{
			name:  "1y without sign adds 1 year",
			input: "1y",
			want:  time.Date(2026, 6, 15, 12, 0, 0, 0, time.UTC),
		},
		{
			name:    "1x (unknown unit) is invalid",
			input:   "1x",
			wantErr: true,
		},
		{
			name:    "empty string is invalid",
			input:   "",
			wantErr: true,
		},
		{
			name:    "just a number is invalid",
			input:   "6",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCompactDuration(tt.input, now)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseCompactDuration(%q) expected error, got %v", tt.input, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseCompactDuration(%q) unexpected error: %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseCompactDuration(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseLayers(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("compact duration", func(t *testing.T) {
		got, err := Parse("+1d", now)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		want := time.Date(2025, 6, 16, 12, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("RFC3339", func(t *testing.T) {
		got, err := Parse("2025-07-01T09:30:00Z", now)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		want := time.Date(2025, 7, 1, 9, 30, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("date-only", func(t *testing.T) {
		got, err := Parse("2025-07-01", now)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		want := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("date and time", func(t *testing.T) {
		got, err := Parse("2025-07-01 09:30", now)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		want := time.Date(2025, 7, 1, 9, 30, 0, 0, time.UTC)
		if !got.Equal(want) {
			t.Errorf("got %v, want %v", got, want)
		}
	})

	t.Run("natural language tomorrow", func(t *testing.T) {
		got, err := Parse("tomorrow at 9am", now)
		if err != nil {
			t.Fatalf("Parse failed: %v", err)
		}
		if got.Day() != 16 || got.Hour() != 9 {
			t.Errorf("got %v, want June 16 09:00", got)
		}
	})

	t.Run("unparseable", func(t *testing.T) {
		if _, err := Parse("certainly not a time", now); err == nil {
			t.Error("expected error for unparseable input")
		}
	})
}

func TestIsCompactDuration(t *testing.T) {
	if !IsCompactDuration("+6h") {
		t.Error("+6h should be a compact duration")
	}
	if IsCompactDuration("tomorrow") {
		t.Error("tomorrow should not be a compact duration")
	}
}

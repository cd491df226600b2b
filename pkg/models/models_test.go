package models

import (
	"errors"
	"testing"
	"time"
)

func TestOutputFormat_IsValid(t *testing.T) {
	tests := []struct {
		name   string
		format OutputFormat
		want   bool
	}{
		{"valid png", FormatPNG, true},
		{"valid jpeg", FormatJPEG, true},
		{"valid webp", FormatWebP, true},
		{"invalid format", OutputFormat("gif"), false},
		{"empty format", OutputFormat(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.format.IsValid(); got != tt.want {
				t.Errorf("OutputFormat.IsValid() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    OutputFormat
		wantErr bool
	}{
		{"PNG", FormatPNG, false},
		{"png", FormatPNG, false},
		{"jpg", FormatJPEG, false},
		{"JPEG", FormatJPEG, false},
		{" webp ", FormatWebP, false},
		{"gif", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidFormat) {
					t.Errorf("ParseFormat(%q) error = %v, want ErrInvalidFormat", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseFormat(%q) error = %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestOverrides_Merge(t *testing.T) {
	defaults := Params{Width: 1024, Height: 768, Model: "flux", Seed: 0, NoLogo: false}

	t.Run("empty overrides keep defaults", func(t *testing.T) {
		got := Overrides{}.Merge(defaults)
		if got != defaults {
			t.Errorf("Merge() = %+v, want %+v", got, defaults)
		}
	})

	t.Run("all fields overridden", func(t *testing.T) {
		o := Overrides{Width: 512, Height: 256, Model: "turbo"}.WithSeed(42).WithNoLogo(true)
		got := o.Merge(defaults)
		want := Params{Width: 512, Height: 256, Model: "turbo", Seed: 42, NoLogo: true}
		if got != want {
			t.Errorf("Merge() = %+v, want %+v", got, want)
		}
	})

	t.Run("zero seed is an explicit override", func(t *testing.T) {
		d := defaults
		d.Seed = 99
		got := Overrides{}.WithSeed(0).Merge(d)
		if got.Seed != 0 {
			t.Errorf("Merge().Seed = %d, want 0", got.Seed)
		}
	})
}

func TestParams_Validate(t *testing.T) {
	if err := (Params{Width: 1, Height: 1}).Validate(); err != nil {
		t.Errorf("Validate() error = %v, want nil", err)
	}
	if err := (Params{Width: 0, Height: 10}).Validate(); !errors.Is(err, ErrInvalidDimensions) {
		t.Errorf("Validate() error = %v, want ErrInvalidDimensions", err)
	}
}

func TestParams_Map(t *testing.T) {
	m := Params{Width: 512, Height: 512, Model: "flux", Seed: 42, NoLogo: true}.Map()
	if len(m) != 5 {
		t.Fatalf("Map() has %d keys, want 5", len(m))
	}
	if m["seed"] != int64(42) {
		t.Errorf("Map()[seed] = %v, want 42", m["seed"])
	}
	if m["nologo"] != true {
		t.Errorf("Map()[nologo] = %v, want true", m["nologo"])
	}
}

func TestStatistics(t *testing.T) {
	var zero Statistics
	if zero.CacheHitRate() != 0 {
		t.Errorf("CacheHitRate() on zero stats = %v, want 0", zero.CacheHitRate())
	}
	if zero.AverageGenerationTime() != 0 {
		t.Errorf("AverageGenerationTime() on zero stats = %v, want 0", zero.AverageGenerationTime())
	}

	s := Statistics{ImagesGenerated: 3, CacheHits: 1, TotalGenerationTime: 9 * time.Second}
	if got := s.CacheHitRate(); got != 25 {
		t.Errorf("CacheHitRate() = %v, want 25", got)
	}
	if got := s.AverageGenerationTime(); got != 3*time.Second {
		t.Errorf("AverageGenerationTime() = %v, want 3s", got)
	}
}

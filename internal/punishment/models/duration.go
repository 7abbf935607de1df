package models

import (
	"fmt"
	"strings"
	"time"

	dErrors "warden/pkg/domain-errors"
)

// Preset is a duration offered to moderators. A nil Duration is permanent.
type Preset struct {
	Name     string
	Duration *time.Duration
}

func fixedDuration(d time.Duration) *time.Duration {
	return &d
}

// Presets lists the standard durations, shortest first.
var Presets = []Preset{
	{Name: "30m", Duration: fixedDuration(30 * time.Minute)},
	{Name: "1h", Duration: fixedDuration(time.Hour)},
	{Name: "3h", Duration: fixedDuration(3 * time.Hour)},
	{Name: "1d", Duration: fixedDuration(24 * time.Hour)},
	{Name: "3d", Duration: fixedDuration(3 * 24 * time.Hour)},
	{Name: "1w", Duration: fixedDuration(7 * 24 * time.Hour)},
	{Name: "30d", Duration: fixedDuration(30 * 24 * time.Hour)},
	{Name: "permanent", Duration: nil},
}

// ParsePreset resolves a preset by name.
func ParsePreset(name string) (*time.Duration, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, p := range Presets {
		if p.Name == name {
			if p.Duration == nil {
				return nil, nil
			}
			d := *p.Duration
			return &d, nil
		}
	}
	return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown duration %q", name))
}

// FormatDuration renders a punishment length in its largest whole unit.
func FormatDuration(d *time.Duration) string {
	if d == nil {
		return "Permanent"
	}
	switch v := *d; {
	case v >= 24*time.Hour:
		return fmt.Sprintf("%d days", int64(v/(24*time.Hour)))
	case v >= time.Hour:
		return fmt.Sprintf("%d hours", int64(v/time.Hour))
	case v >= time.Minute:
		return fmt.Sprintf("%d minutes", int64(v/time.Minute))
	default:
		return fmt.Sprintf("%d seconds", int64(v/time.Second))
	}
}

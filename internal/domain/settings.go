package domain

// Settings are the per-wheel toggles
type Settings struct {
	SoundEnabled    bool `json:"soundEnabled"`
	EliminationMode bool `json:"eliminationMode"`
	DemoMode        bool `json:"demoMode"`
}

// DefaultSettings returns the settings of a new wheel
func DefaultSettings() Settings {
	return Settings{
		SoundEnabled:    true,
		EliminationMode: false,
		DemoMode:        true,
	}
}

// SettingsPatch changes only the fields that are set
type SettingsPatch struct {
	SoundEnabled    *bool `json:"soundEnabled,omitempty"`
	EliminationMode *bool `json:"eliminationMode,omitempty"`
	DemoMode        *bool `json:"demoMode,omitempty"`
}

// Apply returns s with the patch applied
func (s Settings) Apply(p SettingsPatch) Settings {
	if p.SoundEnabled != nil {
		s.SoundEnabled = *p.SoundEnabled
	}
	if p.EliminationMode != nil {
		s.EliminationMode = *p.EliminationMode
	}
	if p.DemoMode != nil {
		s.DemoMode = *p.DemoMode
	}
	return s
}

// IsEmpty reports whether the patch changes nothing
func (p SettingsPatch) IsEmpty() bool {
	return p.SoundEnabled == nil && p.EliminationMode == nil && p.DemoMode == nil
}

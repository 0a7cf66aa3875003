package types

// Settings is the process-wide assistant configuration. It is mutated only
// through replace-and-normalize; invalid values never reach the store.
type Settings struct {
	Provider      string  `json:"provider"`
	Model         string  `json:"model"`
	APIKey        string  `json:"apiKey"`
	CoachingStyle string  `json:"coachingStyle"`
	Verbosity     string  `json:"verbosity"`
	Temperature   float64 `json:"temperature"`
	CustomPrompt  string  `json:"customPrompt"`
}

// SettingsPatch carries only the fields a caller wants to change.
type SettingsPatch struct {
	Provider      *string  `json:"provider,omitempty"`
	Model         *string  `json:"model,omitempty"`
	APIKey        *string  `json:"apiKey,omitempty"`
	CoachingStyle *string  `json:"coachingStyle,omitempty"`
	Verbosity     *string  `json:"verbosity,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	CustomPrompt  *string  `json:"customPrompt,omitempty"`
}

package model

// NotificationSettings controls which alerts are emitted.
type NotificationSettings struct {
	Enabled             bool    `json:"enabled"`
	LeakAlerts          bool    `json:"leakAlerts"`
	HighMemoryThreshold float64 `json:"highMemoryThreshold"` // MB
	SoundEnabled        bool    `json:"soundEnabled"`
}

// Settings are the user-facing preferences shared with the UI.
type Settings struct {
	RefreshInterval          int                  `json:"refreshInterval"` // ms
	Theme                    string               `json:"theme"`           // light, dark, system
	Notifications            NotificationSettings `json:"notifications"`
	AutoHibernateIdleMinutes int                  `json:"autoHibernateIdleMinutes"`
	ShowHealthScores         bool                 `json:"showHealthScores"`
}

// DefaultSettings returns the settings used for any key missing from storage.
func DefaultSettings() Settings {
	return Settings{
		RefreshInterval: 5000,
		Theme:           "system",
		Notifications: NotificationSettings{
			Enabled:             true,
			LeakAlerts:          true,
			HighMemoryThreshold: 500,
			SoundEnabled:        false,
		},
		AutoHibernateIdleMinutes: 60,
		ShowHealthScores:         true,
	}
}

// ValidTheme reports whether t is an accepted theme name.
func ValidTheme(t string) bool {
	switch t {
	case "light", "dark", "system":
		return true
	}
	return false
}

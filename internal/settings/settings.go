// Package settings keeps the process-wide system settings shown on the public
// pages (site name, logo, welcome text).
package settings

import (
	"sync/atomic"

	"online_exam_backend/internal/config"
)

type SystemSettings struct {
	SiteName    string `json:"siteName"`
	Logo        string `json:"logo"`
	WelcomeText string `json:"welcomeText"`
}

func FromConfig(cfg config.SettingsConfig) SystemSettings {
	return SystemSettings{
		SiteName:    cfg.SiteName,
		Logo:        cfg.Logo,
		WelcomeText: cfg.WelcomeText,
	}
}

// Holder owns the single settings value. The zero Holder is empty.
type Holder struct {
	v atomic.Pointer[SystemSettings]
}

func NewHolder() *Holder {
	return &Holder{}
}

// Load returns the current settings and whether any were installed.
func (h *Holder) Load() (SystemSettings, bool) {
	p := h.v.Load()
	if p == nil {
		return SystemSettings{}, false
	}
	return *p, true
}

// ReplaceIfAbsent installs s only when no settings are installed yet.
// It returns false when another value was already present.
func (h *Holder) ReplaceIfAbsent(s SystemSettings) bool {
	return h.v.CompareAndSwap(nil, &s)
}

// Replace installs s unconditionally and returns the previous value.
func (h *Holder) Replace(s SystemSettings) (SystemSettings, bool) {
	old := h.v.Swap(&s)
	if old == nil {
		return SystemSettings{}, false
	}
	return *old, true
}

package prefs

import "strconv"

// TalkBack reads and writes the talk-back preference on a Store. Only the
// literal string "false" disables it; a missing key means enabled.
type TalkBack struct {
	store Store
}

// NewTalkBack wraps store.
func NewTalkBack(store Store) *TalkBack {
	return &TalkBack{store: store}
}

// Enabled reports whether synthesized playback should be attempted.
func (t *TalkBack) Enabled() bool {
	v, ok := t.store.Get(TalkBackKey)
	return !ok || v != "false"
}

// SetEnabled persists the preference as "true" or "false".
func (t *TalkBack) SetEnabled(enabled bool) error {
	return t.store.Set(TalkBackKey, strconv.FormatBool(enabled))
}

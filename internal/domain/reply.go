package domain

// MaxQuickReplies caps the quick-reply list on a composed reply. The
// strictest connected channel renders at most three tappable suggestions.
const MaxQuickReplies = 3

// Button is a labeled action attached to a reply.
type Button struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}

// Reply is the channel-neutral output of a turn. The channel adapter, not
// the composer, enforces per-channel payload limits.
type Reply struct {
	Text         string   `json:"text"`
	QuickReplies []string `json:"quick_replies,omitempty"`
	Buttons      []Button `json:"buttons,omitempty"`
}

// WithQuickReplies returns a copy of r with the quick-reply list replaced,
// truncated to MaxQuickReplies.
func (r Reply) WithQuickReplies(labels ...string) Reply {
	if len(labels) > MaxQuickReplies {
		labels = labels[:MaxQuickReplies]
	}
	r.QuickReplies = labels
	return r
}

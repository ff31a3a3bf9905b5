package avatar

// Command is a sparse instruction extracted from text. Nil fields are
// untouched by the state machine; commands are transient and never persisted.
type Command struct {
	Position   *string
	Expression *string
	Pose       *string
	Action     *string
	Gesture    *string

	Hide  *bool
	Show  *bool
	Fade  *bool
	Pulse *bool

	Scale    *float64
	Duration *int // milliseconds for the animation window

	// Unknown collects tag keys that are not part of the command vocabulary.
	// They are reported rather than silently dropped.
	Unknown []string
}

// IsZero reports whether the command carries no instruction at all.
func (c Command) IsZero() bool {
	return c.Position == nil && c.Expression == nil && c.Pose == nil &&
		c.Action == nil && c.Gesture == nil && c.Hide == nil && c.Show == nil &&
		c.Fade == nil && c.Pulse == nil && c.Scale == nil && c.Duration == nil &&
		len(c.Unknown) == 0
}

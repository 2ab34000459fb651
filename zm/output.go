package zm

// ---------------------------------------------------------------------------
// Output commands: the Engine -> Presentation surface
// ---------------------------------------------------------------------------

// Command is a typed output event emitted by the machine. The presentation
// layer consumes commands and owns no machine state; the machine never
// blocks on the sink.
type Command interface {
	isCommand()
}

// PrintCommand carries text destined for a numbered window.
type PrintCommand struct {
	Window int
	Text   string
}

// SplitWindowCommand resizes the upper window to the given number of lines
// (0 removes it).
type SplitWindowCommand struct {
	Lines uint16
}

// SetWindowCommand selects the window receiving subsequent output.
type SetWindowCommand struct {
	Window int
}

// EraseWindowCommand clears a window; -1 unsplits and clears the whole
// screen, -2 clears the whole screen keeping the split.
type EraseWindowCommand struct {
	Window int
}

// EraseLineCommand clears the current line from the cursor rightward.
type EraseLineCommand struct{}

// SetCursorCommand positions the cursor in the upper window (1-based).
type SetCursorCommand struct {
	Line   uint16
	Column uint16
}

// SetTextStyleCommand applies a style bitmap: 0 roman, 1 reverse video,
// 2 bold, 4 italic, 8 fixed pitch.
type SetTextStyleCommand struct {
	Style uint16
}

// SetFontCommand selects a font; the driver reports availability through
// the set_font store value, which the machine derives from Capabilities.
type SetFontCommand struct {
	Font uint16
}

// SetColourCommand carries the standard colour pair (1 = default).
type SetColourCommand struct {
	Foreground uint16
	Background uint16
}

// BufferModeCommand toggles presentation-side word buffering.
type BufferModeCommand struct {
	Buffered bool
}

// StatusLineCommand updates the v1-3 status line. For score games Left is
// the location name and Score/Moves hold the pair; for time games Hours
// and Minutes are used instead.
type StatusLineCommand struct {
	Location string
	TimeGame bool
	Score    int16
	Moves    uint16
	Hours    uint16
	Minutes  uint16
}

// TranscriptCommand opens or closes the transcript stream (stream 2).
type TranscriptCommand struct {
	Enabled bool
}

// InputStreamCommand switches the input source (0 keyboard, 1 command
// file); acting on it is the driver's concern.
type InputStreamCommand struct {
	Stream uint16
}

// SoundEffectCommand requests a bleep or sampled sound.
type SoundEffectCommand struct {
	Number uint16
	Effect uint16
	Volume uint16
}

// RestartCommand tells the presentation layer the machine reset itself;
// the screen should be cleared.
type RestartCommand struct{}

// QuitCommand is the final command of a session.
type QuitCommand struct{}

func (PrintCommand) isCommand()        {}
func (SplitWindowCommand) isCommand()  {}
func (SetWindowCommand) isCommand()    {}
func (EraseWindowCommand) isCommand()  {}
func (EraseLineCommand) isCommand()    {}
func (SetCursorCommand) isCommand()    {}
func (SetTextStyleCommand) isCommand() {}
func (SetFontCommand) isCommand()      {}
func (SetColourCommand) isCommand()    {}
func (BufferModeCommand) isCommand()   {}
func (StatusLineCommand) isCommand()   {}
func (TranscriptCommand) isCommand()   {}
func (InputStreamCommand) isCommand()  {}
func (SoundEffectCommand) isCommand()  {}
func (RestartCommand) isCommand()      {}
func (QuitCommand) isCommand()         {}

// CommandSink consumes output commands. Emit must not call back into the
// machine.
type CommandSink interface {
	Emit(Command)
}

// CommandBuffer is a CommandSink that accumulates commands for drivers
// that poll between steps.
type CommandBuffer struct {
	commands []Command
}

// Emit appends a command.
func (b *CommandBuffer) Emit(c Command) {
	b.commands = append(b.commands, c)
}

// Drain returns and clears the buffered commands.
func (b *CommandBuffer) Drain() []Command {
	out := b.commands
	b.commands = nil
	return out
}

// Text concatenates the buffered print text for a window, without draining.
func (b *CommandBuffer) Text(window int) string {
	var s string
	for _, c := range b.commands {
		if p, ok := c.(PrintCommand); ok && p.Window == window {
			s += p.Text
		}
	}
	return s
}

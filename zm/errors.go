package zm

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Error Taxonomy
// ---------------------------------------------------------------------------

var (
	// ErrLoad indicates a malformed or unsupported story file. Fatal;
	// raised before execution ever starts.
	ErrLoad = errors.New("story file load failed")

	// ErrIllegalWrite indicates a write above the dynamic memory boundary.
	// Fatal; either the story file is corrupt or the engine has a bug.
	ErrIllegalWrite = errors.New("illegal write outside dynamic memory")

	// ErrOutOfBounds indicates a memory access past the end of the story
	// image. Fatal for the same reasons as ErrIllegalWrite.
	ErrOutOfBounds = errors.New("memory access out of bounds")

	// ErrGame is a well-defined semantic fault the Z-Machine standard calls
	// out: division by zero, invalid object or property reference,
	// mismatched restore. Surfaced to the driver as a recoverable
	// condition; the machine stays resumable.
	ErrGame = errors.New("game error")

	// ErrUnsupportedOpcode indicates an opcode that is not legal for the
	// loaded story version. Fatal, since continuing past an unknown
	// instruction boundary is unsafe.
	ErrUnsupportedOpcode = errors.New("unsupported opcode")

	// ErrNotAwaiting is returned by a Resume call made in the wrong state.
	ErrNotAwaiting = errors.New("machine is not awaiting that input")

	// ErrSaveData indicates a malformed or mismatched save file handed to a
	// restore. Recoverable: the restore reports failure and play continues.
	ErrSaveData = errors.New("unusable save data")
)

// gameErrf wraps ErrGame with detail. errors.Is(err, ErrGame) holds for the
// result.
func gameErrf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrGame, fmt.Sprintf(format, args...))
}

// loadErrf wraps ErrLoad with detail.
func loadErrf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrLoad, fmt.Sprintf(format, args...))
}

// saveErrf wraps ErrSaveData with detail.
func saveErrf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrSaveData, fmt.Sprintf(format, args...))
}

// isFatal reports whether an error must halt the machine. ErrGame and
// ErrSaveData are reported to the driver, which decides whether to keep
// stepping; everything else halts.
func isFatal(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrGame) && !errors.Is(err, ErrSaveData)
}

package zm

import (
	"fmt"
	"math/rand"

	"fortio.org/safecast"
)

// ---------------------------------------------------------------------------
// State: the machine's cooperative execution states
// ---------------------------------------------------------------------------

// State identifies what the machine is doing or waiting for. The machine is
// an explicitly re-entrant state machine: opcodes needing external data
// suspend at an instruction boundary and the driver supplies the value
// through the matching Resume call.
type State int

const (
	// Running executes instructions when stepped.
	Running State = iota
	// AwaitingLine waits for ResumeWithLine (the sread/aread opcodes).
	AwaitingLine
	// AwaitingChar waits for ResumeWithChar (the read_char opcode).
	AwaitingChar
	// AwaitingSave waits for ResumeWithSaveResult; PendingSave holds the
	// serialized state the driver should persist.
	AwaitingSave
	// AwaitingRestore waits for ResumeWithRestoreData.
	AwaitingRestore
	// Halted is terminal: quit, a fatal fault, or main-routine return.
	Halted
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case AwaitingLine:
		return "awaiting-line"
	case AwaitingChar:
		return "awaiting-char"
	case AwaitingSave:
		return "awaiting-save"
	case AwaitingRestore:
		return "awaiting-restore"
	default:
		return "halted"
	}
}

// ---------------------------------------------------------------------------
// callFrame: one routine invocation
// ---------------------------------------------------------------------------

// callFrame is the execution state of one routine. Each frame owns its
// evaluation-stack segment; variable 0 always addresses the top of the
// current frame's segment.
type callFrame struct {
	returnPC uint32
	locals   []uint16 // 0-15 of them
	stack    []uint16 // evaluation stack segment
	storeVar int16    // variable receiving the return value; -1 = discarded
	argCount int      // arguments actually supplied by the caller
}

func (f *callFrame) clone() *callFrame {
	return &callFrame{
		returnPC: f.returnPC,
		locals:   append([]uint16(nil), f.locals...),
		stack:    append([]uint16(nil), f.stack...),
		storeVar: f.storeVar,
		argCount: f.argCount,
	}
}

// stream3Dest is one level of output-stream-3 redirection: text collects
// here until the stream closes, then lands in the memory table.
type stream3Dest struct {
	table uint32
	data  []byte
}

// pendingInput records what a suspended read opcode needs to finish once
// the driver resumes.
type pendingInput struct {
	textAddr  uint32
	parseAddr uint32
	storeVar  byte // v5+ terminator / read_char result
	hasStore  bool
}

// ---------------------------------------------------------------------------
// Machine: one Z-Machine instance
// ---------------------------------------------------------------------------

// Machine executes a loaded story. A Machine owns all of its state; nothing
// is shared between instances, so a driver may run several concurrently.
// The Machine itself is not safe for concurrent use by multiple goroutines;
// see Session for a serializing wrapper.
type Machine struct {
	mem     *Memory
	header  *Header
	objects *objectTable
	dict    *dictionary
	codec   *textCodec
	caps    Capabilities

	// pristine is the dynamic region exactly as loaded; the save format is
	// a diff against it.
	pristine []byte

	pc         uint32
	frames     []*callFrame
	state      State
	haltReason error

	sink CommandSink
	rng  *rand.Rand

	// Output stream plumbing. Stream 3 redirections nest; while any is
	// active all other streams are suppressed.
	screenOn   bool
	transcript bool
	stream3    []stream3Dest
	window     int
	font       uint16

	pending     pendingInput
	pendingSave []byte

	undo      [][]byte // CBOR-encoded snapshots, oldest first
	undoLimit int

	tracing bool
}

const maxStream3Depth = 16

// Load builds a Machine from a raw story-file buffer and a capability
// declaration. The buffer is copied; the caller keeps ownership of story.
func Load(story []byte, caps Capabilities) (*Machine, error) {
	if len(story) < headerSize {
		return nil, loadErrf("story file too short (%d bytes)", len(story))
	}
	if _, err := safecast.Conv[uint32](len(story)); err != nil {
		return nil, loadErrf("story file too large (%d bytes)", len(story))
	}

	image := append([]byte(nil), story...)
	h, err := parseHeader(image)
	if err != nil {
		return nil, err
	}

	mem := newMemory(image, h)
	codec, err := newTextCodec(mem, h)
	if err != nil {
		return nil, fmt.Errorf("%w: text tables: %v", ErrLoad, err)
	}
	dict, err := newDictionary(mem, codec, uint32(h.Dictionary))
	if err != nil {
		return nil, fmt.Errorf("%w: dictionary: %v", ErrLoad, err)
	}

	m := &Machine{
		mem:       mem,
		header:    h,
		objects:   newObjectTable(mem, h),
		dict:      dict,
		codec:     codec,
		caps:      caps,
		pristine:  append([]byte(nil), mem.Dynamic()...),
		rng:       rand.New(rand.NewSource(rand.Int63())),
		screenOn:  true,
		undoLimit: caps.UndoSlots,
	}
	if m.undoLimit <= 0 {
		m.undoLimit = defaultUndoSlots
	}

	m.caps.apply(mem, h)
	if err := m.resetExecution(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLoad, err)
	}
	return m, nil
}

// resetExecution points the machine at the story's entry point with a fresh
// call stack. Used at load and by restart.
func (m *Machine) resetExecution() error {
	m.frames = []*callFrame{{storeVar: -1, returnPC: 0}}
	m.state = Running
	m.haltReason = nil
	m.stream3 = nil
	m.window = 0
	m.font = 1

	if m.header.Version == 6 {
		// v6 packs a main routine address instead of a raw entry PC.
		return m.callRoutine(m.header.InitialPC, nil, -1)
	}
	pc := uint32(m.header.InitialPC)
	if err := m.mem.checkRange(pc, 1); err != nil {
		return fmt.Errorf("initial PC 0x%X outside image", pc)
	}
	m.pc = pc
	return nil
}

// ---------------------------------------------------------------------------
// Driver interface
// ---------------------------------------------------------------------------

// State returns the current execution state.
func (m *Machine) State() State {
	return m.state
}

// HaltReason returns the fault that halted the machine, or nil when the
// machine is not halted or halted cleanly (quit).
func (m *Machine) HaltReason() error {
	return m.haltReason
}

// PC returns the current program counter, for diagnostics.
func (m *Machine) PC() uint32 {
	return m.pc
}

// Header returns the parsed story header.
func (m *Machine) Header() *Header {
	return m.header
}

// SetOutput installs the command sink. A nil sink discards output.
func (m *Machine) SetOutput(sink CommandSink) {
	m.sink = sink
}

// SetRandomSeed makes the random opcode deterministic, for tests and
// replays.
func (m *Machine) SetRandomSeed(seed int64) {
	m.rng = rand.New(rand.NewSource(seed))
}

// PendingSave returns the serialized state awaiting the driver while in
// AwaitingSave.
func (m *Machine) PendingSave() []byte {
	return m.pendingSave
}

// Step executes one instruction when Running. In any other state it is a
// no-op returning that state (and the halt reason, when halted by a fault).
// A returned error satisfying errors.Is(err, ErrGame) is recoverable: the
// machine is still Running and the driver may keep stepping.
func (m *Machine) Step() (State, error) {
	if m.state != Running {
		return m.state, m.haltReason
	}
	if err := m.execute(); err != nil {
		if isFatal(err) {
			m.halt(err)
		}
		return m.state, err
	}
	return m.state, nil
}

// Run steps until the machine suspends, halts, or reports a game error.
func (m *Machine) Run() (State, error) {
	for {
		st, err := m.Step()
		if st != Running || err != nil {
			return st, err
		}
	}
}

// halt transitions to Halted. A nil reason is a clean quit.
func (m *Machine) halt(reason error) {
	m.state = Halted
	m.haltReason = reason
}

// ResumeWithLine completes a suspended line read: the text lands in the
// story's text buffer, is tokenized, and execution continues.
func (m *Machine) ResumeWithLine(text string) (State, error) {
	if m.state != AwaitingLine {
		return m.state, fmt.Errorf("%w: state %s", ErrNotAwaiting, m.state)
	}
	m.state = Running
	if err := m.finishRead(text); err != nil {
		if isFatal(err) {
			m.halt(err)
		}
		return m.state, err
	}
	return m.state, nil
}

// ResumeWithChar completes a suspended single-character read.
func (m *Machine) ResumeWithChar(r rune) (State, error) {
	if m.state != AwaitingChar {
		return m.state, fmt.Errorf("%w: state %s", ErrNotAwaiting, m.state)
	}
	m.state = Running
	if err := m.storeVariable(m.pending.storeVar, m.codec.runeToZSCII(r)); err != nil {
		m.halt(err)
		return m.state, err
	}
	return m.state, nil
}

// ResumeWithSaveResult reports whether the driver persisted the pending
// save data; the save opcode's branch or store sees the outcome.
func (m *Machine) ResumeWithSaveResult(ok bool) (State, error) {
	if m.state != AwaitingSave {
		return m.state, fmt.Errorf("%w: state %s", ErrNotAwaiting, m.state)
	}
	m.state = Running
	m.pendingSave = nil
	if err := m.finishSave(ok); err != nil {
		if isFatal(err) {
			m.halt(err)
		}
		return m.state, err
	}
	return m.state, nil
}

// ResumeWithRestoreData supplies a save file to a suspended restore. An
// invalid or mismatched container is reported as a game error; the machine
// keeps running with the restore opcode reporting failure, exactly as if
// the interpreter had rejected the file.
func (m *Machine) ResumeWithRestoreData(data []byte) (State, error) {
	if m.state != AwaitingRestore {
		return m.state, fmt.Errorf("%w: state %s", ErrNotAwaiting, m.state)
	}
	m.state = Running
	if err := m.finishRestore(data); err != nil {
		if isFatal(err) {
			m.halt(err)
		}
		return m.state, err
	}
	return m.state, nil
}

// ---------------------------------------------------------------------------
// Frames and variables
// ---------------------------------------------------------------------------

func (m *Machine) curFrame() *callFrame {
	return m.frames[len(m.frames)-1]
}

func (m *Machine) pushEval(v uint16) {
	f := m.curFrame()
	f.stack = append(f.stack, v)
}

func (m *Machine) popEval() (uint16, error) {
	f := m.curFrame()
	if len(f.stack) == 0 {
		return 0, gameErrf("evaluation stack underflow")
	}
	v := f.stack[len(f.stack)-1]
	f.stack = f.stack[:len(f.stack)-1]
	return v, nil
}

// readVariable resolves a variable reference byte: 0 pops the stack, 1-15
// read a local of the current frame, 16-255 read a global word.
func (m *Machine) readVariable(v byte) (uint16, error) {
	switch {
	case v == 0:
		return m.popEval()
	case v < 16:
		f := m.curFrame()
		if int(v) > len(f.locals) {
			return 0, gameErrf("read of undeclared local %d", v)
		}
		return f.locals[v-1], nil
	default:
		return m.mem.ReadWord(m.globalAddr(v))
	}
}

// storeVariable is the store-target counterpart: 0 pushes.
func (m *Machine) storeVariable(v byte, value uint16) error {
	switch {
	case v == 0:
		m.pushEval(value)
		return nil
	case v < 16:
		f := m.curFrame()
		if int(v) > len(f.locals) {
			return gameErrf("write to undeclared local %d", v)
		}
		f.locals[v-1] = value
		return nil
	default:
		return m.mem.WriteWord(m.globalAddr(v), value)
	}
}

// readVariableInPlace is the "indirect reference" flavour used by inc, dec,
// load and pull: variable 0 reads the stack top without popping.
func (m *Machine) readVariableInPlace(v byte) (uint16, error) {
	if v == 0 {
		f := m.curFrame()
		if len(f.stack) == 0 {
			return 0, gameErrf("evaluation stack underflow")
		}
		return f.stack[len(f.stack)-1], nil
	}
	return m.readVariable(v)
}

// storeVariableInPlace writes through an indirect reference: variable 0
// overwrites the stack top instead of pushing.
func (m *Machine) storeVariableInPlace(v byte, value uint16) error {
	if v == 0 {
		f := m.curFrame()
		if len(f.stack) == 0 {
			return gameErrf("evaluation stack underflow")
		}
		f.stack[len(f.stack)-1] = value
		return nil
	}
	return m.storeVariable(v, value)
}

func (m *Machine) globalAddr(v byte) uint32 {
	return uint32(m.header.Globals) + uint32(v-16)*2
}

// callRoutine pushes a frame for the routine at the given packed address
// and points the PC at its first instruction. A call to packed address 0
// stores false without calling anything.
func (m *Machine) callRoutine(packed uint16, args []uint16, storeVar int16) error {
	if packed == 0 {
		if storeVar >= 0 {
			return m.storeVariable(byte(storeVar), 0)
		}
		return nil
	}

	addr := m.mem.UnpackRoutine(packed)
	nlocals, err := m.mem.ReadByte(addr)
	if err != nil {
		return err
	}
	if nlocals > 15 {
		return gameErrf("routine at 0x%X declares %d locals", addr, nlocals)
	}

	locals := make([]uint16, nlocals)
	entry := addr + 1
	if m.header.Version <= 4 {
		// v1-4 routines carry initial local values in their header.
		for i := range locals {
			w, err := m.mem.ReadWord(entry)
			if err != nil {
				return err
			}
			locals[i] = w
			entry += 2
		}
	}
	// Supplied arguments overwrite the declared defaults; extras beyond the
	// declared locals are discarded.
	for i, a := range args {
		if i >= len(locals) {
			break
		}
		locals[i] = a
	}

	m.frames = append(m.frames, &callFrame{
		returnPC: m.pc,
		locals:   locals,
		storeVar: storeVar,
		argCount: len(args),
	})
	m.pc = entry
	return nil
}

// returnValue pops the current frame and delivers value to the caller's
// store target.
func (m *Machine) returnValue(value uint16) error {
	if len(m.frames) <= 1 {
		return fmt.Errorf("%w: return with no caller frame", ErrOutOfBounds)
	}
	f := m.curFrame()
	m.frames = m.frames[:len(m.frames)-1]
	if m.header.Version == 6 && len(m.frames) == 1 && f.returnPC == 0 {
		// The v6 main routine returned; the session is over.
		m.halt(nil)
		m.emit(QuitCommand{})
		return nil
	}
	m.pc = f.returnPC
	if f.storeVar >= 0 {
		return m.storeVariable(byte(f.storeVar), value)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Output plumbing
// ---------------------------------------------------------------------------

// emit hands a non-text command to the sink.
func (m *Machine) emit(c Command) {
	if m.sink != nil {
		m.sink.Emit(c)
	}
}

// print routes game text through the output streams. While stream 3 is
// selected, text collects as ZSCII into the innermost redirection and every
// other stream is suppressed.
func (m *Machine) print(text string) {
	if len(m.stream3) > 0 {
		dest := &m.stream3[len(m.stream3)-1]
		for _, r := range text {
			if r == '\n' {
				dest.data = append(dest.data, zsciiNewline)
				continue
			}
			dest.data = append(dest.data, byte(m.codec.runeToZSCII(r)))
		}
		return
	}
	if m.screenOn && text != "" {
		m.emit(PrintCommand{Window: m.window, Text: text})
	}
}

// printRune prints a single decoded character.
func (m *Machine) printRune(r rune) {
	if r != 0 {
		m.print(string(r))
	}
}

// ---------------------------------------------------------------------------
// Snapshots
// ---------------------------------------------------------------------------

// snapshot captures everything save/restore and undo need: the dynamic
// region, the frame stack, and the PC.
type snapshot struct {
	pc      uint32
	dynamic []byte
	frames  []*callFrame
}

func (m *Machine) captureSnapshot() *snapshot {
	s := &snapshot{
		pc:      m.pc,
		dynamic: append([]byte(nil), m.mem.Dynamic()...),
		frames:  make([]*callFrame, len(m.frames)),
	}
	for i, f := range m.frames {
		s.frames[i] = f.clone()
	}
	return s
}

func (m *Machine) applySnapshot(s *snapshot) error {
	if len(s.dynamic) != len(m.mem.Dynamic()) {
		return gameErrf("snapshot dynamic size %d does not match story %d", len(s.dynamic), len(m.mem.Dynamic()))
	}
	if len(s.frames) == 0 {
		return gameErrf("snapshot has no call frames")
	}
	copy(m.mem.Dynamic(), s.dynamic)
	m.frames = make([]*callFrame, len(s.frames))
	for i, f := range s.frames {
		m.frames[i] = f.clone()
	}
	m.pc = s.pc
	// The interpreter-owned header bytes are not part of saved state.
	m.caps.apply(m.mem, m.header)
	return nil
}

// restart rebuilds dynamic memory from the pristine load image. The two
// game-controlled Flags2 bits (transcript, fixed pitch) survive.
func (m *Machine) restart() error {
	flags2, err := m.mem.ReadWord(hdrFlags2)
	if err != nil {
		return err
	}
	keep := flags2 & (flags2Transcript | flags2FixedPitch)

	copy(m.mem.Dynamic(), m.pristine)

	flags2, err = m.mem.ReadWord(hdrFlags2)
	if err != nil {
		return err
	}
	if err := m.mem.WriteWord(hdrFlags2, flags2&^(flags2Transcript|flags2FixedPitch)|keep); err != nil {
		return err
	}

	m.caps.apply(m.mem, m.header)
	m.emit(RestartCommand{})
	return m.resetExecution()
}

// checksum computes the story checksum: the sum of all bytes from 0x40 up
// to the header-declared file length, over the file as loaded (dynamic
// bytes come from the pristine copy, since the game may have scribbled on
// them since).
func (m *Machine) checksum() uint16 {
	var sum uint16
	end := m.header.FileLength
	if end > m.mem.Size() {
		end = m.mem.Size()
	}
	raw := m.mem.bytes()
	for addr := uint32(0x40); addr < end; addr++ {
		if addr < m.mem.StaticBase() {
			sum += uint16(m.pristine[addr])
		} else {
			sum += uint16(raw[addr])
		}
	}
	return sum
}

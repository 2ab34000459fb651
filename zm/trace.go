package zm

import (
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"
)

// Instruction tracing, off by default. Useful when a story misbehaves and
// the interesting part is the last few hundred instructions.

var traceLog = commonlog.GetLogger("zart.zm")

// SetTracing toggles per-instruction debug logging on the "zart.zm"
// logger. The host configures commonlog verbosity and backend.
func (m *Machine) SetTracing(on bool) {
	m.tracing = on
}

func (m *Machine) traceOp(at uint32, op byte) {
	if !m.tracing {
		return
	}
	traceLog.Debugf("pc=%05x op=%02x %-14s depth=%d", at, op, opcodeName(op), len(m.frames)-1)
}

// opcodeName decodes a mnemonic from the raw first instruction byte, for
// trace output only; dispatch does its own decoding.
func opcodeName(op byte) string {
	switch {
	case op == 0xBE:
		return "extended"
	case op < 0x80, op >= 0xC0 && op < 0xE0:
		return name2OP(op & 0x1F)
	case op < 0xB0:
		return name1OP(op & 0x0F)
	case op < 0xC0:
		return name0OP(op & 0x0F)
	default:
		return nameVAR(op & 0x1F)
	}
}

var names2OP = [...]string{
	0x01: "je", 0x02: "jl", 0x03: "jg", 0x04: "dec_chk", 0x05: "inc_chk",
	0x06: "jin", 0x07: "test", 0x08: "or", 0x09: "and", 0x0A: "test_attr",
	0x0B: "set_attr", 0x0C: "clear_attr", 0x0D: "store", 0x0E: "insert_obj",
	0x0F: "loadw", 0x10: "loadb", 0x11: "get_prop", 0x12: "get_prop_addr",
	0x13: "get_next_prop", 0x14: "add", 0x15: "sub", 0x16: "mul",
	0x17: "div", 0x18: "mod", 0x19: "call_2s", 0x1A: "call_2n",
	0x1B: "set_colour", 0x1C: "throw",
}

var names1OP = [...]string{
	0x00: "jz", 0x01: "get_sibling", 0x02: "get_child", 0x03: "get_parent",
	0x04: "get_prop_len", 0x05: "inc", 0x06: "dec", 0x07: "print_addr",
	0x08: "call_1s", 0x09: "remove_obj", 0x0A: "print_obj", 0x0B: "ret",
	0x0C: "jump", 0x0D: "print_paddr", 0x0E: "load", 0x0F: "not",
}

var names0OP = [...]string{
	0x00: "rtrue", 0x01: "rfalse", 0x02: "print", 0x03: "print_ret",
	0x04: "nop", 0x05: "save", 0x06: "restore", 0x07: "restart",
	0x08: "ret_popped", 0x09: "pop", 0x0A: "quit", 0x0B: "new_line",
	0x0C: "show_status", 0x0D: "verify", 0x0F: "piracy",
}

var namesVAR = [...]string{
	0x00: "call", 0x01: "storew", 0x02: "storeb", 0x03: "put_prop",
	0x04: "read", 0x05: "print_char", 0x06: "print_num", 0x07: "random",
	0x08: "push", 0x09: "pull", 0x0A: "split_window", 0x0B: "set_window",
	0x0C: "call_vs2", 0x0D: "erase_window", 0x0E: "erase_line",
	0x0F: "set_cursor", 0x10: "get_cursor", 0x11: "set_text_style",
	0x12: "buffer_mode", 0x13: "output_stream", 0x14: "input_stream",
	0x15: "sound_effect", 0x16: "read_char", 0x17: "scan_table",
	0x18: "not", 0x19: "call_vn", 0x1A: "call_vn2", 0x1B: "tokenise",
	0x1C: "encode_text", 0x1D: "copy_table", 0x1E: "print_table",
	0x1F: "check_arg_count",
}

func name2OP(op byte) string { return lookupName(names2OP[:], op) }
func name1OP(op byte) string { return lookupName(names1OP[:], op) }
func name0OP(op byte) string { return lookupName(names0OP[:], op) }
func nameVAR(op byte) string { return lookupName(namesVAR[:], op) }

func lookupName(table []string, op byte) string {
	if int(op) < len(table) && table[op] != "" {
		return table[op]
	}
	return "?"
}

package zm

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Capabilities is the driver's declaration of what its presentation layer
// can actually do. The machine projects it into the interpreter-owned
// header bytes at load, restart, and restore, so the story can interrogate
// its environment the usual way. It loads from a TOML file so a host can
// ship one capability profile per front end.
type Capabilities struct {
	Screen   ScreenCaps  `toml:"screen"`
	Features FeatureCaps `toml:"features"`
	Interp   InterpCaps  `toml:"interpreter"`

	// UndoSlots bounds the in-memory undo ring; 0 means the default.
	UndoSlots int `toml:"undo-slots"`

	// GraphicsFont reports whether font 3, the character graphics set, is
	// renderable.
	GraphicsFont bool `toml:"graphics-font"`
}

// ScreenCaps describes the visible display surface.
type ScreenCaps struct {
	Lines      uint8 `toml:"lines"`
	Columns    uint8 `toml:"columns"`
	FontWidth  uint8 `toml:"font-width"`
	FontHeight uint8 `toml:"font-height"`
}

// FeatureCaps lists optional presentation features.
type FeatureCaps struct {
	StatusLine  bool `toml:"status-line"`
	ScreenSplit bool `toml:"screen-split"`
	Colours     bool `toml:"colours"`
	Boldface    bool `toml:"boldface"`
	Italic      bool `toml:"italic"`
	FixedPitch  bool `toml:"fixed-pitch"`
	Sound       bool `toml:"sound"`
	Pictures    bool `toml:"pictures"`
	TimedInput  bool `toml:"timed-input"`
}

// InterpCaps identifies the interpreter to the story.
type InterpCaps struct {
	Number  uint8 `toml:"number"`
	Version uint8 `toml:"version"`
}

// DefaultCapabilities describes a plain scrolling text terminal: status
// line, screen splitting, fixed pitch, styled text, no sound or graphics.
func DefaultCapabilities() Capabilities {
	return Capabilities{
		Screen: ScreenCaps{Lines: 24, Columns: 80, FontWidth: 1, FontHeight: 1},
		Features: FeatureCaps{
			StatusLine:  true,
			ScreenSplit: true,
			Boldface:    true,
			Italic:      true,
			FixedPitch:  true,
			TimedInput:  true,
		},
		Interp:       InterpCaps{Number: 6, Version: 'Z'},
		GraphicsFont: true,
	}
}

// LoadCapabilities reads a capability profile from a TOML file. Fields the
// file omits keep their defaults.
func LoadCapabilities(path string) (Capabilities, error) {
	caps := DefaultCapabilities()
	data, err := os.ReadFile(path)
	if err != nil {
		return caps, fmt.Errorf("cannot read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &caps); err != nil {
		return caps, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return caps, nil
}

// apply writes the interpreter-owned header bytes. Dynamic-memory rules do
// not apply here; these bytes belong to the interpreter in every version.
func (c Capabilities) apply(mem *Memory, h *Header) {
	flags1, _ := mem.ReadByte(hdrFlags1)
	if h.Version <= 3 {
		flags1 &^= flags1StatusUnavailable | flags1ScreenSplit | flags1VarPitchDefault
		if !c.Features.StatusLine {
			flags1 |= flags1StatusUnavailable
		}
		if c.Features.ScreenSplit {
			flags1 |= flags1ScreenSplit
		}
	} else {
		flags1 &^= flags1Colours | flags1Pictures | flags1Boldface | flags1Italic |
			flags1FixedPitch | flags1Sound | flags1TimedInput
		if c.Features.Colours {
			flags1 |= flags1Colours
		}
		if c.Features.Pictures && h.Version == 6 {
			flags1 |= flags1Pictures
		}
		if c.Features.Boldface {
			flags1 |= flags1Boldface
		}
		if c.Features.Italic {
			flags1 |= flags1Italic
		}
		if c.Features.FixedPitch {
			flags1 |= flags1FixedPitch
		}
		if c.Features.Sound {
			flags1 |= flags1Sound
		}
		if c.Features.TimedInput {
			flags1 |= flags1TimedInput
		}
	}
	mem.writeHeaderByte(hdrFlags1, flags1)

	// Flags2 requests the interpreter cannot honour are cleared; the rest
	// are left as the game set them.
	flags2, _ := mem.ReadWord(hdrFlags2)
	if !c.Features.Pictures {
		flags2 &^= flags2Pictures
	}
	if !c.Features.Colours {
		flags2 &^= flags2Colours
	}
	if !c.Features.Sound {
		flags2 &^= flags2Sound
	}
	flags2 &^= flags2Mouse | flags2Menus
	mem.writeHeaderByte(hdrFlags2, byte(flags2>>8))
	mem.writeHeaderByte(hdrFlags2+1, byte(flags2))

	if h.Version >= 4 {
		mem.writeHeaderByte(hdrInterpNumber, c.Interp.Number)
		mem.writeHeaderByte(hdrInterpVersion, c.Interp.Version)
		mem.writeHeaderByte(hdrScreenHeight, c.Screen.Lines)
		mem.writeHeaderByte(hdrScreenWidth, c.Screen.Columns)
	}
	if h.Version >= 5 {
		// Screen size in units; for a character display, units are cells.
		w := uint16(c.Screen.Columns) * uint16(c.Screen.FontWidth)
		hh := uint16(c.Screen.Lines) * uint16(c.Screen.FontHeight)
		mem.writeHeaderByte(hdrScreenWidthU, byte(w>>8))
		mem.writeHeaderByte(hdrScreenWidthU+1, byte(w))
		mem.writeHeaderByte(hdrScreenHeightU, byte(hh>>8))
		mem.writeHeaderByte(hdrScreenHeightU+1, byte(hh))
		if h.Version == 6 {
			mem.writeHeaderByte(hdrFontWidth, c.Screen.FontHeight)
			mem.writeHeaderByte(hdrFontHeight, c.Screen.FontWidth)
		} else {
			mem.writeHeaderByte(hdrFontWidth, c.Screen.FontWidth)
			mem.writeHeaderByte(hdrFontHeight, c.Screen.FontHeight)
		}
		// Standard revision 1.1.
		mem.writeHeaderByte(hdrStandardRev, 1)
		mem.writeHeaderByte(hdrStandardRev+1, 1)
	}
}

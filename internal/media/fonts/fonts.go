package fonts

import (
	"encoding/binary"
	"os"

	"golang.org/x/image/font/sfnt"

	"mediaflow/internal/services"
)

// Font is a parsed font file.
type Font struct {
	face *sfnt.Font
	data []byte
	// tables maps table tags to their byte ranges in data.
	tables map[string][2]uint32
	buf    sfnt.Buffer
}

// Open reads and parses the font at path. For collections the first face is
// used.
func Open(path string) (*Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "fonts", "read", path, err)
	}
	return Parse(data)
}

// Parse parses a font from memory.
func Parse(data []byte) (*Font, error) {
	directory := uint32(0)
	var face *sfnt.Font
	if len(data) >= 16 && string(data[:4]) == "ttcf" {
		collection, err := sfnt.ParseCollection(data)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "fonts", "parse collection", "", err)
		}
		if face, err = collection.Font(0); err != nil {
			return nil, services.Wrap(services.ErrValidation, "fonts", "parse collection", "first face", err)
		}
		directory = binary.BigEndian.Uint32(data[12:16])
	} else {
		var err error
		if face, err = sfnt.Parse(data); err != nil {
			return nil, services.Wrap(services.ErrValidation, "fonts", "parse", "not a TrueType or OpenType font", err)
		}
	}
	return &Font{face: face, data: data, tables: readDirectory(data, directory)}, nil
}

// readDirectory indexes the table directory at offset. Malformed entries
// are skipped; sfnt has already validated the tables it relies on.
func readDirectory(data []byte, offset uint32) map[string][2]uint32 {
	tables := make(map[string][2]uint32)
	if int(offset)+12 > len(data) {
		return tables
	}
	count := int(binary.BigEndian.Uint16(data[offset+4:]))
	for i := range count {
		record := int(offset) + 12 + i*16
		if record+16 > len(data) {
			break
		}
		tag := string(data[record : record+4])
		start := binary.BigEndian.Uint32(data[record+8:])
		length := binary.BigEndian.Uint32(data[record+12:])
		if uint64(start)+uint64(length) > uint64(len(data)) {
			continue
		}
		tables[tag] = [2]uint32{start, length}
	}
	return tables
}

// HasTable reports whether the font carries the table tag.
func (f *Font) HasTable(tag string) bool {
	_, ok := f.tables[tag]
	return ok
}

func (f *Font) table(tag string) []byte {
	r, ok := f.tables[tag]
	if !ok {
		return nil
	}
	return f.data[r[0] : r[0]+r[1]]
}

// NumGlyphs returns the glyph count.
func (f *Font) NumGlyphs() int {
	return f.face.NumGlyphs()
}

// Covers reports whether every rune in s has a glyph.
func (f *Font) Covers(s string) bool {
	for _, r := range s {
		index, err := f.face.GlyphIndex(&f.buf, r)
		if err != nil || index == 0 {
			return false
		}
	}
	return true
}

// SupportsKerning reports whether the font has a legacy kern table or GPOS
// positioning.
func (f *Font) SupportsKerning() bool {
	return f.HasTable("kern") || f.HasTable("GPOS")
}

// chineseSample is a handful of the most frequent Han characters.
const chineseSample = "的一是不了人我在有他这中大来上国个到说们为子和你地出道也时年"

// SupportsChinese reports coverage of common Chinese characters.
func (f *Font) SupportsChinese() bool {
	return f.Covers(chineseSample)
}

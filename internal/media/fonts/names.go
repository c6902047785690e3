package fonts

import (
	"encoding/binary"
	"strings"

	"golang.org/x/image/font/sfnt"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	"mediaflow/internal/language"
)

const (
	platformUnicode    = 0
	platformMac        = 1
	platformWindows    = 3
	windowsEnglishUS   = 0x0409
	macLanguageEnglish = 0
)

// windowsLanguageIDs maps BCP 47 tags to Windows name-table language IDs.
var windowsLanguageIDs = map[string]uint16{
	"en":      0x0409,
	"en-GB":   0x0809,
	"zh":      0x0804,
	"zh-Hans": 0x0804,
	"zh-Hant": 0x0404,
	"ja":      0x0411,
	"ko":      0x0412,
	"fr":      0x040C,
	"de":      0x0407,
	"es":      0x0C0A,
	"it":      0x0410,
	"pt":      0x0816,
	"pt-BR":   0x0416,
	"ru":      0x0419,
	"ar":      0x0401,
	"nl":      0x0413,
	"pl":      0x0415,
	"sv":      0x041D,
	"tr":      0x041F,
	"vi":      0x042A,
	"th":      0x041E,
	"uk":      0x0422,
	"el":      0x0408,
	"he":      0x040D,
}

func windowsLanguageID(lang language.Language) uint16 {
	if id, ok := windowsLanguageIDs[lang.Code()]; ok {
		return id
	}
	base, _ := lang.Tag.Base()
	if id, ok := windowsLanguageIDs[base.String()]; ok {
		return id
	}
	return windowsEnglishUS
}

type nameRecord struct {
	platform uint16
	encoding uint16
	language uint16
	id       uint16
	value    []byte
}

func (f *Font) nameRecords() []nameRecord {
	table := f.table("name")
	if len(table) < 6 {
		return nil
	}
	count := int(binary.BigEndian.Uint16(table[2:]))
	storage := int(binary.BigEndian.Uint16(table[4:]))
	records := make([]nameRecord, 0, count)
	for i := range count {
		at := 6 + i*12
		if at+12 > len(table) {
			break
		}
		length := int(binary.BigEndian.Uint16(table[at+8:]))
		offset := int(binary.BigEndian.Uint16(table[at+10:]))
		start := storage + offset
		if start+length > len(table) {
			continue
		}
		records = append(records, nameRecord{
			platform: binary.BigEndian.Uint16(table[at:]),
			encoding: binary.BigEndian.Uint16(table[at+2:]),
			language: binary.BigEndian.Uint16(table[at+4:]),
			id:       binary.BigEndian.Uint16(table[at+6:]),
			value:    table[start : start+length],
		})
	}
	return records
}

func decodeName(r nameRecord) string {
	switch r.platform {
	case platformUnicode, platformWindows:
		decoded, err := unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM).NewDecoder().Bytes(r.value)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(decoded))
	case platformMac:
		if r.encoding != 0 {
			return ""
		}
		decoded, err := charmap.Macintosh.NewDecoder().Bytes(r.value)
		if err != nil {
			return ""
		}
		return strings.TrimSpace(string(decoded))
	default:
		return ""
	}
}

// Name returns the name-table entry id, preferring a Windows record in
// lang, then US English, then the Mac English record, then whatever sfnt
// selects.
func (f *Font) Name(id sfnt.NameID, lang language.Language) string {
	want := windowsLanguageID(lang)
	var english, mac string
	for _, r := range f.nameRecords() {
		if r.id != uint16(id) {
			continue
		}
		switch {
		case r.platform == platformWindows && r.language == want:
			if value := decodeName(r); value != "" {
				return value
			}
		case r.platform == platformWindows && r.language == windowsEnglishUS && english == "":
			english = decodeName(r)
		case r.platform == platformMac && r.language == macLanguageEnglish && mac == "":
			mac = decodeName(r)
		}
	}
	switch {
	case english != "":
		return english
	case mac != "":
		return mac
	}
	value, err := f.face.Name(&f.buf, id)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(value)
}

// Metadata summarizes a font's naming and coverage.
type Metadata struct {
	FullName    string `json:"full_name"`
	Family      string `json:"family"`
	Subfamily   string `json:"subfamily"`
	Designer    string `json:"designer"`
	Description string `json:"description"`
	Version     string `json:"version"`
	Kerning     bool   `json:"kerning"`
	Chinese     bool   `json:"chinese"`
	GlyphCount  int    `json:"glyph_count"`
	Language    string `json:"language"`
}

// Metadata reads naming in lang. Typographic family names win over the
// legacy four-style family names when present.
func (f *Font) Metadata(lang language.Language) Metadata {
	family := f.Name(sfnt.NameIDTypographicFamily, lang)
	if family == "" {
		family = f.Name(sfnt.NameIDFamily, lang)
	}
	subfamily := f.Name(sfnt.NameIDTypographicSubfamily, lang)
	if subfamily == "" {
		subfamily = f.Name(sfnt.NameIDSubfamily, lang)
	}
	return Metadata{
		FullName:    f.Name(sfnt.NameIDFull, lang),
		Family:      family,
		Subfamily:   subfamily,
		Designer:    f.Name(sfnt.NameIDDesigner, lang),
		Description: f.Name(sfnt.NameIDDescription, lang),
		Version:     f.Name(sfnt.NameIDVersion, lang),
		Kerning:     f.SupportsKerning(),
		Chinese:     f.SupportsChinese(),
		GlyphCount:  f.NumGlyphs(),
		Language:    lang.Name,
	}
}

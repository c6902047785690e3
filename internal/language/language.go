package language

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Language is a normalized language selection.
type Language struct {
	Tag  language.Tag
	Name string
}

// English is the default for every language parameter.
var English = Language{Tag: language.English, Name: "English"}

// Code returns the canonical BCP 47 tag.
func (l Language) Code() string {
	return l.Tag.String()
}

// IsEnglish reports whether the base language is English, regardless of region.
func (l Language) IsEnglish() bool {
	base, _ := l.Tag.Base()
	english, _ := language.English.Base()
	return base == english
}

func (l Language) String() string {
	return l.Name
}

var candidates = []language.Tag{
	language.English, language.AmericanEnglish, language.BritishEnglish,
	language.Spanish, language.LatinAmericanSpanish, language.French, language.German,
	language.Italian, language.Portuguese, language.BrazilianPortuguese,
	language.Japanese, language.Korean, language.Chinese,
	language.SimplifiedChinese, language.TraditionalChinese,
	language.Russian, language.Arabic, language.Hindi, language.Dutch,
	language.Polish, language.Swedish, language.Danish, language.Norwegian,
	language.Finnish, language.Turkish, language.Vietnamese, language.Thai,
	language.Indonesian, language.Ukrainian, language.Czech, language.Greek,
	language.Hebrew, language.Hungarian, language.Romanian,
}

var byName = buildIndex()

func buildIndex() map[string]language.Tag {
	index := make(map[string]language.Tag, len(candidates)*2)
	english := display.English.Tags()
	for _, tag := range candidates {
		if name := english.Name(tag); name != "" {
			index[strings.ToLower(name)] = tag
		}
		if self := display.Self.Name(tag); self != "" {
			if _, exists := index[strings.ToLower(self)]; !exists {
				index[strings.ToLower(self)] = tag
			}
		}
	}
	return index
}

// Normalize resolves value to a Language. An empty value yields English.
func Normalize(value string) (Language, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return English, nil
	}
	if tag, ok := byName[strings.ToLower(trimmed)]; ok {
		return fromTag(tag), nil
	}
	tag, err := language.Parse(trimmed)
	if err != nil {
		return Language{}, fmt.Errorf("unrecognized language %q", value)
	}
	if tag == language.Und {
		return Language{}, fmt.Errorf("unrecognized language %q", value)
	}
	return fromTag(tag), nil
}

func fromTag(tag language.Tag) Language {
	name := display.English.Tags().Name(tag)
	if name == "" {
		name = tag.String()
	}
	return Language{Tag: tag, Name: name}
}

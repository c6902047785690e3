package ai

import (
	"fmt"
	"regexp"
	"strings"

	"mediaflow/internal/language"
)

// ImageDetail is the single-call image description.
type ImageDetail struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Tags        string `json:"tags"`
}

// Basic is the title and long description of an image.
type Basic struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// TagKeys lists the tag aspects in the order they are joined.
var TagKeys = []string{
	"theme_identification",
	"emotion_capture",
	"style_annotation",
	"color_analysis",
	"scene_description",
	"character_analysis",
	"purpose_clarification",
	"technology_identification",
	"time_marking",
	"trend_tracking",
}

// Tags maps each tag aspect to its values.
type Tags map[string][]string

// Joined flattens every value in TagKeys order into one comma-separated string.
func (t Tags) Joined() string {
	var values []string
	for _, key := range TagKeys {
		values = append(values, t[key]...)
	}
	return strings.Join(values, ",")
}

// DetailKeys lists the detail aspects in output order.
var DetailKeys = []string{
	"usage",
	"mood",
	"color_theme",
	"culture_traits",
	"industry_domain",
	"seasonality",
	"holiday_theme",
}

// Details maps each detail aspect to a short phrase, nil when not applicable.
type Details map[string]*string

// Ordered returns one single-key object per aspect in DetailKeys order.
func (d Details) Ordered() []map[string]*string {
	out := make([]map[string]*string, 0, len(DetailKeys))
	for _, key := range DetailKeys {
		out = append(out, map[string]*string{key: d[key]})
	}
	return out
}

// FontDetail is the model's description of a font specimen.
type FontDetail struct {
	Description           string `json:"description"`
	Tags                  string `json:"tags"`
	FontCategory          string `json:"font_category"`
	StrokeCharacteristics string `json:"stroke_characteristics"`
	HistoricalPeriod      string `json:"historical_period"`
}

const englishRejection = "model answered in English when %s was requested"

var tagSeparator = regexp.MustCompile(`[,，]`)

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= 0x80 {
			return false
		}
	}
	return true
}

// wrongLanguage reports whether any value is plain ASCII although lang is
// not English.
func wrongLanguage(lang language.Language, values ...string) bool {
	if lang.IsEnglish() {
		return false
	}
	for _, value := range values {
		if value != "" && isASCII(value) {
			return true
		}
	}
	return false
}

func decodeObject(content string) (map[string]any, string) {
	var object map[string]any
	if err := DecodeJSON(content, &object); err != nil {
		return nil, fmt.Sprintf("response is not a JSON object: %v", err)
	}
	return object, ""
}

func requireString(object map[string]any, key string) (string, string) {
	value, ok := object[key].(string)
	if !ok {
		return "", fmt.Sprintf("%q is missing or not a string", key)
	}
	return strings.TrimSpace(value), ""
}

// stringOrList accepts a string or a list of strings, joining lists with ",".
func stringOrList(object map[string]any, key string) (string, string) {
	switch value := object[key].(type) {
	case string:
		return strings.TrimSpace(value), ""
	case []any:
		parts := make([]string, 0, len(value))
		for _, item := range value {
			s, ok := item.(string)
			if !ok {
				return "", fmt.Sprintf("%q contains a non-string value", key)
			}
			if s = strings.TrimSpace(s); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ","), ""
	default:
		return "", fmt.Sprintf("%q is missing or not a string", key)
	}
}

// CheckImageDetail validates a single-call image description.
func CheckImageDetail(content string, lang language.Language) Verdict[ImageDetail] {
	object, reason := decodeObject(content)
	if reason != "" {
		return Rejected[ImageDetail](reason)
	}
	var out ImageDetail
	if out.Title, reason = requireString(object, "title"); reason != "" {
		return Rejected[ImageDetail](reason)
	}
	if out.Description, reason = requireString(object, "description"); reason != "" {
		return Rejected[ImageDetail](reason)
	}
	if out.Tags, reason = stringOrList(object, "tags"); reason != "" {
		return Rejected[ImageDetail](reason)
	}
	if wrongLanguage(lang, out.Title, out.Description) {
		return Rejected[ImageDetail](fmt.Sprintf(englishRejection, lang.Name))
	}
	return Ok(out)
}

// CheckBasic validates a title and description answer.
func CheckBasic(content string, lang language.Language) Verdict[Basic] {
	object, reason := decodeObject(content)
	if reason != "" {
		return Rejected[Basic](reason)
	}
	var out Basic
	if out.Title, reason = requireString(object, "title"); reason != "" {
		return Rejected[Basic](reason)
	}
	if out.Description, reason = requireString(object, "description"); reason != "" {
		return Rejected[Basic](reason)
	}
	if wrongLanguage(lang, out.Title, out.Description) {
		return Rejected[Basic](fmt.Sprintf(englishRejection, lang.Name))
	}
	return Ok(out)
}

// CheckTags normalizes a tag answer. Aspects that are missing or not lists of
// strings become empty; values containing commas are split.
func CheckTags(content string, lang language.Language) Verdict[Tags] {
	object, reason := decodeObject(content)
	if reason != "" {
		return Rejected[Tags](reason)
	}
	tags := make(Tags, len(TagKeys))
	var all []string
	for _, key := range TagKeys {
		values := []string{}
		list, _ := object[key].([]any)
		for _, item := range list {
			s, ok := item.(string)
			if !ok {
				values = []string{}
				break
			}
			for _, part := range tagSeparator.Split(s, -1) {
				if part = strings.TrimSpace(part); part != "" {
					values = append(values, part)
				}
			}
		}
		tags[key] = values
		all = append(all, values...)
	}
	if wrongLanguage(lang, all...) {
		return Rejected[Tags](fmt.Sprintf(englishRejection, lang.Name))
	}
	return Ok(tags)
}

// CheckDetails normalizes a detail answer. Aspects that are missing or not
// strings become nil.
func CheckDetails(content string, lang language.Language) Verdict[Details] {
	object, reason := decodeObject(content)
	if reason != "" {
		return Rejected[Details](reason)
	}
	details := make(Details, len(DetailKeys))
	var all []string
	for _, key := range DetailKeys {
		s, ok := object[key].(string)
		if s = strings.TrimSpace(s); !ok || s == "" {
			details[key] = nil
			continue
		}
		details[key] = &s
		all = append(all, s)
	}
	if wrongLanguage(lang, all...) {
		return Rejected[Details](fmt.Sprintf(englishRejection, lang.Name))
	}
	return Ok(details)
}

// CheckFontDetail validates a font description; every field is required.
func CheckFontDetail(content string, lang language.Language) Verdict[FontDetail] {
	object, reason := decodeObject(content)
	if reason != "" {
		return Rejected[FontDetail](reason)
	}
	var out FontDetail
	fields := []struct {
		key    string
		target *string
		list   bool
	}{
		{"description", &out.Description, false},
		{"tags", &out.Tags, true},
		{"font_category", &out.FontCategory, false},
		{"stroke_characteristics", &out.StrokeCharacteristics, false},
		{"historical_period", &out.HistoricalPeriod, false},
	}
	for _, field := range fields {
		if field.list {
			*field.target, reason = stringOrList(object, field.key)
		} else {
			*field.target, reason = requireString(object, field.key)
		}
		if reason != "" {
			return Rejected[FontDetail](reason)
		}
	}
	if wrongLanguage(lang, out.Description) {
		return Rejected[FontDetail](fmt.Sprintf(englishRejection, lang.Name))
	}
	return Ok(out)
}

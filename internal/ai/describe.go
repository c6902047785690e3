package ai

import (
	"context"
	"fmt"
	"strings"

	"mediaflow/internal/language"
)

// ImageDetail describes the image at image (a URL or local path) with a
// title, a description and comma-separated tags.
func (d *Describer) ImageDetail(ctx context.Context, image string, lang language.Language) (Verdict[ImageDetail], error) {
	content, err := d.complete(ctx, "image detail", imageDetailPrompt(lang), image)
	if err != nil {
		return Verdict[ImageDetail]{}, err
	}
	return CheckImageDetail(content, lang), nil
}

// Basic asks for a title and a long description.
func (d *Describer) Basic(ctx context.Context, image string, lang language.Language) (Verdict[Basic], error) {
	content, err := d.complete(ctx, "image basic", basicPrompt(lang), image)
	if err != nil {
		return Verdict[Basic]{}, err
	}
	return CheckBasic(content, lang), nil
}

// Tags asks for tag lists along the TagKeys aspects.
func (d *Describer) Tags(ctx context.Context, image string, lang language.Language) (Verdict[Tags], error) {
	content, err := d.complete(ctx, "image tags", tagsPrompt(lang), image)
	if err != nil {
		return Verdict[Tags]{}, err
	}
	return CheckTags(content, lang), nil
}

// Details asks for a short phrase per DetailKeys aspect.
func (d *Describer) Details(ctx context.Context, image string, lang language.Language) (Verdict[Details], error) {
	content, err := d.complete(ctx, "image details", detailsPrompt(lang), image)
	if err != nil {
		return Verdict[Details]{}, err
	}
	return CheckDetails(content, lang), nil
}

// FontDetail describes a font from its specimen image and basic facts
// (basicInfo is a JSON object).
func (d *Describer) FontDetail(ctx context.Context, image, basicInfo string, lang language.Language) (Verdict[FontDetail], error) {
	content, err := d.complete(ctx, "font detail", fontDetailPrompt(lang, basicInfo), image)
	if err != nil {
		return Verdict[FontDetail]{}, err
	}
	return CheckFontDetail(content, lang), nil
}

func imageDetailPrompt(lang language.Language) string {
	return fmt.Sprintf(`Describe the image in %[1]s.
Return a JSON object with these keys:
- title: one short sentence in %[1]s summarizing the image, without punctuation
- description: a detailed %[1]s description of everything visible, including any text and its typeface
- tags: a comma-separated string of short %[1]s keywords`, lang.Name)
}

func basicPrompt(lang language.Language) string {
	return fmt.Sprintf(`Give the image a title and a detailed description, both in %[1]s.
Return a JSON object with the keys "title" and "description".
The title is one short sentence without punctuation.
The description mentions every object in the image. If the image contains text, quote it and name its typeface.`, lang.Name)
}

func tagsPrompt(lang language.Language) string {
	aspects := []string{
		"theme_identification: the core theme, such as education, technology or health",
		"emotion_capture: the emotional tone, such as motivational, joyful or sad",
		"style_annotation: the visual style, such as modern, vintage or minimalist",
		"color_analysis: the main colors",
		"scene_description: the setting, such as office, outdoor or home",
		"character_analysis: the people by role or feature, such as professionals, children or athletes",
		"purpose_clarification: the intended use, such as advertising, education or social media",
		"technology_identification: specific technologies shown, such as 3D printing or virtual reality",
		"time_marking: time references, such as spring, night or 20th century",
		"trend_tracking: current trends, such as sustainable development or artificial intelligence",
	}
	return fmt.Sprintf(`Tag the image in %[1]s along these aspects:
- %[2]s

Return a JSON object with exactly these keys. Each value is a list of short %[1]s strings.
Use an empty list when an aspect does not apply or nothing informative can be said.
Never nest objects; summarize long values.`, lang.Name, strings.Join(aspects, "\n- "))
}

func detailsPrompt(lang language.Language) string {
	return fmt.Sprintf(`Describe the image in %[1]s along these aspects: %[2]s.
Return a JSON object with exactly these keys. Each value is a short %[1]s phrase, or null when nothing relevant can be said.
Translate any value that is not in %[1]s.`, lang.Name, strings.Join(DetailKeys, ", "))
}

func fontDetailPrompt(lang language.Language, basicInfo string) string {
	return fmt.Sprintf(`The image is a specimen of a font. Known facts about the font: %[2]s
Describe the font in %[1]s and return a JSON object with these string keys:
- description: what the font looks like and what it suits
- tags: comma-separated %[1]s keywords
- font_category: such as serif, sans-serif, script or display
- stroke_characteristics: stroke contrast, terminals and weight
- historical_period: the era or movement the design draws on`, lang.Name, basicInfo)
}

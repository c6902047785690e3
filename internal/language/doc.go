// Package language normalizes the language parameters accepted by the
// description and font activities.
//
// Callers may pass BCP 47 tags ("zh-Hans", "pt-BR"), ISO 639 codes ("fra")
// or English display names ("Simplified Chinese"); every form resolves to a
// canonical Tag plus the English name that is forwarded to the model prompt.
package language

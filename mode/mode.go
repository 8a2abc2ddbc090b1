// Package mode defines the transformations applied to a transcript and
// their fixed cycling order.
package mode

import (
	"fmt"
	"strings"
)

type Kind int

const (
	Normal Kind = iota
	Formal
	Translate
	Structure
	Summarize
	Custom
)

func (k Kind) String() string {
	switch k {
	case Normal:
		return "Normal"
	case Formal:
		return "Formal"
	case Translate:
		return "Translate"
	case Structure:
		return "Structure"
	case Summarize:
		return "Summarize"
	case Custom:
		return "Custom"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// DefaultTargetLanguage is the Translate target when none is configured.
const DefaultTargetLanguage = "English"

// Languages offered for Translate.
var Languages = []string{
	"English",
	"Spanish",
	"French",
	"German",
	"Italian",
	"Portuguese",
	"Dutch",
	"Russian",
	"Chinese",
	"Japanese",
	"Korean",
	"Arabic",
}

const (
	formalPrompt = "You are a professional writing assistant. " +
		"Rewrite the following text to be more professional, clear, and polished. " +
		"Maintain the original meaning but improve clarity and tone. " +
		"Only output the rewritten text, nothing else."
	translatePrompt = "You are a professional translator. " +
		"Translate the following text to %s. " +
		"Maintain the original meaning, tone, and style as much as possible. " +
		"Only output the translated text, nothing else."
	structurePrompt = "You are a professional editor. " +
		"Restructure the following text into clear, concise bullet points. " +
		"Organize the information logically and make it easy to scan. " +
		"Use proper hierarchy if needed. Only output the structured text, nothing else."
	summarizePrompt = "You are a professional summarizer. " +
		"Condense the following text to its key points. " +
		"Be concise but preserve all important information. " +
		"Only output the summary, nothing else."
)

// Mode is a value: built-in modes carry only their Kind (plus the target
// language for Translate), custom modes carry a user-supplied name and
// system prompt.
type Mode struct {
	Kind           Kind
	Name           string
	Prompt         string
	TargetLanguage string
}

func NewNormal() Mode    { return Mode{Kind: Normal} }
func NewFormal() Mode    { return Mode{Kind: Formal} }
func NewStructure() Mode { return Mode{Kind: Structure} }
func NewSummarize() Mode { return Mode{Kind: Summarize} }

func NewTranslate(lang string) Mode {
	if strings.TrimSpace(lang) == "" {
		lang = DefaultTargetLanguage
	}
	return Mode{Kind: Translate, TargetLanguage: lang}
}

func NewCustom(name, prompt string) Mode {
	return Mode{Kind: Custom, Name: name, Prompt: prompt}
}

// IsNormal reports whether m is the identity transform, which never calls
// the language model.
func (m Mode) IsNormal() bool { return m.Kind == Normal }

func (m Mode) Label() string {
	switch m.Kind {
	case Custom:
		return m.Name
	case Translate:
		if m.TargetLanguage != "" && m.TargetLanguage != DefaultTargetLanguage {
			return "Translate (" + m.TargetLanguage + ")"
		}
	}
	return m.Kind.String()
}

func (m Mode) String() string { return m.Label() }

// SystemPrompt returns the instruction sent ahead of the transcript. An
// empty prompt means the mode passes text through unchanged.
func (m Mode) SystemPrompt() string {
	switch m.Kind {
	case Formal:
		return formalPrompt
	case Translate:
		lang := m.TargetLanguage
		if lang == "" {
			lang = DefaultTargetLanguage
		}
		return fmt.Sprintf(translatePrompt, lang)
	case Structure:
		return structurePrompt
	case Summarize:
		return summarizePrompt
	case Custom:
		return m.Prompt
	}
	return ""
}

// Same reports whether a and b occupy the same slot in a cycle. The
// Translate target language does not change the slot.
func (m Mode) Same(o Mode) bool {
	if m.Kind != o.Kind {
		return false
	}
	if m.Kind == Custom {
		return m.Name == o.Name
	}
	return true
}

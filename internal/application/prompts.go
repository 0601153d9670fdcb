package application

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/ahrav/go-tourney/internal/domain"
	"github.com/ahrav/go-tourney/internal/tournament"
)

// Severity selects the analyzer system prompt. Higher severities lower the
// threshold at which a competitor should flag abuse.
type Severity string

// Analyzer severities.
const (
	SeverityNeutral                    Severity = "neutral"
	SeverityVigilant                   Severity = "vigilant"
	SeverityNeutralWithHistory         Severity = "neutral_with_history"
	SeverityExtremeVigilantWithHistory Severity = "extreme_vigilant_with_history"
)

// DefaultSeverity matches the setting tournaments have historically run with.
const DefaultSeverity = SeverityExtremeVigilantWithHistory

// Severities lists every accepted severity.
var Severities = []Severity{
	SeverityNeutral,
	SeverityVigilant,
	SeverityNeutralWithHistory,
	SeverityExtremeVigilantWithHistory,
}

// PromptSet holds the templates for one language.
type PromptSet struct {
	Systems       map[Severity]string
	Analyze       *template.Template
	CompareSystem string
	Compare       *template.Template
	Markers       tournament.Markers
}

type analyzeData struct {
	Text    string
	Context string
}

type compareData struct {
	Text    string
	Context string
	Left    string
	Right   string
	Markers tournament.Markers
}

// Prompts renders analyzer and comparison prompts per language.
type Prompts struct {
	sets     map[string]*PromptSet
	severity Severity
}

// NewPrompts returns the built-in Spanish and English prompts at the given
// severity. Marker overrides replace the built-in markers of their
// language.
func NewPrompts(severity Severity, markers map[string]tournament.Markers) (*Prompts, error) {
	if severity == "" {
		severity = DefaultSeverity
	}

	p := &Prompts{sets: builtinPromptSets(), severity: severity}
	for lang, set := range p.sets {
		if _, ok := set.Systems[severity]; !ok {
			return nil, fmt.Errorf("language %s: unknown severity %q", lang, severity)
		}
	}
	for lang, m := range markers {
		set, ok := p.sets[NormalizeLanguage(lang)]
		if !ok {
			return nil, fmt.Errorf("markers given for unsupported language %q", lang)
		}
		set.Markers = m
	}
	return p, nil
}

// Languages lists the supported language codes.
func (p *Prompts) Languages() []string {
	out := make([]string, 0, len(p.sets))
	for lang := range p.sets {
		out = append(out, lang)
	}
	return out
}

// Markers returns the verdict markers for lang.
func (p *Prompts) Markers(lang string) (tournament.Markers, error) {
	set, err := p.set(lang)
	if err != nil {
		return tournament.Markers{}, err
	}
	return set.Markers, nil
}

// Analyzer renders the system and user prompts a competitor receives for
// text.
func (p *Prompts) Analyzer(text domain.Text) (system, prompt string, err error) {
	set, err := p.set(text.Language)
	if err != nil {
		return "", "", err
	}
	prompt, err = render(set.Analyze, analyzeData{Text: text.Body, Context: strings.TrimSpace(text.Context)})
	if err != nil {
		return "", "", err
	}
	return set.Systems[p.severity], prompt, nil
}

// Comparison renders the prompts a judge receives to compare the left and
// right analyses of text.
func (p *Prompts) Comparison(text domain.Text, left, right string) (system, prompt string, err error) {
	set, err := p.set(text.Language)
	if err != nil {
		return "", "", err
	}
	prompt, err = render(set.Compare, compareData{
		Text:    text.Body,
		Context: strings.TrimSpace(text.Context),
		Left:    left,
		Right:   right,
		Markers: set.Markers,
	})
	if err != nil {
		return "", "", err
	}
	return set.CompareSystem, prompt, nil
}

func (p *Prompts) set(lang string) (*PromptSet, error) {
	set, ok := p.sets[NormalizeLanguage(lang)]
	if !ok {
		return nil, fmt.Errorf("unsupported language %q", lang)
	}
	return set, nil
}

// NormalizeLanguage reduces a language tag to its base code, so "ES",
// "es-ES" and "es_419" all select the Spanish prompts.
func NormalizeLanguage(lang string) string {
	// A Caser is stateful, so each call gets its own.
	lang = cases.Fold().String(strings.TrimSpace(strings.ReplaceAll(lang, "_", "-")))
	if lang == "" {
		return ""
	}
	tag, err := language.Parse(lang)
	if err != nil {
		return lang
	}
	base, _ := tag.Base()
	return base.String()
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("rendering %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}

func builtinPromptSets() map[string]*PromptSet {
	return map[string]*PromptSet{
		"es": {
			Systems: map[Severity]string{
				SeverityNeutral: "Eres un experto en psicología forense que analiza mensajes escritos para detectar maltrato psicológico. " +
					"Cuando el usuario te pida analizar un mensaje, identifica de manera objetiva y neutral cualquier indicio explícito o " +
					"implícito de maltrato y explica tu razonamiento. Presenta un análisis exhaustivo en español, explicando cada conclusión " +
					"clave en un texto claro y coherente.",
				SeverityVigilant: "Eres un experto en psicología forense que analiza mensajes escritos para detectar maltrato psicológico. " +
					"Debes mantener una vigilancia especial y un umbral bajo para señalar cualquier indicio de maltrato, por sutil que sea. " +
					"Cuando el usuario te pida analizar un mensaje, identifica de manera objetiva y neutral cualquier indicio explícito o " +
					"implícito de maltrato y explica tu razonamiento. Presenta un análisis exhaustivo en español, explicando cada conclusión " +
					"clave en un texto claro y coherente.",
				SeverityNeutralWithHistory: "Eres un experto en psicología forense que analiza mensajes escritos para detectar maltrato " +
					"psicológico. Existe un historial confirmado y recurrente de maltrato psicológico hacia la persona receptora de los " +
					"mensajes, por lo que debes mantener una vigilancia especial y un umbral bajo para señalar cualquier indicio, por sutil " +
					"que sea. Cuando el usuario te pida analizar un mensaje, identifica de manera objetiva y neutral cualquier indicio " +
					"explícito o implícito de maltrato y explica tu razonamiento. Presenta un análisis exhaustivo en español, explicando " +
					"cada conclusión clave en un texto claro y coherente.",
				SeverityExtremeVigilantWithHistory: "Eres un experto en psicología forense que analiza mensajes escritos para detectar " +
					"maltrato psicológico. Existe un historial confirmado y recurrente de maltrato psicológico hacia la persona receptora de " +
					"los mensajes, por lo que debes mantener una vigilancia especial y un umbral bajo para señalar cualquier indicio, por " +
					"sutil que sea. Cuando el usuario te pida analizar un mensaje, identifica con objetividad, pero de forma incisiva y " +
					"contundente, cualquier indicio explícito o implícito de maltrato y explica tu razonamiento. No suavices el lenguaje: " +
					"subraya con claridad las conductas abusivas y su posible impacto psicológico. Presenta un análisis exhaustivo en " +
					"español, explicando cada conclusión clave en un texto claro y coherente.",
			},
			Analyze: template.Must(template.New("analyze-es").Parse(
				"Analiza el siguiente mensaje en busca de indicios de maltrato psicológico y explica tu razonamiento.\n\n" +
					"{{if .Context}}Contexto:\n{{.Context}}\n\n{{end}}" +
					"Mensaje:\n{{.Text}}")),
			CompareSystem: "Eres un experto en psicología forense que evalúa la calidad de análisis de maltrato psicológico. " +
				"Recibirás un mensaje y dos análisis del mismo. Decide cuál identifica con mayor precisión y fundamento los indicios " +
				"de maltrato. Tu respuesta debe comenzar exactamente con una de las etiquetas indicadas, sin texto previo.",
			Compare: template.Must(template.New("compare-es").Parse(
				"Mensaje:\n{{.Text}}\n\n" +
					"{{if .Context}}Contexto:\n{{.Context}}\n\n{{end}}" +
					"Análisis {{.Markers.Left}}:\n{{.Left}}\n\n" +
					"Análisis {{.Markers.Right}}:\n{{.Right}}\n\n" +
					"¿Qué análisis es mejor? Responde comenzando con {{.Markers.Left}}, {{.Markers.Right}} o {{.Markers.Tie}}.")),
			Markers: tournament.Markers{Left: "MODELO_1", Right: "MODELO_2", Tie: "EMPATE"},
		},
		"en": {
			Systems: map[Severity]string{
				SeverityNeutral: "You are a forensic psychology expert who analyses written messages to detect psychological abuse. " +
					"When the user asks you to analyse a message, identify objectively and neutrally any explicit or implicit sign of " +
					"abuse and explain your reasoning. Give a thorough analysis in English, explaining each key conclusion in clear, " +
					"coherent prose.",
				SeverityVigilant: "You are a forensic psychology expert who analyses written messages to detect psychological abuse. " +
					"Stay especially vigilant and keep a low threshold for flagging any sign of abuse, however subtle. When the user asks " +
					"you to analyse a message, identify objectively and neutrally any explicit or implicit sign of abuse and explain your " +
					"reasoning. Give a thorough analysis in English, explaining each key conclusion in clear, coherent prose.",
				SeverityNeutralWithHistory: "You are a forensic psychology expert who analyses written messages to detect psychological " +
					"abuse. There is a confirmed, recurring history of psychological abuse towards the recipient of the messages, so stay " +
					"especially vigilant and keep a low threshold for flagging any sign, however subtle. When the user asks you to analyse " +
					"a message, identify objectively and neutrally any explicit or implicit sign of abuse and explain your reasoning. Give " +
					"a thorough analysis in English, explaining each key conclusion in clear, coherent prose.",
				SeverityExtremeVigilantWithHistory: "You are a forensic psychology expert who analyses written messages to detect " +
					"psychological abuse. There is a confirmed, recurring history of psychological abuse towards the recipient of the " +
					"messages, so stay especially vigilant and keep a low threshold for flagging any sign, however subtle. When the user " +
					"asks you to analyse a message, identify objectively but incisively and forcefully any explicit or implicit sign of " +
					"abuse and explain your reasoning. Do not soften your language: point out abusive behaviour and its possible " +
					"psychological impact clearly. Give a thorough analysis in English, explaining each key conclusion in clear, coherent " +
					"prose.",
			},
			Analyze: template.Must(template.New("analyze-en").Parse(
				"Analyse the following message for signs of psychological abuse and explain your reasoning.\n\n" +
					"{{if .Context}}Context:\n{{.Context}}\n\n{{end}}" +
					"Message:\n{{.Text}}")),
			CompareSystem: "You are a forensic psychology expert who assesses the quality of psychological abuse analyses. " +
				"You will receive a message and two analyses of it. Decide which one identifies the signs of abuse more accurately " +
				"and with better grounding. Your reply must start with exactly one of the given labels, with no text before it.",
			Compare: template.Must(template.New("compare-en").Parse(
				"Message:\n{{.Text}}\n\n" +
					"{{if .Context}}Context:\n{{.Context}}\n\n{{end}}" +
					"Analysis {{.Markers.Left}}:\n{{.Left}}\n\n" +
					"Analysis {{.Markers.Right}}:\n{{.Right}}\n\n" +
					"Which analysis is better? Reply starting with {{.Markers.Left}}, {{.Markers.Right}} or {{.Markers.Tie}}.")),
			Markers: tournament.Markers{Left: "MODEL_1", Right: "MODEL_2", Tie: "DRAW"},
		},
	}
}

package assets

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"newsreel/internal/types"
)

const defaultCaptionTemplate = `{{ .Title }}

{{ truncate .Abstract .MaxAbstract }}

#news #{{ sectionTag .Section }}`

// CaptionBuilder renders the social caption for an article. Captions are
// assembled from fetched fields only; no text is generated here.
type CaptionBuilder struct {
	tmpl        *template.Template
	maxCaption  int
	maxAbstract int
}

type captionData struct {
	Title       string
	Abstract    string
	Section     string
	SourceURL   string
	Byline      string
	MaxAbstract int
}

func NewCaptionBuilder(templateText string, maxCaption, maxAbstract int) (*CaptionBuilder, error) {
	if templateText == "" {
		templateText = defaultCaptionTemplate
	}

	funcs := template.FuncMap{
		"truncate":   truncateRunes,
		"sectionTag": sectionTag,
	}

	tmpl, err := template.New("caption").Funcs(funcs).Parse(templateText)
	if err != nil {
		return nil, fmt.Errorf("failed to parse caption template: %w", err)
	}

	return &CaptionBuilder{
		tmpl:        tmpl,
		maxCaption:  maxCaption,
		maxAbstract: maxAbstract,
	}, nil
}

func (b *CaptionBuilder) Build(article types.Article) (string, error) {
	var buf bytes.Buffer
	err := b.tmpl.Execute(&buf, captionData{
		Title:       article.Title,
		Abstract:    article.Abstract,
		Section:     article.Section,
		SourceURL:   article.SourceURL,
		Byline:      article.Byline,
		MaxAbstract: b.maxAbstract,
	})
	if err != nil {
		return "", fmt.Errorf("caption template execution error: %w", err)
	}

	return truncateRunes(strings.TrimSpace(buf.String()), b.maxCaption), nil
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	if max <= 3 {
		return string(runes[:max])
	}
	return string(runes[:max-3]) + "..."
}

func sectionTag(section string) string {
	tag := strings.ReplaceAll(strings.TrimSpace(section), " ", "")
	if tag == "" {
		return "news"
	}
	return strings.ToLower(tag)
}

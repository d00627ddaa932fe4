package services

import (
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
)

const summaryTemplate = `This is a summary of the video "{{ .Title }}". The video discusses important topics related to the subject matter. Key points include the main arguments presented, supporting evidence, and conclusions drawn by the presenter.`

const answerTemplate = `Based on the video content, the answer to your question "{{ .Question }}" is that the topic is explained in detail around the middle of the video. The presenter provides several examples and case studies to illustrate the concept.`

const paperTemplate = `# {{ .Topic }}: A Comprehensive Analysis

## Abstract
This {{ .PaperType }} paper explores {{ .Topic }} in depth, examining its key aspects, current state of research, and future implications. Through careful analysis of existing literature and data, we provide insights into the significance of {{ .Topic | lower }} and its impact on various domains.

## 1. Introduction
{{ .Topic }} has emerged as a significant area of study in recent years. This paper aims to provide a comprehensive overview of the subject, analyzing its development, current applications, and potential future directions. The target length of this document is approximately {{ .WordCount }} words.

## 2. Background
The foundations of {{ .Topic | lower }} can be traced through several stages of development. Early work established the core concepts, while more recent contributions have refined the methods and broadened the range of applications.

## 3. Methodology
This research employs a mixed-methods approach, combining qualitative analysis of existing literature with quantitative assessment of available data. The methodology ensures a thorough examination of {{ .Topic | lower }} from multiple perspectives.

## 4. Results
Our analysis reveals several key findings regarding {{ .Topic | lower }}:
1. The field has seen significant growth in recent years
2. There are multiple approaches to addressing challenges in this area
3. Practical applications continue to expand across various sectors
{{- if .IncludeCharts }}

### Figures
Figure 1: Growth of publications related to {{ .Topic | lower }} over time.
Figure 2: Distribution of approaches across application domains.
{{- end }}

## 5. Discussion
The findings suggest that {{ .Topic | lower }} will continue to evolve and impact multiple domains. Key considerations include ethical implications, technical challenges, and opportunities for innovation.

## 6. Conclusion
This paper has provided a comprehensive analysis of {{ .Topic }}, highlighting its significance and potential future directions. Further research is needed to fully understand its long-term implications and to develop best practices for its application.
{{- if .Sources }}

## References
{{- range $i, $s := .Sources }}
{{ add1 $i }}. {{ $s.Title | trim }}{{ if $s.Authors }}. {{ join ", " $s.Authors }}{{ end }}{{ if $s.Published }} ({{ $s.Published }}){{ end }}. {{ $s.Link }}
{{- end }}
{{- end }}
`

var templates = template.Must(
	template.New("summary").Funcs(sprig.TxtFuncMap()).Parse(summaryTemplate),
)

func init() {
	template.Must(templates.New("answer").Parse(answerTemplate))
	template.Must(templates.New("paper").Parse(paperTemplate))
}

func render(name string, data interface{}) (string, error) {
	var b strings.Builder
	if err := templates.ExecuteTemplate(&b, name, data); err != nil {
		return "", err
	}
	return b.String(), nil
}

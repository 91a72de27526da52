package prompt

import (
	"bytes"
	_ "embed"
	"strings"
	"text/template"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/vidqa/pkg/domain/model"
)

// RefusalSentence is the answer the model is instructed to give when the context is insufficient
const RefusalSentence = "I don't have enough information from this video's transcript to answer that question."

//go:embed template/answer.md
var answerPromptTmpl string

var answerPrompt = template.Must(template.New("answer").Option("missingkey=error").Parse(answerPromptTmpl))

// Render fills the answer template. Both context and question are required; a blank
// value fails with model.ErrTemplateBinding. Values are substituted literally.
func Render(context, question string) (string, error) {
	if strings.TrimSpace(context) == "" {
		return "", goerr.Wrap(model.ErrTemplateBinding, "context is required", goerr.V("binding", "context"))
	}
	if strings.TrimSpace(question) == "" {
		return "", goerr.Wrap(model.ErrTemplateBinding, "question is required", goerr.V("binding", "question"))
	}

	data := map[string]string{
		"context":  context,
		"question": question,
		"refusal":  RefusalSentence,
	}

	var buf bytes.Buffer
	if err := answerPrompt.Execute(&buf, data); err != nil {
		return "", goerr.Wrap(model.ErrTemplateBinding, "failed to execute answer template", goerr.V("error", err.Error()))
	}
	return buf.String(), nil
}

// IsRefusal reports whether answer is the instructed refusal sentence
func IsRefusal(answer string) bool {
	return strings.TrimSpace(answer) == RefusalSentence
}

package llm

import (
	"strconv"
	"strings"

	"github.com/joseph-ayodele/autofill/internal/fields"
)

// DefaultMaxTextRunes caps the document text embedded in a prompt.
const DefaultMaxTextRunes = 12000

const truncationMarker = "\n…(truncated)"

// SystemPrompt is sent as the system message alongside every instruction.
const SystemPrompt = "You are a document data extraction engine. You reply with a single JSON object and nothing else."

// Builder renders extraction instructions. The zero value uses DefaultMaxTextRunes.
type Builder struct {
	MaxTextRunes int
}

// Build composes the instruction for one document. It is a pure function of its inputs.
func (b Builder) Build(text string, specs []fields.Spec) string {
	var sb strings.Builder

	sb.WriteString("Extract the following fields from the document text below.\n\n")
	sb.WriteString("Fields:\n")
	if len(specs) == 0 {
		sb.WriteString("(none)\n")
	}
	for i, s := range specs {
		sb.WriteString(strconv.Itoa(i + 1))
		sb.WriteString(". ")
		sb.WriteString(strconv.Quote(s.Name))
		if s.HasType && strings.TrimSpace(s.TypeHint) != "" {
			sb.WriteString(" (type hint: ")
			sb.WriteString(strconv.Quote(s.TypeHint))
			sb.WriteString(")")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("\nRules:\n")
	sb.WriteString("a) Do not judge whether the document is authentic, valid or of the expected kind. Only read what it says.\n")
	sb.WriteString("b) Output must be a strictly valid JSON object whose keys are exactly the field names listed above.\n")
	sb.WriteString("c) If a field cannot be found in the text, set it to null. Never omit a field and never invent a value.\n")
	sb.WriteString("d) If the text is empty or contains nothing usable, output exactly {}.\n")
	sb.WriteString("e) Output no explanations, comments or Markdown outside the JSON object.\n")
	sb.WriteString("Type hints describe the expected content only; every value must be a JSON string or null.\n")

	sb.WriteString("\nJSON Schema of the expected object:\n")
	sb.WriteString(mustJSON(BuildFieldsJSONSchema(fields.Names(specs))))
	sb.WriteString("\n")

	sb.WriteString("\nDocument text:\n<<<\n")
	sb.WriteString(b.truncate(text))
	sb.WriteString("\n>>>\n")

	return sb.String()
}

func (b Builder) truncate(text string) string {
	max := b.MaxTextRunes
	if max <= 0 {
		max = DefaultMaxTextRunes
	}
	text = strings.TrimSpace(text)
	n := 0
	for i := range text {
		if n == max {
			return text[:i] + truncationMarker
		}
		n++
	}
	return text
}

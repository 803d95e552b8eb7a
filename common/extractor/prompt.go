package extractor

import (
	"strings"
	"text/template"

	"github.com/invopop/jsonschema"

	"eventscout/common/llm"
	"eventscout/common/models"
)

// Instruction is the extraction query sent with the document context.
// It is static: nothing in it varies per request.
const Instruction = `
Pretend to be an expert assistant that helps people schedule events. You are given a document
that represents the parsed text information of an event posted on a website.

Create a valid JSON object from the provided information. The returned result should follow this format:

{
    id: "the id field from the given document",
    url: "the url field from the given document",
    title: "the title field from the given document",
    year: the year that this event is taking place in integer format, 0 if the document does not say,
    month: the month that this event is taking place in integer format, 0 if the document does not say,
    day: the day in the month that this event is taking place in integer format, 0 if the document does not say,
    extra_info: "extra information that you think is useful to the user"
}

The JSON object:
`

var summarizeTmpl = template.Must(template.New("tree_summarize").Parse(
	`Context information from multiple sources is below.
---------------------
{{.Context}}
---------------------
Given the information from multiple sources and not prior knowledge, answer the query.
Query: {{.Query}}
Answer: `))

func renderSummarize(context, query string) (string, error) {
	var b strings.Builder
	err := summarizeTmpl.Execute(&b, struct{ Context, Query string }{context, strings.TrimSpace(query)})
	return b.String(), err
}

// EventSchema is the JSON schema the final answer must satisfy.
func EventSchema() llm.Schema {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		ExpandedStruct:            true,
	}
	s := r.Reflect(&models.Event{})
	s.Version = ""
	s.ID = ""
	return llm.Schema{
		Name:        "event",
		Description: "Data model for an event",
		Definition:  s,
	}
}

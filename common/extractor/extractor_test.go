package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"eventscout/common/llm"
	"eventscout/common/models"
)

type fakeCompleter struct {
	texts      []string
	jsonReply  string
	err        error
	prompts    []string
	jsonPrompt string
	schema     llm.Schema
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	i := len(f.prompts) - 1
	if i < len(f.texts) {
		return f.texts[i], nil
	}
	return "partial answer", nil
}

func (f *fakeCompleter) CompleteJSON(_ context.Context, prompt string, schema llm.Schema) (string, error) {
	f.jsonPrompt = prompt
	f.schema = schema
	if f.err != nil {
		return "", f.err
	}
	return f.jsonReply, nil
}

// flatEmbedder gives every text the same vector, so retrieval keeps document order.
type flatEmbedder struct{ err error }

func (e flatEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{1}
	}
	return out, nil
}

var july2024 = func() time.Time { return time.Date(2024, time.July, 9, 12, 0, 0, 0, time.UTC) }

var doc = models.Document{
	ID:       "evt-42",
	URL:      "https://phl.example/jazz",
	Title:    "Jazz on the Delaware",
	FullText: "Jazz on the Delaware returns March 3, 2024 at Penn's Landing. Free admission.",
}

func TestExtractExplicitDate(t *testing.T) {
	fc := &fakeCompleter{jsonReply: `{"id":"evt-42","url":"https://phl.example/jazz","title":"Jazz on the Delaware",
		"year":2024,"month":3,"day":3,"extra_info":" Free admission at Penn's Landing. "}`}
	x := New(fc, flatEmbedder{}, Options{Now: july2024})

	ev, err := x.Extract(context.Background(), doc)
	require.NoError(t, err)
	require.Equal(t, models.Event{
		ID:        "evt-42",
		URL:       "https://phl.example/jazz",
		Title:     "Jazz on the Delaware",
		Year:      2024,
		Month:     3,
		Day:       3,
		ExtraInfo: "Free admission at Penn's Landing.",
	}, ev)

	require.Empty(t, fc.prompts, "a short document fits one prompt")
	require.Contains(t, fc.jsonPrompt, strings.TrimSpace(Instruction))
	require.Contains(t, fc.jsonPrompt, "id: evt-42\nurl: https://phl.example/jazz\ntitle: Jazz on the Delaware\n\n[Document] Jazz on the Delaware returns")
	require.Equal(t, "event", fc.schema.Name)
}

func TestExtractDefaultsToCurrentYearAndMonth(t *testing.T) {
	fc := &fakeCompleter{jsonReply: `{"id":"evt-42","url":"u","title":"t","year":0,"month":0,"day":0,"extra_info":""}`}
	x := New(fc, flatEmbedder{}, Options{Now: july2024})

	ev, err := x.Extract(context.Background(), doc)
	require.NoError(t, err)
	require.Equal(t, 2024, ev.Year)
	require.Equal(t, 7, ev.Month)
	require.Equal(t, 0, ev.Day)
	require.False(t, ev.HasDay())
}

func TestExtractUsesDocumentIdentity(t *testing.T) {
	fc := &fakeCompleter{jsonReply: `{"id":"made-up","url":"https://wrong","title":"Wrong","year":2024,"month":5,"day":1,"extra_info":""}`}
	ev, err := New(fc, flatEmbedder{}, Options{Now: july2024}).Extract(context.Background(), doc)
	require.NoError(t, err)
	require.Equal(t, doc.ID, ev.ID)
	require.Equal(t, doc.URL, ev.URL)
	require.Equal(t, doc.Title, ev.Title)
}

func TestExtractTreeSummarize(t *testing.T) {
	long := models.Document{
		ID:       "long",
		URL:      "https://phl.example/long",
		Title:    "Long",
		FullText: strings.Repeat("lorem ipsum dolor sit amet ", 40) + "the festival runs on May 18, 2024",
	}
	fc := &fakeCompleter{
		texts:     []string{"first half mentions nothing", "second half says May 18, 2024"},
		jsonReply: `{"id":"long","url":"u","title":"t","year":2024,"month":5,"day":18,"extra_info":"festival"}`,
	}
	x := New(fc, flatEmbedder{}, Options{
		ChunkSize:    600,
		TopK:         2,
		ContextChars: 800,
		Now:          july2024,
	})

	ev, err := x.Extract(context.Background(), long)
	require.NoError(t, err)
	require.Equal(t, 18, ev.Day)
	require.Len(t, fc.prompts, 2, "two packs answered as text before the final structured call")
	require.Contains(t, fc.jsonPrompt, "first half mentions nothing\n\nsecond half says May 18, 2024")
}

func TestExtractErrors(t *testing.T) {
	boom := errors.New("rate limited")
	tests := []struct {
		name     string
		fc       *fakeCompleter
		embedder flatEmbedder
		doc      models.Document
		schema   bool
	}{
		{"model failure", &fakeCompleter{err: boom}, flatEmbedder{}, doc, false},
		{"embedding failure", &fakeCompleter{}, flatEmbedder{err: boom}, doc, false},
		{"empty document", &fakeCompleter{}, flatEmbedder{}, models.Document{ID: "x"}, false},
		{"missing field", &fakeCompleter{jsonReply: `{"id":"a","url":"u","title":"t","year":2024,"month":1}`}, flatEmbedder{}, doc, true},
		{"not json", &fakeCompleter{jsonReply: `I could not find an event.`}, flatEmbedder{}, doc, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.fc, tc.embedder, Options{Now: july2024}).Extract(context.Background(), tc.doc)
			require.ErrorIs(t, err, ErrExtraction)
			if tc.schema {
				require.ErrorIs(t, err, ErrSchema)
			} else {
				require.NotErrorIs(t, err, ErrSchema)
			}
		})
	}
}

func TestParse(t *testing.T) {
	now := july2024()
	tests := []struct {
		name    string
		reply   string
		want    models.Event
		wantErr string
	}{
		{
			name:  "fenced json",
			reply: "```json\n{\"id\":\"a\",\"url\":\"u\",\"title\":\"t\",\"year\":2025,\"month\":12,\"day\":31,\"extra_info\":\"x\"}\n```",
			want:  models.Event{ID: doc.ID, URL: doc.URL, Title: doc.Title, Year: 2025, Month: 12, Day: 31, ExtraInfo: "x"},
		},
		{
			name:    "missing many",
			reply:   `{"id":"a"}`,
			wantErr: "missing fields url, title, year, month, day, extra_info",
		},
		{
			name:    "month out of range",
			reply:   `{"id":"a","url":"u","title":"t","year":2024,"month":13,"day":1,"extra_info":""}`,
			wantErr: "month 13 out of range",
		},
		{
			name:    "day out of range",
			reply:   `{"id":"a","url":"u","title":"t","year":2024,"month":2,"day":32,"extra_info":""}`,
			wantErr: "day 32 out of range",
		},
		{
			name:    "wrong type",
			reply:   `{"id":"a","url":"u","title":"t","year":"2024","month":2,"day":1,"extra_info":""}`,
			wantErr: "does not match event schema",
		},
		{
			name:    "trailing data",
			reply:   `{"id":"a","url":"u","title":"t","year":2024,"month":2,"day":1,"extra_info":""} trailing garbage {`,
			wantErr: "trailing data after event object",
		},
		{
			name:    "unknown field",
			reply:   `{"id":"a","url":"u","title":"t","year":2024,"month":2,"day":1,"extra_info":"","bogus":1}`,
			wantErr: `unknown field "bogus"`,
		},
		{
			name:    "impossible date",
			reply:   `{"id":"a","url":"u","title":"t","year":2024,"month":2,"day":31,"extra_info":""}`,
			wantErr: "no day 31 in 2024-02",
		},
		{
			name:    "no leap day",
			reply:   `{"id":"a","url":"u","title":"t","year":2023,"month":2,"day":29,"extra_info":""}`,
			wantErr: "no day 29 in 2023-02",
		},
		{
			name:  "leap day",
			reply: `{"id":"a","url":"u","title":"t","year":2024,"month":2,"day":29,"extra_info":""}`,
			want:  models.Event{ID: doc.ID, URL: doc.URL, Title: doc.Title, Year: 2024, Month: 2, Day: 29},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Parse(tc.reply, doc, now)
			if tc.wantErr != "" {
				require.ErrorIs(t, err, ErrSchema)
				require.ErrorContains(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestEventSchema(t *testing.T) {
	b, err := json.Marshal(EventSchema().Definition)
	require.NoError(t, err)

	var s struct {
		Type                 string                     `json:"type"`
		Required             []string                   `json:"required"`
		AdditionalProperties bool                       `json:"additionalProperties"`
		Properties           map[string]json.RawMessage `json:"properties"`
		Schema               string                     `json:"$schema"`
	}
	require.NoError(t, json.Unmarshal(b, &s))
	require.Equal(t, "object", s.Type)
	require.False(t, s.AdditionalProperties)
	require.Empty(t, s.Schema)
	require.ElementsMatch(t, []string{"id", "url", "title", "year", "month", "day", "extra_info"}, s.Required)
	require.Len(t, s.Properties, 7)
	require.Contains(t, string(s.Properties["year"]), `"integer"`)
}

func TestPack(t *testing.T) {
	require.Equal(t, []string{"aa\n\nbb", "cc"}, pack([]string{"aa", "bb", "cc"}, 6))
	require.Equal(t, []string{"toolong", "x"}, pack([]string{"toolong", "x"}, 3))
	require.Nil(t, pack(nil, 10))
}

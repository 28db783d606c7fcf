package format

import (
	"bytes"
	"strings"
	"testing"

	"todo-backend/internal/model"
)

func TestWrite_JSONEnvelope(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	env := Envelope{Data: []model.Item{{ID: 3, Text: "milk"}}, Meta: map[string]any{"nextLastId": 3}}
	if err := Write(&buf, env, "", false); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := `{"data":[{"id":3,"text":"milk","completed":false}],"meta":{"nextLastId":3}}` + "\n"
	if buf.String() != want {
		t.Fatalf("got %q want %q", buf.String(), want)
	}
}

func TestWrite_EDN(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	item := model.Item{ID: 18446744073709551615, Text: "big id", Completed: true}
	if err := Write(&buf, Envelope{Data: item}, "edn", false); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := `{:data {:completed true :id 18446744073709551615 :text "big id"}}` + "\n"
	if buf.String() != want {
		t.Fatalf("got %q want %q", buf.String(), want)
	}
}

func TestWrite_EDNPretty(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := WriteEDN(&buf, map[string]any{"ids": []uint64{1, 2}, "none": nil}, true); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := strings.Join([]string{
		"{",
		"  :ids [",
		"    1",
		"    2",
		"  ]",
		"  :none nil",
		"}",
		"",
	}, "\n")
	if buf.String() != want {
		t.Fatalf("got:\n%s\nwant:\n%s", buf.String(), want)
	}
}

func TestWrite_UnknownFormat(t *testing.T) {
	t.Parallel()

	if err := Write(&bytes.Buffer{}, 1, "yaml", false); err == nil {
		t.Fatal("expected error")
	}
}

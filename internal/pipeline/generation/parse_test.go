package generation

import "testing"

const wrapperJSON = `{"questions":[
	{"text":"Q1?","options":["a","b","c","d"],"correct_answer":2,"explanation":"because"},
	{"text":"Q2?","options":["a","b"],"correct_answer":0}
]}`

func TestParseCandidates_WrapperObject(t *testing.T) {
	got, err := ParseCandidates(wrapperJSON)
	if err != nil {
		t.Fatalf("ParseCandidates failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2", len(got))
	}
	if got[0].CorrectAnswer != 2 || got[0].Explanation != "because" {
		t.Errorf("first candidate decoded wrong: %+v", got[0])
	}
}

func TestParseCandidates_BareArray(t *testing.T) {
	raw := `[{"text":"Q1?","options":["a","b"],"correct_answer":1}]`
	got, err := ParseCandidates(raw)
	if err != nil {
		t.Fatalf("bare array should parse: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("got %d candidates, want 1", len(got))
	}
}

func TestParseCandidates_CodeFence(t *testing.T) {
	raw := "```json\n" + wrapperJSON + "\n```"
	got, err := ParseCandidates(raw)
	if err != nil {
		t.Fatalf("fenced output should parse: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("got %d candidates, want 2", len(got))
	}
}

func TestParseCandidates_Rejections(t *testing.T) {
	cases := []struct {
		name string
		raw  string
	}{
		{"empty", ""},
		{"not json", "here are your questions:"},
		{"no questions", `{"questions":[]}`},
		{"missing text", `{"questions":[{"text":"","options":["a","b"],"correct_answer":0}]}`},
		{"one option", `{"questions":[{"text":"Q?","options":["a"],"correct_answer":0}]}`},
		{"dangling answer", `{"questions":[{"text":"Q?","options":["a","b"],"correct_answer":5}]}`},
		{"negative answer", `{"questions":[{"text":"Q?","options":["a","b"],"correct_answer":-1}]}`},
		{"one bad spoils all", `{"questions":[
			{"text":"Q1?","options":["a","b"],"correct_answer":0},
			{"text":"Q2?","options":["a","b"],"correct_answer":9}
		]}`},
	}

	for _, c := range cases {
		if _, err := ParseCandidates(c.raw); err == nil {
			t.Errorf("%s: expected rejection", c.name)
		}
	}
}

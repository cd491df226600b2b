package repl

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/manash/pollgen/internal/session"
	"github.com/manash/pollgen/internal/templates"
	"github.com/manash/pollgen/pkg/models"
)

type call struct {
	op     string
	prompt string
	source string
	o      models.Overrides
}

type mockGenerator struct {
	calls    []call
	fail     bool
	nextPath string
}

func (m *mockGenerator) Generate(_ context.Context, prompt string, o models.Overrides) (string, bool) {
	m.calls = append(m.calls, call{op: "generate", prompt: prompt, o: o})
	if m.fail {
		return "", false
	}
	return m.path(), true
}

func (m *mockGenerator) Edit(_ context.Context, prompt, source string, o models.Overrides) (string, bool) {
	m.calls = append(m.calls, call{op: "edit", prompt: prompt, source: source, o: o})
	if m.fail {
		return "", false
	}
	return m.path(), true
}

func (m *mockGenerator) Statistics() models.Statistics {
	return models.Statistics{ImagesGenerated: len(m.calls)}
}

func (m *mockGenerator) path() string {
	if m.nextPath != "" {
		return m.nextPath
	}
	return "/out/img" + string(rune('0'+len(m.calls))) + ".png"
}

type mockPreview struct {
	shown []string
	err   error
}

func (p *mockPreview) Show(path string) error {
	p.shown = append(p.shown, path)
	return p.err
}

type harness struct {
	repl    *REPL
	out     *bytes.Buffer
	errOut  *bytes.Buffer
	gen     *mockGenerator
	mgr     *session.Manager
	preview *mockPreview
}

func newHarness(t *testing.T, input string) *harness {
	t.Helper()
	h := &harness{
		out:     &bytes.Buffer{},
		errOut:  &bytes.Buffer{},
		gen:     &mockGenerator{},
		mgr:     session.NewManager(""),
		preview: &mockPreview{},
	}
	tpls := templates.NewSet(map[string]templates.Template{
		"portrait": {
			Base:   "portrait of {subject}",
			Params: templates.Params{Width: 768, Height: 1024},
			Placeholders: map[string]templates.Placeholder{
				"subject": {Examples: []string{"an astronaut"}},
			},
		},
	})
	h.repl = New(&Config{
		In:         strings.NewReader(input),
		Out:        h.out,
		Err:        h.errOut,
		Generator:  h.gen,
		SessionMgr: h.mgr,
		Templates:  tpls,
		Preview:    h.preview,
	})
	return h
}

func (h *harness) run(t *testing.T) {
	t.Helper()
	if err := h.repl.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
}

func TestREPL_CommandsRegistered(t *testing.T) {
	h := newHarness(t, "")

	expected := []string{
		"generate", "gen", "g",
		"edit", "e",
		"open", "o",
		"undo", "u", "back",
		"show", "display", "view",
		"history", "h", "hist",
		"template", "t", "tpl",
		"model", "m",
		"size", "seed",
		"stats", "statistics",
		"help", "?",
		"quit", "exit", "q",
	}
	for _, cmd := range expected {
		if _, ok := h.repl.commands[cmd]; !ok {
			t.Errorf("Command %q not registered", cmd)
		}
	}
}

func TestREPL_Run_QuitAndHelp(t *testing.T) {
	h := newHarness(t, "help\nquit\ngenerate never\n")
	h.run(t)

	output := h.out.String()
	if !strings.Contains(output, "Available commands") || !strings.Contains(output, "generate") {
		t.Error("help did not list commands")
	}
	if !strings.Contains(output, "Goodbye!") {
		t.Error("quit did not say goodbye")
	}
	if len(h.gen.calls) != 0 {
		t.Error("commands after quit must not run")
	}
}

func TestREPL_UnknownCommand(t *testing.T) {
	h := newHarness(t, "frobnicate\n")
	h.run(t)
	if !strings.Contains(h.errOut.String(), `unknown command "frobnicate"`) {
		t.Errorf("stderr = %q", h.errOut.String())
	}
}

func TestREPL_GenerateThenEdit(t *testing.T) {
	h := newHarness(t, "model turbo\nsize 512x256\nseed 7\ngenerate \"a red fox\"\nedit make it blue\nquit\n")
	h.run(t)

	if len(h.gen.calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(h.gen.calls))
	}

	gen := h.gen.calls[0]
	if gen.prompt != "a red fox" || gen.o.Model != "turbo" || gen.o.Width != 512 || gen.o.Height != 256 || *gen.o.Seed != 7 {
		t.Errorf("generate call = %+v", gen)
	}

	edit := h.gen.calls[1]
	if edit.source != "/out/img1.png" || edit.prompt != "make it blue" {
		t.Errorf("edit call = %+v", edit)
	}
	if edit.o.Model != "" {
		t.Errorf("edit must not pass the generation model, got %q", edit.o.Model)
	}
	if h.mgr.CurrentImagePath() != "/out/img2.png" {
		t.Errorf("current image = %q", h.mgr.CurrentImagePath())
	}
	if len(h.preview.shown) != 2 {
		t.Errorf("preview shown %d times, want 2", len(h.preview.shown))
	}
}

func TestREPL_EditWithModel(t *testing.T) {
	h := newHarness(t, "generate cat\nedit -m flux add a hat\nedit -m dalle nope\nquit\n")
	h.run(t)

	if len(h.gen.calls) != 2 || h.gen.calls[1].o.Model != "flux" {
		t.Errorf("calls = %+v", h.gen.calls)
	}
	if !strings.Contains(h.errOut.String(), "unknown edit model") {
		t.Errorf("stderr = %q", h.errOut.String())
	}
}

func TestREPL_EditWithoutImage(t *testing.T) {
	h := newHarness(t, "edit something\n")
	h.run(t)
	if !strings.Contains(h.errOut.String(), "no current image") {
		t.Errorf("stderr = %q", h.errOut.String())
	}
}

func TestREPL_OpenAndUndo(t *testing.T) {
	src := filepath.Join(t.TempDir(), "photo.png")
	if err := os.WriteFile(src, []byte("png"), 0644); err != nil {
		t.Fatal(err)
	}

	h := newHarness(t, "open "+src+"\nedit brighter\nundo\nundo\nhistory\nquit\n")
	h.run(t)

	if h.gen.calls[0].source != src {
		t.Errorf("edit source = %q, want %q", h.gen.calls[0].source, src)
	}
	if h.mgr.CurrentImagePath() != src {
		t.Errorf("after undo current = %q, want %q", h.mgr.CurrentImagePath(), src)
	}
	if !strings.Contains(h.errOut.String(), session.ErrAtFirstImage.Error()) {
		t.Errorf("second undo should fail, stderr = %q", h.errOut.String())
	}
	if !strings.Contains(h.out.String(), "> [1]") {
		t.Errorf("history should mark the opened image as current:\n%s", h.out.String())
	}
}

func TestREPL_GenerateFailure(t *testing.T) {
	h := newHarness(t, "generate cat\n")
	h.gen.fail = true
	h.run(t)

	if !strings.Contains(h.errOut.String(), "generation failed") {
		t.Errorf("stderr = %q", h.errOut.String())
	}
	if h.mgr.Current() != nil {
		t.Error("failed generation must not change the current image")
	}
}

func TestREPL_PreviewErrorIsWarning(t *testing.T) {
	h := newHarness(t, "generate cat\n")
	h.preview.err = errors.New("boom")
	h.run(t)

	if !strings.Contains(h.errOut.String(), "Warning: failed to display: boom") {
		t.Errorf("stderr = %q", h.errOut.String())
	}
	if h.mgr.Current() == nil {
		t.Error("generation should still be recorded")
	}
}

func TestREPL_Template(t *testing.T) {
	h := newHarness(t, "template\ntemplate portrait\ntemplate portrait subject=\"a knight\"\ntemplate portrait bogus\ntemplate nope\nquit\n")
	h.run(t)

	if !strings.Contains(h.out.String(), "portrait of {subject}") {
		t.Error("template list missing")
	}
	if len(h.gen.calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(h.gen.calls))
	}
	if h.gen.calls[0].prompt != "portrait of an astronaut" {
		t.Errorf("example fill prompt = %q", h.gen.calls[0].prompt)
	}
	if h.gen.calls[1].prompt != "portrait of a knight" || h.gen.calls[1].o.Width != 768 {
		t.Errorf("explicit fill call = %+v", h.gen.calls[1])
	}
	errs := h.errOut.String()
	if !strings.Contains(errs, "expected key=value") || !strings.Contains(errs, "unknown template: nope") {
		t.Errorf("stderr = %q", errs)
	}
}

func TestREPL_Stats(t *testing.T) {
	h := newHarness(t, "generate cat\nstats\n")
	h.run(t)
	if !strings.Contains(h.out.String(), "Images generated:") {
		t.Errorf("stats output missing:\n%s", h.out.String())
	}
}

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		w, h    int
		wantErr bool
	}{
		{"1024x768", 1024, 768, false},
		{"512X512", 512, 512, false},
		{"0x10", 0, 0, true},
		{"wide", 0, 0, true},
		{"10x", 0, 0, true},
	}
	for _, tt := range tests {
		w, h, err := ParseSize(tt.in)
		if (err != nil) != tt.wantErr || w != tt.w || h != tt.h {
			t.Errorf("ParseSize(%q) = %d, %d, %v", tt.in, w, h, err)
		}
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"generate a cat", []string{"generate", "a", "cat"}},
		{`generate "a cat"`, []string{"generate", "a cat"}},
		{`generate 'it''s'`, []string{"generate", "its"}},
		{"   ", nil},
	}
	for _, tt := range tests {
		got := parseCommand(tt.input)
		if len(got) != len(tt.want) {
			t.Errorf("parseCommand(%q) = %q, want %q", tt.input, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("parseCommand(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
			}
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Errorf("truncate() = %q", got)
	}
	if got := truncate("this is a longer string", 10); got != "this is..." {
		t.Errorf("truncate() = %q", got)
	}
}

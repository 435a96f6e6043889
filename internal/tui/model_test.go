package tui

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
	"ragchat/internal/session"
)

type fakePort struct {
	loads   []domain.LoadRequest
	loadErr error
	asked   []string
}

func (f *fakePort) LoadSource(_ context.Context, req domain.LoadRequest) (session.Report, error) {
	f.loads = append(f.loads, req)
	if f.loadErr != nil {
		return session.Report{}, f.loadErr
	}
	return session.Report{Source: req.Type, Param: req.Param, Documents: 1, Chunks: 2, Summary: "Go is a language."}, nil
}

func (f *fakePort) Ask(_ context.Context, q string) (session.Answer, error) {
	f.asked = append(f.asked, q)
	return session.Answer{Text: "Go was designed at Google.", Sources: []domain.Chunk{{Content: "Go was designed at Google."}}}, nil
}

func keyRunes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

// run executes cmd and feeds every non-spinner message back into the model.
func run(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		return m
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			m = run(t, m, c)
		}
	case loadedMsg, answeredMsg:
		m, _ = update(t, m, msg)
	}
	return m
}

func TestLoadThenAsk(t *testing.T) {
	port := &fakePort{}
	m, _ := update(t, New(port), tea.WindowSizeMsg{Width: 80, Height: 24})

	m, _ = update(t, m, keyRunes("3"))
	assert.Equal(t, screenParam, m.screen)
	assert.Equal(t, domain.SourceWikipedia, m.source)

	m.input.SetValue("Go (programming language)")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, m.busy)
	m = run(t, m, cmd)

	require.Len(t, port.loads, 1)
	assert.Equal(t, "Go (programming language)", port.loads[0].Param)
	assert.False(t, m.busy)
	assert.Equal(t, screenChat, m.screen)
	require.NotNil(t, m.report)
	assert.Contains(t, m.View(), "Wikipedia: Go (programming language)")

	m.input.SetValue("Who designed Go?")
	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = run(t, m, cmd)
	assert.Equal(t, []string{"Who designed Go?"}, port.asked)
	require.NotNil(t, m.answer)
	assert.Contains(t, m.renderAnswer(), "Go was designed at Google.")
}

func TestLoadErrorShowsUserMessage(t *testing.T) {
	port := &fakePort{loadErr: domain.Errorf(domain.KindEmptySource, "wikipedia source", "nothing")}
	m, _ := update(t, New(port), tea.WindowSizeMsg{Width: 80, Height: 24})
	m, _ = update(t, m, keyRunes("3"))
	m.input.SetValue("qwzxqwzx")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = run(t, m, cmd)

	assert.True(t, m.failed)
	assert.Equal(t, "The wikipedia source returned no content.", m.status)
	assert.Equal(t, screenParam, m.screen)
	assert.Nil(t, m.report)
}

func TestMenuNavigation(t *testing.T) {
	m, _ := update(t, New(&fakePort{}), tea.WindowSizeMsg{Width: 80, Height: 24})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyDown})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, domain.SourceWebsite, m.source)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	assert.Equal(t, screenMenu, m.screen)

	_, cmd := update(t, m, keyRunes("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestKeysIgnoredWhileBusy(t *testing.T) {
	m, _ := update(t, New(&fakePort{}), tea.WindowSizeMsg{Width: 80, Height: 24})
	m.busy = true
	m, cmd := update(t, m, keyRunes("2"))
	assert.Nil(t, cmd)
	assert.Equal(t, screenMenu, m.screen)
}

func TestHighlightBestSentence(t *testing.T) {
	text := "Cats sleep a lot. Go compiles quickly. Dogs bark."
	out := highlightBestSentence(text, "how fast does Go compile quickly")
	assert.Contains(t, out, "Cats sleep a lot.")
	assert.Contains(t, out, "Dogs bark.")
	assert.Equal(t, text, highlightBestSentence(text, "zebra"))
	assert.Empty(t, highlightBestSentence("", "go"))
}

package ui

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/uncleJim21/pullthatupjamie/internal/backend"
)

const (
	fieldGUID = iota
	fieldFeed
	fieldMessage
	fieldCount
)

var fieldLabels = [fieldCount]string{
	"Episode GUID: ",
	"Feed ID:      ",
	"Note:         ",
}

// submitForm collects one on-demand run request.
type submitForm struct {
	inputs    [fieldCount]textinput.Model
	focus     int
	busy      bool
	submitted bool
}

func newSubmitForm(lastFeedID int64) submitForm {
	var f submitForm

	guid := textinput.New()
	guid.Placeholder = "episode guid from the feed"
	guid.CharLimit = 200
	guid.Width = 44

	feed := textinput.New()
	feed.Placeholder = "numeric feed id (optional)"
	feed.CharLimit = 20
	feed.Width = 44
	if lastFeedID > 0 {
		feed.SetValue(strconv.FormatInt(lastFeedID, 10))
	}

	note := textinput.New()
	note.Placeholder = "optional note"
	note.CharLimit = 200
	note.Width = 44

	f.inputs = [fieldCount]textinput.Model{guid, feed, note}
	f.inputs[fieldGUID].Focus()
	return f
}

func (f submitForm) focusCmd() tea.Cmd {
	return textinput.Blink
}

func (f submitForm) update(msg tea.Msg, keys keyMap) (submitForm, tea.Cmd) {
	if km, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(km, keys.Confirm):
			if !f.busy {
				f.submitted = true
			}
			return f, nil
		case key.Matches(km, keys.Tab), km.String() == "down":
			return f.move(1)
		case key.Matches(km, keys.ShiftTab), km.String() == "up":
			return f.move(-1)
		}
	}

	var cmd tea.Cmd
	f.inputs[f.focus], cmd = f.inputs[f.focus].Update(msg)
	return f, cmd
}

func (f submitForm) move(delta int) (submitForm, tea.Cmd) {
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + delta + fieldCount) % fieldCount
	return f, f.inputs[f.focus].Focus()
}

// request validates the fields and builds the run request.
func (f submitForm) request() (backend.SubmitRequest, error) {
	guid := strings.TrimSpace(f.inputs[fieldGUID].Value())
	if guid == "" {
		return backend.SubmitRequest{}, backend.ErrNoEpisodes
	}
	ep := backend.Episode{GUID: guid}
	if raw := strings.TrimSpace(f.inputs[fieldFeed].Value()); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			return backend.SubmitRequest{}, fmt.Errorf("feed id %q is not a positive number", raw)
		}
		ep.FeedID = id
	}
	return backend.SubmitRequest{
		Message:  strings.TrimSpace(f.inputs[fieldMessage].Value()),
		Episodes: []backend.Episode{ep},
	}, nil
}

func (f submitForm) feedID() int64 {
	id, _ := strconv.ParseInt(strings.TrimSpace(f.inputs[fieldFeed].Value()), 10, 64)
	return id
}

// clearEpisode empties the per-run fields and keeps the feed.
func (f *submitForm) clearEpisode() {
	f.inputs[fieldGUID].SetValue("")
	f.inputs[fieldMessage].SetValue("")
}

func (f submitForm) view(styles Styles) string {
	var b strings.Builder
	for i := range f.inputs {
		label := fieldLabels[i]
		if i == f.focus {
			b.WriteString(styles.AccentText.Render(label))
		} else {
			b.WriteString(styles.MutedText.Render(label))
		}
		b.WriteString(f.inputs[i].View())
		b.WriteString("\n")
	}
	b.WriteString("\n")
	if f.busy {
		b.WriteString(styles.InfoText.Render("Submitting…"))
	} else {
		b.WriteString(styles.FaintText.Render("Enter: Submit run  •  Tab: Next field"))
	}
	return b.String()
}

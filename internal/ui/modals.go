package ui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/uncleJim21/pullthatupjamie/internal/backend"
	"github.com/uncleJim21/pullthatupjamie/internal/onboarding"
	"github.com/uncleJim21/pullthatupjamie/internal/prefs"
	"github.com/uncleJim21/pullthatupjamie/internal/present"
)

const modalWidth = 56

// --- Quota prompt ---

type quotaModal struct {
	deps
	prompt onboarding.Prompt
	copy   present.Copy
}

func newQuotaModal(d deps, p onboarding.Prompt, now time.Time) *quotaModal {
	return &quotaModal{deps: d, prompt: p, copy: present.Render(p.Record, p.Tier, now)}
}

func (q *quotaModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return q, nil, false
	}
	switch {
	case key.Matches(km, keys.Confirm):
		svc := q.svc
		return q, func() tea.Msg { return actionMsg{state: svc.Machine().AcceptPrompt()} }, true
	case key.Matches(km, keys.Escape):
		svc := q.svc
		return q, func() tea.Msg { return actionMsg{state: svc.Machine().DismissPrompt()} }, true
	}
	return q, nil, false
}

func (q *quotaModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	var b strings.Builder

	b.WriteString(styles.Text.Bold(true).Render(q.copy.Title))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", modalWidth-6)))
	b.WriteString("\n\n")
	b.WriteString(styles.Text.Render(q.copy.AccomplishmentText))
	b.WriteString("\n\n")
	b.WriteString(styles.Button.Render(q.copy.CTALabel))
	b.WriteString("  ")
	b.WriteString(styles.MutedText.Render("Not now"))
	b.WriteString("\n\n")
	b.WriteString(styles.FaintText.Render("Enter: " + q.copy.CTALabel + "  •  Esc: Not now"))

	return placeModal(theme, width, height, modalWidth, b.String())
}

// --- Sign in / sign up ---

const (
	authEmail = iota
	authPassword
)

type authModal struct {
	deps
	upgradeIntent bool
	plan          backend.Plan
	inputs        [2]textinput.Model
	focus         int
	signUp        bool
	busy          bool
	email         string
	errText       string
}

func newAuthModal(d deps, upgradeIntent bool, plan backend.Plan, lastEmail string) *authModal {
	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.CharLimit = 254
	email.Width = 36
	email.SetValue(lastEmail)

	password := textinput.New()
	password.Placeholder = "password"
	password.CharLimit = 128
	password.Width = 36
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	a := &authModal{
		deps:          d,
		upgradeIntent: upgradeIntent,
		plan:          plan,
		inputs:        [2]textinput.Model{email, password},
		signUp:        !upgradeIntent && lastEmail == "",
	}
	if lastEmail != "" {
		a.focus = authPassword
	}
	return a
}

func (a *authModal) focusCmd() tea.Cmd {
	a.inputs[1-a.focus].Blur()
	return a.inputs[a.focus].Focus()
}

func (a *authModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	switch msg := msg.(type) {
	case actionMsg:
		a.busy = false
		if msg.err != nil {
			a.errText = errorText(msg.err)
			return a, nil, false
		}
		a.errText = ""
		email := a.email
		_ = prefs.Update(a.prefsPath, func(p *prefs.Prefs) { p.LastEmail = email })
		return a, nil, false

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, keys.Escape):
			if a.busy {
				return a, nil, false
			}
			return a, dismissCmd(a.deps), true
		case key.Matches(msg, keys.ToggleSignUp):
			a.signUp = !a.signUp
			a.errText = ""
			return a, nil, false
		case key.Matches(msg, keys.Tab), key.Matches(msg, keys.ShiftTab):
			a.focus = 1 - a.focus
			return a, a.focusCmd(), false
		case key.Matches(msg, keys.Confirm):
			return a, a.submit(), false
		}
	}

	var cmd tea.Cmd
	a.inputs[a.focus], cmd = a.inputs[a.focus].Update(msg)
	return a, cmd, false
}

func (a *authModal) submit() tea.Cmd {
	if a.busy {
		return nil
	}
	email := strings.TrimSpace(a.inputs[authEmail].Value())
	password := a.inputs[authPassword].Value()
	if email == "" || password == "" {
		a.errText = "Enter your email and password."
		return nil
	}
	a.busy = true
	a.email = email
	a.errText = ""

	d, signUp := a.deps, a.signUp
	return func() tea.Msg {
		st, err := d.svc.SignIn(d.ctx, email, password, signUp)
		return actionMsg{state: st, err: err}
	}
}

func (a *authModal) title() string {
	switch {
	case a.upgradeIntent:
		return fmt.Sprintf("Sign in to upgrade to %s", planName(a.plan))
	case a.signUp:
		return "Create your free account"
	default:
		return "Sign in to continue"
	}
}

func (a *authModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	var b strings.Builder

	b.WriteString(styles.Text.Bold(true).Render(a.title()))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", modalWidth-6)))
	b.WriteString("\n\n")

	labels := [2]string{"Email:    ", "Password: "}
	for i := range a.inputs {
		if i == a.focus {
			b.WriteString(styles.AccentText.Render(labels[i]))
		} else {
			b.WriteString(styles.MutedText.Render(labels[i]))
		}
		b.WriteString(a.inputs[i].View())
		b.WriteString("\n\n")
	}

	switch {
	case a.busy:
		b.WriteString(styles.InfoText.Render("Working…"))
	case a.errText != "":
		b.WriteString(styles.DangerText.Render(a.errText))
	}
	b.WriteString("\n\n")

	action := "Sign in"
	other := "sign up"
	if a.signUp {
		action, other = "Sign up", "sign in"
	}
	b.WriteString(styles.FaintText.Render(fmt.Sprintf("Enter: %s  •  Ctrl+N: %s instead  •  Esc: Cancel", action, other)))

	return placeModal(theme, width, height, modalWidth, b.String())
}

// --- Checkout ---

type checkoutModal struct {
	deps
	plan    backend.Plan
	session *backend.CheckoutSession
	busy    bool
	note    string
	isError bool
}

func newCheckoutModal(d deps, plan backend.Plan) *checkoutModal {
	return &checkoutModal{deps: d, plan: plan}
}

func (c *checkoutModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	switch msg := msg.(type) {
	case checkoutMsg:
		c.busy = false
		if msg.err != nil {
			c.setError(errorText(msg.err))
			return c, nil, false
		}
		c.session = msg.session
		c.setNote("Finish paying in your browser, then press c.")
		return c, nil, false

	case actionMsg:
		c.busy = false
		switch {
		case msg.err == nil:
			c.setNote("")
		case errors.Is(msg.err, backend.ErrCheckoutPending):
			c.setNote("Payment has not gone through yet. Press c again once it has.")
		case errors.Is(msg.err, backend.ErrCheckoutExpired):
			c.session = nil
			c.setError("That checkout expired. Press o to start a new one.")
		default:
			c.setError(errorText(msg.err))
		}
		return c, nil, false

	case tea.KeyMsg:
		if c.busy {
			return c, nil, false
		}
		switch {
		case key.Matches(msg, keys.Escape):
			return c, dismissCmd(c.deps), true
		case key.Matches(msg, keys.OpenCheckout), c.session == nil && key.Matches(msg, keys.Confirm):
			c.busy = true
			d := c.deps
			return c, func() tea.Msg {
				cs, err := d.svc.StartCheckout(d.ctx)
				return checkoutMsg{session: cs, err: err}
			}, false
		case c.session != nil && (key.Matches(msg, keys.CheckPaid) || key.Matches(msg, keys.Confirm)):
			c.busy = true
			d, id := c.deps, c.session.ID
			return c, func() tea.Msg {
				st, err := d.svc.ConfirmCheckout(d.ctx, id)
				return actionMsg{state: st, err: err}
			}, false
		}
	}
	return c, nil, false
}

func (c *checkoutModal) setNote(s string)  { c.note, c.isError = s, false }
func (c *checkoutModal) setError(s string) { c.note, c.isError = s, true }

func (c *checkoutModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	var b strings.Builder

	b.WriteString(styles.Text.Bold(true).Render("Upgrade to " + planName(c.plan)))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", modalWidth-6)))
	b.WriteString("\n\n")

	if c.session == nil {
		b.WriteString(styles.Text.Render("Press o to open a secure checkout page."))
	} else {
		b.WriteString(styles.Text.Render("Open this link to pay:"))
		b.WriteString("\n")
		b.WriteString(styles.InfoText.Render(c.session.URL))
	}
	b.WriteString("\n\n")

	switch {
	case c.busy:
		b.WriteString(styles.InfoText.Render("Working…"))
	case c.isError:
		b.WriteString(styles.DangerText.Render(c.note))
	case c.note != "":
		b.WriteString(styles.MutedText.Render(c.note))
	}
	b.WriteString("\n\n")

	if c.session == nil {
		b.WriteString(styles.FaintText.Render("o: Open checkout  •  Esc: Cancel"))
	} else {
		b.WriteString(styles.FaintText.Render("c: I've paid  •  o: New link  •  Esc: Cancel"))
	}
	return placeModal(theme, width, height, modalWidth, b.String())
}

// --- Confirmation ---

type doneModal struct {
	deps
	state  onboarding.State
	replay *onboarding.ReplayOutcome
}

func newDoneModal(d deps, st onboarding.State, replay *onboarding.ReplayOutcome) *doneModal {
	return &doneModal{deps: d, state: st, replay: replay}
}

func (m *doneModal) Update(msg tea.Msg, keys keyMap) (Modal, tea.Cmd, bool) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil, false
	}
	if key.Matches(km, keys.Confirm) || key.Matches(km, keys.Escape) {
		return m, dismissCmd(m.deps), true
	}
	return m, nil, false
}

func (m *doneModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	var b strings.Builder

	if m.state.JustUpgraded {
		b.WriteString(styles.SuccessText.Render("You're upgraded"))
	} else {
		b.WriteString(styles.SuccessText.Render("You're signed in"))
	}
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", modalWidth-6)))
	b.WriteString("\n\n")

	switch {
	case m.replay == nil:
		b.WriteString(styles.Text.Render("Your allowance has been refreshed."))
	case m.replay.Err != nil:
		b.WriteString(styles.WarningText.Render("We couldn't resubmit your request: " + errorText(m.replay.Err)))
		b.WriteString("\n")
		b.WriteString(styles.MutedText.Render("Submit it again from the form."))
	default:
		b.WriteString(styles.Text.Render("Your request has been resubmitted and is processing."))
	}
	b.WriteString("\n\n")
	b.WriteString(styles.FaintText.Render("Enter: Continue"))

	return placeModal(theme, width, height, modalWidth, b.String())
}

// --- Notice ---

// noticeModal shows an error the flow does not handle. Any key closes it.
type noticeModal struct {
	title string
	text  string
}

func newNoticeModal(title, text string) *noticeModal {
	return &noticeModal{title: title, text: text}
}

func (n *noticeModal) Update(msg tea.Msg, _ keyMap) (Modal, tea.Cmd, bool) {
	_, ok := msg.(tea.KeyMsg)
	return n, nil, ok
}

func (n *noticeModal) View(theme Theme, width, height int) string {
	styles := theme.Styles()
	var b strings.Builder
	b.WriteString(styles.DangerText.Render(n.title))
	b.WriteString("\n\n")
	b.WriteString(styles.Text.Render(n.text))
	b.WriteString("\n\n")
	b.WriteString(styles.FaintText.Render("Press any key"))
	return placeModal(theme, width, height, modalWidth, b.String())
}

func dismissCmd(d deps) tea.Cmd {
	return func() tea.Msg {
		return actionMsg{state: d.svc.Dismiss(d.ctx)}
	}
}

func planName(p backend.Plan) string {
	switch p {
	case backend.PlanPlus:
		return "Plus"
	case backend.PlanPro:
		return "Pro"
	default:
		return "a paid plan"
	}
}

// errorText turns an error into a sentence for the user.
func errorText(err error) string {
	var reqErr *backend.RequestError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &reqErr) && reqErr.Network():
		return "Could not reach the server. Check your connection and try again."
	case errors.As(err, &reqErr):
		return reqErr.Message
	case errors.Is(err, backend.ErrNoEpisodes):
		return "Enter an episode GUID to process."
	case errors.Is(err, backend.ErrUnauthorized):
		return "Your session has expired. Sign in again."
	case errors.Is(err, backend.ErrCheckoutPending):
		return "Payment has not gone through yet."
	case errors.Is(err, backend.ErrCheckoutExpired):
		return "That checkout expired."
	case errors.Is(err, onboarding.ErrInFlight):
		return "Still finishing the previous step."
	default:
		return err.Error()
	}
}

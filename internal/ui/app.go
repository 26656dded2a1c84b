package ui

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/uncleJim21/pullthatupjamie/internal/backend"
	"github.com/uncleJim21/pullthatupjamie/internal/onboarding"
	"github.com/uncleJim21/pullthatupjamie/internal/prefs"
	"github.com/uncleJim21/pullthatupjamie/internal/quota"
	"github.com/uncleJim21/pullthatupjamie/internal/session"
	"github.com/uncleJim21/pullthatupjamie/internal/state"
)

// Service is what the UI drives. app.Service implements it.
type Service interface {
	Machine() *onboarding.Machine
	Store() *state.Store
	Refresh(ctx context.Context)
	Submit(ctx context.Context, req backend.SubmitRequest) (*backend.SubmitResult, error)
	SignIn(ctx context.Context, email, password string, signUp bool) (onboarding.State, error)
	StartCheckout(ctx context.Context) (*backend.CheckoutSession, error)
	ConfirmCheckout(ctx context.Context, sessionID string) (onboarding.State, error)
	Dismiss(ctx context.Context) onboarding.State
}

// Options configures the UI.
type Options struct {
	Context   context.Context
	Service   Service
	Session   session.Store
	ThemeName string
	PrefsPath string
	PollTick  time.Duration
	Logger    zerolog.Logger
}

// deps is what modals need to issue commands.
type deps struct {
	ctx       context.Context
	svc       Service
	prefsPath string
	logger    zerolog.Logger
}

// Model is the root application state for Bubble Tea.
type Model struct {
	deps
	session  session.Store
	pollTick time.Duration
	keys     keyMap
	help     help.Model

	// UI state
	theme    Theme
	width    int
	height   int
	ready    bool
	showHelp bool

	// Data state
	snapshot    state.Snapshot
	machine     onboarding.Snapshot
	lastUpdated time.Time

	form submitForm

	// modal mirrors the machine; modalKey identifies which one is up.
	modal    Modal
	modalKey string
	// notice shows errors the machine does not handle, above everything else.
	notice Modal
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}
	pollTick := opts.PollTick
	if pollTick <= 0 {
		pollTick = time.Second
	}
	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}
	remembered := prefs.Load(prefsPath)

	themeName := opts.ThemeName
	if remembered.Theme != "" {
		if _, ok := themes[remembered.Theme]; ok {
			themeName = remembered.Theme
		}
	}

	return Model{
		deps: deps{
			ctx:       ctx,
			svc:       opts.Service,
			prefsPath: prefsPath,
			logger:    opts.Logger,
		},
		session:  opts.Session,
		pollTick: pollTick,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		theme:    GetTheme(themeName),
		form:     newSubmitForm(remembered.LastFeedID),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		tickCmd(m.pollTick),
		fetchSnapshotCmd(m.svc),
		m.form.focusCmd(),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.ready = true
		return m, nil

	case tickMsg:
		return m, tea.Batch(fetchSnapshotCmd(m.svc), tickCmd(m.pollTick))

	case snapshotMsg:
		m.snapshot = msg.store
		m.machine = msg.machine
		m.lastUpdated = time.Now()
		return m, m.syncModal()

	case submitMsg:
		m.form.busy = false
		if msg.err != nil && !routed(msg.err) {
			m.notice = newNoticeModal("Submit failed", errorText(msg.err))
		}
		if msg.err == nil {
			feedID := m.form.feedID()
			m.form.clearEpisode()
			_ = prefs.Update(m.prefsPath, func(p *prefs.Prefs) { p.LastFeedID = feedID })
		}
		return m, fetchSnapshotCmd(m.svc)

	case actionMsg, checkoutMsg:
		var cmd tea.Cmd
		if m.modal != nil {
			m.modal, cmd, _ = m.modal.Update(msg, m.keys)
		} else if err := msgErr(msg); err != nil {
			m.notice = newNoticeModal("Something went wrong", errorText(err))
		}
		return m, tea.Batch(cmd, fetchSnapshotCmd(m.svc))

	case refreshedMsg:
		return m, fetchSnapshotCmd(m.svc)
	}

	if m.modal == nil && m.notice == nil {
		var cmd tea.Cmd
		m.form, cmd = m.form.update(msg, m.keys)
		return m, cmd
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	if m.notice != nil {
		return m.notice.View(m.theme, m.width, m.height)
	}
	if m.modal != nil {
		return m.modal.View(m.theme, m.width, m.height)
	}
	return m.renderMain()
}

// handleKey processes keyboard input. Layers are checked top down: help,
// notice, flow modal, then the submit form.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, m.keys.Quit) {
		return m, tea.Quit
	}
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil
	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		name := m.theme.Name
		_ = prefs.Update(m.prefsPath, func(p *prefs.Prefs) { p.Theme = name })
		return m, nil
	case key.Matches(msg, m.keys.Refresh):
		return m, refreshCmd(m.deps)
	}

	if m.notice != nil {
		var closed bool
		var cmd tea.Cmd
		m.notice, cmd, closed = m.notice.Update(msg, m.keys)
		if closed {
			m.notice = nil
		}
		return m, cmd
	}

	if m.modal != nil {
		var closed bool
		var cmd tea.Cmd
		m.modal, cmd, closed = m.modal.Update(msg, m.keys)
		if closed {
			// The next snapshot decides what replaces it.
			m.modal = nil
			m.modalKey = ""
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.form, cmd = m.form.update(msg, m.keys)
	if m.form.submitted {
		m.form.submitted = false
		req, err := m.form.request()
		if err != nil {
			m.notice = newNoticeModal("Check the form", errorText(err))
			return m, nil
		}
		m.form.busy = true
		return m, tea.Batch(cmd, submitCmd(m.deps, req))
	}
	return m, cmd
}

// syncModal makes the visible modal match the machine. The quota prompt takes
// precedence over the step it sits on.
func (m *Model) syncModal() tea.Cmd {
	st := m.machine.State
	want := ""
	switch {
	case m.machine.Prompt != nil:
		want = "quota:" + m.machine.Prompt.ActivationID
	case st.Kind == onboarding.KindAwaitingAuth:
		want = "auth"
	case st.Kind == onboarding.KindAwaitingCheckout:
		want = "checkout:" + string(st.TargetPlan)
	case st.Kind == onboarding.KindDone:
		want = "done"
		if r := m.machine.LastReplay; r != nil {
			want += ":" + r.ActionID
		}
	}
	if want == m.modalKey {
		return nil
	}

	m.modalKey = want
	switch {
	case want == "":
		m.modal = nil
		return nil
	case m.machine.Prompt != nil:
		m.modal = newQuotaModal(m.deps, *m.machine.Prompt, time.Now())
		return promptShownCmd(m.svc)
	case st.Kind == onboarding.KindAwaitingAuth:
		email := prefs.Load(m.prefsPath).LastEmail
		am := newAuthModal(m.deps, st.UpgradeIntent, st.TargetPlan, email)
		m.modal = am
		return am.focusCmd()
	case st.Kind == onboarding.KindAwaitingCheckout:
		m.modal = newCheckoutModal(m.deps, st.TargetPlan)
		return nil
	default:
		m.modal = newDoneModal(m.deps, st, m.machine.LastReplay)
		return nil
	}
}

func (m Model) tier() quota.Tier {
	if m.snapshot.Eligibility != nil && m.snapshot.Eligibility.Tier != "" {
		return m.snapshot.Eligibility.Tier
	}
	if m.session != nil {
		return m.session.Tier()
	}
	return quota.TierAnonymous
}

func (m Model) signedIn() bool {
	return session.Authenticated(m.session, time.Now())
}

// Messages

type tickMsg time.Time

type snapshotMsg struct {
	store   state.Snapshot
	machine onboarding.Snapshot
}

type submitMsg struct {
	result *backend.SubmitResult
	err    error
}

// actionMsg carries the machine state after a service call.
type actionMsg struct {
	state onboarding.State
	err   error
}

type checkoutMsg struct {
	session *backend.CheckoutSession
	err     error
}

type refreshedMsg struct{}

func msgErr(msg tea.Msg) error {
	switch v := msg.(type) {
	case actionMsg:
		return v.err
	case checkoutMsg:
		return v.err
	}
	return nil
}

// routed reports whether the onboarding machine already reacted to err.
func routed(err error) bool {
	return errors.Is(err, quota.ErrExceeded) || errors.Is(err, backend.ErrUnauthorized)
}

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(svc Service) tea.Cmd {
	if svc == nil {
		return nil
	}
	return func() tea.Msg {
		return snapshotMsg{store: svc.Store().Snapshot(), machine: svc.Machine().Snapshot()}
	}
}

func refreshCmd(d deps) tea.Cmd {
	return func() tea.Msg {
		d.svc.Refresh(d.ctx)
		return refreshedMsg{}
	}
}

func submitCmd(d deps, req backend.SubmitRequest) tea.Cmd {
	return func() tea.Msg {
		res, err := d.svc.Submit(d.ctx, req)
		if err != nil {
			d.logger.Debug().Err(err).Msg("submit failed")
		}
		return submitMsg{result: res, err: err}
	}
}

func promptShownCmd(svc Service) tea.Cmd {
	return func() tea.Msg {
		svc.Machine().PromptShown()
		return nil
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}

package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/Paintersrp/tether/internal/api"
	"github.com/Paintersrp/tether/internal/events"
)

const (
	statusTitle            = "Server"
	messagesTitle          = "Messages"
	defaultTitle           = "tether"
	defaultRefresh         = 5 * time.Second
	defaultMessageRetained = 200
	operationTimeout       = 30 * time.Second
)

// Option configures UI behaviour.
type Option func(*UI)

// WithRefreshInterval sets how often the status panel polls the controller.
func WithRefreshInterval(d time.Duration) Option {
	return func(u *UI) {
		if d > 0 {
			u.refreshInterval = d
		}
	}
}

// WithEvents refreshes the status panel whenever the supervisor reports an
// outcome, including outcomes requested by other clients.
func WithEvents(ch <-chan events.Event) Option {
	return func(u *UI) {
		u.events = ch
	}
}

// WithTitle labels the application frame.
func WithTitle(title string) Option {
	return func(u *UI) {
		if title != "" {
			u.title = title
		}
	}
}

// WithMaxMessages sets the number of retained message lines.
func WithMaxMessages(n int) Option {
	return func(u *UI) {
		if n > 0 {
			u.maxMessages = n
		}
	}
}

// UI is the interactive front-end: a status panel, a message log and the
// Start/Stop/Refresh/Quit buttons.
type UI struct {
	app      *tview.Application
	frame    *tview.Frame
	status   *tview.TextView
	messages *tview.TextView
	buttons  []*tview.Button

	ctrl            api.Controller
	events          <-chan events.Event
	refreshInterval time.Duration
	title           string
	maxMessages     int

	// dispatch runs controller calls off the UI goroutine; queue applies view
	// updates on it.
	dispatch func(func())
	queue    func(func())

	mu        sync.Mutex
	report    *api.StatusReport
	reportErr error
	entries   []entry

	cancelMu sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc

	wg       sync.WaitGroup
	stopOnce sync.Once
	done     chan struct{}
}

type entry struct {
	at     time.Time
	text   string
	failed bool
}

// New constructs a UI driving ctrl.
func New(ctrl api.Controller, opts ...Option) *UI {
	u := &UI{
		app:             tview.NewApplication(),
		ctrl:            ctrl,
		refreshInterval: defaultRefresh,
		title:           defaultTitle,
		maxMessages:     defaultMessageRetained,
		done:            make(chan struct{}),
	}
	for _, opt := range opts {
		opt(u)
	}
	// Dispatched operations count towards wg so Run does not return while a
	// start or stop is still in flight.
	u.dispatch = func(fn func()) {
		u.wg.Add(1)
		go func() {
			defer u.wg.Done()
			fn()
		}()
	}
	u.queue = func(fn func()) {
		select {
		case <-u.done:
			return
		default:
		}
		u.app.QueueUpdateDraw(fn)
	}
	u.build()
	u.app.SetRoot(u.frame, true)
	u.app.SetInputCapture(u.handleKey)
	return u
}

func (u *UI) build() {
	u.status = tview.NewTextView().SetDynamicColors(true)
	u.status.SetBorder(true).SetTitle(statusTitle)

	u.messages = tview.NewTextView().SetDynamicColors(true).SetScrollable(true)
	u.messages.SetBorder(true).SetTitle(messagesTitle)

	u.buttons = []*tview.Button{
		tview.NewButton("Start (s)").SetSelectedFunc(u.start),
		tview.NewButton("Stop (x)").SetSelectedFunc(u.stop),
		tview.NewButton("Refresh (r)").SetSelectedFunc(u.refresh),
		tview.NewButton("Quit (q)").SetSelectedFunc(func() { go u.Stop() }),
	}
	bar := tview.NewFlex()
	for i, btn := range u.buttons {
		if i > 0 {
			bar.AddItem(nil, 1, 0, false)
		}
		bar.AddItem(btn, 0, 1, i == 0)
	}

	layout := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(u.status, 9, 0, false).
		AddItem(bar, 1, 0, true).
		AddItem(u.messages, 0, 1, false)

	u.frame = tview.NewFrame(layout).SetBorders(0, 0, 0, 0, 1, 1)
	u.frame.AddText(u.title, true, tview.AlignLeft, tcell.ColorYellow)
	u.frame.AddText("s start  x stop  r refresh  tab focus  q quit", false, tview.AlignLeft, tcell.ColorGray)

	u.status.SetText(formatStatus(nil, nil, time.Now()))
}

// Done returns a channel that is closed when the UI stops.
func (u *UI) Done() <-chan struct{} {
	return u.done
}

// Run starts the tview application and refreshes the status panel until Stop
// is invoked or ctx is cancelled.
func (u *UI) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)

	u.cancelMu.Lock()
	u.ctx = ctx
	u.cancel = cancel
	u.cancelMu.Unlock()

	u.wg.Add(1)
	go func() {
		defer u.wg.Done()
		u.pollStatus(ctx)
	}()
	if u.events != nil {
		u.wg.Add(1)
		go func() {
			defer u.wg.Done()
			u.consumeEvents(ctx)
		}()
	}

	go func() {
		<-ctx.Done()
		u.Stop()
	}()

	err := u.app.Run()

	cancel()
	u.Stop()
	u.wg.Wait()
	return err
}

// Stop terminates the application loop.
func (u *UI) Stop() {
	u.stopOnce.Do(func() {
		u.cancelMu.Lock()
		cancel := u.cancel
		u.cancelMu.Unlock()
		if cancel != nil {
			cancel()
		}
		close(u.done)
		u.app.Stop()
	})
}

func (u *UI) pollStatus(ctx context.Context) {
	u.refresh()
	ticker := time.NewTicker(u.refreshInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			u.refresh()
		}
	}
}

func (u *UI) consumeEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-u.events:
			if !ok {
				u.record("Event stream closed", true)
				return
			}
			u.refresh()
		}
	}
}

func (u *UI) handleKey(event *tcell.EventKey) *tcell.EventKey {
	switch event.Key() {
	case tcell.KeyTab:
		u.cycleFocus(1)
		return nil
	case tcell.KeyBacktab:
		u.cycleFocus(-1)
		return nil
	case tcell.KeyRune:
		switch event.Rune() {
		case 's', 'S':
			u.start()
			return nil
		case 'x', 'X':
			u.stop()
			return nil
		case 'r', 'R':
			u.refresh()
			return nil
		case 'q', 'Q':
			go u.Stop()
			return nil
		}
	}
	return event
}

func (u *UI) cycleFocus(step int) {
	current := u.app.GetFocus()
	idx := -1
	for i, btn := range u.buttons {
		if btn == current {
			idx = i
			break
		}
	}
	next := (idx + step + len(u.buttons)) % len(u.buttons)
	if idx < 0 {
		next = 0
	}
	u.app.SetFocus(u.buttons[next])
}

// start and stop never block the UI goroutine. Rapid presses each reach the
// controller, which reports "already running" or "not running" as appropriate.
func (u *UI) start() {
	u.dispatch(func() {
		ctx, cancel := u.operationContext()
		defer cancel()
		res, err := u.ctrl.Start(ctx)
		u.recordResult(res, err)
		u.refresh()
	})
}

func (u *UI) stop() {
	u.dispatch(func() {
		ctx, cancel := u.operationContext()
		defer cancel()
		res, err := u.ctrl.Stop(ctx)
		u.recordResult(res, err)
		u.refresh()
	})
}

func (u *UI) refresh() {
	u.dispatch(func() {
		ctx, cancel := u.operationContext()
		defer cancel()
		report, err := u.ctrl.Status(ctx)

		u.mu.Lock()
		if err == nil {
			u.report = report
		}
		u.reportErr = err
		u.mu.Unlock()

		u.queue(u.renderStatus)
	})
}

func (u *UI) operationContext() (context.Context, context.CancelFunc) {
	u.cancelMu.Lock()
	parent := u.ctx
	u.cancelMu.Unlock()
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, operationTimeout)
}

func (u *UI) recordResult(res *api.OperationResult, err error) {
	if err != nil {
		u.record(err.Error(), true)
		return
	}
	if res == nil {
		return
	}
	u.record(res.Message, false)
}

func (u *UI) record(text string, failed bool) {
	u.mu.Lock()
	u.entries = append(u.entries, entry{at: time.Now(), text: text, failed: failed})
	if len(u.entries) > u.maxMessages {
		trim := len(u.entries) - u.maxMessages
		u.entries = append([]entry(nil), u.entries[trim:]...)
	}
	u.mu.Unlock()

	u.queue(u.renderMessages)
}

func (u *UI) renderStatus() {
	u.mu.Lock()
	text := formatStatus(u.report, u.reportErr, time.Now())
	u.mu.Unlock()
	u.status.SetText(text)
}

func (u *UI) renderMessages() {
	u.mu.Lock()
	lines := make([]string, 0, len(u.entries))
	for _, e := range u.entries {
		lines = append(lines, formatEntry(e))
	}
	u.mu.Unlock()

	u.messages.SetText(strings.Join(lines, "\n"))
	u.messages.ScrollToEnd()
}

func formatEntry(e entry) string {
	color := "white"
	if e.failed {
		color = "red"
	}
	return fmt.Sprintf("[gray]%s[-] [%s]%s[-]", e.at.Format("15:04:05"), color, tview.Escape(e.text))
}

func formatStatus(report *api.StatusReport, err error, now time.Time) string {
	var b strings.Builder
	if err != nil {
		fmt.Fprintf(&b, "[red]Status unavailable[-]\n%s\n", tview.Escape(err.Error()))
		if report == nil {
			return b.String()
		}
		b.WriteString("\n[gray]Last known:[-]\n")
	}
	if report == nil {
		b.WriteString("[gray]Waiting for status...[-]\n")
		return b.String()
	}

	state := "[gray]Stopped[-]"
	switch {
	case report.Running && report.Exited:
		state = fmt.Sprintf("[yellow]Exited[-] (pid %d, stop to clear)", report.PID)
	case report.Running:
		state = fmt.Sprintf("[green]Running[-] (pid %d)", report.PID)
	}
	fmt.Fprintf(&b, "%-9s %s\n", "State:", state)
	if report.Name != "" {
		fmt.Fprintf(&b, "%-9s %s\n", "Name:", tview.Escape(report.Name))
	}
	fmt.Fprintf(&b, "%-9s %s\n", "Command:", tview.Escape(report.Command))
	if report.Running && report.StartedAt != nil {
		uptime := now.Sub(*report.StartedAt)
		if uptime < 0 {
			uptime = 0
		}
		fmt.Fprintf(&b, "%-9s %s\n", "Uptime:", uptime.Truncate(time.Second))
	}
	if report.ExitError != "" {
		fmt.Fprintf(&b, "%-9s %s\n", "Exit:", tview.Escape(report.ExitError))
	}
	if p := report.Probe; p != nil {
		if p.Reachable {
			fmt.Fprintf(&b, "%-9s [green]Server Online[-] (%dms)\n", "Probe:", p.LatencyMS)
		} else {
			fmt.Fprintf(&b, "%-9s [red]Server Offline[-]", "Probe:")
			if p.Error != "" {
				fmt.Fprintf(&b, " %s", tview.Escape(p.Error))
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

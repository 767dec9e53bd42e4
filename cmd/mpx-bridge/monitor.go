package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sweeney/mpx-bridge/internal/bus"
	"github.com/sweeney/mpx-bridge/internal/logic"
	"github.com/sweeney/mpx-bridge/internal/mqtt"
	"github.com/sweeney/mpx-bridge/internal/status"
)

const (
	monitorPoll    = 20 * time.Millisecond
	monitorRefresh = 250 * time.Millisecond
	monitorLines   = 200
	monitorBacklog = 1024
)

func newMonitorCmd(bf *busFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Watch bus traffic interactively and type keys to send",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return errors.New("monitor needs a terminal")
			}
			return runMonitor(bf)
		},
	}
}

func runMonitor(bf *busFlags) error {
	commands := make(chan mqtt.Command, 1)
	queue := newMsgQueue(monitorBacklog)

	// statsFn is filled in once the bus is up.
	var ctrl *bus.Controller
	m := newMonitorModel(bf, commands, func() bus.Stats { return ctrl.Stats() })
	p := tea.NewProgram(m, tea.WithAltScreen())

	ctrl, stop, err := bf.startBus(monitorOptions(queue)...)
	if err != nil {
		return err
	}
	defer stop()

	// Deferred after stop so the workers are gone before the bus closes.
	stopWorkers := startMonitorWorkers(ctrl, commands, queue, p.Send)
	defer stopWorkers()

	_, err = p.Run()
	return err
}

// monitorOptions routes the controller's observers into queue. They run
// during Begin and on the polling goroutine, before or alongside the
// program's event loop, so they only ever post.
func monitorOptions(queue *msgQueue) []bus.Option {
	return []bus.Option{
		bus.WithWordHandler(func(w logic.Word, valid bool) {
			queue.post(newWordMsg(time.Now(), w, valid))
		}),
		bus.WithLogger(func(line string) {
			queue.post(logMsg(line))
		}),
	}
}

// msgQueue holds messages for the program until it is ready to read them.
// Posting never blocks; when the backlog is full the message is dropped.
type msgQueue struct {
	ch      chan tea.Msg
	dropped atomic.Uint64
}

func newMsgQueue(size int) *msgQueue {
	return &msgQueue{ch: make(chan tea.Msg, size)}
}

func (q *msgQueue) post(msg tea.Msg) {
	select {
	case q.ch <- msg:
	default:
		q.dropped.Add(1)
	}
}

// forward hands queued messages to send until ctx is done.
func (q *msgQueue) forward(ctx context.Context, send func(tea.Msg)) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-q.ch:
			send(msg)
		}
	}
}

// startMonitorWorkers runs the polling worker and the queue forwarder. The
// returned function stops both and waits for them to exit.
func startMonitorWorkers(ctrl *bus.Controller, commands <-chan mqtt.Command, queue *msgQueue, send func(tea.Msg)) func() {
	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		pollWorker(ctx, ctrl, commands, queue.post)
	}()
	go func() {
		defer wg.Done()
		queue.forward(ctx, send)
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}

// pollWorker is the controller's polling context for the monitor. Key
// commands are sent from here so Poll and transmit never overlap.
func pollWorker(ctx context.Context, ctrl *bus.Controller, commands <-chan mqtt.Command, send func(tea.Msg)) {
	ticker := time.NewTicker(monitorPoll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ctrl.Poll(0)
		case c := <-commands:
			send(sentMsg{cmd: c, err: execute(ctrl, c)})
		}
	}
}

type wordMsg struct {
	at    time.Time
	word  logic.Word
	valid bool
	event logic.Event // empty when the word is not a known event
}

func newWordMsg(at time.Time, w logic.Word, valid bool) wordMsg {
	msg := wordMsg{at: at, word: w, valid: valid}
	if valid {
		if e, ok := logic.LookupEvent(w); ok {
			msg.event = e
		}
	}
	return msg
}

type logMsg string

type sentMsg struct {
	cmd mqtt.Command
	err error
}

type monitorTickMsg time.Time

type lineKind int

const (
	lineEvent lineKind = iota
	lineWord
	lineBad
	lineDebug
)

type monitorLine struct {
	kind lineKind
	text string
}

type monitorModel struct {
	connInfo string
	commands chan<- mqtt.Command
	statsFn  func() bus.Stats

	stats  bus.Stats
	counts status.EventCounts
	lines  []monitorLine

	input     textinput.Model
	notice    string
	noticeErr bool

	width    int
	height   int
	quitting bool
}

func newMonitorModel(bf *busFlags, commands chan<- mqtt.Command, statsFn func() bus.Stats) monitorModel {
	ti := textinput.New()
	ti.Placeholder = "1234 or ZONA_IN"
	ti.CharLimit = 32
	ti.Width = 24
	ti.Focus()

	info := fmt.Sprintf("Backend: %s | RX %d | TX %d", bf.backend, bf.rxPin, bf.txPin)
	if bf.backend == backendSerial {
		info = fmt.Sprintf("Backend: %s %s", bf.backend, bf.serialPort)
	}

	return monitorModel{
		connInfo: info,
		commands: commands,
		statsFn:  statsFn,
		input:    ti,
		width:    80,
		height:   24,
	}
}

func (m monitorModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, monitorTickCmd())
}

func monitorTickCmd() tea.Cmd {
	return tea.Tick(monitorRefresh, func(t time.Time) tea.Msg {
		return monitorTickMsg(t)
	})
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.quitting = true
			return m, tea.Quit
		case "enter":
			return m.submit(), nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case monitorTickMsg:
		if m.statsFn != nil {
			m.stats = m.statsFn()
		}
		return m, monitorTickCmd()

	case wordMsg:
		m.addWord(msg)
		return m, nil

	case logMsg:
		m.addLine(lineDebug, string(msg))
		return m, nil

	case sentMsg:
		if msg.err != nil {
			m.setNotice(fmt.Sprintf("send %s: %v", msg.cmd, msg.err), true)
		} else {
			m.setNotice("sent "+msg.cmd.String(), false)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit parses the input line as a key command and queues it.
func (m monitorModel) submit() monitorModel {
	text := strings.TrimSpace(m.input.Value())
	m.input.Reset()
	if text == "" {
		return m
	}
	c, err := mqtt.ParseCommand([]byte(text))
	if err != nil {
		m.setNotice(err.Error(), true)
		return m
	}
	select {
	case m.commands <- c:
		m.setNotice("sending "+c.String(), false)
	default:
		m.setNotice("still sending, try again", true)
	}
	return m
}

func (m *monitorModel) setNotice(s string, isErr bool) {
	m.notice = s
	m.noticeErr = isErr
}

func (m *monitorModel) addWord(msg wordMsg) {
	ts := msg.at.Format("15:04:05.000")
	switch {
	case !msg.valid:
		m.addLine(lineBad, fmt.Sprintf("%s  %s  bad parity", ts, msg.word))
	case msg.event != "":
		m.counts.Add(msg.event)
		m.addLine(lineEvent, fmt.Sprintf("%s  %s  %s", ts, msg.word, msg.event))
	default:
		m.addLine(lineWord, fmt.Sprintf("%s  %s", ts, msg.word))
	}
}

func (m *monitorModel) addLine(kind lineKind, text string) {
	m.lines = append(m.lines, monitorLine{kind: kind, text: text})
	if len(m.lines) > monitorLines {
		m.lines = m.lines[len(m.lines)-monitorLines:]
	}
}

func (m monitorModel) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("12")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	headerStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	labelStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("12")).
		Bold(true)

	valueStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("10"))

	errorStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("9")).
		Bold(true)

	warningStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("11"))

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Padding(0, 1)

	var s strings.Builder
	s.WriteString(titleStyle.Render("MPX BRIDGE - MONITOR"))
	s.WriteString("\n")
	s.WriteString(headerStyle.Render(m.connInfo + " | Enter sends | Esc to quit"))
	s.WriteString("\n\n")

	stat := func(label string, v uint64, style lipgloss.Style) string {
		return labelStyle.Render(label+":") + " " + style.Render(fmt.Sprintf("%d", v))
	}
	bad := valueStyle
	if m.stats.Invalid > 0 || m.stats.Dropped > 0 {
		bad = errorStyle
	}
	statsLine := strings.Join([]string{
		stat("Words", m.stats.Words, valueStyle),
		stat("Bad parity", m.stats.Invalid, bad),
		stat("Dropped", m.stats.Dropped, bad),
		stat("Sent", m.stats.Sent, valueStyle),
		stat("Events", uint64(m.counts.Total()), valueStyle),
	}, "   ")
	s.WriteString(boxStyle.Render(statsLine))
	s.WriteString("\n")

	// Header, stats box, input and notice take about 10 rows.
	rows := m.height - 10
	if rows < 3 {
		rows = 3
	}
	start := 0
	if len(m.lines) > rows {
		start = len(m.lines) - rows
	}
	var log strings.Builder
	if len(m.lines) == 0 {
		log.WriteString(headerStyle.Render("waiting for bus traffic..."))
	}
	for i, l := range m.lines[start:] {
		if i > 0 {
			log.WriteString("\n")
		}
		switch l.kind {
		case lineEvent:
			log.WriteString(valueStyle.Render(l.text))
		case lineBad:
			log.WriteString(errorStyle.Render(l.text))
		case lineDebug:
			log.WriteString(headerStyle.Render(l.text))
		default:
			log.WriteString(l.text)
		}
	}
	width := m.width - 4
	if width < 20 {
		width = 20
	}
	s.WriteString(boxStyle.Width(width).Render(log.String()))
	s.WriteString("\n")

	s.WriteString(labelStyle.Render("Keys: "))
	s.WriteString(m.input.View())
	s.WriteString("\n")
	if m.notice != "" {
		if m.noticeErr {
			s.WriteString(errorStyle.Render(m.notice))
		} else {
			s.WriteString(warningStyle.Render(m.notice))
		}
		s.WriteString("\n")
	}
	return s.String()
}

// Package ui renders the merged book and signals in the terminal.
//
// The renderer is driven by a fixed wall-clock tick: on each tick it borrows
// both snapshot slots, calls the pure merger, and redraws. It keeps only the
// books borrowed on the latest tick and what was derived from them, each
// tick replacing them wholesale, and treats empty or disconnected books as
// valid input, rendering placeholders and dimming stale venues.
//
// Log output goes to stderr; stdout is the TUI canvas.
package ui

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"dualbook/internal/merge"
	"dualbook/pkg/types"
)

// BookSource is the slot interface the renderer reads from. Satisfied by
// *feed.Latest.
type BookSource interface {
	Borrow() types.OrderBook
}

var (
	headerStyle = lipgloss.NewStyle().Bold(true)
	bidStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	askStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	dimStyle    = lipgloss.NewStyle().Faint(true)
	arbStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	venueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
)

type tickMsg time.Time

// Model is the bubbletea model for the aggregator view.
type Model struct {
	hl       BookSource
	pdx      BookSource
	depth    int
	interval time.Duration
	title    string
	logger   *slog.Logger

	width      int
	now        time.Time
	hlBook     types.OrderBook
	pdBook     types.OrderBook
	merged     types.MergedBook
	sig        types.Signals
	wasCrossed bool
}

// New creates the model. title names the instrument pair in the header.
func New(hl, pdx BookSource, depth int, interval time.Duration, title string, logger *slog.Logger) Model {
	return Model{
		hl:       hl,
		pdx:      pdx,
		depth:    depth,
		interval: interval,
		title:    title,
		logger:   logger.With("component", "ui"),
	}
}

// Init schedules the first display tick.
func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles ticks, quit keys, and terminal resize.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.now = time.Time(msg)
		m.hlBook = m.hl.Borrow()
		m.pdBook = m.pdx.Borrow()
		m.merged, m.sig = merge.Build(m.hlBook, m.pdBook, m.depth)

		// A crossed merged top is logged once per episode; the best-effort
		// book is still rendered.
		crossed := m.merged.Crossed()
		if crossed && !m.wasCrossed {
			m.logger.Error("merged book crossed",
				"best_bid", m.merged.Bids[0].Price,
				"bid_venue", m.merged.Bids[0].Venue,
				"best_ask", m.merged.Asks[0].Price,
				"ask_venue", m.merged.Asks[0].Venue,
			)
		}
		m.wasCrossed = crossed
		return m, m.tick()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "Q", "esc", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
	}
	return m, nil
}

// View draws the merged depth table, the signal row, and the status bar.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render(m.title))
	b.WriteString("\n\n")

	b.WriteString(headerStyle.Render(fmt.Sprintf(
		"%-4s %-14s %-12s %-4s   %-4s %-14s %-12s %-4s",
		"", "BID", "SIZE", "VEN", "", "ASK", "SIZE", "VEN",
	)))
	b.WriteString("\n")

	for i := 0; i < m.depth; i++ {
		b.WriteString(m.renderRow(i))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.renderSignals())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("q to quit"))
	b.WriteString("\n")

	return b.String()
}

func (m Model) renderRow(i int) string {
	bid := "      -"
	bidSize := ""
	bidVenue := ""
	if i < len(m.merged.Bids) {
		l := m.merged.Bids[i]
		bid = bidStyle.Render(l.Price.String())
		bidSize = l.Size.String()
		bidVenue = venueStyle.Render(string(l.Venue))
	}

	ask := "      -"
	askSize := ""
	askVenue := ""
	if i < len(m.merged.Asks) {
		l := m.merged.Asks[i]
		ask = askStyle.Render(l.Price.String())
		askSize = l.Size.String()
		askVenue = venueStyle.Render(string(l.Venue))
	}

	return fmt.Sprintf("%-4d %-14s %-12s %-4s   %-4d %-14s %-12s %-4s",
		i+1, bid, bidSize, bidVenue, i+1, ask, askSize, askVenue)
}

func (m Model) renderSignals() string {
	spread := "-"
	if m.sig.CrossSpread != nil {
		spread = m.sig.CrossSpread.String()
	}

	line := fmt.Sprintf("cross spread: %-12s  LIR: %-10s  HL %s  PDX %s",
		spread,
		m.sig.LIR.StringFixed(4),
		renderBBO(m.sig.HL),
		renderBBO(m.sig.PDX),
	)
	if m.sig.Arb {
		line += "  " + arbStyle.Render("ARB")
	}
	return line
}

func renderBBO(b types.BBO) string {
	bid, ask := "-", "-"
	if b.Bid != nil {
		bid = b.Bid.Price.String()
	}
	if b.Ask != nil {
		ask = b.Ask.Price.String()
	}
	return fmt.Sprintf("%s/%s", bid, ask)
}

func (m Model) renderStatus() string {
	return fmt.Sprintf("%s   %s",
		m.venueStatus("HL", m.hlBook),
		m.venueStatus("PDX", m.pdBook),
	)
}

func (m Model) venueStatus(name string, book types.OrderBook) string {
	state := "connected"
	if !book.Connected {
		state = "DISCONNECTED"
	}

	age := "-"
	if book.LastUpdateMS > 0 {
		d := m.now.Sub(time.UnixMilli(book.LastUpdateMS)).Truncate(time.Millisecond)
		if d < 0 {
			d = 0
		}
		age = d.String()
	}

	s := fmt.Sprintf("%s: %s (updated %s ago, %d updates)", name, state, age, book.Updates)
	if book.Crossed() {
		s += " " + arbStyle.Render("[crossed]")
	}
	if !book.Connected {
		return dimStyle.Render(s)
	}
	return s
}

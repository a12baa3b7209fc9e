// Package tui is the vendor's terminal bill builder.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/skip2/go-qrcode"

	"mosspay/pkg/cart"
	"mosspay/pkg/client"
	"mosspay/pkg/phone"
)

// Backend is what the bill builder needs from the server.
type Backend interface {
	BillableItems(ctx context.Context) ([]cart.Item, error)
	SendBillToPhone(ctx context.Context, number string, bill *cart.Cart) (client.SendResult, error)
}

// SendState tracks the send-to-phone button.
type SendState int

const (
	SendIdle SendState = iota
	SendSending
	SendSuccess
	SendError
)

type focus int

const (
	focusList focus = iota
	focusSearch
	focusPhone
)

type itemsLoadedMsg struct {
	items []cart.Item
	err   error
}

type sentMsg struct {
	result client.SendResult
	err    error
}

type copiedMsg struct{ err error }

// Option customizes a Bill model.
type Option func(*Bill)

// WithClipboard replaces the system clipboard writer.
func WithClipboard(write func(string) error) Option {
	return func(b *Bill) {
		if write != nil {
			b.copy = write
		}
	}
}

// WithTimeout bounds each server call.
func WithTimeout(d time.Duration) Option {
	return func(b *Bill) {
		if d > 0 {
			b.timeout = d
		}
	}
}

// WithBanners replaces the carousel slides.
func WithBanners(slides ...string) Option {
	return func(b *Bill) { b.carousel = NewCarousel(slides...) }
}

// Bill is the bubbletea model of the generate-bill screen.
type Bill struct {
	backend Backend
	copy    func(string) error
	timeout time.Duration

	items    []cart.Item
	cart     *cart.Cart
	cursor   int
	focus    focus
	search   textinput.Model
	phone    textinput.Model
	state    SendState
	status   string
	showQR   bool
	reset    []int64
	carousel Carousel
	sidebar  Sidebar
	help     help.Model

	width  int
	height int
}

// NewBill builds an empty bill over backend.
func NewBill(backend Backend, opts ...Option) *Bill {
	search := textinput.New()
	search.Placeholder = "Search items"
	search.Prompt = "/ "

	number := textinput.New()
	number.Placeholder = "Customer phone"
	number.CharLimit = phone.Length
	number.Prompt = "☎ "

	b := &Bill{
		backend:  backend,
		copy:     clipboard.WriteAll,
		timeout:  client.DefaultTimeout,
		cart:     cart.New(),
		search:   search,
		phone:    number,
		carousel: NewCarousel(DefaultBanners...),
		help:     help.New(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Init loads the in-stock items and starts the carousel.
func (b *Bill) Init() tea.Cmd {
	return tea.Batch(b.load(), b.carousel.tick())
}

func (b *Bill) load() tea.Cmd {
	backend, timeout := b.backend, b.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		items, err := backend.BillableItems(ctx)
		return itemsLoadedMsg{items: items, err: err}
	}
}

// Update handles one message.
func (b *Bill) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		b.width, b.height = msg.Width, msg.Height
		b.help.Width = msg.Width
		return b, nil
	case bannerTickMsg:
		b.carousel.Next()
		return b, b.carousel.tick()
	case itemsLoadedMsg:
		if msg.err != nil {
			b.status = msg.err.Error()
			return b, nil
		}
		b.items = msg.items
		b.clampCursor()
		return b, nil
	case sentMsg:
		return b, b.finishSend(msg)
	case copiedMsg:
		if msg.err != nil {
			b.status = "Copy failed: " + msg.err.Error()
		} else {
			b.status = "Bill summary copied."
		}
		return b, nil
	case tea.KeyMsg:
		return b, b.handleKey(msg)
	}
	return b, nil
}

func (b *Bill) handleKey(msg tea.KeyMsg) tea.Cmd {
	if msg.String() == "ctrl+c" {
		return tea.Quit
	}
	switch b.focus {
	case focusSearch:
		return b.editSearch(msg)
	case focusPhone:
		return b.editPhone(msg)
	}

	switch {
	case key.Matches(msg, keys.Quit):
		return tea.Quit
	case key.Matches(msg, keys.Up):
		if b.cursor > 0 {
			b.cursor--
		}
	case key.Matches(msg, keys.Down):
		if b.cursor < len(b.visible())-1 {
			b.cursor++
		}
	case key.Matches(msg, keys.Increase):
		b.increase()
	case key.Matches(msg, keys.Decrease):
		b.decrease()
	case key.Matches(msg, keys.Search):
		b.focus = focusSearch
		return b.search.Focus()
	case key.Matches(msg, keys.Phone):
		b.focus = focusPhone
		return b.phone.Focus()
	case key.Matches(msg, keys.Send):
		return b.startSend()
	case key.Matches(msg, keys.Copy):
		return b.copySummary()
	case key.Matches(msg, keys.QR):
		b.showQR = !b.showQR
	case key.Matches(msg, keys.Sidebar):
		b.sidebar.Toggle()
	}
	return nil
}

func (b *Bill) editSearch(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc, tea.KeyEnter:
		b.focus = focusList
		b.search.Blur()
		return nil
	}
	var cmd tea.Cmd
	b.search, cmd = b.search.Update(msg)
	b.cursor = 0
	return cmd
}

func (b *Bill) editPhone(msg tea.KeyMsg) tea.Cmd {
	switch msg.Type {
	case tea.KeyEsc:
		b.focus = focusList
		b.phone.Blur()
		return nil
	case tea.KeyEnter:
		b.focus = focusList
		b.phone.Blur()
		return b.startSend()
	}
	var cmd tea.Cmd
	b.phone, cmd = b.phone.Update(msg)
	return cmd
}

// visible is the item list after the search filter.
func (b *Bill) visible() []cart.Item {
	return cart.Filter(b.items, strings.TrimSpace(b.search.Value()))
}

func (b *Bill) clampCursor() {
	if n := len(b.visible()); b.cursor >= n {
		b.cursor = max(0, n-1)
	}
}

func (b *Bill) selected() (cart.Item, bool) {
	items := b.visible()
	if b.cursor < 0 || b.cursor >= len(items) {
		return cart.Item{}, false
	}
	return items[b.cursor], true
}

func (b *Bill) increase() {
	if b.state == SendSending {
		return
	}
	item, ok := b.selected()
	if !ok {
		return
	}
	b.state, b.reset = SendIdle, nil
	if _, err := b.cart.Increase(item); err != nil {
		b.status = err.Error()
		return
	}
	b.status = ""
}

func (b *Bill) decrease() {
	if b.state == SendSending {
		return
	}
	if item, ok := b.selected(); ok {
		b.cart.Decrease(item.ID)
		b.state, b.status = SendIdle, ""
	}
}

// startSend validates locally and sends a snapshot; the key is inert while a send is in flight.
func (b *Bill) startSend() tea.Cmd {
	if b.state == SendSending {
		return nil
	}
	number := strings.TrimSpace(b.phone.Value())
	if err := phone.Validate(number); err != nil {
		b.state, b.status = SendError, err.Error()
		return nil
	}
	if b.cart.Len() == 0 {
		b.state, b.status = SendError, cart.ErrEmpty.Error()
		return nil
	}
	b.state, b.status = SendSending, "Sending..."
	backend, timeout, snapshot := b.backend, b.timeout, b.cart.Clone()
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		result, err := backend.SendBillToPhone(ctx, number, snapshot)
		return sentMsg{result: result, err: err}
	}
}

func (b *Bill) finishSend(msg sentMsg) tea.Cmd {
	if msg.err != nil {
		b.state = SendError
		var apiErr *client.APIError
		if errors.As(msg.err, &apiErr) {
			b.status = apiErr.Message
		} else {
			b.status = "An error occurred: " + msg.err.Error()
		}
		return nil
	}
	b.state = SendSuccess
	b.status = msg.result.Message
	b.reset = b.cart.Clear()
	b.phone.Reset()
	b.showQR = false
	return b.load()
}

func (b *Bill) copySummary() tea.Cmd {
	if b.cart.Len() == 0 {
		b.status = cart.ErrEmpty.Error()
		return nil
	}
	text, write := b.cart.Summary(), b.copy
	return func() tea.Msg { return copiedMsg{err: write(text)} }
}

// State reports the send button state.
func (b *Bill) State() SendState { return b.state }

// Status is the last message shown under the bill.
func (b *Bill) Status() string { return b.status }

// Cart exposes the current selection.
func (b *Bill) Cart() *cart.Cart { return b.cart }

// Reset lists the items whose quantity display went back to zero after the last send.
func (b *Bill) Reset() []int64 { return b.reset }

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2E7D32"))
	bannerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFFFFF")).Background(lipgloss.Color("#2E7D32")).Padding(0, 1)
	cursorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#5B8DEF")).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B")).Bold(true)
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#4CAF50")).Bold(true)
	panelStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("#4CAF50")).Padding(0, 1)
)

// View renders the banner, item list, bill panel and optional sidebar.
func (b *Bill) View() string {
	banner := bannerStyle.Render(b.carousel.Current())
	body := lipgloss.JoinHorizontal(lipgloss.Top, panelStyle.Render(b.itemsView()), panelStyle.Render(b.billView()))
	if b.sidebar.Open() {
		body = lipgloss.JoinHorizontal(lipgloss.Top, panelStyle.Render(b.help.FullHelpView(keys.FullHelp())), body)
	}
	return lipgloss.JoinVertical(lipgloss.Left, banner, titleStyle.Render("Generate a bill"), body, b.help.ShortHelpView(keys.ShortHelp()))
}

func (b *Bill) itemsView() string {
	var sb strings.Builder
	sb.WriteString(b.search.View())
	sb.WriteString("\n")
	items := b.visible()
	if len(items) == 0 {
		sb.WriteString(mutedStyle.Render("No items in stock."))
		return sb.String()
	}
	for i, item := range items {
		line := fmt.Sprintf("%-24s ₹%8s  %3d/%-3d", item.Name, item.Price.StringFixed(2), b.cart.Quantity(item.ID), item.Stock)
		if i == b.cursor {
			sb.WriteString(cursorStyle.Render("> " + line))
		} else {
			sb.WriteString("  " + line)
		}
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (b *Bill) billView() string {
	var sb strings.Builder
	lines := b.cart.Lines()
	if len(lines) == 0 {
		sb.WriteString(mutedStyle.Render("No items added yet."))
		sb.WriteString("\n")
	}
	for _, line := range lines {
		fmt.Fprintf(&sb, "%s × %d  ₹%s\n", line.Name, line.Quantity, line.Subtotal().StringFixed(2))
	}
	fmt.Fprintf(&sb, "\nTotal: ₹%s\nCarbon saved: %s kg\nMossCoins: %d\n\n",
		b.cart.Total().StringFixed(2), b.cart.Carbon().StringFixed(1), b.cart.Mosscoins())
	sb.WriteString(b.phone.View())
	sb.WriteString("\n")
	switch b.state {
	case SendSending:
		sb.WriteString(mutedStyle.Render(b.status))
	case SendSuccess:
		sb.WriteString(successStyle.Render(b.status))
	case SendError:
		sb.WriteString(errorStyle.Render(b.status))
	default:
		if b.status != "" {
			sb.WriteString(mutedStyle.Render(b.status))
		}
	}
	if b.showQR && b.cart.Len() > 0 {
		if qr, err := RenderQR(b.cart.Summary()); err == nil {
			sb.WriteString("\n")
			sb.WriteString(qr)
		}
	}
	return sb.String()
}

// RenderQR draws text as a terminal QR code using half-block characters.
func RenderQR(text string) (string, error) {
	code, err := qrcode.New(text, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("render qr: %w", err)
	}
	return code.ToSmallString(false), nil
}

// Run starts the bill builder in the alternate screen.
func Run(backend Backend, opts ...Option) error {
	_, err := tea.NewProgram(NewBill(backend, opts...), tea.WithAltScreen()).Run()
	return err
}

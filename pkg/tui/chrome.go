package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// BannerInterval is how long each banner slide stays up.
const BannerInterval = 4 * time.Second

// DefaultBanners are the slides shown above the bill builder.
var DefaultBanners = []string{
	"Every logged bill plants a little more moss.",
	"Redeem MossCoins for partner offers and government schemes.",
	"Climb the leaderboard by saving more CO2.",
}

type bannerTickMsg struct{}

// Carousel cycles through banner slides.
type Carousel struct {
	slides []string
	index  int
}

// NewCarousel starts on the first slide.
func NewCarousel(slides ...string) Carousel {
	return Carousel{slides: slides}
}

// Next advances one slide, wrapping to the first after the last.
func (c *Carousel) Next() int {
	if len(c.slides) == 0 {
		return 0
	}
	c.index = (c.index + 1) % len(c.slides)
	return c.index
}

// Index is the visible slide.
func (c Carousel) Index() int { return c.index }

// Current is the visible slide's text.
func (c Carousel) Current() string {
	if len(c.slides) == 0 {
		return ""
	}
	return c.slides[c.index]
}

// tick schedules the next slide change.
func (c Carousel) tick() tea.Cmd {
	if len(c.slides) < 2 {
		return nil
	}
	return tea.Tick(BannerInterval, func(time.Time) tea.Msg { return bannerTickMsg{} })
}

// Sidebar is the collapsible help panel.
type Sidebar struct {
	open bool
}

// Toggle flips the sidebar and reports whether it is now open.
func (s *Sidebar) Toggle() bool {
	s.open = !s.open
	return s.open
}

// Open reports whether the sidebar is shown.
func (s Sidebar) Open() bool { return s.open }

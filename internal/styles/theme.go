package styles

import (
	"pdfchat/internal/models"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the palette the rest of the styles are derived from.
type Theme struct {
	TextMuted lipgloss.Color
	Secondary lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color

	// backend status badge
	Online  lipgloss.Color
	Offline lipgloss.Color

	// markers in the chat list
	Local lipgloss.Color
	Dirty lipgloss.Color
}

var DarkTheme = Theme{
	TextMuted: lipgloss.Color("#64748B"), // Slate 500
	Secondary: lipgloss.Color("#22D3EE"), // Cyan 400
	Warning:   lipgloss.Color("#FBBF24"), // Amber 400
	Error:     lipgloss.Color("#FB7185"), // Rose 400
	Online:    lipgloss.Color("#34D399"), // Emerald 400
	Offline:   lipgloss.Color("#FBBF24"),
	Local:     lipgloss.Color("#FBBF24"),
	Dirty:     lipgloss.Color("#22D3EE"),
}

var LightTheme = Theme{
	TextMuted: lipgloss.Color("#A1A1AA"), // Zinc 400
	Secondary: lipgloss.Color("#0891B2"), // Cyan 600
	Warning:   lipgloss.Color("#F59E0B"), // Amber 500
	Error:     lipgloss.Color("#EF4444"), // Red 500
	Online:    lipgloss.Color("#10B981"), // Emerald 500
	Offline:   lipgloss.Color("#F59E0B"),
	Local:     lipgloss.Color("#D97706"),
	Dirty:     lipgloss.Color("#0891B2"),
}

// CurrentTheme is picked by InitTheme from the terminal background.
var CurrentTheme = DarkTheme

type Adaptive = lipgloss.AdaptiveColor

func adaptive(pick func(Theme) lipgloss.Color) Adaptive {
	return Adaptive{Light: string(pick(LightTheme)), Dark: string(pick(DarkTheme))}
}

var (
	FgMuted     = adaptive(func(t Theme) lipgloss.Color { return t.TextMuted })
	FgSecondary = adaptive(func(t Theme) lipgloss.Color { return t.Secondary })
	FgWarning   = adaptive(func(t Theme) lipgloss.Color { return t.Warning })
	FgError     = adaptive(func(t Theme) lipgloss.Color { return t.Error })
)

// SyncColor returns the marker color for a chat the backend has not seen
// as-is yet. Synced chats get the muted text color.
func SyncColor(state models.SyncState) lipgloss.Color {
	switch state {
	case models.SyncLocal:
		return CurrentTheme.Local
	case models.SyncDirty:
		return CurrentTheme.Dirty
	default:
		return CurrentTheme.TextMuted
	}
}

func StatusColor(online bool) lipgloss.Color {
	if online {
		return CurrentTheme.Online
	}
	return CurrentTheme.Offline
}

// InitTheme sets the current theme based on terminal background
func InitTheme() {
	if lipgloss.HasDarkBackground() {
		CurrentTheme = DarkTheme
	} else {
		CurrentTheme = LightTheme
	}
}

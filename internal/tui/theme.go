package tui

import (
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

// The TUI must stay readable on light and dark backgrounds: colors are adaptive and faint
// styling is only used on dark backgrounds.

func ac(light, dark string) lipgloss.AdaptiveColor {
	return lipgloss.AdaptiveColor{Light: light, Dark: dark}
}

func faintIfDark(st lipgloss.Style) lipgloss.Style {
	if lipgloss.HasDarkBackground() {
		return st.Faint(true)
	}
	return st
}

var (
	colorMuted      = ac("240", "243")
	colorSelectedBg = ac("#e9e9e9", "#262626")
	colorSelectedFg = ac("235", "255")
	colorAccent     = ac("27", "62")
	colorAccentFg   = ac("255", "235")
	colorDone       = ac("245", "241")
	colorError      = ac("160", "203")
	colorTag        = ac("25", "75")

	colorPriorityHigh   = ac("160", "203")
	colorPriorityMedium = ac("136", "179")
	colorPriorityLow    = ac("28", "114")
	colorOverdue        = ac("160", "203")
	colorSoon           = ac("166", "215")
	colorFuture         = ac("25", "111")
)

func styleMuted() lipgloss.Style {
	return faintIfDark(lipgloss.NewStyle().Foreground(colorMuted))
}

func styleSelected() lipgloss.Style {
	return lipgloss.NewStyle().Background(colorSelectedBg).Foreground(colorSelectedFg)
}

func styleHeader() lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(colorAccent)
}

func styleStatus() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(colorAccentFg).Background(colorAccent).Padding(0, 1)
}

func styleError() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(colorError).Bold(true)
}

func styleDone() lipgloss.Style {
	return faintIfDark(lipgloss.NewStyle().Foreground(colorDone).Strikethrough(true))
}

func styleTag() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(colorTag)
}

// badgeStyle maps a badge class (see query.Badge) to its color.
func badgeStyle(class string) lipgloss.Style {
	st := lipgloss.NewStyle()
	switch {
	case class == "priority-high":
		return st.Foreground(colorPriorityHigh).Bold(true)
	case class == "priority-medium":
		return st.Foreground(colorPriorityMedium)
	case class == "priority-low":
		return st.Foreground(colorPriorityLow)
	case strings.HasSuffix(class, "-overdue"):
		return st.Foreground(colorOverdue).Bold(true)
	case strings.HasSuffix(class, "-today"), strings.HasSuffix(class, "-soon"):
		return st.Foreground(colorSoon)
	case strings.HasSuffix(class, "-future"):
		return st.Foreground(colorFuture)
	}
	return styleMuted()
}

// applyColorProfilePreference sets Lip Gloss's color profile. termenv.EnvColorProfile would
// honor CLICOLOR too, which can disable colors in a TUI; only NO_COLOR is honored here.
func applyColorProfilePreference() {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	profile := termenv.ColorProfile()
	term := strings.ToLower(strings.TrimSpace(os.Getenv("TERM")))
	colorterm := strings.ToLower(strings.TrimSpace(os.Getenv("COLORTERM")))
	if strings.Contains(colorterm, "truecolor") || strings.Contains(colorterm, "24bit") {
		if profile != termenv.Ascii {
			profile = termenv.TrueColor
		}
	} else if strings.Contains(term, "256color") && profile != termenv.TrueColor {
		profile = termenv.ANSI256
	}
	lipgloss.SetColorProfile(profile)
}

// resolveTheme returns "light" or "dark" (or "" to leave detection to Lip Gloss).
//
// Priority:
//  1. TAREAS_TUI_THEME=light|dark|auto
//  2. the tui.theme config value
//  3. COLORFGBG ("fg;bg", the last segment is the background)
func resolveTheme(configured string) string {
	for _, v := range []string{os.Getenv("TAREAS_TUI_THEME"), configured} {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "light":
			return "light"
		case "dark":
			return "dark"
		}
	}
	if v := strings.TrimSpace(os.Getenv("COLORFGBG")); v != "" {
		parts := strings.Split(v, ";")
		if bg, err := strconv.Atoi(strings.TrimSpace(parts[len(parts)-1])); err == nil {
			if bg < 7 {
				return "dark"
			}
			return "light"
		}
	}
	return ""
}

func applyThemePreference(configured string) {
	switch resolveTheme(configured) {
	case "light":
		lipgloss.SetHasDarkBackground(false)
	case "dark":
		lipgloss.SetHasDarkBackground(true)
	}
}

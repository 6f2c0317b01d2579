package theme

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
)

func TestSemanticStylesHaveForegrounds(t *testing.T) {
	t.Parallel()

	styles := map[string]lipgloss.Style{
		"prompt":  PromptStyle,
		"success": SuccessStyle,
		"error":   ErrorStyle,
		"warning": WarningStyle,
		"info":    InfoStyle,
		"muted":   MutedStyle,
	}
	for name, style := range styles {
		if _, ok := style.GetForeground().(lipgloss.NoColor); ok {
			t.Fatalf("%s style has no foreground", name)
		}
	}

	if border, _, _, _, _ := BannerBorder.GetBorder(); border.Top != lipgloss.DoubleBorder().Top {
		t.Fatalf("banner border top = %q, want double top", border.Top)
	}
	if border, _, _, _, _ := AlarmBorder.GetBorder(); border.Top != lipgloss.ThickBorder().Top {
		t.Fatalf("alarm border top = %q, want thick top", border.Top)
	}
	if !VictoryBorder.GetBold() {
		t.Fatal("victory border should be bold")
	}
}

func TestProfileColorRespectsProfile(t *testing.T) {
	original := colorProfileFn
	t.Cleanup(func() {
		colorProfileFn = original
	})

	colorProfileFn = func() termenv.Profile { return termenv.TrueColor }
	if color, ok := profileColor(Phosphor, "83", "10").(lipgloss.AdaptiveColor); !ok || color.Dark != Phosphor {
		t.Fatalf("truecolor result = %#v, want adaptive %s", color, Phosphor)
	}

	colorProfileFn = func() termenv.Profile { return termenv.ANSI }
	complete, ok := profileColor(AlertRed, "203", "9").(lipgloss.CompleteAdaptiveColor)
	if !ok {
		t.Fatalf("ansi result type = %T, want lipgloss.CompleteAdaptiveColor", profileColor(AlertRed, "203", "9"))
	}
	if complete.Dark.ANSI256 != "203" || complete.Light.ANSI != "9" {
		t.Fatalf("complete adaptive color = %#v", complete)
	}
}

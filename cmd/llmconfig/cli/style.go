package cli

import (
	"fmt"
	"io"
	"net/http"

	"github.com/charmbracelet/lipgloss"
)

var (
	methodStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Width(7)
	paramStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	okStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	errStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	headerStyle = lipgloss.NewStyle().Bold(true).Underline(true)
)

func printStatus(w io.Writer, status int) {
	label := fmt.Sprintf("%d %s", status, http.StatusText(status))
	if status >= 200 && status < 300 {
		fmt.Fprintln(w, okStyle.Render(label))
		return
	}
	fmt.Fprintln(w, errStyle.Render(label))
}

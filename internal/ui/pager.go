package ui

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"golang.org/x/term"
)

// PagerOptions controls ToPager.
type PagerOptions struct {
	NoPager bool      // --no-pager, or JSON output
	Out     io.Writer // nil means os.Stdout
	Height  int       // screen rows; 0 asks the terminal
}

// ToPager writes content to the pager named by FIRMA_PAGER or PAGER (less by
// default) when it goes to a terminal and would not fit on one screen.
// Everything else is written as is. FIRMA_NO_PAGER disables paging.
func ToPager(content string, opts PagerOptions) error {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	argv := pagerArgv()
	if opts.NoPager || len(argv) == 0 || out != os.Stdout || !IsTerminal() ||
		fits(content, screenHeight(opts.Height)) {
		_, err := fmt.Fprint(out, content)
		return err
	}

	cmd := exec.Command(argv[0], argv[1:]...) // #nosec G204 - the pager is the user's choice
	cmd.Stdin = strings.NewReader(content)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if _, ok := os.LookupEnv("LESS"); !ok {
		// Keep colors, exit on short input, leave the dump on screen.
		cmd.Env = append(cmd.Env, "LESS=-RFX")
	}
	return cmd.Run()
}

// pagerArgv returns the pager command line, or nil when paging is disabled.
func pagerArgv() []string {
	if os.Getenv("FIRMA_NO_PAGER") != "" {
		return nil
	}
	for _, env := range []string{"FIRMA_PAGER", "PAGER"} {
		if argv := strings.Fields(os.Getenv(env)); len(argv) > 0 {
			return argv
		}
	}
	return []string{"less"}
}

func screenHeight(fixed int) int {
	if fixed > 0 {
		return fixed
	}
	_, h, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0
	}
	return h
}

// fits reports whether content leaves a row free for the prompt. An unknown
// height never fits.
func fits(content string, height int) bool {
	return height > 0 && lineCount(content) < height
}

func lineCount(content string) int {
	content = strings.TrimSuffix(content, "\n")
	if content == "" {
		return 0
	}
	return strings.Count(content, "\n") + 1
}

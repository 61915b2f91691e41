package prompt

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/mattn/go-shellwords"
)

// LocaleKeyboard resolves the keyboard language from the process locale
// (LC_ALL, LC_MESSAGES, LANG). A Wayland/X11 helper publishing the real
// layout can replace it; the locale is the dependable default for a daemon.
type LocaleKeyboard struct{}

func (LocaleKeyboard) PrimaryLanguage() (string, bool) {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		value := strings.TrimSpace(os.Getenv(key))
		if value == "" || value == "C" || value == "POSIX" {
			continue
		}
		if i := strings.IndexByte(value, '.'); i >= 0 {
			value = value[:i]
		}
		return strings.ReplaceAll(value, "_", "-"), true
	}
	return "", false
}

// StaticKeyboard reports a fixed language tag. Used in tests and in
// configurations that pin the keyboard language explicitly.
type StaticKeyboard struct {
	Tag string
}

func (k StaticKeyboard) PrimaryLanguage() (string, bool) {
	if k.Tag == "" {
		return "", false
	}
	return k.Tag, true
}

const activeAppTimeout = 500 * time.Millisecond

// ExecActiveApp shells out to a configured command (for example
// `xdotool getactivewindow getwindowname`) and uses the first line of its
// output as the active application name. Failures yield "" so the composer
// falls back to "Unknown".
type ExecActiveApp struct {
	cmd    []string
	logger *slog.Logger
}

func NewExecActiveApp(command string, logger *slog.Logger) (*ExecActiveApp, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, err
	}
	return &ExecActiveApp{
		cmd:    args,
		logger: logger.With(slog.String("component", "active-app")),
	}, nil
}

func (a *ExecActiveApp) ActiveApplication() string {
	if len(a.cmd) == 0 {
		return ""
	}
	ctx, cancel := context.WithTimeout(context.Background(), activeAppTimeout)
	defer cancel()

	command := exec.CommandContext(ctx, a.cmd[0], a.cmd[1:]...)
	var stdout bytes.Buffer
	command.Stdout = &stdout
	if err := command.Run(); err != nil {
		a.logger.Debug("active app lookup failed", slog.String("error", err.Error()))
		return ""
	}
	line, _, _ := strings.Cut(stdout.String(), "\n")
	return strings.TrimSpace(line)
}

// StaticActiveApp reports a fixed application name.
type StaticActiveApp struct {
	Name string
}

func (a StaticActiveApp) ActiveApplication() string {
	return a.Name
}

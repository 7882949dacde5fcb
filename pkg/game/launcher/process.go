package launcher

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"time"

	"limeal.fr/gamepipe/pkg/launcherr"
)

// waitDelay bounds how long Launch waits for the child after a
// cancellation signal before killing it outright.
const waitDelay = 10 * time.Second

// Command is a fully resolved game invocation.
type Command struct {
	Executable string
	JVMArgs    []string
	MainClass  string
	GameArgs   []string
	Dir        string
	// Name identifies the process in errors and logs.
	Name string
}

// Args returns the argument vector after the executable: JVM arguments,
// main class, game arguments.
func (c Command) Args() []string {
	out := make([]string, 0, len(c.JVMArgs)+1+len(c.GameArgs))
	out = append(out, c.JVMArgs...)
	out = append(out, c.MainClass)
	return append(out, c.GameArgs...)
}

// Launch spawns c with inherited stdout and stderr and blocks until it
// exits. A non-zero exit is reported through the returned code, not as an
// error. Cancelling ctx terminates the child's process group.
func Launch(ctx context.Context, c Command) (int, error) {
	name := c.Name
	if name == "" {
		name = c.Executable
	}
	if c.Executable == "" {
		return -1, &launcherr.ProcessError{Process: name, Err: errors.New("no executable")}
	}

	cmd := exec.CommandContext(ctx, c.Executable, c.Args()...)
	cmd.Dir = c.Dir
	cmd.Stdout, cmd.Stderr = os.Stdout, os.Stderr
	cmd.WaitDelay = waitDelay
	setupProcessAttributes(cmd)

	if err := cmd.Start(); err != nil {
		return -1, &launcherr.ProcessError{Process: name, Err: err}
	}

	err := cmd.Wait()
	return exitResult(ctx, name, cmd.ProcessState, err)
}

// exitResult maps a finished child to Launch's result. A child that exited
// on its own reports its code even when ctx was cancelled meanwhile; only a
// child stopped by a signal is attributed to the cancellation.
func exitResult(ctx context.Context, name string, state *os.ProcessState, waitErr error) (int, error) {
	if state != nil && state.Exited() {
		return state.ExitCode(), nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return -1, &launcherr.ProcessError{Process: name, Err: ctxErr}
	}
	if waitErr == nil {
		waitErr = errors.New("process ended without an exit status")
	}
	return -1, &launcherr.ProcessError{Process: name, Err: waitErr}
}

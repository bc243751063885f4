package helper

import (
	"context"
	"os"
	"os/exec"
	"strings"

	"github.com/whitekid/goxp/log"
)

var (
	loggerExec = log.New(log.AddCallerSkip(1))
)

func Execute(command ...string) *Executer { return &Executer{command: command} }

type Executer struct {
	shell       bool
	interactive bool
	command     []string
	dir         string
}

func (exc *Executer) Shell() *Executer { exc.shell = true; return exc }

// Interactive attach stdin, stdout and stderr of the current process; required for editors
func (exc *Executer) Interactive() *Executer   { exc.interactive = true; return exc }
func (exc *Executer) Dir(dir string) *Executer { exc.dir = dir; return exc }

func (exc *Executer) buildCmd(ctx context.Context) *exec.Cmd {
	var name string
	var args []string

	if exc.shell {
		name = "sh"
		args = []string{"-c", strings.Join(exc.command, " ")}
	} else if len(exc.command) > 0 {
		name = exc.command[0]
		args = exc.command[1:]
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = exc.dir

	return cmd
}

// Do execute command, output stdout to stdout and stderr to stderr
func (exc *Executer) Do(ctx context.Context) error {
	dir := exc.dir
	if dir == "" {
		dir, _ = os.Getwd()
	}
	loggerExec.Debugf("execute: %s", strings.Join(exc.command, " "))
	loggerExec.Debugf("dir: %s", dir)

	cmd := exc.buildCmd(ctx)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if exc.interactive {
		cmd.Stdin = os.Stdin
	}

	return cmd.Run()
}

package runner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/google/shlex"

	"github.com/franz/camo/internal/util"
)

// DefaultCommand applies a single migration file with the official CLI
const DefaultCommand = "npx contentful-migration"

// Executor applies one migration file to the target environment
type Executor interface {
	Execute(ctx context.Context, path string) error
}

// Credentials identify the target environment for the migration command
type Credentials struct {
	AccessToken   string
	SpaceID       string
	EnvironmentID string
}

// CommandExecutor runs an external migration command once per file
type CommandExecutor struct {
	argv  []string
	creds Credentials
}

// NewCommandExecutor splits command with shell quoting rules
func NewCommandExecutor(command string, creds Credentials) (*CommandExecutor, error) {
	if strings.TrimSpace(command) == "" {
		command = DefaultCommand
	}

	argv, err := shlex.Split(command)
	if err != nil {
		return nil, fmt.Errorf("%w: migration command %q: %v", util.ErrInvalidConfig, command, err)
	}
	if len(argv) == 0 {
		return nil, fmt.Errorf("%w: migration command is empty", util.ErrInvalidConfig)
	}

	return &CommandExecutor{argv: argv, creds: creds}, nil
}

// Program returns the executable the command starts
func (c *CommandExecutor) Program() string {
	return c.argv[0]
}

// Args returns the full argument list for applying path, without the program
func (c *CommandExecutor) Args(path string) []string {
	args := append([]string{}, c.argv[1:]...)
	if c.creds.SpaceID != "" {
		args = append(args, "--space-id", c.creds.SpaceID)
	}
	if c.creds.EnvironmentID != "" {
		args = append(args, "--environment-id", c.creds.EnvironmentID)
	}
	if c.creds.AccessToken != "" {
		args = append(args, "--management-token", c.creds.AccessToken)
	}
	return append(args, "--yes", path)
}

// Execute runs the command for path. Its output is logged at debug level
// and attached to the error on failure.
func (c *CommandExecutor) Execute(ctx context.Context, path string) error {
	cmd := exec.CommandContext(ctx, c.Program(), c.Args(path)...)

	util.DebugLog("Running %s for %s", c.Program(), path)
	out, err := cmd.CombinedOutput()
	output := strings.TrimSpace(string(out))
	if output != "" {
		util.DebugLog("%s", output)
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && output != "" {
			return fmt.Errorf("%s exited with code %d: %s", c.Program(), exitErr.ExitCode(), lastLine(output))
		}
		return fmt.Errorf("failed to run %s: %w", c.Program(), err)
	}
	return nil
}

func lastLine(s string) string {
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

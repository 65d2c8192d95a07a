package tools

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

const maxScriptOutput = 20000

// terraformEnv keeps terraform from prompting or printing colour codes.
var terraformEnv = []string{"TF_IN_AUTOMATION=1", "TF_INPUT=0", "TF_CLI_ARGS=-no-color"}

// ShellTool runs model-supplied commands through bash inside Dir. Commands
// are pre-approved; only the tool policy can refuse them.
type ShellTool struct {
	Dir     string
	Timeout time.Duration
	Env     []string
}

func NewShellTool(dir string, timeout time.Duration) *ShellTool {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	return &ShellTool{Dir: abs, Timeout: timeout, Env: terraformEnv}
}

func (s *ShellTool) Name() string { return "execute_script" }

func (s *ShellTool) Description() string {
	return "Run a shell command in the working directory, e.g. 'terraform validate', 'tfsec .' or './scripts/check.sh'. Returns combined stdout and stderr."
}

func (s *ShellTool) Parameters() map[string]any {
	return objectSchema([]string{"script_command"},
		str("script_command", "The shell command to execute"),
	)
}

// Execute reports a failing command as an observation rather than an error,
// so the model can read the output and try again.
func (s *ShellTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Command string `json:"script_command"`
	}
	if err := decodeArgs(s.Name(), input, &args); err != nil {
		return "", err
	}
	command := strings.TrimSpace(args.Command)
	if command == "" {
		return "Error: empty command", nil
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	cmd.Dir = s.Dir
	cmd.Env = append(os.Environ(), s.Env...)
	out, runErr := cmd.CombinedOutput()

	text := capOutput(strings.TrimSpace(string(out)))
	if text == "" {
		text = "(no output)"
	}
	if runErr == nil {
		return text, nil
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		runErr = fmt.Errorf("timed out after %s", s.Timeout)
	}
	return fmt.Sprintf("Error executing script '%s': %v\nOutput: %s", command, runErr, text), nil
}

// capOutput keeps the head and tail of long command output.
func capOutput(s string) string {
	if len(s) <= maxScriptOutput {
		return s
	}
	half := maxScriptOutput / 2
	head, tail := s[:half], s[len(s)-half:]
	return strings.ToValidUTF8(head, "") + "\n... (output truncated) ...\n" + strings.ToValidUTF8(tail, "")
}

package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// CommandWorker runs an external command per subtask. The request payload
// and instructions are written to the command's stdin; stdout is the
// worker's textual response. Task identity is also exposed through
// CONDUCTOR_* environment variables so shell workers can read it without
// parsing the payload.
type CommandWorker struct {
	Command string
	Args    []string
}

// NewCommandWorker builds a CommandWorker for the given command line.
func NewCommandWorker(command string, args []string) (*CommandWorker, error) {
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("worker command must not be empty")
	}
	return &CommandWorker{Command: command, Args: args}, nil
}

// Invoke runs the command once for the request's subtask. A non-zero exit
// is an error carrying the captured stderr, which the controller records
// as a malformed result rather than propagating.
func (w *CommandWorker) Invoke(ctx context.Context, req Request) (Response, error) {
	stdin, err := renderStdin(req)
	if err != nil {
		return Response{}, fmt.Errorf("encoding worker input: %w", err)
	}

	cmd := exec.CommandContext(ctx, w.Command, w.Args...)
	cmd.Stdin = strings.NewReader(stdin)
	cmd.Env = append(os.Environ(),
		"CONDUCTOR_TASK_ID="+req.TaskID,
		"CONDUCTOR_TASK_TITLE="+req.Title,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if stderr.Len() > 0 {
			return Response{}, fmt.Errorf("running worker %s: %w: %s", w.Command, err, strings.TrimSpace(stderr.String()))
		}
		return Response{}, fmt.Errorf("running worker %s: %w", w.Command, err)
	}

	return Response{Text: stdout.String()}, nil
}

// renderStdin flattens the request into the text handed to the command:
// the encoded subtask followed by the result-shape instructions. A map
// payload (json format) is marshalled; text payloads pass through.
func renderStdin(req Request) (string, error) {
	var payload string
	switch p := req.Payload.(type) {
	case string:
		payload = p
	case nil:
		payload = ""
	default:
		data, err := json.Marshal(p)
		if err != nil {
			return "", err
		}
		payload = string(data)
	}

	if req.Instructions == "" {
		return payload + "\n", nil
	}
	return payload + "\n\n" + req.Instructions + "\n", nil
}

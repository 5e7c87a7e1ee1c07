package syncq

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// Command is an API request recorded while the server was unreachable.
type Command struct {
	Method         string         `json:"method"`
	Path           string         `json:"path"`
	Body           map[string]any `json:"body,omitempty"`
	IdempotencyKey string         `json:"idempotency_key"`
	QueuedAt       time.Time      `json:"queued_at"`
}

func queuePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".rfx")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	return filepath.Join(dir, "queue.json"), nil
}

func Load() ([]Command, error) {
	path, err := queuePath()
	if err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []Command{}, nil
		}
		return nil, err
	}
	if len(raw) == 0 {
		return []Command{}, nil
	}
	var out []Command
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func Save(commands []Command) error {
	path, err := queuePath()
	if err != nil {
		return err
	}
	raw, err := json.MarshalIndent(commands, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o600)
}

func Push(cmd Command) error {
	commands, err := Load()
	if err != nil {
		return err
	}
	if cmd.QueuedAt.IsZero() {
		cmd.QueuedAt = time.Now().UTC()
	}
	commands = append(commands, cmd)
	return Save(commands)
}

type Result struct {
	Sent      int
	Dropped   []Failure
	Remaining []Command
}

type Failure struct {
	Command Command
	Err     error
}

// Replay sends commands in order. A command whose error reports
// Permanent() is dropped; any other error stops the replay and the command
// stays at the head of Remaining along with everything after it.
func Replay(ctx context.Context, commands []Command, send func(context.Context, Command) error) (Result, error) {
	var res Result
	for i, cmd := range commands {
		if err := ctx.Err(); err != nil {
			res.Remaining = commands[i:]
			return res, err
		}
		err := send(ctx, cmd)
		if err == nil {
			res.Sent++
			continue
		}
		if isPermanent(err) {
			res.Dropped = append(res.Dropped, Failure{Command: cmd, Err: err})
			continue
		}
		res.Remaining = commands[i:]
		return res, err
	}
	return res, nil
}

func isPermanent(err error) bool {
	var p interface{ Permanent() bool }
	return errors.As(err, &p) && p.Permanent()
}

// Package syncq persists writes that could not reach the API so a later
// `lifesim sync` can replay them with their original idempotency keys.
package syncq

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"lifesim/internal/cli"
)

type Command struct {
	Method         string          `json:"method"`
	Path           string          `json:"path"`
	Body           json.RawMessage `json:"body,omitempty"`
	IdempotencyKey string          `json:"idempotency_key"`
	QueuedAt       time.Time       `json:"queued_at"`
}

func queuePath() (string, error) {
	dir, err := cli.BaseDir()
	if err != nil {
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
	raw, err := json.Marshal(commands)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// Push appends cmd, stamping QueuedAt when unset.
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

// Replayer is the part of the API client Replay needs.
type Replayer interface {
	Do(ctx context.Context, method, path string, body json.RawMessage, idem string) (json.RawMessage, error)
}

// Result counts what Replay did. Failed holds one message per command kept.
type Result struct {
	Replayed  int
	Remaining int
	Failed    []string
}

// Replay sends every queued command in order and keeps the ones that fail.
// A command the server rejects is dropped since retrying cannot help.
func Replay(ctx context.Context, r Replayer) (Result, error) {
	queue, err := Load()
	if err != nil {
		return Result{}, err
	}
	var res Result
	remaining := make([]Command, 0, len(queue))
	for _, q := range queue {
		if _, err := r.Do(ctx, q.Method, q.Path, q.Body, q.IdempotencyKey); err != nil {
			res.Failed = append(res.Failed, fmt.Sprintf("%s %s: %v", q.Method, q.Path, err))
			if !cli.IsAPIError(err) {
				remaining = append(remaining, q)
			}
			continue
		}
		res.Replayed++
	}
	if err := Save(remaining); err != nil {
		return res, err
	}
	res.Remaining = len(remaining)
	return res, nil
}

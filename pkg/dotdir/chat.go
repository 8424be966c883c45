package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	chatFile = "chat.json"
)

// ChatState is the persisted transcript of the last chat session.
type ChatState struct {
	// MemoryDir is the artifact directory the transcript was produced against.
	MemoryDir string `json:"memory_dir"`

	// CorpusDigest identifies the corpus the answers came from. A resumed
	// session against a different corpus starts fresh.
	CorpusDigest string `json:"corpus_digest"`

	Mode  string     `json:"mode"`
	Turns []ChatTurn `json:"turns"`
}

// ChatTurn is one question and its answer.
type ChatTurn struct {
	Query    string    `json:"query"`
	Answer   string    `json:"answer"`
	Path     string    `json:"path,omitempty"`
	Error    string    `json:"error,omitempty"`
	AskedAt  time.Time `json:"asked_at"`
	Duration int64     `json:"duration_ms,omitempty"`
}

// LoadChatState loads the chat transcript from a target .memorag/chat.json.
// Returns nil, nil if no transcript exists.
func (m *Manager) LoadChatState(overrideDir string) (*ChatState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil || dir == "" {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, chatFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading chat state: %w", err)
	}

	state := &ChatState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing chat state: %w", err)
	}

	return state, nil
}

// SaveChatState persists the chat transcript to a target .memorag/chat.json.
func (m *Manager) SaveChatState(state *ChatState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil chat state")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}
	if dir == "" {
		return errors.New("no .memorag directory found; run \"memorag init\" first")
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling chat state: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, chatFile), data, 0o600); err != nil {
		return fmt.Errorf("writing chat state: %w", err)
	}

	return nil
}

// ClearChatState removes the chat transcript. Returns nil if the file doesn't
// exist.
func (m *Manager) ClearChatState(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil || dir == "" {
		return err
	}

	if err := os.Remove(filepath.Join(dir, chatFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing chat state: %w", err)
	}

	return nil
}

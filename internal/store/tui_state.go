package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const tuiStateFileName = "tui_state.json"

// TUIState stores the last view settings of the terminal UI so a relaunch restores them.
// It lives in the workspace directory; callers tolerate missing or invalid data.
type TUIState struct {
	Version int `json:"version"`

	// View is one of: all|today|tomorrow|overdue|pending|completed
	View string `json:"view,omitempty"`

	SortByPriority bool     `json:"sortByPriority,omitempty"`
	SortByDueDate  bool     `json:"sortByDueDate,omitempty"`
	Tags           []string `json:"tags,omitempty"`

	SelectedTaskID int  `json:"selectedTaskId,omitempty"`
	ShowPreview    bool `json:"showPreview,omitempty"`
}

func (s Store) tuiStatePath() string {
	return filepath.Join(s.Dir, tuiStateFileName)
}

func (s Store) LoadTUIState() (*TUIState, error) {
	if strings.TrimSpace(s.Dir) == "" {
		return &TUIState{Version: 1}, nil
	}
	b, err := os.ReadFile(s.tuiStatePath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &TUIState{Version: 1}, nil
		}
		return nil, err
	}
	var st TUIState
	if err := json.Unmarshal(b, &st); err != nil {
		// Corrupted state is treated as missing.
		return &TUIState{Version: 1}, nil
	}
	if st.Version == 0 {
		st.Version = 1
	}
	return &st, nil
}

func (s Store) SaveTUIState(st *TUIState) error {
	if st == nil || strings.TrimSpace(s.Dir) == "" {
		return nil
	}
	if err := s.Ensure(); err != nil {
		return err
	}
	if st.Version == 0 {
		st.Version = 1
	}
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	return WriteFileAtomic(s.tuiStatePath(), b)
}

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"swapdesk/internal/model"
	"swapdesk/internal/slippage"
)

// Preferences are the user-editable settings that survive restarts. Nil
// fields were never set and fall through to config and defaults.
type Preferences struct {
	SlippageBps  *uint32 `json:"slippage_bps,omitempty"`
	DeadlineSecs *uint64 `json:"deadline_secs,omitempty"`
	ApprovalMode *string `json:"approval_mode,omitempty"`
	UpdatedAt    string  `json:"updated_at,omitempty"`
}

// Validate rejects values Settings would refuse.
func (p Preferences) Validate() error {
	if p.SlippageBps != nil {
		if err := slippage.Validate(*p.SlippageBps); err != nil {
			return err
		}
	}
	if p.DeadlineSecs != nil && *p.DeadlineSecs == 0 {
		return fmt.Errorf("deadline must be positive")
	}
	if p.ApprovalMode != nil {
		if _, err := model.ParseApprovalPolicy(*p.ApprovalMode); err != nil {
			return err
		}
	}
	return nil
}

// Merge overlays the set fields of update onto p.
func (p Preferences) Merge(update Preferences) Preferences {
	if update.SlippageBps != nil {
		p.SlippageBps = update.SlippageBps
	}
	if update.DeadlineSecs != nil {
		p.DeadlineSecs = update.DeadlineSecs
	}
	if update.ApprovalMode != nil {
		p.ApprovalMode = update.ApprovalMode
	}
	return p
}

func (p Preferences) asMap() map[string]interface{} {
	out := make(map[string]interface{})
	if p.SlippageBps != nil {
		out["slippage-bps"] = *p.SlippageBps
	}
	if p.DeadlineSecs != nil {
		out["deadline"] = time.Duration(*p.DeadlineSecs) * time.Second
	}
	if p.ApprovalMode != nil {
		out["approval-mode"] = *p.ApprovalMode
	}
	return out
}

// PrefsStore persists preferences to a JSON file.
type PrefsStore struct {
	path string
}

func NewPrefsStore(path string) *PrefsStore {
	return &PrefsStore{path: path}
}

func (s *PrefsStore) Load() (Preferences, bool, error) {
	if s.path == "" {
		return Preferences{}, false, nil
	}

	stat, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Preferences{}, false, nil
		}
		return Preferences{}, false, fmt.Errorf("stat preferences: %w", err)
	}
	if stat.IsDir() {
		return Preferences{}, false, fmt.Errorf("preferences path is a directory")
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return Preferences{}, false, fmt.Errorf("read preferences: %w", err)
	}

	var prefs Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return Preferences{}, false, fmt.Errorf("parse preferences: %w", err)
	}
	if err := prefs.Validate(); err != nil {
		return Preferences{}, false, fmt.Errorf("invalid preferences: %w", err)
	}
	return prefs, true, nil
}

// Save writes prefs atomically through a temp file and rename.
func (s *PrefsStore) Save(prefs Preferences) error {
	if s.path == "" {
		return fmt.Errorf("preferences path is empty")
	}
	if err := prefs.Validate(); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create preferences dir: %w", err)
		}
	}

	prefs.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	data, err := json.MarshalIndent(prefs, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write preferences tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("rename preferences: %w", err)
	}
	return nil
}

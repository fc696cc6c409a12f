package plugin

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/selfmod/evolve-plugin/internal/host"
)

// runtimeState is the persisted shape: the last-observed model identity, so
// heartbeats can resume without a fresh user turn.
type runtimeState struct {
	Model struct {
		ProviderID string `json:"providerID"`
		ModelID    string `json:"modelID"`
	} `json:"model"`
}

func runtimeStatePath(workspaceRoot string) string {
	return filepath.Join(workspaceRoot, "config", "runtime.json")
}

func loadRuntimeState(workspaceRoot string) (host.Model, bool) {
	data, err := os.ReadFile(runtimeStatePath(workspaceRoot))
	if err != nil {
		return host.Model{}, false
	}
	var rs runtimeState
	if err := json.Unmarshal(data, &rs); err != nil {
		return host.Model{}, false
	}
	if rs.Model.ProviderID == "" && rs.Model.ModelID == "" {
		return host.Model{}, false
	}
	return host.Model{ProviderID: rs.Model.ProviderID, ModelID: rs.Model.ModelID}, true
}

// saveRuntimeState writes the runtime state file only when it would
// actually change, to avoid torn writes and needless commits.
func saveRuntimeState(workspaceRoot string, model host.Model) error {
	path := runtimeStatePath(workspaceRoot)
	if existing, ok := loadRuntimeState(workspaceRoot); ok && existing == model {
		return nil
	}

	var rs runtimeState
	rs.Model.ProviderID = model.ProviderID
	rs.Model.ModelID = model.ModelID
	data, err := json.MarshalIndent(&rs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode runtime state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write runtime state: %w", err)
	}
	return nil
}

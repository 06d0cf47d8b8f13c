// Package policy implements the human-defined policy store: a tagged list,
// persisted atomically to YAML, formatted into LLM-evaluation prompts.
package policy

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Policy is one human-defined standing instruction.
type Policy struct {
	ID          string    `yaml:"id"`
	Description string    `yaml:"description"`
	Tool        string    `yaml:"tool,omitempty"`
	CreatedAt   time.Time `yaml:"createdAt"`
}

type document struct {
	Policies []Policy `yaml:"policies"`
}

// Store owns the policies.yaml file: in-memory list plus atomic persistence
// on every mutation.
type Store struct {
	path string

	mu       sync.Mutex
	policies []Policy
	nextID   int
}

// Load reads policies.yaml if present (a missing file is not an error — it
// simply starts empty) and sets the id counter past the highest observed
// numeric id.
func Load(path string) (*Store, error) {
	s := &Store{path: path}
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read policies file: %w", err)
	}
	var doc document
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse policies file: %w", err)
	}
	s.policies = doc.Policies
	for _, p := range s.policies {
		if n, ok := numericSuffix(p.ID); ok && n >= s.nextID {
			s.nextID = n + 1
		}
	}
	return s, nil
}

func numericSuffix(id string) (int, bool) {
	const prefix = "pol_"
	if !strings.HasPrefix(id, prefix) {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimPrefix(id, prefix))
	if err != nil {
		return 0, false
	}
	return n, true
}

// Add appends a new policy (not deduplicated) and persists the
// whole list atomically via a temp-file-plus-rename.
func (s *Store) Add(description, tool string) (Policy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := Policy{
		ID:          fmt.Sprintf("pol_%d", s.nextID),
		Description: description,
		Tool:        tool,
		CreatedAt:   time.Now(),
	}
	s.nextID++
	s.policies = append(s.policies, p)
	if err := s.persistLocked(); err != nil {
		return Policy{}, err
	}
	return p, nil
}

func (s *Store) persistLocked() error {
	b, err := yaml.Marshal(document{Policies: s.policies})
	if err != nil {
		return fmt.Errorf("marshal policies: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir policies dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".policies-*.yaml.tmp")
	if err != nil {
		return fmt.Errorf("create temp policies file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp policies file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp policies file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp policies file: %w", err)
	}
	return nil
}

// All returns a snapshot of every stored policy.
func (s *Store) All() []Policy {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Policy, len(s.policies))
	copy(out, s.policies)
	return out
}

// ForTool returns policies that apply to toolName: global policies (no Tool)
// plus any whose pipe-separated Tool list contains toolName.
func (s *Store) ForTool(toolName string) []Policy {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Policy
	for _, p := range s.policies {
		if p.Tool == "" {
			out = append(out, p)
			continue
		}
		for _, t := range strings.Split(p.Tool, "|") {
			if strings.TrimSpace(t) == toolName {
				out = append(out, p)
				break
			}
		}
	}
	return out
}

// FormatForPrompt renders the given policies as the
// "Human-defined policies:" text block fed into the tool-call evaluator.
func FormatForPrompt(policies []Policy) string {
	if len(policies) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("Human-defined policies:\n")
	for _, p := range policies {
		scope := "all tools"
		if p.Tool != "" {
			scope = p.Tool
		}
		fmt.Fprintf(&b, "- [%s] %s (applies to: %s)\n", p.ID, p.Description, scope)
	}
	return strings.TrimRight(b.String(), "\n")
}

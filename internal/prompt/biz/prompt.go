package biz

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	apperrors "github.com/clawchat/clawchat-backend/internal/pkg/errors"

	"go.uber.org/zap"
)

// pinnedOrder lists prompts that always sort first, in this order. The
// rest follow alphabetically.
var pinnedOrder = []string{"system.md", "user.md", "memory.md"}

// validPromptName rejects anything that could escape the prompt
// directory. Only flat markdown files are addressable.
var validPromptName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*\.md$`)

// Prompt is one editable prompt file
type Prompt struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// PromptUseCase reads and writes agent prompt files on disk
type PromptUseCase struct {
	dir    string
	logger *zap.Logger
}

// NewPromptUseCase creates a new prompt use case
func NewPromptUseCase(dir string, logger *zap.Logger) *PromptUseCase {
	return &PromptUseCase{dir: dir, logger: logger}
}

// List returns all prompt files with their sidecar descriptions.
// Pinned prompts come first; the rest sort by name.
func (uc *PromptUseCase) List() ([]Prompt, error) {
	entries, err := os.ReadDir(uc.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Prompt{}, nil
		}
		return nil, fmt.Errorf("failed to read prompt dir: %w", err)
	}

	var prompts []Prompt
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".md") {
			continue
		}
		prompts = append(prompts, Prompt{
			Name:        entry.Name(),
			Description: uc.readDescription(entry.Name()),
		})
	}

	sort.Slice(prompts, func(i, j int) bool {
		ri, rj := pinnedRank(prompts[i].Name), pinnedRank(prompts[j].Name)
		if ri != rj {
			return ri < rj
		}
		return prompts[i].Name < prompts[j].Name
	})

	if prompts == nil {
		prompts = []Prompt{}
	}
	return prompts, nil
}

// Read returns the content of one prompt file.
func (uc *PromptUseCase) Read(name string) (string, error) {
	if !validPromptName.MatchString(name) {
		return "", apperrors.New(apperrors.ErrInvalidParams, "invalid prompt name")
	}
	data, err := os.ReadFile(filepath.Join(uc.dir, name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", apperrors.New(apperrors.ErrPromptNotFound, name)
		}
		return "", fmt.Errorf("failed to read prompt: %w", err)
	}
	return string(data), nil
}

// Write replaces the content of one prompt file, creating it if needed.
func (uc *PromptUseCase) Write(name, content string) error {
	if !validPromptName.MatchString(name) {
		return apperrors.New(apperrors.ErrInvalidParams, "invalid prompt name")
	}
	if err := os.MkdirAll(uc.dir, 0o755); err != nil {
		return apperrors.Wrap(err, apperrors.ErrPromptSave)
	}
	if err := os.WriteFile(filepath.Join(uc.dir, name), []byte(content), 0o644); err != nil {
		return apperrors.Wrap(err, apperrors.ErrPromptSave)
	}
	uc.logger.Info("prompt saved", zap.String("name", name))
	return nil
}

// readDescription loads the optional <name>.description.txt sidecar.
func (uc *PromptUseCase) readDescription(name string) string {
	sidecar := strings.TrimSuffix(name, ".md") + ".description.txt"
	data, err := os.ReadFile(filepath.Join(uc.dir, sidecar))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

func pinnedRank(name string) int {
	for i, pinned := range pinnedOrder {
		if name == pinned {
			return i
		}
	}
	return len(pinnedOrder)
}

package biz

import (
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/clawchat/clawchat-backend/internal/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func seedPrompts(t *testing.T, files map[string]string) *PromptUseCase {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}
	return NewPromptUseCase(dir, zap.NewNop())
}

func TestListOrdering(t *testing.T) {
	uc := seedPrompts(t, map[string]string{
		"zebra.md":  "z",
		"user.md":   "u",
		"alpha.md":  "a",
		"system.md": "s",
		"memory.md": "m",
	})

	prompts, err := uc.List()
	require.NoError(t, err)

	names := make([]string, 0, len(prompts))
	for _, p := range prompts {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"system.md", "user.md", "memory.md", "alpha.md", "zebra.md"}, names)
}

func TestListSidecarDescriptions(t *testing.T) {
	uc := seedPrompts(t, map[string]string{
		"system.md":              "be helpful",
		"system.description.txt": "  Core system prompt \n",
		"notes.md":               "scratch",
	})

	prompts, err := uc.List()
	require.NoError(t, err)
	require.Len(t, prompts, 2)

	assert.Equal(t, "Core system prompt", prompts[0].Description)
	assert.Empty(t, prompts[1].Description)
}

func TestListSkipsNonMarkdown(t *testing.T) {
	uc := seedPrompts(t, map[string]string{
		"system.md":              "s",
		"system.description.txt": "desc",
		"readme.txt":             "not a prompt",
	})

	prompts, err := uc.List()
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	assert.Equal(t, "system.md", prompts[0].Name)
}

func TestListMissingDir(t *testing.T) {
	uc := NewPromptUseCase(filepath.Join(t.TempDir(), "nope"), zap.NewNop())
	prompts, err := uc.List()
	require.NoError(t, err)
	assert.Empty(t, prompts)
}

func TestReadWriteRoundTrip(t *testing.T) {
	uc := seedPrompts(t, nil)

	require.NoError(t, uc.Write("memory.md", "remember the milk"))
	content, err := uc.Read("memory.md")
	require.NoError(t, err)
	assert.Equal(t, "remember the milk", content)

	require.NoError(t, uc.Write("memory.md", "updated"))
	content, err = uc.Read("memory.md")
	require.NoError(t, err)
	assert.Equal(t, "updated", content)
}

func TestReadUnknownPrompt(t *testing.T) {
	uc := seedPrompts(t, nil)
	_, err := uc.Read("ghost.md")
	assert.True(t, apperrors.Is(err, apperrors.ErrPromptNotFound))
}

func TestNameValidation(t *testing.T) {
	uc := seedPrompts(t, map[string]string{"system.md": "s"})

	bad := []string{
		"../escape.md",
		"..%2Fescape.md",
		"sub/dir.md",
		"system.txt",
		".hidden.md",
		"",
	}
	for _, name := range bad {
		_, err := uc.Read(name)
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParams), "read %q", name)
		err = uc.Write(name, "x")
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidParams), "write %q", name)
	}
}

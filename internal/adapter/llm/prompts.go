package llm

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/cheerhou/DevoLight/internal/domain"
)

// PromptBook supplies the system prompt for each persona. Files named
// <Role>.md in dir override the built-in prompt; they are read once.
type PromptBook struct {
	dir   string
	mu    sync.Mutex
	cache map[string]string
}

// NewPromptBook creates a prompt book. An empty dir uses built-in prompts only.
func NewPromptBook(dir string) *PromptBook {
	return &PromptBook{dir: dir, cache: make(map[string]string)}
}

// For returns the system prompt for agent.
func (b *PromptBook) For(agent domain.Agent) (string, error) {
	if b == nil || b.dir == "" {
		return defaultPrompt(agent), nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if p, ok := b.cache[agent.Role]; ok {
		return p, nil
	}

	p := defaultPrompt(agent)
	data, err := os.ReadFile(filepath.Join(b.dir, agent.Role+".md"))
	switch {
	case err == nil:
		if s := strings.TrimSpace(string(data)); s != "" {
			p = s
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return "", fmt.Errorf("read prompt %s: %w", agent.Role, err)
	}
	b.cache[agent.Role] = p
	return p, nil
}

func defaultPrompt(agent domain.Agent) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "你是%s（%s），DevoLight 灵修陪伴中的一位角色。", agent.Name, agent.Role)
	if len(agent.Specialties) > 0 {
		fmt.Fprintf(&sb, "你的专长：%s。", strings.Join(agent.Specialties, "、"))
	}
	sb.WriteString("用户消息以 JSON 形式给出，包含原始消息、经文引用、用户画像、会话阶段与历史摘要。")
	sb.WriteString("请以该角色的身份用中文回应，紧扣经文，语气温和，篇幅适中；不要编造经文出处。")
	return sb.String()
}

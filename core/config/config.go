package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/leofalp/chatmux/providers/chat"
	"github.com/leofalp/chatmux/providers/chat/demo"
	"github.com/leofalp/chatmux/providers/chat/rag"
	"github.com/leofalp/chatmux/providers/chat/workflow"
)

const (
	defaultWorkflowURL = "https://api.dify.ai/v1"
	defaultRAGURL      = "http://127.0.0.1:8080/api/v1"
	defaultUser        = "user-test"
	defaultAgentsFile  = "agents.toml"

	// maxEnvAgents bounds the DIFY_AGENT_<N>_* scan.
	maxEnvAgents = 64
)

// WorkflowConfig configures the Dify-style workflow backend.
type WorkflowConfig struct {
	BaseURL  string
	APIKey   string
	AppToken string
	User     string
}

// RAGConfig configures the knowledge-base backend.
type RAGConfig struct {
	BaseURL         string
	APIKey          string
	KnowledgeBaseID int64
	MaxChunks       int
}

// LogConfig selects log level, format and an optional rotating log file.
type LogConfig struct {
	Level  string
	Format string
	File   string
}

// Config is the resolved application configuration.
type Config struct {
	Workflow WorkflowConfig
	RAG      RAGConfig
	Agents   []chat.Agent
	Log      LogConfig
}

// Getenv looks up one variable; os.Getenv satisfies it.
type Getenv func(key string) string

// Load reads envFiles (default .env) into the process environment without
// overriding variables already set, then resolves the configuration. Missing
// env files are not an error.
func Load(envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", file, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv resolves the configuration from getenv. Agents come from the agents
// file first and the DIFY_AGENT_<N>_* variables after; an agent id defined in
// both keeps the variables' values.
func FromEnv(getenv Getenv) (*Config, error) {
	cfg := &Config{
		Workflow: WorkflowConfig{
			BaseURL:  valueOr(getenv("DIFY_API_URL"), defaultWorkflowURL),
			APIKey:   getenv("DIFY_API_KEY"),
			AppToken: getenv("DIFY_APP_TOKEN"),
			User:     valueOr(getenv("CHATMUX_USER"), defaultUser),
		},
		RAG: RAGConfig{
			BaseURL: valueOr(getenv("RAG_API_URL"), defaultRAGURL),
			APIKey:  getenv("RAG_API_KEY"),
		},
		Log: LogConfig{
			Level:  getenv("CHATMUX_LOG_LEVEL"),
			Format: getenv("CHATMUX_LOG_FORMAT"),
			File:   getenv("CHATMUX_LOG_FILE"),
		},
	}

	if raw := getenv("RAG_KNOWLEDGE_BASE_ID"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("RAG_KNOWLEDGE_BASE_ID: %w", err)
		}
		cfg.RAG.KnowledgeBaseID = id
	}
	if raw := getenv("RAG_MAX_CHUNKS"); raw != "" {
		chunks, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("RAG_MAX_CHUNKS: %w", err)
		}
		cfg.RAG.MaxChunks = chunks
	}

	agentsFile := getenv("CHATMUX_AGENTS_FILE")
	explicit := agentsFile != ""
	if !explicit {
		agentsFile = defaultAgentsFile
	}
	fileAgents, err := LoadAgentsFile(agentsFile)
	switch {
	case err == nil:
		cfg.Agents = fileAgents
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, err
	}

	cfg.Agents = mergeAgents(cfg.Agents, agentsFromEnv(getenv))
	return cfg, nil
}

// agentsFile is the TOML layout of an agents file:
//
//	[[agent]]
//	id = "sales"
//	name = "Sales assistant"
//	[agent.endpoint]
//	base_url = "https://dify.internal/v1"
//	api_key = "app-..."
type agentsFile struct {
	Agents []chat.Agent `toml:"agent"`
}

// LoadAgentsFile decodes agents from a TOML file. Agents without an id are
// rejected.
func LoadAgentsFile(path string) ([]chat.Agent, error) {
	var file agentsFile
	if _, err := toml.DecodeFile(path, &file); err != nil {
		return nil, fmt.Errorf("reading agents file %s: %w", path, err)
	}
	for index, agent := range file.Agents {
		if agent.ID == "" {
			return nil, fmt.Errorf("agents file %s: agent %d has no id", path, index+1)
		}
	}
	return file.Agents, nil
}

// agentsFromEnv reads DIFY_AGENT_1_*, DIFY_AGENT_2_* and so on, stopping at
// the first index without an id.
func agentsFromEnv(getenv Getenv) []chat.Agent {
	var agents []chat.Agent
	for n := 1; n <= maxEnvAgents; n++ {
		prefix := fmt.Sprintf("DIFY_AGENT_%d_", n)
		id := getenv(prefix + "ID")
		if id == "" {
			break
		}
		agents = append(agents, chat.Agent{
			ID:          id,
			Name:        valueOr(getenv(prefix+"NAME"), id),
			Description: getenv(prefix + "DESCRIPTION"),
			Endpoint: chat.Endpoint{
				BaseURL:  getenv(prefix + "BASE_URL"),
				APIKey:   getenv(prefix + "API_KEY"),
				AppToken: getenv(prefix + "APP_TOKEN"),
			},
		})
	}
	return agents
}

func mergeAgents(base, overrides []chat.Agent) []chat.Agent {
	merged := append([]chat.Agent(nil), base...)
	for _, override := range overrides {
		replaced := false
		for index := range merged {
			if merged[index].ID == override.ID {
				merged[index] = override
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, override)
		}
	}
	return merged
}

// DemoMode reports whether no workflow API key is configured, neither by
// default nor on any agent.
func (cfg *Config) DemoMode() bool {
	if cfg.Workflow.APIKey != "" {
		return false
	}
	for _, agent := range cfg.Agents {
		if agent.Endpoint.APIKey != "" {
			return false
		}
	}
	return true
}

// Scope returns the default provider scope.
func (cfg *Config) Scope() chat.Scope {
	return chat.Scope{
		KnowledgeBaseID: cfg.RAG.KnowledgeBaseID,
		MaxChunks:       cfg.RAG.MaxChunks,
	}
}

// Agent returns the configured agent with id.
func (cfg *Config) Agent(id string) (chat.Agent, bool) {
	for _, agent := range cfg.Agents {
		if agent.ID == id {
			return agent, true
		}
	}
	return chat.Agent{}, false
}

// BuildRegistry wires the workflow provider (or the demo adapter in its
// place) and the RAG provider. httpClient may be nil.
func (cfg *Config) BuildRegistry(httpClient *http.Client) *chat.Registry {
	registry := chat.NewRegistry()

	if cfg.DemoMode() {
		registry.Register(demo.New().WithID(chat.ProviderWorkflow))
	} else {
		workflowProvider := workflow.New().
			WithUser(cfg.Workflow.User).
			WithAgents(cfg.Agents...)
		workflowProvider.Retarget(chat.Endpoint{
			BaseURL:  cfg.Workflow.BaseURL,
			APIKey:   cfg.Workflow.APIKey,
			AppToken: cfg.Workflow.AppToken,
		})
		if httpClient != nil {
			workflowProvider.WithHttpClient(httpClient)
		}
		registry.Register(workflowProvider)
	}

	ragProvider := rag.New().
		WithBaseURL(cfg.RAG.BaseURL).
		WithAPIKey(cfg.RAG.APIKey)
	if httpClient != nil {
		ragProvider.WithHttpClient(httpClient)
	}
	registry.Register(ragProvider)

	return registry
}

func valueOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

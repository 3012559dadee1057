// mem.go implements the mem tool: a per-workspace semantic memory store
// backed by chromem-go, an embedded vector store queried by cosine
// similarity over locally computed embeddings.
package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"

	"github.com/nextlevelbuilder/msgcode/internal/toolbus"
)

// MemStore wraps one chromem-go collection scoped to a workspace's
// <workspace>/.msgcode/memory/ directory.
type MemStore struct {
	collection *chromem.Collection
}

// NewMemStore opens (or creates) the persistent vector collection for a
// workspace. embeddingFn may be nil, in which case chromem-go falls back to
// its bundled default embedder.
func NewMemStore(workspace string, embeddingFn chromem.EmbeddingFunc) (*MemStore, error) {
	dbPath := filepath.Join(workspace, ".msgcode", "memory")
	if err := os.MkdirAll(dbPath, 0o755); err != nil {
		return nil, fmt.Errorf("create memory dir: %w", err)
	}
	db, err := chromem.NewPersistentDB(dbPath, false)
	if err != nil {
		return nil, fmt.Errorf("open memory db: %w", err)
	}
	collection, err := db.GetOrCreateCollection("mem", nil, embeddingFn)
	if err != nil {
		return nil, fmt.Errorf("open memory collection: %w", err)
	}
	return &MemStore{collection: collection}, nil
}

// Mem implements the mem tool: {action:"remember"|"recall", text, query?,
// limit?} -> {id} for "remember" or {results:[{id,content,score}]} for
// "recall".
func Mem(store *MemStore) toolbus.Executor {
	return func(args map[string]interface{}) (interface{}, error) {
		if store == nil {
			return nil, toolbus.NewExecError("TOOL_EXEC_FAILED", "memory store not configured")
		}
		action, _ := args["action"].(string)
		switch action {
		case "remember":
			return rememberMem(store, args)
		case "recall":
			return recallMem(store, args)
		default:
			return nil, toolbus.NewExecError("TOOL_INVALID_ARGS", "action must be \"remember\" or \"recall\"")
		}
	}
}

func rememberMem(store *MemStore, args map[string]interface{}) (interface{}, error) {
	text, _ := args["text"].(string)
	if text == "" {
		return nil, toolbus.NewExecError("TOOL_INVALID_ARGS", "text is required")
	}
	id := uuid.NewString()
	doc := chromem.Document{
		ID:      id,
		Content: text,
		Metadata: map[string]string{
			"storedAt": time.Now().UTC().Format(time.RFC3339),
		},
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.collection.AddDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("add memory document: %w", err)
	}
	return map[string]interface{}{"id": id}, nil
}

func recallMem(store *MemStore, args map[string]interface{}) (interface{}, error) {
	query, _ := args["query"].(string)
	if query == "" {
		return nil, toolbus.NewExecError("TOOL_INVALID_ARGS", "query is required")
	}
	limit := 5
	if n, ok := args["limit"].(float64); ok && n > 0 {
		limit = int(n)
	}
	if count := store.collection.Count(); limit > count {
		limit = count
	}
	if limit == 0 {
		return map[string]interface{}{"results": []interface{}{}}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	results, err := store.collection.Query(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("query memory: %w", err)
	}

	out := make([]map[string]interface{}, 0, len(results))
	for _, r := range results {
		out = append(out, map[string]interface{}{
			"id":      r.ID,
			"content": r.Content,
			"score":   r.Similarity,
		})
	}
	return map[string]interface{}{"results": out}, nil
}

// schema.go generates the JSON Schema Parameters() advertised to the model
// provider for the in-process tools (invopop/jsonschema), instead of
// hand-writing map[string]interface{} literals for every tool the way
// web_fetch.go/web_search.go still do (those two predate this file and keep
// their own hand-written schemas; no behavior changes by leaving them
// as-is).
package tools

import (
	"encoding/json"

	"github.com/invopop/jsonschema"

	"github.com/nextlevelbuilder/msgcode/internal/provider"
)

// ReadFileArgs is the read_file tool's argument shape.
type ReadFileArgs struct {
	Path string `json:"path" jsonschema:"required,description=Path to read, relative to the workspace root."`
}

// WriteFileArgs is the write_file tool's argument shape.
type WriteFileArgs struct {
	Path    string `json:"path" jsonschema:"required,description=Path to write, relative to the workspace root."`
	Content string `json:"content" jsonschema:"required,description=Full file content to write."`
}

// EditEntry is one oldText/newText replacement pair.
type EditEntry struct {
	OldText string `json:"oldText" jsonschema:"required,description=Exact text to find; must occur verbatim in the file."`
	NewText string `json:"newText" jsonschema:"description=Replacement text."`
}

// EditFileArgs is the edit_file tool's argument shape.
type EditFileArgs struct {
	Path  string      `json:"path" jsonschema:"required,description=Path to edit, relative to the workspace root."`
	Edits []EditEntry `json:"edits" jsonschema:"required,description=Ordered list of find/replace edits."`
}

// BashArgs is the bash tool's argument shape.
type BashArgs struct {
	Command        string  `json:"command" jsonschema:"required,description=Shell command to execute."`
	Cwd            string  `json:"cwd,omitempty" jsonschema:"description=Working directory, relative to the workspace root."`
	TimeoutSeconds float64 `json:"timeoutSeconds,omitempty" jsonschema:"description=Command timeout in seconds; default 30."`
}

// MemArgs is the mem tool's argument shape.
type MemArgs struct {
	Action string  `json:"action" jsonschema:"required,enum=remember,enum=recall,description=\"remember\" to store text or \"recall\" to search."`
	Text   string  `json:"text,omitempty" jsonschema:"description=Text to remember (required for action=remember)."`
	Query  string  `json:"query,omitempty" jsonschema:"description=Search query (required for action=recall)."`
	Limit  float64 `json:"limit,omitempty" jsonschema:"description=Maximum results to return for action=recall; default 5."`
}

// BrowserArgs is the browser tool's argument shape.
type BrowserArgs struct {
	URL         string `json:"url" jsonschema:"required,description=URL to render in a headless browser."`
	ExtractMode string `json:"extractMode,omitempty" jsonschema:"enum=markdown,enum=text,description=Content extraction mode; default markdown."`
}

// DesktopArgs is the desktop tool's argument shape.
type DesktopArgs struct {
	Action string `json:"action" jsonschema:"required,description=Desktop action to record."`
	Target string `json:"target,omitempty" jsonschema:"description=Action target, e.g. a window or file name."`
}

var schemaReflector = &jsonschema.Reflector{
	FieldNameTag:              "json",
	ExpandedStruct:            true,
	DoNotReference:            true,
	AllowAdditionalProperties: false,
}

func reflectParameters(v interface{}) map[string]interface{} {
	schema := schemaReflector.Reflect(v)
	data, err := json.Marshal(schema)
	if err != nil {
		return map[string]interface{}{"type": "object"}
	}
	var out map[string]interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]interface{}{"type": "object"}
	}
	delete(out, "$schema")
	delete(out, "$id")
	return out
}

// ToolDefinitions returns the provider.ToolDefinition list for every
// in-process tool the toolbus can dispatch: read_file, write_file,
// edit_file, bash, then the media/automation tools. tts/asr/vision accept
// free-form payloads sized to their external backend, so they keep simple
// hand-written schemas rather than a reflected struct.
func ToolDefinitions() []provider.ToolDefinition {
	def := func(name, description string, params map[string]interface{}) provider.ToolDefinition {
		return provider.ToolDefinition{
			Type: "function",
			Function: provider.ToolFunctionDef{
				Name:        name,
				Description: description,
				Parameters:  params,
			},
		}
	}

	return []provider.ToolDefinition{
		def("read_file", "Read a file from the workspace.", reflectParameters(&ReadFileArgs{})),
		def("write_file", "Write (overwrite) a file in the workspace.", reflectParameters(&WriteFileArgs{})),
		def("edit_file", "Apply find/replace edits to an existing file.", reflectParameters(&EditFileArgs{})),
		def("bash", "Run a shell command in the workspace.", reflectParameters(&BashArgs{})),
		def("tts", "Synthesize speech audio from text.", map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"text": map[string]interface{}{"type": "string"}},
			"required":   []string{"text"},
		}),
		def("asr", "Transcribe speech audio to text.", map[string]interface{}{
			"type":       "object",
			"properties": map[string]interface{}{"audioBase64": map[string]interface{}{"type": "string"}},
			"required":   []string{"audioBase64"},
		}),
		def("vision", "Analyze an image, optionally guided by a prompt.", map[string]interface{}{
			"type": "object",
			"properties": map[string]interface{}{
				"imageBase64": map[string]interface{}{"type": "string"},
				"prompt":      map[string]interface{}{"type": "string"},
			},
			"required": []string{"imageBase64"},
		}),
		def("mem", "Store or recall semantic memories scoped to this workspace.", reflectParameters(&MemArgs{})),
		def("browser", "Render a URL in a headless browser and extract its content.", reflectParameters(&BrowserArgs{})),
		def("desktop", "Record a desktop-automation action in the audit trail.", reflectParameters(&DesktopArgs{})),
	}
}

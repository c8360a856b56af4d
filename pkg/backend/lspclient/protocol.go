package lspclient

import (
	"encoding/json"
	"strings"
)

// The subset of the language server protocol the client speaks.

type Position struct {
	Line      uint32 `json:"line"`
	Character uint32 `json:"character"`
}

type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

type TextDocumentIdentifier struct {
	URI string `json:"uri"`
}

type TextDocumentItem struct {
	URI        string `json:"uri"`
	LanguageID string `json:"languageId"`
	Version    int32  `json:"version"`
	Text       string `json:"text"`
}

type TextDocumentPositionParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
	Position     Position               `json:"position"`
}

type WorkspaceFolder struct {
	URI  string `json:"uri"`
	Name string `json:"name"`
}

type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

type InitializeParams struct {
	ProcessID        *int32            `json:"processId"`
	ClientInfo       *ClientInfo       `json:"clientInfo,omitempty"`
	RootURI          string            `json:"rootUri"`
	Capabilities     json.RawMessage   `json:"capabilities"`
	WorkspaceFolders []WorkspaceFolder `json:"workspaceFolders,omitempty"`
}

type ServerCapabilities struct {
	HoverProvider      json.RawMessage `json:"hoverProvider,omitempty"`
	CompletionProvider json.RawMessage `json:"completionProvider,omitempty"`
	DiagnosticProvider json.RawMessage `json:"diagnosticProvider,omitempty"`
}

// PullsDiagnostics tells whether the server answers textDocument/diagnostic.
func (me ServerCapabilities) PullsDiagnostics() bool {
	return provided(me.DiagnosticProvider)
}

func provided(raw json.RawMessage) bool {
	s := strings.TrimSpace(string(raw))
	return s != "" && s != "null" && s != "false"
}

type InitializeResult struct {
	Capabilities ServerCapabilities `json:"capabilities"`
	ServerInfo   *ClientInfo        `json:"serverInfo,omitempty"`
}

type DidOpenTextDocumentParams struct {
	TextDocument TextDocumentItem `json:"textDocument"`
}

type DidCloseTextDocumentParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

type MarkupContent struct {
	Kind  string `json:"kind"`
	Value string `json:"value"`
}

type HoverResult struct {
	Contents json.RawMessage `json:"contents"`
	Range    *Range          `json:"range,omitempty"`
}

// Text flattens the contents of a hover. Contents may be a MarkupContent, a
// MarkedString or a list of MarkedStrings.
func (me *HoverResult) Text() string {
	var markup MarkupContent
	if err := json.Unmarshal(me.Contents, &markup); err == nil && markup.Kind != "" {
		if markup.Kind == "markdown" {
			return markdownCode(markup.Value)
		}
		return strings.TrimSpace(markup.Value)
	}

	var list []json.RawMessage
	if err := json.Unmarshal(me.Contents, &list); err == nil {
		parts := make([]string, 0, len(list))
		for _, item := range list {
			if s := markedString(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "\n\n")
	}

	return markedString(me.Contents)
}

func markedString(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return markdownCode(s)
	}
	var code struct {
		Language string `json:"language"`
		Value    string `json:"value"`
	}
	if err := json.Unmarshal(raw, &code); err == nil {
		return strings.TrimSpace(code.Value)
	}
	return ""
}

// markdownCode keeps the fenced code blocks of a markdown hover joined by a blank
// line. Text without fences is returned trimmed.
func markdownCode(md string) string {
	var blocks []string
	var current []string
	inFence := false
	for _, line := range strings.Split(md, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			if inFence {
				blocks = append(blocks, strings.Join(current, "\n"))
				current = nil
			}
			inFence = !inFence
			continue
		}
		if inFence {
			current = append(current, line)
		}
	}
	if len(blocks) == 0 {
		return strings.TrimSpace(md)
	}
	return strings.Join(blocks, "\n\n")
}

const (
	completionTriggerInvoked   = 1
	completionTriggerCharacter = 2
)

type CompletionContext struct {
	TriggerKind      int    `json:"triggerKind"`
	TriggerCharacter string `json:"triggerCharacter,omitempty"`
}

type CompletionParams struct {
	TextDocumentPositionParams
	Context *CompletionContext `json:"context,omitempty"`
}

type TextEdit struct {
	Range   Range  `json:"range"`
	NewText string `json:"newText"`
}

type CompletionItem struct {
	Label      string    `json:"label"`
	Kind       int       `json:"kind,omitempty"`
	SortText   string    `json:"sortText,omitempty"`
	FilterText string    `json:"filterText,omitempty"`
	TextEdit   *TextEdit `json:"textEdit,omitempty"`
}

func (me CompletionItem) sortKey() string {
	if me.SortText != "" {
		return me.SortText
	}
	return me.Label
}

type CompletionList struct {
	IsIncomplete bool             `json:"isIncomplete"`
	Items        []CompletionItem `json:"items"`
}

// decodeCompletions accepts either a CompletionList or a bare item array.
func decodeCompletions(raw json.RawMessage) ([]CompletionItem, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return nil, nil
	}
	if strings.HasPrefix(s, "[") {
		var items []CompletionItem
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, err
		}
		return items, nil
	}
	var list CompletionList
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, err
	}
	return list.Items, nil
}

// completionKinds names the CompletionItemKind values.
var completionKinds = map[int]string{
	2: "method", 3: "function", 4: "constructor", 5: "field", 6: "variable",
	7: "class", 8: "interface", 9: "module", 10: "property", 13: "enum",
	14: "keyword", 15: "snippet", 20: "enummember", 21: "constant", 22: "struct",
	25: "typeparameter",
}

type Diagnostic struct {
	Range    Range           `json:"range"`
	Severity int             `json:"severity,omitempty"`
	Code     json.RawMessage `json:"code,omitempty"`
	Source   string          `json:"source,omitempty"`
	Message  string          `json:"message"`
}

type PublishDiagnosticsParams struct {
	URI         string       `json:"uri"`
	Version     *int32       `json:"version,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

type DocumentDiagnosticParams struct {
	TextDocument TextDocumentIdentifier `json:"textDocument"`
}

type DocumentDiagnosticReport struct {
	Kind  string       `json:"kind"`
	Items []Diagnostic `json:"items"`
}

type ConfigurationParams struct {
	Items []json.RawMessage `json:"items"`
}

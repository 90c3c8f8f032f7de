package provider

import "testing"

func TestParseLeakedJSONToolCalls(t *testing.T) {
	known := map[string]bool{"read_file": true, "write_file": true}

	tests := []struct {
		name      string
		content   string
		wantNames []string
	}{
		{
			name:      "bare object",
			content:   `{"name": "read_file", "arguments": {"path": "go.mod"}}`,
			wantNames: []string{"read_file"},
		},
		{
			name:      "fenced block with parameters key",
			content:   "I'll write it now.\n```json\n{\"name\": \"write_file\", \"parameters\": {\"path\": \"a.txt\", \"content\": \"hi\"}}\n```",
			wantNames: []string{"write_file"},
		},
		{
			name:    "unknown tool ignored",
			content: `{"name": "rm_rf", "arguments": {"path": "/"}}`,
		},
		{
			name:    "plain prose",
			content: "The file looks fine to me.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := ParseLeakedJSONToolCalls(tt.content, known)
			if len(calls) != len(tt.wantNames) {
				t.Fatalf("got %d calls, want %d", len(calls), len(tt.wantNames))
			}
			for i, name := range tt.wantNames {
				if calls[i].Name != name {
					t.Errorf("calls[%d].Name = %q, want %q", i, calls[i].Name, name)
				}
				if calls[i].ID == "" {
					t.Errorf("calls[%d] has no id", i)
				}
			}
		})
	}
}

func TestParseLeakedXMLToolCalls(t *testing.T) {
	known := map[string]bool{"list_dir": true, "read_file": true}
	content := "<tool_call>\n{\"name\": \"list_dir\", \"arguments\": {\"path\": \".\"}}\n</tool_call>\n" +
		"<tool_call>{\"name\": \"read_file\", \"arguments\": {\"path\": \"README.md\"}}</tool_call>"

	calls := ParseLeakedXMLToolCalls(content, known)
	if len(calls) != 2 {
		t.Fatalf("got %d calls, want 2", len(calls))
	}
	if calls[1].Arguments["path"] != "README.md" {
		t.Errorf("calls[1].Arguments = %v", calls[1].Arguments)
	}
	if calls[0].ID == calls[1].ID {
		t.Error("recovered calls share an id")
	}
}

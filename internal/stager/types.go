// Package stager implements the attachment stager (spec.md §4.3): it
// materializes a run's input_files entries under a per-session workspace
// inputs/ directory, downloading object-store keys and shallow-cloning
// public GitHub repositories, and returns descriptors pointing at the
// staged location.
package stager

// Entry is one input_files descriptor as submitted in a run's
// config_snapshot, after resolver substitution.
type Entry struct {
	Type       string `json:"type"`
	Name       string `json:"name,omitempty"`
	Source     string `json:"source,omitempty"` // object-store key, for type=file
	URL        string `json:"url,omitempty"`    // repo URL, for type=url
	Branch     string `json:"branch,omitempty"`
	TargetPath string `json:"target_path,omitempty"`
}

// Staged is the output descriptor: the input entry plus the resolved name
// and the workspace-relative path it was materialized at (/inputs/<rel>).
type Staged struct {
	Type   string `json:"type"`
	Name   string `json:"name"`
	Source string `json:"source,omitempty"`
	URL    string `json:"url,omitempty"`
	Branch string `json:"branch,omitempty"`
	Path   string `json:"path"`
}

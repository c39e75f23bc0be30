// Package knowledge holds the static insurance knowledge table and the
// keyword lookup that turns a user utterance into context for the model.
package knowledge

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

//go:embed knowledge_base.json
var defaultTable []byte

type PolicyTypes struct {
	TermLife  string `json:"term_life"`
	WholeLife string `json:"whole_life"`
}

type Claims struct {
	HowToFile    string `json:"how_to_file"`
	RequiredDocs string `json:"required_docs"`
}

type Section struct {
	General string `json:"general"`
}

// Base is the knowledge table. It is loaded once at startup and never
// modified afterwards, so a single value can be shared between sessions.
// Missing entries decode to "" and simply never contribute to a lookup.
type Base struct {
	PolicyTypes PolicyTypes `json:"policy_types"`
	Claims      Claims      `json:"claims"`
	Eligibility Section     `json:"eligibility"`
	Benefits    Section     `json:"benefits"`
}

// Parse decodes a knowledge table from JSON.
func Parse(data []byte) (*Base, error) {
	var b Base
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse knowledge base: %w", err)
	}
	return &b, nil
}

// Load reads a knowledge table from a JSON file.
func Load(path string) (*Base, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read knowledge base: %w", err)
	}
	return Parse(data)
}

// Default returns the table embedded in the binary.
func Default() *Base {
	b, err := Parse(defaultTable)
	if err != nil {
		panic(err)
	}
	return b
}

// Lookup returns the snippets whose trigger words appear in query, joined by
// a single space. Triggers are checked in a fixed order (term, whole, claim,
// eligibility, benefit) regardless of where they occur in the query.
func (b *Base) Lookup(query string) string {
	if b == nil {
		return ""
	}
	q := strings.ToLower(query)

	var out []string
	add := func(snippets ...string) {
		for _, s := range snippets {
			if s != "" {
				out = append(out, s)
			}
		}
	}

	if strings.Contains(q, "term") {
		add(b.PolicyTypes.TermLife)
	}
	if strings.Contains(q, "whole") {
		add(b.PolicyTypes.WholeLife)
	}
	if strings.Contains(q, "claim") || strings.Contains(q, "file") {
		add(b.Claims.HowToFile, b.Claims.RequiredDocs)
	}
	if strings.Contains(q, "eligib") {
		add(b.Eligibility.General)
	}
	if strings.Contains(q, "benefit") {
		add(b.Benefits.General)
	}
	return strings.Join(out, " ")
}

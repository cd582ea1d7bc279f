// Package verify classifies the credibility of statements by recursively
// checking them against the evidence index.
package verify

import (
	"encoding/json"
	"fmt"
)

// Credibility is the verdict for one statement.
type Credibility string

const (
	Axiom              Credibility = "axiom"
	VerifiedFromSource Credibility = "verified_from_source"
	CrossVerified      Credibility = "cross_verified"
	Derived            Credibility = "derived"
	Unsupported        Credibility = "unsupported"
	CircularReference  Credibility = "circular_reference"
)

// ParseCredibility accepts only the known verdict names.
func ParseCredibility(s string) (Credibility, error) {
	switch c := Credibility(s); c {
	case Axiom, VerifiedFromSource, CrossVerified, Derived, Unsupported, CircularReference:
		return c, nil
	}
	return "", fmt.Errorf("unknown credibility %q", s)
}

// promotes reports whether a child with this verdict lifts its parent to
// cross_verified.
func (c Credibility) promotes() bool {
	switch c {
	case VerifiedFromSource, Derived, Axiom:
		return true
	case CrossVerified, Unsupported, CircularReference:
		return false
	}
	return false
}

// Result is one node of a verification tree. Which proof field is set
// depends on Credibility: Statement for axiom, Sources for
// verified_from_source, Child for cross_verified, none otherwise.
type Result struct {
	Credibility Credibility
	Statement   string
	Sources     []*Result
	Child       *Result
}

type resultJSON struct {
	Credibility Credibility `json:"credibility"`
	Proof       any         `json:"proof"`
}

// MarshalJSON encodes the proof as a string, an array of results, a single
// result or null.
func (r *Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{Credibility: r.Credibility}
	switch r.Credibility {
	case Axiom:
		out.Proof = r.Statement
	case VerifiedFromSource:
		sources := r.Sources
		if sources == nil {
			sources = []*Result{}
		}
		out.Proof = sources
	case CrossVerified:
		out.Proof = r.Child
	case Derived, Unsupported, CircularReference:
	default:
		return nil, fmt.Errorf("unknown credibility %q", r.Credibility)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (r *Result) UnmarshalJSON(data []byte) error {
	var raw struct {
		Credibility string          `json:"credibility"`
		Proof       json.RawMessage `json:"proof"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	c, err := ParseCredibility(raw.Credibility)
	if err != nil {
		return err
	}
	*r = Result{Credibility: c}
	if len(raw.Proof) == 0 || string(raw.Proof) == "null" {
		return nil
	}
	switch c {
	case Axiom:
		return json.Unmarshal(raw.Proof, &r.Statement)
	case VerifiedFromSource:
		return json.Unmarshal(raw.Proof, &r.Sources)
	case CrossVerified:
		return json.Unmarshal(raw.Proof, &r.Child)
	}
	return nil
}

// Size counts the nodes in the tree rooted at r.
func (r *Result) Size() int {
	if r == nil {
		return 0
	}
	n := 1
	for _, s := range r.Sources {
		n += s.Size()
	}
	return n + r.Child.Size()
}

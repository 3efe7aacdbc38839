package verify

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/casefile/internal/model"
)

// Response is a decoded model reply that can check its own shape
type Response interface {
	Validate() error
}

// responsePtr constrains ValidatedQuery to pointer types implementing Response
type responsePtr[T any] interface {
	*T
	Response
}

// AnswerResponse is the yes/no reply with an optional evidence or name list
type AnswerResponse struct {
	Answer   string   `json:"answer"`
	Evidence []string `json:"evidence"`
}

// Validate requires an answer and drops blank evidence entries
func (r *AnswerResponse) Validate() error {
	r.Answer = strings.ToLower(strings.TrimSpace(r.Answer))
	if r.Answer == "" {
		return errors.New("missing answer")
	}
	kept := r.Evidence[:0]
	for _, item := range r.Evidence {
		if item = strings.TrimSpace(item); item != "" {
			kept = append(kept, item)
		}
	}
	r.Evidence = kept
	return nil
}

// IsYes reports an affirmative answer
func (r *AnswerResponse) IsYes() bool { return r.Answer == "yes" }

// IsNo reports a negative answer
func (r *AnswerResponse) IsNo() bool { return r.Answer == "no" }

// ConfirmResponse is the reply of the natural-person check
type ConfirmResponse struct {
	Answer string `json:"answer"`
}

func (r *ConfirmResponse) Validate() error {
	r.Answer = strings.ToLower(strings.TrimSpace(r.Answer))
	if r.Answer != "yes" && r.Answer != "no" {
		return fmt.Errorf("unexpected answer %q", r.Answer)
	}
	return nil
}

// SuspectFormResponse is the detailed suspect reply
type SuspectFormResponse struct {
	model.SuspectForm
}

func (r *SuspectFormResponse) Validate() error {
	r.Normalize()
	return nil
}

// VictimFormResponse is the detailed victim reply
type VictimFormResponse struct {
	model.VictimForm
}

func (r *VictimFormResponse) Validate() error {
	r.Normalize()
	return nil
}

// decodeStrict parses reply as exactly one JSON object, with nothing before or after it
func decodeStrict(reply string, v any) error {
	if !isJSONObject(reply) {
		return errors.New("decode reply: not a JSON object")
	}
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(reply)))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode reply: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("decode reply: trailing data after JSON value")
	}
	return nil
}

// isJSONObject reports whether reply starts like an object; arrays and scalars
// decode into structs with confusing errors
func isJSONObject(reply string) bool {
	return strings.HasPrefix(strings.TrimSpace(reply), "{")
}

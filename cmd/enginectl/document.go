package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/flowlayer/enginecore/internal/app/domain/cart"
	discountdomain "github.com/flowlayer/enginecore/internal/app/domain/discount"
	transformdomain "github.com/flowlayer/enginecore/internal/app/domain/transform"
	workflowdomain "github.com/flowlayer/enginecore/internal/app/domain/workflow"
	"github.com/flowlayer/enginecore/internal/app/record"
	"github.com/flowlayer/enginecore/internal/app/services/discount"
)

var validate = validator.New()

// Document is the single JSON/YAML shape enginectl reads from -input. Only
// the section matching -mode is required to be populated; the rest is
// ignored. Field tags are json, not yaml: the document is decoded via a
// YAML-to-JSON round trip so its keys match the same camelCase wire shape
// every domain entity's json tags already use.
type Document struct {
	Pipeline *PipelineInput `json:"pipeline" validate:"required_if=Mode pipeline"`
	Workflow *WorkflowInput `json:"workflow" validate:"required_if=Mode workflow"`
	Discount *DiscountInput `json:"discount" validate:"required_if=Mode discount"`

	// Mode is set from the -mode flag before validation runs; it is not
	// read from the document itself.
	Mode string `json:"-" validate:"required,oneof=pipeline workflow discount"`
}

// PipelineInput wraps a transform.Pipeline definition plus the seed rows a
// one-shot CLI run needs preloaded into storage before execution, since
// there is no running service to have populated source collections already.
type PipelineInput struct {
	Definition      transformdomain.Pipeline   `json:"definition" validate:"required"`
	Seed            map[string][]record.Record `json:"seed"`
	ContinueOnError bool                        `json:"continueOnError"`
}

// WorkflowInput wraps a workflow.Workflow definition plus the initial
// execution context to start it with.
type WorkflowInput struct {
	Definition     workflowdomain.Workflow `json:"definition" validate:"required"`
	InitialContext record.Record           `json:"initialContext"`

	// ActionRetryAttempts overrides the engine's action-dispatch retry
	// policy (§4.G/§4.H's onError path is unaffected: this only governs
	// how many times a single action is attempted before onError is
	// consulted). Zero keeps the engine's single-attempt default.
	ActionRetryAttempts int `json:"actionRetryAttempts"`
}

// DiscountInput wraps a discount catalog, a cart evaluation context, and a
// stacking strategy.
type DiscountInput struct {
	Discounts []*discountdomain.Discount `json:"discounts" validate:"required,min=1,dive"`
	Cart      cart.Context               `json:"cart"`
	Strategy  discount.Strategy          `json:"strategy"`
}

// loadDocument reads path, decodes it as YAML (a superset of JSON, so plain
// JSON documents parse too) into a generic value, round-trips that through
// encoding/json into Document so camelCase json-tagged fields decode
// correctly, stamps mode, then struct-tag-validates the result before any
// domain-level Validate() runs.
func loadDocument(path, mode string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	var generic any
	if err := yaml.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("parse input: %w", err)
	}
	normalized, err := json.Marshal(generic)
	if err != nil {
		return nil, fmt.Errorf("normalize input: %w", err)
	}

	var doc Document
	if err := json.Unmarshal(normalized, &doc); err != nil {
		return nil, fmt.Errorf("decode input: %w", err)
	}
	doc.Mode = mode

	if err := validate.Struct(&doc); err != nil {
		return nil, fmt.Errorf("validate input: %w", err)
	}
	return &doc, nil
}

// Package docschema validates serialized topology documents against an
// embedded CUE schema before they reach the tracker.
//
// Uses CUE SDK's Go API directly (not CLI subprocess). The schema is
// compiled once per Validator; the package-level Validate uses a shared
// lazily-built instance.
package docschema

import (
	_ "embed"
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"
)

//go:embed document.cue
var schemaSource string

// Validator checks serialized documents against the #Document schema.
type Validator struct {
	ctx    *cue.Context
	schema cue.Value
}

// NewValidator compiles the embedded schema.
// An error here means the embedded schema itself is broken, which is a
// build defect, not a runtime condition.
func NewValidator() (*Validator, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(schemaSource, cue.Filename("document.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile document schema: %w", err)
	}
	schema := v.LookupPath(cue.ParsePath("#Document"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("lookup #Document: %w", err)
	}
	return &Validator{ctx: ctx, schema: schema}, nil
}

// Validate checks one serialized document. The returned error carries
// full CUE diagnostics (path, expected vs actual) for every violation,
// not just the first.
func (v *Validator) Validate(data []byte) error {
	expr, err := cuejson.Extract("document.json", data)
	if err != nil {
		return fmt.Errorf("parse document JSON: %w", err)
	}

	val := v.ctx.BuildExpr(expr)
	if err := val.Err(); err != nil {
		return fmt.Errorf("build document value: %w", err)
	}

	unified := v.schema.Unify(val)
	if err := unified.Validate(cue.Concrete(true), cue.Final()); err != nil {
		return fmt.Errorf("document schema violation:\n%s", cueerrors.Details(err, nil))
	}
	return nil
}

var (
	sharedOnce sync.Once
	shared     *Validator
	sharedErr  error
)

// Validate checks data against the shared validator instance.
func Validate(data []byte) error {
	sharedOnce.Do(func() {
		shared, sharedErr = NewValidator()
	})
	if sharedErr != nil {
		return sharedErr
	}
	return shared.Validate(data)
}

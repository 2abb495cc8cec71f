package models

import (
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/aws/smithy-go"
)

// Record is one opaque domain record produced by an operation for a cell.
// The iteration engine never looks inside it.
type Record map[string]any

// CellErrorKind classifies why a cell failed.
type CellErrorKind string

const (
	CellErrorAssumeRole CellErrorKind = "assume_role"
	CellErrorCallback   CellErrorKind = "callback"
	CellErrorTimeout    CellErrorKind = "timeout"
	CellErrorCancelled  CellErrorKind = "cancelled"
)

// CellError is the error descriptor stored in place of records for a failed
// cell.
type CellError struct {
	Kind CellErrorKind `json:"kind"           yaml:"kind"`

	// Code is the AWS API error code (e.g. "AccessDenied") when the failure
	// came from an AWS API call; empty otherwise.
	Code string `json:"code,omitempty" yaml:"code,omitempty"`

	Message string `json:"message" yaml:"message"`
}

// NewCellError builds a CellError of the given kind from err, extracting the
// AWS API error code when err wraps a smithy.APIError.
func NewCellError(kind CellErrorKind, err error) *CellError {
	ce := &CellError{Kind: kind}
	if err == nil {
		return ce
	}
	ce.Message = err.Error()
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		ce.Code = apiErr.ErrorCode()
	}
	return ce
}

// String renders the descriptor as a single report-friendly line.
func (e *CellError) String() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return string(e.Kind) + " (" + e.Code + "): " + e.Message
	}
	return string(e.Kind) + ": " + e.Message
}

// CellResult is the outcome for exactly one (account, region) cell.
// Records is an empty, non-nil slice for a successful cell with no data; Error
// is set if and only if the cell failed.
type CellResult struct {
	AccountID string        `json:"account_id"      yaml:"account_id"`
	Region    string        `json:"region"          yaml:"region"`
	Records   []Record      `json:"records"         yaml:"records"`
	Error     *CellError    `json:"error,omitempty" yaml:"error,omitempty"`
	Duration  time.Duration `json:"duration_ns"     yaml:"duration_ns"`
}

// Failed reports whether the cell carries an error descriptor.
func (r CellResult) Failed() bool {
	return r.Error != nil
}

// Empty reports whether the cell succeeded without producing any record.
func (r CellResult) Empty() bool {
	return r.Error == nil && len(r.Records) == 0
}

// ResultMapping is the nested account → region → CellResult structure handed
// to report builders. It is safe for concurrent use; each Set replaces one
// cell atomically.
type ResultMapping struct {
	mu    sync.RWMutex
	cells map[string]map[string]CellResult
}

// NewResultMapping returns an empty mapping.
func NewResultMapping() *ResultMapping {
	return &ResultMapping{cells: make(map[string]map[string]CellResult)}
}

// Set stores res under (res.AccountID, res.Region), replacing any previous
// entry for that cell.
func (m *ResultMapping) Set(res CellResult) {
	if res.Error == nil && res.Records == nil {
		res.Records = []Record{}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	regions, ok := m.cells[res.AccountID]
	if !ok {
		regions = make(map[string]CellResult)
		m.cells[res.AccountID] = regions
	}
	regions[res.Region] = res
}

// Get returns the result for a cell and whether it is present.
func (m *ResultMapping) Get(accountID, region string) (CellResult, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res, ok := m.cells[accountID][region]
	return res, ok
}

// Has reports whether a cell is present.
func (m *ResultMapping) Has(accountID, region string) bool {
	_, ok := m.Get(accountID, region)
	return ok
}

// Accounts returns the account keys in ascending order.
func (m *ResultMapping) Accounts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.cells))
	for a := range m.cells {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// Regions returns the region keys recorded for accountID in ascending order.
func (m *ResultMapping) Regions(accountID string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.cells[accountID]))
	for r := range m.cells[accountID] {
		out = append(out, r)
	}
	sort.Strings(out)
	return out
}

// Len returns the total number of cells stored.
func (m *ResultMapping) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, regions := range m.cells {
		n += len(regions)
	}
	return n
}

// All returns every stored cell sorted by account then region.
func (m *ResultMapping) All() []CellResult {
	var out []CellResult
	for _, a := range m.Accounts() {
		for _, r := range m.Regions(a) {
			res, _ := m.Get(a, r)
			out = append(out, res)
		}
	}
	return out
}

// Failed returns the failed cells sorted by account then region.
func (m *ResultMapping) Failed() []CellResult {
	var out []CellResult
	for _, res := range m.All() {
		if res.Failed() {
			out = append(out, res)
		}
	}
	return out
}

// Covers reports whether every cell of scope is present in the mapping.
func (m *ResultMapping) Covers(scope Scope) bool {
	for _, c := range scope.Cells() {
		if !m.Has(c.AccountID, c.Region) {
			return false
		}
	}
	return true
}

// Snapshot returns a plain copy of the nested map.
func (m *ResultMapping) Snapshot() map[string]map[string]CellResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]map[string]CellResult, len(m.cells))
	for a, regions := range m.cells {
		inner := make(map[string]CellResult, len(regions))
		for r, res := range regions {
			inner[r] = res
		}
		out[a] = inner
	}
	return out
}

// MarshalJSON encodes the mapping as the nested account → region object.
func (m *ResultMapping) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Snapshot())
}

// MarshalYAML encodes the mapping as the nested account → region mapping.
func (m *ResultMapping) MarshalYAML() (any, error) {
	return m.Snapshot(), nil
}

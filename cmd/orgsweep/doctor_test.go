package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pankaj-dahiya-devops/orgsweep/internal/config"
)

// ── helpers ───────────────────────────────────────────────────────────────────

func goodConfig() *config.Config {
	return &config.Config{
		Concurrency: config.DefaultConcurrency,
		MaxOUDepth:  config.DefaultMaxOUDepth,
		OrgRegion:   config.DefaultOrgRegion,
		Output:      config.OutputConfig{Format: "csv"},
	}
}

func doctor(t *testing.T, p *fakeProvider, cfg *config.Config, scopeFile, format string) (string, DoctorResult) {
	t.Helper()
	var buf bytes.Buffer
	result, err := runDoctor(context.Background(), p, cfg, "", scopeFile, &buf, format)
	if err != nil {
		t.Fatalf("unexpected render error: %v", err)
	}
	return buf.String(), result
}

// ── text format ───────────────────────────────────────────────────────────────

func TestDoctorAllOK(t *testing.T) {
	out, result := doctor(t, newFakeProvider(), goodConfig(), "", "text")
	if !result.OverallHealthy {
		t.Errorf("expected OverallHealthy=true; got %+v", result)
	}
	for _, want := range []string{
		"Credentials: OK",
		"Organization: OK (Root: r-ab12)",
		"Region catalog: OK (2 enabled)",
		"Config valid: OK",
		"Scope file: Not given (optional)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q;\ngot:\n%s", want, out)
		}
	}
}

func TestDoctorCredentialsFail(t *testing.T) {
	p := newFakeProvider()
	p.err = errors.New("no valid credential sources")
	out, result := doctor(t, p, goodConfig(), "", "text")
	if result.OverallHealthy {
		t.Error("expected OverallHealthy=false")
	}
	for _, want := range []string{"Credentials: FAIL (no valid credential sources)", "Organization: FAIL (skipped)"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q;\ngot:\n%s", want, out)
		}
	}
}

func TestDoctorOrganizationFail(t *testing.T) {
	p := newFakeProvider()
	p.clients.Organizations = &fakeOrg{rootsErr: errors.New("AccessDeniedException")}
	out, result := doctor(t, p, goodConfig(), "", "text")
	if result.OverallHealthy || result.Organization.Reachable {
		t.Errorf("expected organization failure; got %+v", result.Organization)
	}
	if !result.Regions.OK {
		t.Error("region catalog check must still run")
	}
	if !strings.Contains(out, "Organization: FAIL (AccessDeniedException)") {
		t.Errorf("got:\n%s", out)
	}
}

func TestDoctorRegionsFail(t *testing.T) {
	p := newFakeProvider()
	p.clients.EC2 = &fakeRegions{err: errors.New("UnauthorizedOperation")}
	_, result := doctor(t, p, goodConfig(), "", "text")
	if result.OverallHealthy || result.Regions.OK {
		t.Errorf("expected region catalog failure; got %+v", result.Regions)
	}
}

func TestDoctorInvalidConfig(t *testing.T) {
	cfg := goodConfig()
	cfg.Concurrency = 0
	out, result := doctor(t, newFakeProvider(), cfg, "", "text")
	if result.OverallHealthy || result.Config.Valid {
		t.Error("invalid config must make the environment unhealthy")
	}
	if !strings.Contains(out, "Config valid: FAIL (concurrency") {
		t.Errorf("got:\n%s", out)
	}
}

func TestDoctorScopeFile(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.yaml")
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(good, []byte("version: 1\nall_accounts: true\nall_regions: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(bad, []byte("version: 1\naccounts: [\"12\"]\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, result := doctor(t, newFakeProvider(), goodConfig(), good, "text"); !result.OverallHealthy || !result.Scope.Valid {
		t.Errorf("valid scope file: %+v", result.Scope)
	}

	out, result := doctor(t, newFakeProvider(), goodConfig(), bad, "text")
	if result.OverallHealthy || result.Scope.Valid {
		t.Errorf("invalid scope file: %+v", result.Scope)
	}
	// invalid account id + no regions
	if len(result.Scope.Errors) != 2 {
		t.Errorf("scope errors = %v; want 2", result.Scope.Errors)
	}
	if !strings.Contains(out, "Scope valid: FAIL") {
		t.Errorf("got:\n%s", out)
	}
}

// ── json format ───────────────────────────────────────────────────────────────

func TestDoctorJSON(t *testing.T) {
	out, _ := doctor(t, newFakeProvider(), goodConfig(), "", "json")
	var decoded DoctorResult
	if err := json.Unmarshal([]byte(out), &decoded); err != nil {
		t.Fatalf("invalid json: %v\n%s", err, out)
	}
	if !decoded.OverallHealthy || decoded.AWS.AccountID != "999999999999" || decoded.Organization.RootID != "r-ab12" {
		t.Errorf("decoded = %+v", decoded)
	}
}

package scope

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	awsorg "github.com/pankaj-dahiya-devops/orgsweep/internal/providers/aws/organizations"
)

func writeScope(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "scope.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// ── Load ─────────────────────────────────────────────────────────────────────

func TestLoad_Success(t *testing.T) {
	path := writeScope(t, `
version: 1
accounts: ["111111111111"]
ous: ["r-ab12"]
all_regions: true
opt_in_status: ["opted-in"]
`)
	f, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(f.Accounts) != 1 || f.Accounts[0] != "111111111111" {
		t.Errorf("Accounts = %v", f.Accounts)
	}
	if len(f.OUs) != 1 || !f.AllRegions || f.OptInStatus[0] != "opted-in" {
		t.Errorf("parsed file = %+v", f)
	}
}

func TestLoad_InvalidVersion(t *testing.T) {
	if _, err := Load(writeScope(t, "version: 2\n")); err == nil {
		t.Fatal("expected error for unsupported version")
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	if _, err := Load("nonexistent.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_Malformed(t *testing.T) {
	if _, err := Load(writeScope(t, "version: [1\n")); err == nil {
		t.Fatal("expected parse error")
	}
}

// ── FromFlags / Merge ────────────────────────────────────────────────────────

func TestFromFlags_SplitsAndTrims(t *testing.T) {
	f := FromFlags(" 111111111111, ,222222222222", "", false, "us-east-1,eu-west-1 ", false, nil)
	if len(f.Accounts) != 2 || f.Accounts[1] != "222222222222" {
		t.Errorf("Accounts = %v", f.Accounts)
	}
	if len(f.OUs) != 0 {
		t.Errorf("OUs = %v; want none", f.OUs)
	}
	if len(f.Regions) != 2 || f.Regions[1] != "eu-west-1" {
		t.Errorf("Regions = %v", f.Regions)
	}
}

func TestMerge_Widens(t *testing.T) {
	base := &File{Version: 1, Accounts: []string{"111111111111"}, Regions: []string{"us-east-1"}}
	merged := base.Merge(&File{Accounts: []string{"222222222222"}, AllRegions: true})

	if len(merged.Accounts) != 2 || !merged.AllRegions {
		t.Errorf("merged = %+v", merged)
	}
	if len(base.Accounts) != 1 || base.AllRegions {
		t.Errorf("base mutated: %+v", base)
	}
}

// ── Specs ────────────────────────────────────────────────────────────────────

func TestSpecs_NoAccountsIsSpecificationError(t *testing.T) {
	f := &File{Version: 1, Regions: []string{"us-east-1"}}
	_, _, err := f.Specs()
	if !errors.Is(err, ErrScopeSpecification) {
		t.Fatalf("err = %v; want ErrScopeSpecification", err)
	}
}

func TestSpecs_NoRegionsIsSpecificationError(t *testing.T) {
	f := &File{Version: 1, AllAccounts: true}
	_, _, err := f.Specs()
	if !errors.Is(err, ErrScopeSpecification) {
		t.Fatalf("err = %v; want ErrScopeSpecification", err)
	}
}

func TestSpecs_Mixed(t *testing.T) {
	f := &File{
		Version:     1,
		AllAccounts: true,
		Accounts:    []string{"111111111111"},
		OUs:         []string{"ou-ab12-abcdefgh"},
		Regions:     []string{"us-east-1"},
		AllRegions:  true,
		OptInStatus: []string{"opted-in"},
	}
	accounts, regions, err := f.Specs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(accounts) != 3 {
		t.Fatalf("account specs = %d; want 3", len(accounts))
	}
	if _, ok := accounts[0].(awsorg.AllAccounts); !ok {
		t.Errorf("accounts[0] = %T; want AllAccounts", accounts[0])
	}
	all, ok := regions.(awsorg.AllRegions)
	if !ok || len(all.OptInStatus) != 1 {
		t.Errorf("regions = %#v; want AllRegions with opt-in filter", regions)
	}
}

func TestSpecs_ExplicitRegions(t *testing.T) {
	f := &File{Version: 1, Accounts: []string{"111111111111"}, Regions: []string{"us-east-1"}}
	_, regions, err := f.Specs()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r, ok := regions.(awsorg.ExplicitRegions); !ok || len(r) != 1 {
		t.Errorf("regions = %#v; want ExplicitRegions{us-east-1}", regions)
	}
}

// ── Validate ─────────────────────────────────────────────────────────────────

func TestValidate_Valid(t *testing.T) {
	f := &File{
		Version:  1,
		Accounts: []string{"111111111111"},
		OUs:      []string{"ou-ab12-abcdefgh", "r-ab12"},
		Regions:  []string{"us-east-1", "ap-southeast-2", "us-gov-west-1"},
	}
	if errs := Validate(f); len(errs) != 0 {
		t.Errorf("expected no errors; got %v", errs)
	}
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	f := &File{
		Version:     2,
		Accounts:    []string{"1234"},
		OUs:         []string{"bogus"},
		Regions:     []string{"Mars"},
		OptInStatus: []string{"maybe"},
	}
	// version, account, OU, region, opt-in value, opt-in without all_regions
	if errs := Validate(f); len(errs) != 6 {
		t.Errorf("expected 6 errors; got %d: %v", len(errs), errs)
	}
}

func TestValidate_EmptyScope(t *testing.T) {
	errs := Validate(&File{Version: 1})
	if len(errs) != 2 {
		t.Fatalf("expected 2 errors; got %d: %v", len(errs), errs)
	}
	for _, err := range errs {
		if !errors.Is(err, ErrScopeSpecification) {
			t.Errorf("err = %v; want ErrScopeSpecification", err)
		}
	}
}

func TestValidate_Nil(t *testing.T) {
	if errs := Validate(nil); len(errs) != 1 {
		t.Errorf("expected 1 error for nil scope; got %v", errs)
	}
}

package permission

import (
	"reflect"
	"testing"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r := NewRegistry()
	for _, name := range []string{"view-users", "manage-users", "view-roles", "manage-roles"} {
		if _, err := r.Register(name, name); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}
	r.Freeze()
	return r
}

func TestSuperAdminBypassesFalseMappings(t *testing.T) {
	res := NewResolver(testRegistry(t), "super")

	attrs := res.Resolve("super", []Mapping{{Attribute: "manage-users", Value: false}})
	if !attrs.SuperAdmin() {
		t.Fatal("expected super-admin")
	}
	if d := attrs.Authorize("manage-users", "manage-roles"); !d.Granted {
		t.Fatalf("expected grant, missing=%v", d.Missing)
	}

	want := map[string]bool{"view-users": true, "manage-users": true, "view-roles": true, "manage-roles": true}
	if got := attrs.Map(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected super-admin map: %v", got)
	}
}

func TestAbsentAndFalseMappingsDeny(t *testing.T) {
	res := NewResolver(testRegistry(t), "super")

	attrs := res.Resolve("user", []Mapping{
		{Attribute: "view-users", Value: true},
		{Attribute: "manage-users", Value: false},
	})

	d := attrs.Authorize("view-users", "manage-users", "view-roles")
	if d.Granted {
		t.Fatal("expected deny")
	}
	if !reflect.DeepEqual(d.Missing, []string{"manage-users", "view-roles"}) {
		t.Fatalf("unexpected missing: %v", d.Missing)
	}

	want := map[string]bool{"view-users": true, "manage-users": false}
	if got := attrs.Map(); !reflect.DeepEqual(got, want) {
		t.Fatalf("absent attributes must stay absent: %v", got)
	}
}

func TestDuplicateMappingsAreORCombined(t *testing.T) {
	res := NewResolver(testRegistry(t), "super")

	attrs := res.Resolve("user", []Mapping{
		{Attribute: "view-roles", Value: false},
		{Attribute: "view-roles", Value: true},
		{Attribute: "view-roles", Value: false},
	})
	if !attrs.Has("view-roles") {
		t.Fatal("expected view-roles granted by any true row")
	}
}

func TestUnknownAttributeKeptInMap(t *testing.T) {
	res := NewResolver(testRegistry(t), "super")

	attrs := res.Resolve("user", []Mapping{{Attribute: "export-reports", Value: true}})
	if !attrs.Has("export-reports") {
		t.Fatal("expected unknown attribute to resolve from its row")
	}
	if got := attrs.Map(); !got["export-reports"] {
		t.Fatalf("expected export-reports in map: %v", got)
	}
}

func TestEmptyRoleIsNotSuperAdmin(t *testing.T) {
	res := NewResolver(testRegistry(t), "")
	if res.IsSuperAdmin("") {
		t.Fatal("empty role must never be super-admin")
	}
}

func TestRegistryRejectsDuplicatesAndFrozen(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Register("a", ""); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := r.Register("a", ""); err == nil {
		t.Fatal("expected duplicate error")
	}
	if _, err := r.Register("", ""); err == nil {
		t.Fatal("expected empty name error")
	}
	r.Freeze()
	if _, err := r.Register("b", ""); err == nil {
		t.Fatal("expected frozen error")
	}
	if r.Count() != 1 {
		t.Fatalf("expected 1 attribute, got %d", r.Count())
	}
}

func TestRegistryCapacity(t *testing.T) {
	r := NewRegistry()
	for i := 0; i < MaxAttributes; i++ {
		if _, err := r.Register(string(rune('A'+i)), ""); err != nil {
			t.Fatalf("register %d: %v", i, err)
		}
	}
	if _, err := r.Register("overflow", ""); err == nil {
		t.Fatal("expected limit error")
	}
	if r.All().Raw() != ^uint64(0) {
		t.Fatalf("expected all 64 bits, got %x", r.All().Raw())
	}
}

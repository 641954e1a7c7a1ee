package permission

// Mapping is one stored (attribute, value) row for a role.
type Mapping struct {
	Attribute string
	Value     bool
}

// Attributes is the resolved capability set of one user for one request.
type Attributes struct {
	registry   *Registry
	superAdmin bool
	granted    Mask64
	// present marks attributes that had a mapping row, true or false.
	present Mask64
	// unknown carries mapped names the registry does not know.
	unknown map[string]bool
}

// Decision is the outcome of an authorization check. Missing lists the
// required attributes that did not resolve to true, in request order.
type Decision struct {
	Granted bool
	Missing []string
}

// Resolver turns a role and its mapping rows into [Attributes]. It performs no I/O.
type Resolver struct {
	registry       *Registry
	superAdminRole string
}

// NewResolver creates a [Resolver] over a frozen registry.
func NewResolver(registry *Registry, superAdminRole string) *Resolver {
	return &Resolver{
		registry:       registry,
		superAdminRole: superAdminRole,
	}
}

// IsSuperAdmin reports whether roleName is the configured super-admin role.
func (r *Resolver) IsSuperAdmin(roleName string) bool {
	return roleName != "" && roleName == r.superAdminRole
}

// Resolve builds the attribute set for roleName. Duplicate rows for the
// same attribute are OR-combined.
func (r *Resolver) Resolve(roleName string, mappings []Mapping) Attributes {
	out := Attributes{registry: r.registry}
	if r.IsSuperAdmin(roleName) {
		out.superAdmin = true
		out.granted = r.registry.All()
		out.present = out.granted
		return out
	}

	for _, m := range mappings {
		bit, ok := r.registry.Bit(m.Attribute)
		if !ok {
			if out.unknown == nil {
				out.unknown = make(map[string]bool)
			}
			out.unknown[m.Attribute] = out.unknown[m.Attribute] || m.Value
			continue
		}
		out.present.Set(bit)
		if m.Value {
			out.granted.Set(bit)
		}
	}
	return out
}

// SuperAdmin reports whether the set came from the super-admin role.
func (a Attributes) SuperAdmin() bool {
	return a.superAdmin
}

// Has reports whether name resolved to true. Absent attributes are false.
func (a Attributes) Has(name string) bool {
	if a.superAdmin {
		return true
	}
	if a.registry != nil {
		if bit, ok := a.registry.Bit(name); ok {
			return a.granted.Has(bit)
		}
	}
	return a.unknown[name]
}

// Map returns only the attributes that had a mapping row, each as stored.
// For a super-admin it holds every registered attribute set to true.
func (a Attributes) Map() map[string]bool {
	out := make(map[string]bool)
	if a.registry != nil {
		for bit, name := range a.registry.Names() {
			if a.present.Has(bit) {
				out[name] = a.granted.Has(bit)
			}
		}
	}
	for name, v := range a.unknown {
		out[name] = v
	}
	return out
}

// Authorize checks that every required attribute resolved to true.
// Super-admins are granted unconditionally.
func (a Attributes) Authorize(required ...string) Decision {
	if a.superAdmin {
		return Decision{Granted: true}
	}
	var missing []string
	for _, name := range required {
		if !a.Has(name) {
			missing = append(missing, name)
		}
	}
	return Decision{Granted: len(missing) == 0, Missing: missing}
}

package permission

// Requirement lists the permissions and roles a caller must all hold.
type Requirement struct {
	Permissions []string
	Roles       []string
}

// Empty reports whether r requires nothing.
func (r Requirement) Empty() bool {
	return len(r.Permissions) == 0 && len(r.Roles) == 0
}

// Validate reports whether a user holding permissions and roles satisfies
// every required permission and every required role. Empty requirement lists
// pass.
func Validate(permissions, roles []string, req Requirement) bool {
	return containsAll(permissions, req.Permissions) && containsAll(roles, req.Roles)
}

// Missing returns the required permissions and roles that are not held, in
// requirement order.
func Missing(permissions, roles []string, req Requirement) (missingPermissions, missingRoles []string) {
	return difference(req.Permissions, permissions), difference(req.Roles, roles)
}

func containsAll(held, required []string) bool {
	if len(required) == 0 {
		return true
	}
	set := toSet(held)
	for _, r := range required {
		if _, ok := set[r]; !ok {
			return false
		}
	}
	return true
}

func difference(required, held []string) []string {
	if len(required) == 0 {
		return nil
	}
	set := toSet(held)
	var out []string
	for _, r := range required {
		if _, ok := set[r]; !ok {
			out = append(out, r)
		}
	}
	return out
}

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

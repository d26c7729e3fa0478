package authorization

import "strings"

// Role is an approver role. Ordering is vendedor < coordenador < gerente < diretor < admin.
type Role string

const (
	RoleVendedor    Role = "vendedor"
	RoleCoordenador Role = "coordenador"
	RoleGerente     Role = "gerente"
	RoleDiretor     Role = "diretor"
	RoleAdmin       Role = "admin"
)

var roleOrder = []Role{RoleVendedor, RoleCoordenador, RoleGerente, RoleDiretor, RoleAdmin}

func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if role.Rank() < 0 {
		return "", ErrInvalidRole
	}
	return role, nil
}

// Rank returns the position of r in the hierarchy, or -1 for unknown roles.
func (r Role) Rank() int {
	for i, candidate := range roleOrder {
		if candidate == r {
			return i
		}
	}
	return -1
}

func (r Role) Valid() bool {
	return r.Rank() >= 0
}

// Next returns the role one level above r, capped at admin.
func (r Role) Next() Role {
	rank := r.Rank()
	if rank < 0 || rank+1 >= len(roleOrder) {
		return RoleAdmin
	}
	return roleOrder[rank+1]
}

// MaxRole returns the most senior of the given roles, ignoring unknown values.
func MaxRole(roles ...Role) Role {
	var best Role
	for _, r := range roles {
		if r.Rank() > best.Rank() {
			best = r
		}
	}
	return best
}

func Roles() []Role {
	out := make([]Role, len(roleOrder))
	copy(out, roleOrder)
	return out
}

func subject(r Role) string {
	return "role:" + string(r)
}

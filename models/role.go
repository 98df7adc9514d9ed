package models

import (
	"encoding/json"
	"fmt"
)

// Role is the closed set of user capabilities. Every decision point
// switches over all three values so a new role cannot be half-wired.
type Role int

const (
	RoleRegular Role = iota
	RoleManager
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleRegular:
		return "regular"
	case RoleManager:
		return "manager"
	case RoleAdmin:
		return "admin"
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON accepts the wire names; an absent or empty role means a
// regular user. An unknown name is a decode error, not a silent downgrade.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "", "regular":
		*r = RoleRegular
	case "manager":
		*r = RoleManager
	case "admin":
		*r = RoleAdmin
	default:
		return fmt.Errorf("unknown role %q", s)
	}
	return nil
}

// CanManageUsers reports whether the role may administer user accounts.
func (r Role) CanManageUsers() bool {
	switch r {
	case RoleAdmin:
		return true
	case RoleManager:
		return true
	case RoleRegular:
		return false
	}
	return false
}

// CanModifyMeal reports whether viewer may edit or delete meal. Admins
// touch every record; managers administer users, not records, so like
// regular users they only touch their own meals.
func CanModifyMeal(viewer Profile, meal Meal) bool {
	switch viewer.Role {
	case RoleAdmin:
		return true
	case RoleManager:
		return viewer.Username == meal.Author.Username
	case RoleRegular:
		return viewer.Username == meal.Author.Username
	}
	return false
}

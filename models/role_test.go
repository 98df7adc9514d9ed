package models

import (
	"encoding/json"
	"testing"
)

func TestRoleJSON(t *testing.T) {
	for _, r := range []Role{RoleRegular, RoleManager, RoleAdmin} {
		b, err := json.Marshal(r)
		if err != nil {
			t.Fatalf("marshal %v: %v", r, err)
		}
		var back Role
		if err := json.Unmarshal(b, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", b, err)
		}
		if back != r {
			t.Errorf("round trip %v -> %v", r, back)
		}
	}

	var r Role
	if err := json.Unmarshal([]byte(`""`), &r); err != nil || r != RoleRegular {
		t.Errorf("empty role should decode as regular, got %v, err %v", r, err)
	}
	if err := json.Unmarshal([]byte(`"superuser"`), &r); err == nil {
		t.Error("unknown role should be a decode error")
	}
}

func TestCanModifyMeal(t *testing.T) {
	mine := Meal{Slug: "m1", Author: Profile{Username: "bob"}}
	theirs := Meal{Slug: "m2", Author: Profile{Username: "alice"}}

	cases := []struct {
		name   string
		viewer Profile
		meal   Meal
		want   bool
	}{
		{"regular edits own", Profile{Username: "bob", Role: RoleRegular}, mine, true},
		{"regular cannot edit others", Profile{Username: "bob", Role: RoleRegular}, theirs, false},
		{"manager edits own", Profile{Username: "bob", Role: RoleManager}, mine, true},
		{"manager cannot edit others", Profile{Username: "bob", Role: RoleManager}, theirs, false},
		{"admin edits anything", Profile{Username: "bob", Role: RoleAdmin}, theirs, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := CanModifyMeal(tc.viewer, tc.meal); got != tc.want {
				t.Errorf("CanModifyMeal = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestCanManageUsers(t *testing.T) {
	if RoleRegular.CanManageUsers() {
		t.Error("regular users must not manage accounts")
	}
	if !RoleManager.CanManageUsers() || !RoleAdmin.CanManageUsers() {
		t.Error("managers and admins manage accounts")
	}
}

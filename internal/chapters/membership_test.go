package chapters

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/chapterhub/backend/internal/authz"
)

func TestDemoteAfterRemoval(t *testing.T) {
	tests := []struct {
		name      string
		role      authz.Role
		remaining int
		want      bool
	}{
		{"city organiser losing last chapter", authz.RoleCityOrganiser, 0, true},
		{"city organiser with another chapter", authz.RoleCityOrganiser, 1, false},
		{"activist", authz.RoleActivist, 0, false},
		{"regional organiser keeps role", authz.RoleRegionalOrganiser, 0, false},
		{"cofounder keeps role", authz.RoleCofounder, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, demoteAfterRemoval(tt.role, tt.remaining))
		})
	}
}

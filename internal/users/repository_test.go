package users

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchClauseEscapesWildcards(t *testing.T) {
	where, args := searchClause(`50%_Off\`, []any{"x"})
	assert.Equal(t, ` WHERE (lower(name) LIKE $2 ESCAPE '\' OR lower(email) LIKE $2 ESCAPE '\')`, where)
	assert.Equal(t, []any{"x", `%50\%\_off\\%`}, args)

	where, args = searchClause("", nil)
	assert.Empty(t, where)
	assert.Empty(t, args)
}

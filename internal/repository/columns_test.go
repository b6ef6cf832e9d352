package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixed(t *testing.T) {
	assert.Equal(t, "p.id, p.chat_id, p.status", prefixed("p", "id, chat_id,\n\tstatus"))
}

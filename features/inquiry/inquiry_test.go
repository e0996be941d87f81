package inquiry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusSent, StatusReplied, true},
		{StatusSent, StatusFailed, true},
		{StatusSent, StatusSent, false},
		{StatusReplied, StatusSent, false},
		{StatusReplied, StatusFailed, false},
		{StatusFailed, StatusSent, false},
		{StatusFailed, StatusReplied, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.allowed, tc.from.CanTransitionTo(tc.to),
			"%s -> %s", tc.from, tc.to)
	}
}

func TestStatusValid(t *testing.T) {
	assert.True(t, StatusSent.Valid())
	assert.True(t, StatusReplied.Valid())
	assert.True(t, StatusFailed.Valid())
	assert.False(t, Status("queued").Valid())
	assert.False(t, Status("").Valid())
}

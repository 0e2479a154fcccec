package reloc

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	jerrors "github.com/daimatz/jdex/internal/errors"
)

// jump is a toy branch: 2 bytes when the distance fits in a signed byte,
// 5 bytes otherwise.
type jump struct{ target Label }

func (j jump) Size(_, level int) int {
	if level == 0 {
		return 2
	}
	return 5
}

func (j jump) Grow(pos, level int, res Resolver) int {
	t, ok := res.Resolve(j.target)
	if !ok {
		return level
	}
	if d := t - pos; level == 0 && (d < -128 || d > 127) {
		return 1
	}
	return level
}

type pad int

func (p pad) Size(int, int) int                 { return int(p) }
func (p pad) Grow(_, level int, _ Resolver) int { return level }

func TestPlanForwardReference(t *testing.T) {
	items := []Item{jump{"end"}, pad(10), Mark{"end"}, pad(1)}
	lay, err := Plan(items)
	require.NoError(t, err)

	off, err := lay.Target("end")
	require.NoError(t, err)
	assert.Equal(t, 12, off)
	assert.Equal(t, 0, lay.Level(0))
	assert.Equal(t, 13, lay.Size())
}

func TestPlanWidensMonotonically(t *testing.T) {
	// The first jump fits until the second one widens and pushes "far"
	// out of its range.
	items := []Item{jump{"far"}, jump{"x"}, pad(123), Mark{"far"}, pad(200), Mark{"x"}}
	lay, err := Plan(items)
	require.NoError(t, err)

	assert.Equal(t, 1, lay.Level(0))
	assert.Equal(t, 1, lay.Level(1))
	far, _ := lay.Resolve("far")
	assert.Equal(t, 5+5+123, far)
	assert.Equal(t, 5, lay.Pos(1))
	x, _ := lay.Resolve("x")
	assert.Equal(t, 333, x)
}

func TestPlanErrors(t *testing.T) {
	t.Run("duplicate label", func(t *testing.T) {
		_, err := Plan([]Item{Mark{"a"}, Mark{"a"}})
		assert.True(t, errors.Is(err, jerrors.ErrDuplicateLabel))
	})

	t.Run("unresolved label reported by Target only", func(t *testing.T) {
		lay, err := Plan([]Item{jump{"nowhere"}})
		require.NoError(t, err)
		_, err = lay.Target("nowhere")
		assert.True(t, errors.Is(err, jerrors.ErrUnresolvedLabel))
	})
}

func TestSessionMerge(t *testing.T) {
	s := NewSession[string]()
	assert.False(t, s.Dirty())

	s.Prepend(0, "p0")
	s.Append(0, "a0")
	require.NoError(t, s.Replace(3, "r3a", "r3b"))
	require.NoError(t, s.Remove(5))
	s.Append(7, "tail")
	assert.True(t, s.Dirty())

	got := s.Merge([]int{0, 3, 5}, []string{"i0", "i3", "i5"}, 7, func(off int) string {
		return string(OffsetLabel(off))
	})
	assert.Equal(t, []string{
		"@0", "p0", "i0", "a0",
		"@3", "r3a", "r3b",
		"@5",
		"@7", "tail",
	}, got)

	s.Reset()
	assert.False(t, s.Dirty())
}

func TestSessionRejectsConflictingReplace(t *testing.T) {
	s := NewSession[int]()
	require.NoError(t, s.Replace(4, 1))
	err := s.Replace(4, 2)
	assert.True(t, errors.Is(err, jerrors.ErrConflictingEdit))
	assert.True(t, errors.Is(s.Remove(4), jerrors.ErrConflictingEdit))
}

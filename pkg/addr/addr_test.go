package addr_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edo-build/edo/pkg/addr"
)

func TestNameAndSegments(t *testing.T) {
	a := addr.New("//project/component/name")
	assert.Equal(t, "name", a.Name())
	assert.Equal(t, []string{"project", "component", "name"}, a.Segments())
}

func TestSortByAddr(t *testing.T) {
	in := []addr.Addr{addr.New("//b"), addr.New("//a"), addr.New("//c")}
	sort.Sort(addr.ByAddr(in))
	assert.Equal(t, "//a", in[0].String())
	assert.Equal(t, "//b", in[1].String())
	assert.Equal(t, "//c", in[2].String())
}

func TestIsZero(t *testing.T) {
	assert.True(t, addr.Addr{}.IsZero())
	assert.False(t, addr.New("//x").IsZero())
}

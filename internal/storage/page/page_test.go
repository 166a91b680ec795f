package page

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	p := New(16)
	assert.Len(t, p, 16)
	assert.Equal(t, make([]byte, 16), []byte(p))
}

func TestZeroFrom(t *testing.T) {
	p := New(8)
	for i := range p {
		p[i] = 0xFF
	}
	p.ZeroFrom(3)
	assert.Equal(t, []byte{0xFF, 0xFF, 0xFF, 0, 0, 0, 0, 0}, []byte(p))
}

func TestZeroFromNegativeClampsToZero(t *testing.T) {
	p := New(4)
	for i := range p {
		p[i] = 0xFF
	}
	p.ZeroFrom(-1)
	assert.Equal(t, make([]byte, 4), []byte(p))
}

func TestCreateTestPage(t *testing.T) {
	p := CreateTestPage(8, []byte("hi"))
	assert.Equal(t, []byte{'h', 'i', 0, 0, 0, 0, 0, 0}, []byte(p))
}

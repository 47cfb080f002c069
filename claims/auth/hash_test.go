package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type HashTestSuite struct {
	suite.Suite
}

func (s *HashTestSuite) TestNewHash() {
	hash, err := NewHash("some password")
	assert.NoError(s.T(), err)
	assert.NotEmpty(s.T(), hash.String())
	assert.Contains(s.T(), hash.String(), ":")
}

func (s *HashTestSuite) TestNewHashEmptySource() {
	_, err := NewHash("")
	assert.Error(s.T(), err)
}

func (s *HashTestSuite) TestHashesAreSalted() {
	h1, _ := NewHash("some password")
	h2, _ := NewHash("some password")
	assert.NotEqual(s.T(), h1.String(), h2.String())
}

func (s *HashTestSuite) TestIsHashOf() {
	hash, err := NewHash("some password")
	assert.NoError(s.T(), err)
	assert.True(s.T(), hash.IsHashOf("some password"))
	assert.False(s.T(), hash.IsHashOf("other password"))
	assert.False(s.T(), hash.IsHashOf(""))
}

func (s *HashTestSuite) TestIsHashOfMalformedValue() {
	assert.False(s.T(), Hash("no separator").IsHashOf("anything"))
	assert.False(s.T(), Hash("!!!:???").IsHashOf("anything"))
}

func TestHashTestSuite(t *testing.T) {
	suite.Run(t, new(HashTestSuite))
}

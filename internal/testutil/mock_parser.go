package testutil

import (
	"github.com/stretchr/testify/mock"

	"github.com/turtacn/molcore/internal/domain/molecule"
)

// MockParser is a testify mock of molecule.Parser.
type MockParser struct {
	mock.Mock
}

func (m *MockParser) Parse(text string) (*molecule.Graph, error) {
	args := m.Called(text)
	var g *molecule.Graph
	if v := args.Get(0); v != nil {
		g = v.(*molecule.Graph)
	}
	return g, args.Error(1)
}

var _ molecule.Parser = (*MockParser)(nil)

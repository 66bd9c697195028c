package molecule

// Parser turns text in one structure grammar into a graph. Target parsers
// return Raw graphs for Sanitize; pattern parsers return Query graphs.
type Parser interface {
	Parse(text string) (*Graph, error)
}

// ParserFunc adapts a plain function to Parser.
type ParserFunc func(text string) (*Graph, error)

// Parse calls f(text).
func (f ParserFunc) Parse(text string) (*Graph, error) { return f(text) }

// Writer renders a sanitized graph as text.
type Writer interface {
	Write(g *Graph) (string, error)
}

// WriterFunc adapts a plain function to Writer.
type WriterFunc func(g *Graph) (string, error)

// Write calls f(g).
func (f WriterFunc) Write(g *Graph) (string, error) { return f(g) }

package cms

import (
	"strconv"
	"strings"
)

// Predicate is one query clause, e.g. [at(document.type, "posts")].
type Predicate string

// At matches documents whose field at path equals value.
func At(path, value string) Predicate {
	return Predicate("[at(" + path + ", " + strconv.Quote(value) + ")]")
}

func joinPredicates(ps []Predicate) string {
	var b strings.Builder
	b.WriteByte('[')
	for _, p := range ps {
		b.WriteString(string(p))
	}
	b.WriteByte(']')
	return b.String()
}

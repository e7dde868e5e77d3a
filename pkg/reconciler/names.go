package reconciler

import (
	"math/rand/v2"
	"strings"
)

// SuffixLength is the number of random characters appended to a colliding name.
const SuffixLength = 8

const suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// namer hands out display names that are unique across the mirror and the plan.
type namer struct {
	owners map[string]string // name -> identity key
	rand   *rand.Rand
}

func newNamer(r *rand.Rand) *namer {
	return &namer{owners: make(map[string]string), rand: r}
}

func (n *namer) reserve(key, name string) {
	if _, taken := n.owners[name]; !taken {
		n.owners[name] = key
	}
}

// claim returns name for key, or name with a random suffix when another
// identity already owns it. current is the name the mirror holds for key
// today; an earlier suffixed form of name is kept rather than re-rolled.
func (n *namer) claim(key, name, current string) string {
	if owner, taken := n.owners[name]; !taken || owner == key {
		n.owners[name] = key
		return name
	}
	if current != "" && n.owners[current] == key && strings.HasPrefix(current, name+"-") &&
		len(current) == len(name)+1+SuffixLength {
		return current
	}
	for {
		candidate := name + "-" + n.suffix()
		if _, taken := n.owners[candidate]; !taken {
			n.owners[candidate] = key
			return candidate
		}
	}
}

func (n *namer) suffix() string {
	var b strings.Builder
	b.Grow(SuffixLength)
	for range SuffixLength {
		b.WriteByte(suffixAlphabet[n.rand.IntN(len(suffixAlphabet))])
	}
	return b.String()
}

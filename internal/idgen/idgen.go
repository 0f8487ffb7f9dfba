package idgen

import (
	"math/rand"
	"strconv"

	"github.com/google/uuid"
)

// New returns a new globally unique identifier as string. It is implemented
// as a thin wrapper so tests can stub it.

var NewFunc = func() string { return uuid.New().String() }

func New() string { return NewFunc() }

// StackNameFunc generates a random stack name. Override in tests.
var StackNameFunc = func() string {
	// 8 base-36 characters, same shape the runner service expects
	n := rand.Int63n(2821109907456) // 36^8
	s := strconv.FormatInt(n, 36)
	for len(s) < 8 {
		s = "0" + s
	}
	return "stack-" + s
}

// StackName returns a random name for a stack when the caller supplies none.
func StackName() string { return StackNameFunc() }

// Package sampling draws the bounded, leaf-first review subset for a locale.
package sampling

import (
	"math/rand/v2"

	"github.com/japaniel/nottranslated/pkg/suspects"
)

// DefaultCap is the subset size used when the caller passes cap <= 0.
const DefaultCap = 25

// Result is one draw.
type Result struct {
	Subset []suspects.Suspect
	// IgnoredCount is how many suspects were left out because they are in
	// the ignore ledger. Suspects already known to be gone are not counted.
	IgnoredCount int
	// Pool is the filtered candidate list the subset was drawn from.
	Pool []suspects.Suspect
}

// NewRand returns a PCG-backed generator for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Sample filters all by the ignore ledger, then shuffles leaf and non-leaf
// suspects separately and returns up to cap of them, leaves first.
func Sample(all []suspects.Suspect, ignored map[string]int64, cap int, rng *rand.Rand) Result {
	if cap <= 0 {
		cap = DefaultCap
	}
	var res Result
	for _, s := range all {
		if s.NotFound {
			continue
		}
		if _, ok := ignored[s.Slug]; ok {
			res.IgnoredCount++
			continue
		}
		res.Pool = append(res.Pool, s)
	}
	res.Subset = Draw(res.Pool, cap, rng)
	return res
}

// Draw shuffles a copy of pool leaf-first and truncates it to cap.
func Draw(pool []suspects.Suspect, cap int, rng *rand.Rand) []suspects.Suspect {
	if cap <= 0 {
		cap = DefaultCap
	}
	var leaves, branches []suspects.Suspect
	for _, s := range pool {
		if s.Leaf {
			leaves = append(leaves, s)
		} else {
			branches = append(branches, s)
		}
	}
	shuffle(leaves, rng)
	shuffle(branches, rng)

	out := make([]suspects.Suspect, 0, min(cap, len(pool)))
	out = append(out, leaves...)
	out = append(out, branches...)
	if len(out) > cap {
		out = out[:cap]
	}
	return out
}

func shuffle(list []suspects.Suspect, rng *rand.Rand) {
	if rng == nil {
		rand.Shuffle(len(list), func(i, j int) { list[i], list[j] = list[j], list[i] })
		return
	}
	rng.Shuffle(len(list), func(i, j int) { list[i], list[j] = list[j], list[i] })
}

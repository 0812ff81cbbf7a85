package testutil

import (
	"fmt"
	"math/rand"
	"time"
)

// TestDataGenerator provides methods for generating test data.
type TestDataGenerator struct {
	rand *rand.Rand
}

// NewTestDataGenerator creates a new test data generator with a seeded random source.
func NewTestDataGenerator(seed int64) *TestDataGenerator {
	return &TestDataGenerator{
		rand: rand.New(rand.NewSource(seed)), //nolint:gosec // deterministic test data
	}
}

// GenerateHistory writes a random version history into f.
//
// Each of keys keys receives between 1 and maxRecords records, a mix of
// versions and delete markers spaced one minute apart from base. Some keys
// receive two records sharing a timestamp so ties are exercised too.
func (g *TestDataGenerator) GenerateHistory(f *FakeBackend, keys, maxRecords int, base time.Time) {
	for k := 0; k < keys; k++ {
		key := fmt.Sprintf("dir%02d/object-%04d.txt", k%7, k)
		records := g.rand.Intn(maxRecords) + 1
		at := base.Add(time.Duration(g.rand.Intn(60)) * time.Minute)

		for r := 0; r < records; r++ {
			versionID := fmt.Sprintf("%s-v%d", key, r)
			if r > 0 && g.rand.Intn(4) == 0 {
				f.PutDeleteMarker(key, versionID, at)
			} else {
				f.PutSizedVersion(key, versionID, at, g.rand.Intn(512))
			}

			if g.rand.Intn(5) != 0 {
				at = at.Add(time.Duration(g.rand.Intn(10)+1) * time.Minute)
			}
		}
	}
}

// Instant returns a random instant within minutes of base.
func (g *TestDataGenerator) Instant(base time.Time, minutes int) time.Time {
	return base.Add(time.Duration(g.rand.Intn(minutes)) * time.Minute)
}

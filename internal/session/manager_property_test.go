package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/pdf-share-relay/backend/internal/model"
)

// joinOp is one guest action against one of a handful of sessions.
type joinOp struct {
	Guest   int
	Session int
	Leave   bool
}

func genJoinOps() gopter.Gen {
	op := gopter.CombineGens(
		gen.IntRange(0, 5),
		gen.IntRange(0, 3),
		gen.Bool(),
	).Map(func(v []interface{}) joinOp {
		return joinOp{Guest: v[0].(int), Session: v[1].(int), Leave: v[2].(bool)}
	})
	return gen.SliceOf(op)
}

func TestGuestMembershipProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("a guest is never in two guest sets", prop.ForAll(
		func(ops []joinOp) bool {
			m := NewManager(newFakeLookup(), Config{})
			defer m.Close()

			ids := make([]string, 4)
			for i := range ids {
				ids[i], _, _ = m.CreateSession(fmt.Sprintf("host-%d", i), model.SessionMeta{})
			}

			for _, op := range ops {
				guest := fmt.Sprintf("guest-%d", op.Guest)
				if op.Leave {
					m.Leave(guest)
					continue
				}
				if err := m.JoinSession(ids[op.Session], guest); err != nil {
					return false
				}
			}

			seen := make(map[string]string)
			for _, id := range ids {
				guests, err := m.Guests(id)
				if err != nil {
					return false
				}
				for _, g := range guests {
					if _, dup := seen[g]; dup {
						return false
					}
					seen[g] = id
					if bound, ok := m.SessionOfGuest(g); !ok || bound != id {
						return false
					}
				}
			}
			return true
		},
		genJoinOps(),
	))

	properties.Property("create session is idempotent per host", prop.ForAll(
		func(host string, calls int) bool {
			if host == "" {
				host = "h"
			}
			m := NewManager(newFakeLookup(), Config{})
			defer m.Close()

			first, _, err := m.CreateSession(host, model.SessionMeta{})
			if err != nil {
				return false
			}
			for i := 0; i < calls; i++ {
				id, created, err := m.CreateSession(host, model.SessionMeta{FileName: "x.pdf"})
				if err != nil || created || id != first {
					return false
				}
			}
			return m.Count() == 1
		},
		gen.AlphaString(),
		gen.IntRange(1, 5),
	))

	properties.Property("reap respects retention", prop.ForAll(
		func(idleMinutes int) bool {
			m := NewManager(newFakeLookup(), Config{Retention: 2 * time.Hour})
			defer m.Close()

			start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
			m.timeNow = func() time.Time { return start }
			id, _, _ := m.CreateSession("gone", model.SessionMeta{})
			m.DetachHost("gone")

			reaped := m.Reap(start.Add(time.Duration(idleMinutes) * time.Minute))
			expired := time.Duration(idleMinutes)*time.Minute > 2*time.Hour
			if expired {
				return len(reaped) == 1 && reaped[0].Info.ID == id
			}
			return len(reaped) == 0
		},
		gen.IntRange(0, 300),
	))

	properties.TestingRun(t)
}

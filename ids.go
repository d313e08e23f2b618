package agentcore

import (
	"crypto/rand"
	"fmt"
	"math/big"

	petname "github.com/dustinkirkland/golang-petname"
)

// ID generation. Messages, checkpoints, snapshots, and sessions all need a
// stable, unique identifier (§3). Human-readable petname IDs are easier to
// spot in logs and traces than raw UUIDs; a numeric suffix from crypto/rand
// keeps them unique within a process the same way agent.go's newID does for
// agent identifiers.

func newSessionID() string    { return petnameID("session") }
func newMessageID() string    { return petnameID("msg") }
func newCheckpointID() string { return petnameID("checkpoint") }
func newSnapshotID() string   { return petnameID("snapshot") }
func newToolCallID() string   { return petnameID("call") }

func petnameID(prefix string) string {
	return fmt.Sprintf("%s-%s-%s", prefix, petname.Generate(2, "-"), randomSuffix())
}

func randomSuffix() string {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<32))
	if err != nil {
		panic(err)
	}
	return fmt.Sprintf("%x", n)
}

package id

import (
	"bytes"
	cryptoRand "crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"io"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	mu      sync.Mutex
	entropy io.Reader
)

func init() {
	var seed int64
	_ = binary.Read(cryptoRand.Reader, binary.LittleEndian, &seed)
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	// monotonic within the same millisecond
	entropy = ulid.Monotonic(rand.New(rand.NewSource(seed)), 0)
}

// New returns a time-sortable ULID string for signals, orders and journal rows
func New() string {
	return At(time.Now())
}

// At returns a ULID stamped with t. Replays use candle time so IDs sort with the data.
func At(t time.Time) string {
	mu.Lock()
	defer mu.Unlock()

	id, err := ulid.New(ulid.Timestamp(t.UTC()), entropy)
	if err != nil {
		// only on entropy failure or time before the epoch
		return ulid.Make().String()
	}
	return id.String()
}

// Derive returns a ULID stamped with t whose entropy is a hash of parts, so
// the same inputs always give the same ID
func Derive(t time.Time, parts ...string) string {
	sum := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	id, err := ulid.New(ulid.Timestamp(t.UTC()), bytes.NewReader(sum[:10]))
	if err != nil {
		return ulid.Make().String()
	}
	return id.String()
}

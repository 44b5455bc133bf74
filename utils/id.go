package utils

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Générateur ULID monotone, partagé par tout le process
var idGenerator = struct {
	sync.Mutex
	*ulid.MonotonicEntropy
}{
	MonotonicEntropy: ulid.Monotonic(rand.Reader, 0),
}

// NewRequestID retourne un identifiant triable qui embarque l'instant de création.
func NewRequestID(t time.Time) string {
	idGenerator.Lock()
	defer idGenerator.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), &idGenerator).String()
}

// RequestIDTime extrait l'instant de création d'un identifiant produit par NewRequestID.
func RequestIDTime(id string) (time.Time, error) {
	parsed, err := ulid.ParseStrict(id)
	if err != nil {
		return time.Time{}, err
	}
	return ulid.Time(parsed.Time()).UTC(), nil
}

// Package idgen produces prefixed, human-readable numbers for due
// schedules, invoices, open items and contracts. Uniqueness is guaranteed
// by a check-and-retry loop against the persistence layer rather than any
// in-process counter, so numbers stay collision-free across restarts and
// multiple instances.
package idgen

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	ierr "github.com/billcycle/billcycle/internal/errors"
	"github.com/cenkalti/backoff/v4"
	"github.com/teris-io/shortid"
)

// Kind selects the number series an identifier belongs to.
type Kind string

const (
	KindDueSchedule Kind = "due_schedule"
	KindInvoice     Kind = "invoice"
	KindOpenItem    Kind = "open_item"
	KindContract    Kind = "contract"
)

var kindPrefixes = map[Kind]string{
	KindDueSchedule: "DS-",
	KindInvoice:     "INV-",
	KindOpenItem:    "OI-",
	KindContract:    "CTR-",
}

const maxAttempts = 5

// Checker reports whether a candidate number is already taken in the given
// series. Implementations query the persistence layer.
type Checker interface {
	Exists(ctx context.Context, kind Kind, number string) (bool, error)
}

// CheckerFunc adapts a function to the Checker interface.
type CheckerFunc func(ctx context.Context, kind Kind, number string) (bool, error)

func (f CheckerFunc) Exists(ctx context.Context, kind Kind, number string) (bool, error) {
	return f(ctx, kind, number)
}

// Generator produces collision-checked human-readable numbers.
type Generator interface {
	Generate(ctx context.Context, kind Kind) (string, error)
}

type generator struct {
	checker Checker
}

// NewGenerator creates a Generator backed by the given collision checker.
func NewGenerator(checker Checker) Generator {
	return &generator{checker: checker}
}

var (
	sidGenerator *shortid.Shortid
	once         sync.Once
)

func initializeSID() {
	var err error
	sidGenerator, err = shortid.New(1, shortid.DefaultABC, 2342)
	if err != nil {
		panic("failed to initialize shortid generator: " + err.Error())
	}
}

func candidate(kind Kind) string {
	once.Do(initializeSID)

	id, err := sidGenerator.Generate()
	if err != nil {
		return ""
	}
	id = strings.ReplaceAll(id, "-", "")
	id = strings.ReplaceAll(id, "_", "")

	return strings.ToUpper(fmt.Sprintf("%s%s", kindPrefixes[kind], id))
}

// Generate returns a fresh, unique number for the given kind. It retries
// with a constant backoff when a candidate collides or the existence check
// fails transiently, and gives up after a bounded number of attempts.
func (g *generator) Generate(ctx context.Context, kind Kind) (string, error) {
	if _, ok := kindPrefixes[kind]; !ok {
		return "", ierr.NewError("unknown identifier kind").
			WithHintf("No number series registered for kind %s", kind).
			Mark(ierr.ErrValidation)
	}

	var number string
	attempt := 0

	op := func() error {
		attempt++
		n := candidate(kind)
		if n == "" {
			return fmt.Errorf("empty candidate")
		}

		exists, err := g.checker.Exists(ctx, kind, n)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("number collision: %s", n)
		}

		number = n
		return nil
	}

	policy := backoff.WithMaxRetries(
		backoff.WithContext(backoff.NewConstantBackOff(10*time.Millisecond), ctx),
		maxAttempts-1,
	)
	if err := backoff.Retry(op, policy); err != nil {
		return "", ierr.WithError(err).
			WithHintf("Failed to generate a unique %s number after %d attempts", kind, attempt).
			Mark(ierr.ErrSystem)
	}

	return number, nil
}

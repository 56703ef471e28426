package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
)

var NowFunc = time.Now // mockable

// ReceiptAllocator produces the externally visible receipt identifier for a
// payment: "REC<epochMillis>-<count+1>" where count is the current total
// number of payments.
//
// This is best-effort uniqueness, not a strict sequence: two concurrent
// allocations can read the same count and, within the same millisecond,
// collide. The unique index on receipt_number turns that collision into a
// storage conflict instead of a silent duplicate. Kept as inherited
// behavior; do not upgrade to a strict sequence without flagging the
// format change to receipt consumers.
type ReceiptAllocator struct {
	repo Repository
}

func NewReceiptAllocator(repo Repository) *ReceiptAllocator {
	return &ReceiptAllocator{repo: repo}
}

func (a *ReceiptAllocator) Allocate(ctx context.Context) (string, error) {
	count, err := a.repo.CountPayments(ctx)
	if err != nil {
		return "", errors.Wrap(err, "counting payments")
	}
	millis := NowFunc().UnixNano() / int64(time.Millisecond)
	return fmt.Sprintf("REC%d-%d", millis, count+1), nil
}

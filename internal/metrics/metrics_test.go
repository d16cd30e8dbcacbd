package metrics

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swapdesk/internal/lifecycle"
	"swapdesk/internal/model"
)

type stubWriter struct{ waitErr error }

func (w stubWriter) Submit(context.Context, model.Intent) (common.Hash, error) {
	return common.Hash{9}, nil
}

func (w stubWriter) Wait(context.Context, common.Hash) (model.ReceiptSummary, error) {
	return model.ReceiptSummary{}, w.waitErr
}

func TestMetricsTrackLifecycle(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	slots := lifecycle.NewSlots()
	slots.Observe(m)
	slots.Subscribe(m)

	intent := model.ApproveIntent{Token: model.NativeToken, Amount: big.NewInt(1)}
	_, err := lifecycle.NewDriver(slots, stubWriter{}, time.Second, nil).Run(context.Background(), "a", intent)
	require.NoError(t, err)

	reverted := stubWriter{waitErr: fmt.Errorf("%w: nope", model.ErrExecutionReverted)}
	_, err = lifecycle.NewDriver(slots, reverted, time.Second, nil).Run(context.Background(), "a", intent)
	require.Error(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transitions.WithLabelValues("approve", "submitted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("approve", "confirmed", "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("approve", "failed", "reverted")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.inflight.WithLabelValues("approve")))
}

func TestCause(t *testing.T) {
	assert.Equal(t, "", Cause(nil))
	assert.Equal(t, "rejected", Cause(fmt.Errorf("x: %w", model.ErrSignatureRejected)))
	assert.Equal(t, "timeout", Cause(model.ErrReceiptTimeout))
	assert.Equal(t, "other", Cause(errors.New("?")))
}
